package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"companion/candidate"
	"companion/candidates"
	"companion/config"
	"companion/dispatch"
	"companion/model"
	"companion/provider"
	"companion/storage"
	"companion/ui"
	"companion/workspace"
)

// seenRetention is how long news headlines stay in the dedupe store.
const seenRetention = 30 * 24 * time.Hour

type runOptions struct {
	watchDir string
	persona  string
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.watchDir, "watch", "w", "", "directory whose saved files feed the companion")
	cmd.Flags().StringVarP(&o.persona, "persona", "p", "", "persona id to start with")
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the companion (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApp(cmd.Context(), opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

// runtime is everything the commands share after configuration is loaded.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	provider model.Provider
	seen     *storage.SeenStore
	registry *candidate.Registry

	closers []func()
}

// setup loads configuration, the logger, the provider and the candidate
// registry. The returned runtime must be closed.
func setup() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := config.NewLogger(cfg.DataDir(), cfg.Debug)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger, closers: []func(){closeLog}}

	p, err := provider.InitializeProvider(cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.provider = p

	deps := candidates.Deps{Logger: logger}
	seen, err := storage.NewSeenStore(cfg.DataDir())
	if err != nil {
		// news still works without dedupe
		logger.Warn("seen store unavailable", zap.Error(err))
	} else {
		rt.seen = seen
		deps.Seen = seen
		rt.closers = append(rt.closers, func() { _ = seen.Close() })
	}

	rt.registry = candidate.NewRegistry(logger)
	rt.registry.MustRegister(candidates.Builtins(cfg.CandidateSettings(), deps)...)
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func runApp(ctx context.Context, opts *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	if rt.seen != nil {
		if n, err := rt.seen.Prune(ctx, seenRetention); err != nil {
			logger.Warn("prune seen store", zap.Error(err))
		} else if n > 0 {
			logger.Debug("pruned seen store", zap.Int64("removed", n))
		}
	}

	keys, err := config.LoadKeybindings(cfg.DataDir())
	if err != nil {
		logger.Warn("keybindings invalid, using defaults", zap.Error(err))
		keys = config.DefaultKeybindings()
	}

	active := cfg.ActivePersona
	if opts.persona != "" {
		active = opts.persona
	}

	bridge := ui.NewBridge()
	scheduler := dispatch.New(rt.provider, rt.registry,
		dispatch.WithLogger(logger),
		dispatch.WithListener(bridge),
		dispatch.WithSettings(cfg.Scheduler()),
		dispatch.WithPersonas(cfg.PersonaList(), active),
		dispatch.WithCandidateSettings(cfg.CandidateSettings()),
	)
	defer scheduler.Close()

	if opts.watchDir != "" {
		w, err := workspace.NewWatcher(opts.watchDir, scheduler, logger)
		if err != nil {
			return fmt.Errorf("watch %s: %w", opts.watchDir, err)
		}
		w.Start(ctx)
		defer w.Stop()
	}

	app := ui.NewApp(ui.Options{
		Context:      ctx,
		Dispatcher:   scheduler,
		CandidateIDs: rt.registry.IDs(),
		ModelName:    rt.provider.GetModel(),
		Keys:         keys,
		Logger:       logger,
		StartupCheck: provider.CheckConnectivity(rt.provider),
	})

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)
	scheduler.Start()

	logger.Info("companion started",
		zap.String("provider", cfg.ProviderType),
		zap.String("model", rt.provider.GetModel()),
		zap.String("persona", active),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running companion: %w", err)
	}
	return nil
}
