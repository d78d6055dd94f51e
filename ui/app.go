// Package ui is the terminal front end: a transcript of the companion's
// remarks, an input line for replies and slash commands.
package ui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"companion/config"
	"companion/dispatch"
	"companion/model"
)

// Dispatcher is the part of the scheduler the UI drives.
type Dispatcher interface {
	Trigger(hint string)
	TriggerCandidate(ctx context.Context, id string) error
	TriggerRandomEligible(ctx context.Context) error
	EnqueueUserMessage(text string, priority bool)
	ResetHistory()
	SetPersona(id string)
	Persona() dispatch.Persona
	Personas() []dispatch.Persona
}

type entryKind int

const (
	entryUser entryKind = iota
	entryCompanion
	entryError
	entryInfo
)

type entry struct {
	kind     entryKind
	speaker  string
	text     string
	appended string

	rendered      string
	renderedWidth int
}

// Options configure an App.
type Options struct {
	Context      context.Context
	Dispatcher   Dispatcher
	CandidateIDs []string
	ModelName    string
	Keys         *config.KeyBindingsConfig
	Logger       *zap.Logger
	// StartupCheck runs once from Init, typically provider.CheckConnectivity.
	StartupCheck tea.Cmd
}

type App struct {
	ctx          context.Context
	dispatcher   Dispatcher
	candidateIDs []string
	modelName    string
	keys         *config.KeyBindingsConfig
	logger       *zap.Logger
	startupCheck tea.Cmd
	copy         func(string) error

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	entries      []entry
	thinking     bool
	quickReplies []string
	lastReply    string
	banner       string
	status       string
}

func NewApp(opts Options) App {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Keys == nil {
		opts.Keys = config.DefaultKeybindings()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ti := textinput.New()
	ti.Placeholder = "Say something, or /help"
	ti.Prompt = "> "
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	return App{
		ctx:          opts.Context,
		dispatcher:   opts.Dispatcher,
		candidateIDs: opts.CandidateIDs,
		modelName:    opts.ModelName,
		keys:         opts.Keys,
		logger:       opts.Logger.Named("ui"),
		startupCheck: opts.StartupCheck,
		copy:         clipboard.WriteAll,
		viewport:     viewport.New(0, 0),
		input:        ti,
		spinner:      sp,
	}
}

func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if a.startupCheck != nil {
		cmds = append(cmds, a.startupCheck)
	}
	return tea.Batch(cmds...)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.ready = true
		a = a.layout()
		cmds = append(cmds, a.rerenderAll()...)

	case tea.KeyMsg:
		next, cmd, handled := a.handleKey(msg)
		a = next
		if handled {
			return a, cmd
		}

	case thinkingStartedMsg:
		a.thinking = true
		cmds = append(cmds, a.spinner.Tick)

	case thinkingStoppedMsg:
		a.thinking = false

	case spinner.TickMsg:
		if !a.thinking {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case dispatchDoneMsg:
		r := msg.Result
		a.banner = ""
		a.status = ""
		a.lastReply = r.DisplayText
		a.quickReplies = r.QuickReplies
		a = a.addEntry(entry{
			kind:     entryCompanion,
			speaker:  a.dispatcher.Persona().Name,
			text:     r.DisplayText,
			appended: r.AppendedText,
		})
		cmds = append(cmds, renderMarkdownAsync(len(a.entries)-1, a.viewport.Width, r.DisplayText))

	case dispatchErrorMsg:
		f := msg.Failure
		a.status = ""
		a.logger.Debug("dispatch failed", zap.String("kind", string(f.Kind)), zap.Error(f.Err))
		if f.Kind.IsSetup() {
			a.banner = f.Message
			a = a.layout()
		} else {
			a = a.addEntry(entry{kind: entryError, text: f.Message})
		}

	case connectivityMsg:
		if msg.Result.OK {
			a.banner = ""
		} else {
			a.banner = setupMessage(msg.Result)
		}
		a = a.layout()

	case triggerResultMsg:
		a.status = ""
		if text, ok := describeTriggerError(msg.Err); ok {
			a = a.addEntry(entry{kind: entryError, text: text})
		}

	case markdownRenderedMsg:
		if msg.Index >= 0 && msg.Index < len(a.entries) {
			a.entries[msg.Index].rendered = msg.Rendered
			a.entries[msg.Index].renderedWidth = msg.Width
			a = a.refresh()
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// handleKey processes keys the App owns. Unhandled keys fall through to the
// input and viewport.
func (a App) handleKey(msg tea.KeyMsg) (App, tea.Cmd, bool) {
	key := msg.String()
	a.status = ""

	switch key {
	case "ctrl+c", a.keys.GetActionKey("quit"):
		return a, tea.Quit, true
	case a.keys.GetActionKey("copy_last_reply"):
		next, cmd := a.runCommand("/copy")
		return next, cmd, true
	case a.keys.GetActionKey("reset_history"):
		next, cmd := a.runCommand("/reset")
		return next, cmd, true
	case a.keys.GetActionKey("random_trigger"):
		next, cmd := a.runCommand("/random")
		return next, cmd, true
	case a.keys.GetActionKey("help"):
		next, cmd := a.runCommand("/help")
		return next, cmd, true
	case a.keys.GetActionKey("scroll_down"):
		a.viewport.LineDown(1)
		return a, nil, true
	case a.keys.GetActionKey("scroll_up"):
		a.viewport.LineUp(1)
		return a, nil, true
	case a.keys.GetActionKey("half_page_down"):
		a.viewport.HalfViewDown()
		return a, nil, true
	case a.keys.GetActionKey("half_page_up"):
		a.viewport.HalfViewUp()
		return a, nil, true
	case a.keys.GetActionKey("scroll_to_bottom"):
		a.viewport.GotoBottom()
		return a, nil, true
	case "enter":
		line := strings.TrimSpace(a.input.Value())
		a.input.Reset()
		if line == "" {
			return a, nil, true
		}
		next, cmd := a.submit(line)
		return next, cmd, true
	case "1", "2", "3", "4":
		if a.input.Value() != "" {
			return a, nil, false
		}
		i := int(key[0] - '1')
		if i >= len(a.quickReplies) {
			return a, nil, false
		}
		next, cmd := a.submit(a.quickReplies[i])
		return next, cmd, true
	}
	return a, nil, false
}

func (a App) submit(line string) (App, tea.Cmd) {
	if strings.HasPrefix(line, "/") {
		return a.runCommand(line)
	}
	a.quickReplies = nil
	a = a.addEntry(entry{kind: entryUser, text: line})
	a.dispatcher.EnqueueUserMessage(line, true)
	a.dispatcher.Trigger("")
	return a, nil
}

func (a App) addEntry(e entry) App {
	a.entries = append(a.entries, e)
	return a.refresh()
}

// refresh re-renders the transcript, keeping the view pinned to the bottom
// when it already was.
func (a App) refresh() App {
	atBottom := a.viewport.AtBottom()
	a.viewport.SetContent(a.renderTranscript())
	if atBottom {
		a.viewport.GotoBottom()
	}
	return a
}

func (a App) rerenderAll() []tea.Cmd {
	var cmds []tea.Cmd
	for i, e := range a.entries {
		if e.kind == entryCompanion && e.renderedWidth != a.viewport.Width {
			cmds = append(cmds, renderMarkdownAsync(i, a.viewport.Width, e.text))
		}
	}
	return cmds
}

// layout sizes the viewport to what the header, banner, quick replies,
// input and footer leave over.
func (a App) layout() App {
	if !a.ready {
		return a
	}
	used := 4 // header, quick replies, input, footer
	if banner := a.bannerView(); banner != "" {
		used += lipgloss.Height(banner)
	}
	a.viewport.Width = a.width
	a.viewport.Height = max(a.height-used, 1)
	a.input.Width = max(a.width-4, 10)
	return a.refresh()
}

func (a App) View() string {
	if !a.ready {
		return "Starting…"
	}
	parts := []string{a.headerView()}
	if banner := a.bannerView(); banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts,
		a.viewport.View(),
		quickReplyLine(a.quickReplies, a.width),
		a.input.View(),
		a.footerView(),
	)
	return strings.Join(parts, "\n")
}

func setupMessage(c model.Connectivity) string {
	switch c.Kind {
	case model.FailureModelNotFound:
		return "The configured model is not available. Pull it or change [provider] model in config.toml. (" + errText(c.Err) + ")"
	default:
		return "Cannot reach the model backend. Check [provider] base_url in config.toml or start the server. (" + errText(c.Err) + ")"
	}
}

func errText(err error) string {
	if err == nil {
		return "no details"
	}
	return err.Error()
}
