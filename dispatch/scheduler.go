// Package dispatch runs the companion's dispatch cycles: it debounces
// triggers, enforces the cooldown and single-flight rules, chooses between
// queued user messages and candidate generators, and negotiates tool calls
// with the language model.
package dispatch

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"companion/candidate"
	"companion/history"
	"companion/model"
	"companion/queue"
)

// Scheduler owns the conversation and serializes dispatch cycles.
// All methods are safe for concurrent use.
type Scheduler struct {
	provider model.Provider
	registry *candidate.Registry
	logger   *zap.Logger
	clock    Clock
	listener Listener
	debounce time.Duration
	tools    *toolbox
	queue    *queue.Queue

	// baseCtx is cancelled by Close and parents every cycle.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu                sync.Mutex
	rng               candidate.Rand
	settings          Settings
	candidateSettings candidate.SettingsMap
	personas          map[string]Persona
	activePersona     string
	history           *history.Conversation
	// epoch counts history resets; a cycle only writes back into the epoch
	// it started in.
	epoch    uint64
	document *candidate.Document
	recent   []string

	busy          bool
	closed        bool
	started       bool
	lastCompleted time.Time

	debounceTimer Timer
	debounceSeq   uint64
	debounceHint  string

	cooldownTimer Timer
	cooldownSeq   uint64

	periodicTimer Timer
	periodicSeq   uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Nil keeps the no-op default.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the wall clock used for timers and timestamps.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRand sets the source for weighted candidate selection.
func WithRand(r candidate.Rand) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithListener sets the receiver of dispatch events.
func WithListener(l Listener) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.listener = l
		}
	}
}

// WithSettings sets the initial settings after clamping them.
func WithSettings(st Settings) Option {
	return func(s *Scheduler) {
		s.settings = st.Clamped()
	}
}

// WithPersonas registers personas and selects the active one. An unknown
// active ID falls back to DefaultPersona.
func WithPersonas(personas []Persona, active string) Option {
	return func(s *Scheduler) {
		for _, p := range personas {
			if p.ID == "" {
				continue
			}
			s.personas[p.ID] = p
		}
		s.activePersona = active
	}
}

// WithCandidateSettings sets the per-generator overrides used for
// selection.
func WithCandidateSettings(m candidate.SettingsMap) Option {
	return func(s *Scheduler) {
		s.candidateSettings = m
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// New creates a scheduler. It does nothing until triggered; Start arms the
// periodic trigger when one is configured.
func New(provider model.Provider, registry *candidate.Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		provider: provider,
		registry: registry,
		logger:   zap.NewNop(),
		clock:    RealClock(),
		listener: ListenerFuncs{},
		debounce: DefaultDebounce,
		tools:    newToolbox(),
		queue:    queue.New(),
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		settings: DefaultSettings(),
		personas: make(map[string]Persona),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = candidate.NewRegistry(s.logger)
	}
	s.logger = s.logger.Named("dispatch")
	s.history = history.New(s.settings.MaxHistory)
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	return s
}

// Start arms the periodic trigger if the settings enable one.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.started {
		return
	}
	s.started = true
	s.armPeriodicLocked()
}

// Close stops every pending timer and cancels the in-flight cycle, whose
// events are then suppressed. Close is idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stopTimer(&s.debounceTimer)
	stopTimer(&s.cooldownTimer)
	stopTimer(&s.periodicTimer)
	s.mu.Unlock()

	s.baseCancel()
	s.logger.Debug("scheduler closed")
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// Trigger requests a cycle after the debounce period. Triggers arriving
// within the period replace the pending one; the most recent hint wins.
// An empty hint lets the registry pick a candidate.
func (s *Scheduler) Trigger(hint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	stopTimer(&s.debounceTimer)
	s.debounceSeq++
	seq := s.debounceSeq
	s.debounceHint = hint
	s.debounceTimer = s.clock.AfterFunc(s.debounce, func() { s.fireDebounce(seq) })
}

func (s *Scheduler) fireDebounce(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.debounceSeq {
		s.mu.Unlock()
		return
	}
	hint := s.debounceHint
	s.debounceTimer = nil
	s.mu.Unlock()

	if err := s.attempt(s.baseCtx, hint, true); err != nil {
		s.logger.Debug("debounced cycle failed", zap.Error(err))
	}
}

func (s *Scheduler) fireCooldown(seq uint64, hint string) {
	s.mu.Lock()
	if s.closed || seq != s.cooldownSeq {
		s.mu.Unlock()
		return
	}
	s.cooldownTimer = nil
	s.mu.Unlock()

	if err := s.attempt(s.baseCtx, hint, false); err != nil {
		s.logger.Debug("rescheduled cycle failed", zap.Error(err))
	}
}

// armPeriodicLocked (re)arms the periodic trigger. s.mu must be held.
func (s *Scheduler) armPeriodicLocked() {
	stopTimer(&s.periodicTimer)
	s.periodicSeq++
	interval := s.settings.PeriodicInterval
	if !s.started || interval <= 0 {
		return
	}
	seq := s.periodicSeq
	s.periodicTimer = s.clock.AfterFunc(interval, func() {
		s.mu.Lock()
		if s.closed || seq != s.periodicSeq {
			s.mu.Unlock()
			return
		}
		s.armPeriodicLocked()
		s.mu.Unlock()
		s.Trigger("")
	})
}

// TriggerCandidate runs a cycle for the given generator right away,
// bypassing the debounce. The cooldown still applies, without a reschedule.
func (s *Scheduler) TriggerCandidate(ctx context.Context, id string) error {
	if !s.registry.Has(id) {
		return &candidate.Error{ID: id, Op: "trigger", Err: candidate.ErrUnknown}
	}
	return s.runNow(ctx, id)
}

// TriggerRandomEligible runs an immediate cycle with a weighted candidate
// pick, subject to the cooldown.
func (s *Scheduler) TriggerRandomEligible(ctx context.Context) error {
	return s.runNow(ctx, "")
}

func (s *Scheduler) runNow(ctx context.Context, hint string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.baseCtx, cancel)
	defer stop()
	return s.attempt(ctx, hint, false)
}

// attempt applies the closed, single-flight and cooldown guards and runs one
// cycle when all of them pass. A cycle blocked by the cooldown is either
// dropped or, when reschedule is set, retried once when the cooldown ends.
func (s *Scheduler) attempt(ctx context.Context, hint string, reschedule bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.busy {
		s.mu.Unlock()
		s.logger.Debug("cycle in flight, trigger dropped", zap.String("hint", hint))
		return nil
	}
	if wait := s.cooldownRemainingLocked(); wait > 0 {
		if reschedule {
			stopTimer(&s.cooldownTimer)
			s.cooldownSeq++
			seq := s.cooldownSeq
			s.cooldownTimer = s.clock.AfterFunc(wait, func() { s.fireCooldown(seq, hint) })
			s.logger.Debug("cooldown active, cycle rescheduled", zap.Duration("wait", wait))
		} else {
			s.logger.Debug("cooldown active, cycle dropped", zap.Duration("wait", wait))
		}
		s.mu.Unlock()
		return nil
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.lastCompleted = s.clock.Now()
		s.mu.Unlock()
	}()
	return s.runCycle(ctx, hint)
}

func (s *Scheduler) cooldownRemainingLocked() time.Duration {
	if s.lastCompleted.IsZero() {
		return 0
	}
	elapsed := s.clock.Now().Sub(s.lastCompleted)
	if elapsed >= s.settings.Cooldown {
		return 0
	}
	return s.settings.Cooldown - elapsed
}

// EnqueueUserMessage queues text for the next cycle. Blank text is ignored.
func (s *Scheduler) EnqueueUserMessage(text string, priority bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.queue.Push(text, priority)
}

// PendingMessages reports how many queued messages await a cycle.
func (s *Scheduler) PendingMessages() int {
	return s.queue.Len()
}

// ResetHistory clears the conversation and its document anchor.
func (s *Scheduler) ResetHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetHistoryLocked()
}

func (s *Scheduler) resetHistoryLocked() {
	s.history.Reset()
	s.epoch++
}

// SetActiveDocument records the document in focus. A nil document clears
// it. The conversation resets on the next cycle when the path differs from
// the one the conversation is anchored to.
func (s *Scheduler) SetActiveDocument(doc *candidate.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc == nil {
		s.document = nil
		return
	}
	d := *doc
	s.document = &d
	s.touchLocked(d.Path)
}

// TouchFile moves path to the front of the recently used files.
func (s *Scheduler) TouchFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(path)
}

func (s *Scheduler) touchLocked(path string) {
	if path == "" {
		return
	}
	recent := make([]string, 0, recentFilesLimit)
	recent = append(recent, path)
	for _, p := range s.recent {
		if p != path && len(recent) < recentFilesLimit {
			recent = append(recent, p)
		}
	}
	s.recent = recent
}

// RecentFiles returns the most recently used files, newest first.
func (s *Scheduler) RecentFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recent...)
}

// SetPersona switches the active persona. Switching to a different persona
// resets the conversation so the new system prompt takes over.
func (s *Scheduler) SetPersona(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.activePersona {
		return
	}
	s.activePersona = id
	s.resetHistoryLocked()
	s.logger.Info("persona changed", zap.String("persona", s.personaLocked().ID))
}

// Persona returns the persona used by the next cycle.
func (s *Scheduler) Persona() Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personaLocked()
}

// Personas returns the configured personas in no particular order.
func (s *Scheduler) Personas() []Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Persona, 0, len(s.personas))
	for _, p := range s.personas {
		out = append(out, p)
	}
	return out
}

func (s *Scheduler) personaLocked() Persona {
	if p, ok := s.personas[s.activePersona]; ok {
		return p
	}
	return DefaultPersona
}

// UpdateSettings applies new settings. The history bound takes effect
// immediately and the periodic trigger is re-armed.
func (s *Scheduler) UpdateSettings(st Settings) {
	st = st.Clamped()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = st
	s.history.SetMax(st.MaxHistory)
	if !s.closed {
		s.armPeriodicLocked()
	}
}

// UpdateCandidateSettings replaces the per-generator overrides.
func (s *Scheduler) UpdateCandidateSettings(m candidate.SettingsMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidateSettings = m
}

// Settings returns the active settings.
func (s *Scheduler) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// History returns a copy of the retained conversation.
func (s *Scheduler) History() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Messages()
}

// Provider returns the language model client.
func (s *Scheduler) Provider() model.Provider {
	return s.provider
}

// Registry returns the candidate registry.
func (s *Scheduler) Registry() *candidate.Registry {
	return s.registry
}
