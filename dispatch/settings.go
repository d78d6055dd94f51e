package dispatch

import "time"

const (
	// DefaultDebounce is the quiet period that collapses bursts of triggers.
	DefaultDebounce = 500 * time.Millisecond

	MinCooldown         = 5 * time.Second
	MinPeriodicInterval = 10 * time.Second
	MaxToolRoundsLimit  = 8

	recentFilesLimit = 10
)

// Settings are the live scheduling knobs.
type Settings struct {
	// Cooldown is the minimum interval between completed dispatch cycles.
	Cooldown time.Duration
	// MaxHistory bounds the retained conversation, system turn included.
	MaxHistory int
	// ToolsEnabled turns on the tool negotiation loop.
	ToolsEnabled bool
	// MaxToolRounds caps tool round-trips within one cycle.
	MaxToolRounds int
	// PeriodicInterval fires an undirected trigger on a timer; 0 disables it.
	PeriodicInterval time.Duration
	// RoundTimeout bounds each model invocation.
	RoundTimeout time.Duration
}

// DefaultSettings returns the settings used when no configuration exists.
func DefaultSettings() Settings {
	return Settings{
		Cooldown:      30 * time.Second,
		MaxHistory:    20,
		ToolsEnabled:  true,
		MaxToolRounds: 5,
		RoundTimeout:  60 * time.Second,
	}
}

// Clamped returns s with every field forced into its sane range.
func (s Settings) Clamped() Settings {
	if s.Cooldown < MinCooldown {
		s.Cooldown = MinCooldown
	}
	if s.MaxHistory < 1 {
		s.MaxHistory = 1
	}
	if s.MaxToolRounds < 1 {
		s.MaxToolRounds = 1
	}
	if s.MaxToolRounds > MaxToolRoundsLimit {
		s.MaxToolRounds = MaxToolRoundsLimit
	}
	if s.PeriodicInterval < 0 {
		s.PeriodicInterval = 0
	}
	if s.PeriodicInterval > 0 && s.PeriodicInterval < MinPeriodicInterval {
		s.PeriodicInterval = MinPeriodicInterval
	}
	if s.RoundTimeout <= 0 {
		s.RoundTimeout = DefaultSettings().RoundTimeout
	}
	return s
}

// Persona is a companion character with its own system prompt.
type Persona struct {
	ID           string
	Name         string
	SystemPrompt string
}

// DefaultPersona is used when no persona is configured or the active one
// is unknown.
var DefaultPersona = Persona{
	ID:   "default",
	Name: "Companion",
	SystemPrompt: "You are a friendly coding companion who lives next to the user's editor. " +
		"Keep replies short (one to three sentences), warm and specific. " +
		"When it helps, call suggest_quick_replies with a few short replies the user could send back.",
}
