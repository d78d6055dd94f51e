// Package candidate defines pluggable generators of autonomous companion
// content and the registry that picks one of them for a dispatch cycle.
//
// A generator only has to implement Generator. The optional hooks (Enabler,
// Weighter, Trigger, ResponseListener) are discovered once, when the
// generator is registered, and replaced by defaults when absent.
package candidate

import (
	"context"
	"strconv"
	"time"

	"companion/model"
)

// Generator produces a prompt for the companion when it is selected.
// Returning a nil payload aborts the cycle silently.
type Generator interface {
	ID() string
	Generate(ctx context.Context, c *Context) (*Payload, error)
}

// Enabler lets a generator decide whether it is enabled for the current
// settings. Without it a generator is enabled unless its settings say
// otherwise.
type Enabler interface {
	IsEnabled(s Settings) bool
}

// Weighter supplies the generator's default selection weight. Without it
// the default weight is 1.
type Weighter interface {
	Weight(s Settings) float64
}

// Trigger reports whether the generator has something to say right now.
// It may block, e.g. on a reachability probe. Without it a generator is
// always eligible.
type Trigger interface {
	ShouldTrigger(ctx context.Context, c *Context) bool
}

// ResponseListener receives the companion's final reply to a prompt the
// generator produced.
type ResponseListener interface {
	OnResponse(text string)
}

// Document is the editor document active when the cycle started.
type Document struct {
	Path       string
	LanguageID string
	Text       string
}

// Context is built by the dispatcher for one cycle and handed to every
// generator hook invoked during that cycle.
type Context struct {
	Document    *Document
	RecentFiles []string
	History     []model.Message
	Now         time.Time

	// PushPriority queues a priority message for the next cycle.
	PushPriority func(text string)
}

// PayloadKind discriminates Payload.
type PayloadKind int

const (
	PayloadText PayloadKind = iota
	PayloadTextWithImage
)

// Payload is what a generator hands to the dispatcher.
type Payload struct {
	Kind              PayloadKind
	UserPrompt        string
	DisplayAppendText string
	Image             *model.Image
}

// Text builds a text-only payload.
func Text(prompt string) *Payload {
	return &Payload{Kind: PayloadText, UserPrompt: prompt}
}

// TextWithImage builds a payload that attaches an image to the prompt.
func TextWithImage(prompt string, img model.Image) *Payload {
	return &Payload{Kind: PayloadTextWithImage, UserPrompt: prompt, Image: &img}
}

// WithAppend sets the text shown after the companion's reply.
func (p *Payload) WithAppend(text string) *Payload {
	p.DisplayAppendText = text
	return p
}

// Settings are the user overrides for one generator.
type Settings struct {
	Enabled *bool             `toml:"enabled"`
	Weight  *float64          `toml:"weight"`
	Options map[string]string `toml:"options"`
}

// Option returns a generator-specific option or fallback.
func (s Settings) Option(key, fallback string) string {
	if v, ok := s.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Minutes parses a generator option expressed in minutes.
func (s Settings) Minutes(key string, fallback time.Duration) time.Duration {
	raw, ok := s.Options[key]
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n * float64(time.Minute))
}

// SettingsMap maps generator ids to their overrides.
type SettingsMap map[string]Settings

// For returns the overrides for id, or zero Settings.
func (m SettingsMap) For(id string) Settings {
	if m == nil {
		return Settings{}
	}
	return m[id]
}

// Descriptor is the live view of one generator for the current settings.
type Descriptor struct {
	ID      string
	Enabled bool
	Weight  float64
}
