package candidates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"companion/candidate"
)

// Breaks reminds the user to take a break after a stretch of work.
type Breaks struct {
	interval time.Duration

	mu     sync.Mutex
	anchor time.Time // session start or last reminder
}

func NewBreaks(s candidate.Settings, start time.Time) *Breaks {
	return &Breaks{
		interval: s.Minutes("interval_minutes", 50*time.Minute),
		anchor:   start,
	}
}

func (b *Breaks) ID() string { return BreaksID }

func (b *Breaks) ShouldTrigger(_ context.Context, c *candidate.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.Now.Sub(b.anchor) >= b.interval
}

func (b *Breaks) Generate(_ context.Context, c *candidate.Context) (*candidate.Payload, error) {
	b.mu.Lock()
	worked := c.Now.Sub(b.anchor).Round(time.Minute)
	b.anchor = c.Now
	b.mu.Unlock()

	return candidate.Text(fmt.Sprintf(
		"The user has been working for about %d minutes without a break. "+
			"Suggest a short break (stretch, water, look away from the screen) in one or two friendly sentences.",
		int(worked.Minutes()),
	)), nil
}
