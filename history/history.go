// Package history keeps the bounded, ephemeral conversation the companion
// sends to the model.
//
// A non-empty conversation always starts with a system turn. Pruning keeps
// that turn and the most recent max-1 turns. Conversation is not safe for
// concurrent use; the dispatcher is its only writer.
package history

import (
	"time"

	"companion/model"
)

// Conversation is an ordered, role-tagged list of turns.
type Conversation struct {
	turns  []model.Message
	max    int
	anchor string
}

// New returns an empty conversation retaining at most max turns.
func New(max int) *Conversation {
	return &Conversation{max: clampMax(max)}
}

func clampMax(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Max returns the retention limit.
func (c *Conversation) Max() int {
	return c.max
}

// SetMax changes the retention limit and prunes immediately.
func (c *Conversation) SetMax(n int) {
	c.max = clampMax(n)
	c.Prune()
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Messages returns a copy of the turns.
func (c *Conversation) Messages() []model.Message {
	out := make([]model.Message, len(c.turns))
	copy(out, c.turns)
	return out
}

// EnsureSystem prepends a system turn with prompt when the conversation is
// empty or does not start with one.
func (c *Conversation) EnsureSystem(prompt string) {
	if len(c.turns) > 0 && c.turns[0].IsSystem() {
		return
	}
	sys := model.Message{Role: model.RoleSystem, Content: prompt, Timestamp: time.Now()}
	c.turns = append([]model.Message{sys}, c.turns...)
}

// Append adds the turns of one completed cycle and prunes.
func (c *Conversation) Append(turns ...model.Message) {
	c.turns = append(c.turns, turns...)
	c.Prune()
}

// Prune truncates to the system turn (if present) plus the most recent
// max-1 turns, preserving order.
func (c *Conversation) Prune() {
	if len(c.turns) <= c.max {
		return
	}
	if c.turns[0].IsSystem() {
		kept := make([]model.Message, 0, c.max)
		kept = append(kept, c.turns[0])
		kept = append(kept, c.turns[len(c.turns)-(c.max-1):]...)
		c.turns = kept
		return
	}
	c.turns = append([]model.Message(nil), c.turns[len(c.turns)-c.max:]...)
}

// Reset clears the turns and the document anchor.
func (c *Conversation) Reset() {
	c.turns = nil
	c.anchor = ""
}

// Anchor returns the document path the conversation belongs to.
func (c *Conversation) Anchor() string {
	return c.anchor
}

// SyncAnchor resets the conversation when path differs from the current
// anchor and records path as the new anchor. It reports whether a reset
// happened.
func (c *Conversation) SyncAnchor(path string) bool {
	if path == c.anchor {
		return false
	}
	c.Reset()
	c.anchor = path
	return true
}
