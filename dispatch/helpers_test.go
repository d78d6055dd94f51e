package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"companion/candidate"
	"companion/model"
	"companion/provider/testutil"
)

// manualClock fires timers synchronously from Advance.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	c    *manualClock
	at   time.Time
	f    func()
	done bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.done
	t.done = true
	return active
}

// Advance moves time forward by d, running due timers in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.done || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.done = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

// Pending counts timers that have not fired or been stopped.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

type recorder struct {
	mu        sync.Mutex
	started   []string
	stopped   []string
	successes []model.DispatchResult
	failures  []model.DispatchFailure
}

func (r *recorder) ThinkingStarted(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, id)
}

func (r *recorder) ThinkingStopped(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = append(r.stopped, id)
}

func (r *recorder) DispatchSucceeded(res model.DispatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, res)
}

func (r *recorder) DispatchFailed(f model.DispatchFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
}

func (r *recorder) Successes() []model.DispatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.DispatchResult(nil), r.successes...)
}

func (r *recorder) Failures() []model.DispatchFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.DispatchFailure(nil), r.failures...)
}

func (r *recorder) Thinking() (started, stopped []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...), append([]string(nil), r.stopped...)
}

// stubGen always offers a fixed prompt and remembers replies.
type stubGen struct {
	id     string
	prompt string
	fn     func(c *candidate.Context) (*candidate.Payload, error)

	mu        sync.Mutex
	generated int
	replies   []string
}

func (g *stubGen) ID() string { return g.id }

func (g *stubGen) Generate(_ context.Context, c *candidate.Context) (*candidate.Payload, error) {
	g.mu.Lock()
	g.generated++
	g.mu.Unlock()
	if g.fn != nil {
		return g.fn(c)
	}
	return candidate.Text(g.prompt), nil
}

func (g *stubGen) OnResponse(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies = append(g.replies, text)
}

func (g *stubGen) Generated() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generated
}

func (g *stubGen) Replies() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.replies...)
}

type harness struct {
	s     *Scheduler
	clock *manualClock
	rec   *recorder
	p     *testutil.MockProvider
}

func newHarness(t *testing.T, p *testutil.MockProvider, st Settings, gens ...candidate.Generator) *harness {
	t.Helper()
	reg := candidate.NewRegistry(nil)
	reg.MustRegister(gens...)

	h := &harness{clock: newManualClock(), rec: &recorder{}, p: p}
	h.s = New(p, reg,
		WithClock(h.clock),
		WithListener(h.rec),
		WithSettings(st),
	)
	t.Cleanup(h.s.Close)
	return h
}

func testSettings() Settings {
	st := DefaultSettings()
	st.Cooldown = 30 * time.Second
	return st
}

func lastUserContent(call testutil.Call) string {
	for i := len(call.Messages) - 1; i >= 0; i-- {
		if call.Messages[i].Role == model.RoleUser {
			return call.Messages[i].Content
		}
	}
	return ""
}

func quickReplyCall(id string, replies ...any) model.ToolCall {
	return model.ToolCall{ID: id, Name: QuickRepliesTool, Arguments: map[string]any{"replies": replies}}
}
