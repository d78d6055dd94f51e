package candidate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Rand is the uniform source used for weighted selection. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

// entry holds a generator with its optional hooks resolved to defaults.
type entry struct {
	gen           Generator
	isEnabled     func(Settings) bool
	weight        func(Settings) float64
	shouldTrigger func(context.Context, *Context) bool
	onResponse    func(string)
}

// Registry owns the registered generators in registration order.
type Registry struct {
	logger *zap.Logger

	mu      sync.RWMutex
	entries []*entry
	byID    map[string]*entry
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger.Named("candidates"),
		byID:   make(map[string]*entry),
	}
}

// Register adds a generator. Ids must be unique and non-empty.
func (r *Registry) Register(g Generator) error {
	if g == nil {
		return errors.New("candidate: nil generator")
	}
	id := strings.TrimSpace(g.ID())
	if id == "" {
		return errors.New("candidate: generator id is required")
	}

	e := &entry{
		gen:           g,
		isEnabled:     func(s Settings) bool { return true },
		weight:        func(Settings) float64 { return 1 },
		shouldTrigger: func(context.Context, *Context) bool { return true },
		onResponse:    func(string) {},
	}
	if h, ok := g.(Enabler); ok {
		e.isEnabled = h.IsEnabled
	}
	if h, ok := g.(Weighter); ok {
		e.weight = h.Weight
	}
	if h, ok := g.(Trigger); ok {
		e.shouldTrigger = h.ShouldTrigger
	}
	if h, ok := g.(ResponseListener); ok {
		e.onResponse = h.OnResponse
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("candidate: duplicate id %q", id)
	}
	r.entries = append(r.entries, e)
	r.byID[id] = e
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(gens ...Generator) {
	for _, g := range gens {
		if err := r.Register(g); err != nil {
			panic(err)
		}
	}
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.gen.ID()
	}
	return ids
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// Describe returns the enabled flag and effective weight of every generator.
func (r *Registry) Describe(settings SettingsMap) []Descriptor {
	entries := r.snapshot()
	out := make([]Descriptor, 0, len(entries))
	for _, e := range entries {
		id := e.gen.ID()
		s := settings.For(id)
		out = append(out, Descriptor{
			ID:      id,
			Enabled: r.enabled(e, s),
			Weight:  r.effectiveWeight(e, s),
		})
	}
	return out
}

// Select picks one enabled, eligible generator by weighted random choice.
// It returns false when nothing is eligible or every weight is zero.
func (r *Registry) Select(ctx context.Context, c *Context, settings SettingsMap, rng Rand) (string, bool) {
	type weighted struct {
		id     string
		weight float64
	}

	var pool []weighted
	total := 0.0
	for _, e := range r.snapshot() {
		id := e.gen.ID()
		s := settings.For(id)
		if !r.enabled(e, s) || !r.eligible(ctx, e, c) {
			continue
		}
		w := r.effectiveWeight(e, s)
		pool = append(pool, weighted{id: id, weight: w})
		total += w
	}
	if len(pool) == 0 || total <= 0 {
		return "", false
	}

	roll := rng.Float64() * total
	for _, cand := range pool {
		if cand.weight <= 0 {
			continue
		}
		roll -= cand.weight
		if roll <= 0 {
			return cand.id, true
		}
	}

	// Float rounding can leave a sliver above zero; the last weighted
	// candidate owns it.
	for i := len(pool) - 1; i >= 0; i-- {
		if pool[i].weight > 0 {
			return pool[i].id, true
		}
	}
	return "", false
}

// SelectByID checks that an explicitly requested generator is registered,
// enabled and eligible.
func (r *Registry) SelectByID(ctx context.Context, id string, c *Context, settings SettingsMap) bool {
	e, ok := r.lookup(id)
	if !ok {
		r.logger.Debug("unknown candidate requested", zap.String("candidate", id))
		return false
	}
	if !r.enabled(e, settings.For(id)) {
		return false
	}
	return r.eligible(ctx, e, c)
}

// Generate asks generator id for its payload. Errors, panics and payloads
// without a prompt come back as *Error.
func (r *Registry) Generate(ctx context.Context, id string, c *Context) (payload *Payload, err error) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, &Error{ID: id, Op: "generate", Err: ErrUnknown}
	}

	defer func() {
		if rec := recover(); rec != nil {
			payload = nil
			err = &Error{ID: id, Op: "generate", Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	payload, err = e.gen.Generate(ctx, c)
	if err != nil {
		return nil, &Error{ID: id, Op: "generate", Err: err}
	}
	if payload == nil {
		return nil, nil
	}
	if strings.TrimSpace(payload.UserPrompt) == "" {
		return nil, &Error{ID: id, Op: "generate", Err: errors.New("empty prompt")}
	}
	if payload.Kind == PayloadTextWithImage && (payload.Image == nil || len(payload.Image.Data) == 0) {
		return nil, &Error{ID: id, Op: "generate", Err: errors.New("image payload without image data")}
	}
	return payload, nil
}

// NotifyResponse forwards the companion's reply to the generator's
// ResponseListener hook, if any.
func (r *Registry) NotifyResponse(id, text string) {
	e, ok := r.lookup(id)
	if !ok {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("response hook panicked", zap.String("candidate", id), zap.Any("panic", rec))
		}
	}()
	e.onResponse(text)
}

func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e, ok
}

// enabled lets an explicit user "off" win; otherwise the generator decides.
func (r *Registry) enabled(e *entry, s Settings) bool {
	if s.Enabled != nil && !*s.Enabled {
		return false
	}
	return e.isEnabled(s)
}

func (r *Registry) effectiveWeight(e *entry, s Settings) float64 {
	if s.Weight != nil && *s.Weight >= 0 {
		return *s.Weight
	}
	w := e.weight(s)
	if w < 0 {
		return 0
	}
	return w
}

func (r *Registry) eligible(ctx context.Context, e *entry, c *Context) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("trigger hook panicked", zap.String("candidate", e.gen.ID()), zap.Any("panic", rec))
			ok = false
		}
	}()
	return e.shouldTrigger(ctx, c)
}
