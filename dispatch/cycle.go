package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"companion/candidate"
	"companion/model"
)

// cycleInput is the snapshot a cycle works from, taken under s.mu.
type cycleInput struct {
	persona  Persona
	epoch    uint64
	settings Settings
	cands    candidate.SettingsMap
	base     []model.Message
	env      *candidate.Context
}

func (s *Scheduler) snapshot() cycleInput {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docPath string
	var doc *candidate.Document
	if s.document != nil {
		d := *s.document
		doc = &d
		docPath = d.Path
	}
	if s.history.SyncAnchor(docPath) {
		s.epoch++
		s.logger.Debug("active document changed, history reset", zap.String("path", docPath))
	}

	persona := s.personaLocked()
	base := withSystem(s.history.Messages(), persona.SystemPrompt)

	return cycleInput{
		persona:  persona,
		epoch:    s.epoch,
		settings: s.settings,
		cands:    s.candidateSettings,
		base:     base,
		env: &candidate.Context{
			Document:     doc,
			RecentFiles:  append([]string(nil), s.recent...),
			History:      append([]model.Message(nil), base...),
			Now:          s.clock.Now(),
			PushPriority: s.queue.EnqueueFront,
		},
	}
}

// withSystem returns msgs with a system head, prepending one built from
// prompt when missing. msgs is not modified.
func withSystem(msgs []model.Message, prompt string) []model.Message {
	if len(msgs) > 0 && msgs[0].IsSystem() {
		return msgs
	}
	out := make([]model.Message, 0, len(msgs)+1)
	out = append(out, model.Message{Role: model.RoleSystem, Content: prompt})
	return append(out, msgs...)
}

// runCycle performs one dispatch. The caller holds the single-flight flag.
func (s *Scheduler) runCycle(ctx context.Context, hint string) error {
	cycleID := ulid.Make().String()
	log := s.logger.With(zap.String("cycle", cycleID))
	in := s.snapshot()

	var (
		userTurn    model.Message
		candidateID string
		payload     *candidate.Payload
	)
	if msg, ok := s.queue.Dequeue(); ok {
		userTurn = model.Message{Role: model.RoleUser, Content: msg.Text}
		log.Debug("dispatching queued message", zap.Bool("priority", msg.Priority))
	} else {
		id, ok := s.pickCandidate(ctx, hint, in)
		if !ok {
			log.Debug("no candidate available", zap.String("hint", hint))
			return nil
		}
		p, err := s.registry.Generate(ctx, id, in.env)
		if err != nil {
			log.Warn("candidate failed", zap.String("candidate", id), zap.Error(err))
			return err
		}
		if p == nil {
			log.Debug("candidate declined", zap.String("candidate", id))
			return nil
		}
		payload = p
		candidateID = id
		userTurn = model.Message{Role: model.RoleUser, Content: p.UserPrompt}
		if p.Image != nil {
			userTurn.Images = []model.Image{*p.Image}
		}
	}
	userTurn.Timestamp = in.env.Now

	if !s.emit(func() { s.listener.ThinkingStarted(cycleID) }) {
		return nil
	}
	defer s.emit(func() { s.listener.ThinkingStopped(cycleID) })

	messages := append(append([]model.Message(nil), in.base...), userTurn)
	text, replies, err := s.negotiate(ctx, messages, in.settings, log)
	if err != nil {
		if s.isClosed() {
			return nil
		}
		kind := Classify(err)
		log.Warn("dispatch failed", zap.String("kind", string(kind)), zap.Error(err))
		s.emit(func() {
			s.listener.DispatchFailed(model.DispatchFailure{
				CycleID:     cycleID,
				CandidateID: candidateID,
				Kind:        kind,
				Message:     failureMessage(kind, err, s.provider),
				Err:         err,
			})
		})
		return err
	}

	if s.isClosed() {
		return nil
	}
	if candidateID != "" {
		s.registry.NotifyResponse(candidateID, text)
	}

	now := s.clock.Now()
	stored := userTurn
	stored.Images = nil
	s.mu.Lock()
	if s.epoch == in.epoch {
		s.history.EnsureSystem(s.personaLocked().SystemPrompt)
		s.history.Append(stored, model.Message{Role: model.RoleAssistant, Content: text, Timestamp: now})
	} else {
		log.Debug("history reset during cycle, exchange not stored")
	}
	s.mu.Unlock()

	result := model.DispatchResult{
		CycleID:      cycleID,
		CandidateID:  candidateID,
		DisplayText:  text,
		QuickReplies: replies,
		CompletedAt:  now,
	}
	if payload != nil {
		result.AppendedText = payload.DisplayAppendText
		result.Image = payload.Image
	}
	log.Info("dispatch succeeded", zap.String("candidate", candidateID), zap.Int("quick_replies", len(replies)))
	s.emit(func() { s.listener.DispatchSucceeded(result) })
	return nil
}

func (s *Scheduler) pickCandidate(ctx context.Context, hint string, in cycleInput) (string, bool) {
	if hint != "" {
		return hint, s.registry.SelectByID(ctx, hint, in.env, in.cands)
	}
	s.mu.Lock()
	rng := s.rng
	s.mu.Unlock()
	return s.registry.Select(ctx, in.env, in.cands, rng)
}

// negotiate invokes the model until it answers without tool calls. Each
// invocation is bounded by the round timeout; the number of tool
// round-trips is bounded by MaxToolRounds.
func (s *Scheduler) negotiate(ctx context.Context, messages []model.Message, st Settings, log *zap.Logger) (string, []string, error) {
	var tools []mcptypes.Tool
	if st.ToolsEnabled {
		tools = s.tools.Definitions()
	}
	state := &cycleState{}

	for round := 0; ; round++ {
		resp, err := s.invoke(ctx, messages, tools, st.RoundTimeout)
		if err != nil {
			return "", nil, err
		}
		if len(tools) == 0 || !resp.HasToolCalls() {
			text := Sanitize(resp.Text)
			if text == "" {
				return "", nil, ErrEmptyReply
			}
			return text, state.quickReplies, nil
		}
		if round >= st.MaxToolRounds {
			return "", nil, fmt.Errorf("%w after %d rounds", ErrToolRoundsExceeded, round)
		}

		calls := withCallIDs(resp.ToolCalls)
		messages = append(messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: calls,
		})
		for _, call := range calls {
			result := s.tools.Execute(ctx, call, state)
			log.Debug("tool executed",
				zap.String("tool", call.Name),
				zap.String("call_id", call.ID),
				zap.String("status", string(result.Status)))
			messages = append(messages, result.Message())
		}
	}
}

func (s *Scheduler) invoke(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, timeout time.Duration) (model.Response, error) {
	roundCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := model.Collect(roundCtx, s.provider, messages, tools)
	if err != nil && errors.Is(roundCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return resp, fmt.Errorf("%w: model did not answer within %s", context.DeadlineExceeded, timeout)
	}
	return resp, err
}

// emit runs f unless the scheduler has been closed and reports whether it
// ran.
func (s *Scheduler) emit(f func()) bool {
	if s.isClosed() {
		return false
	}
	f()
	return true
}

func (s *Scheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func failureMessage(kind model.FailureKind, err error, p model.Provider) string {
	switch kind {
	case model.FailureConnection:
		return "Can't reach the language model. Check that the provider is running and the base URL is right."
	case model.FailureModelNotFound:
		name := ""
		if p != nil {
			name = p.GetModel()
		}
		return fmt.Sprintf("Model %q isn't available. Pull it or pick another model in settings.", name)
	default:
		return err.Error()
	}
}
