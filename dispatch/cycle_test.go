package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/candidate"
	"companion/model"
	"companion/provider/testutil"
)

var ignoreTimestamps = cmpopts.IgnoreFields(model.Message{}, "Timestamp")

func TestCycleAppendsUserAndAssistantTurns(t *testing.T) {
	p := testutil.NewScriptedProvider("m", model.Response{Text: "<think>hmm</think>Nice work!<|eot_id|>"})
	h := newHarness(t, p, testSettings(), &stubGen{id: "a", prompt: "say something"})

	require.NoError(t, h.s.TriggerCandidate(context.Background(), "a"))

	want := []model.Message{
		{Role: model.RoleSystem, Content: DefaultPersona.SystemPrompt},
		{Role: model.RoleUser, Content: "say something"},
		{Role: model.RoleAssistant, Content: "Nice work!"},
	}
	if diff := cmp.Diff(want, h.s.History(), ignoreTimestamps); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}

	calls := p.Calls()
	require.Len(t, calls, 1)
	if diff := cmp.Diff(want[:2], calls[0].Messages, ignoreTimestamps); diff != "" {
		t.Errorf("prompt mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, calls[0].Tools, 1)
	assert.Equal(t, QuickRepliesTool, calls[0].Tools[0].Name)

	started, stopped := h.rec.Thinking()
	assert.Equal(t, started, stopped)
	require.Len(t, h.rec.Successes(), 1)
	assert.Equal(t, started[0], h.rec.Successes()[0].CycleID)
}

func TestHistoryStaysBoundedWithSystemHead(t *testing.T) {
	p := testutil.NewMockProvider("m")
	n := 0
	p.ChatWithToolsFunc = func(_ context.Context, _ []model.Message, _ []mcptypes.Tool, cb model.StreamCallback) error {
		n++
		return cb(fmt.Sprintf("reply %d", n), nil)
	}
	st := testSettings()
	st.Cooldown = MinCooldown
	st.MaxHistory = 4
	h := newHarness(t, p, st, &stubGen{id: "a", prompt: "p"})

	for i := 0; i < 5; i++ {
		require.NoError(t, h.s.TriggerRandomEligible(context.Background()))
		h.clock.Advance(MinCooldown)

		hist := h.s.History()
		assert.LessOrEqual(t, len(hist), st.MaxHistory)
		assert.Equal(t, model.RoleSystem, hist[0].Role)
		assert.Equal(t, fmt.Sprintf("reply %d", i+1), hist[len(hist)-1].Content)
	}

	st.MaxHistory = 1
	h.s.UpdateSettings(st)
	hist := h.s.History()
	require.Len(t, hist, 1)
	assert.Equal(t, model.RoleSystem, hist[0].Role)
}

func TestQuickRepliesAreCollectedThroughToolRound(t *testing.T) {
	p := testutil.NewScriptedProvider("m",
		model.Response{ToolCalls: []model.ToolCall{{Name: QuickRepliesTool, Arguments: map[string]any{
			"replies": []any{"Thanks!", " ", "Tell me more", "Later", "Not now", "Too many"},
		}}}},
		model.Response{Text: "Want a hint?"},
	)
	gen := &stubGen{id: "a", prompt: "p"}
	h := newHarness(t, p, testSettings(), gen)

	require.NoError(t, h.s.TriggerCandidate(context.Background(), "a"))

	successes := h.rec.Successes()
	require.Len(t, successes, 1)
	assert.Equal(t, "Want a hint?", successes[0].DisplayText)
	assert.Equal(t, []string{"Thanks!", "Tell me more", "Later", "Not now"}, successes[0].QuickReplies)

	calls := p.Calls()
	require.Len(t, calls, 2)
	second := calls[1].Messages
	require.Len(t, second, 4)
	assistant, tool := second[2], second[3]
	assert.Equal(t, model.RoleAssistant, assistant.Role)
	require.Len(t, assistant.ToolCalls, 1)
	assert.NotEmpty(t, assistant.ToolCalls[0].ID)
	assert.Equal(t, model.RoleTool, tool.Role)
	assert.Equal(t, assistant.ToolCalls[0].ID, tool.ToolCallID)
	assert.Equal(t, QuickRepliesTool, tool.ToolName)

	// Tool turns are scratch space for the cycle.
	hist := h.s.History()
	require.Len(t, hist, 3)
	assert.Equal(t, "Want a hint?", hist[2].Content)
	assert.Equal(t, []string{"Want a hint?"}, gen.Replies())
}

func TestToolLoopStopsAtRoundLimit(t *testing.T) {
	p := testutil.NewScriptedProvider("m",
		model.Response{ToolCalls: []model.ToolCall{quickReplyCall("c1", "again")}},
	)
	st := testSettings()
	st.MaxToolRounds = 2
	h := newHarness(t, p, st, &stubGen{id: "a", prompt: "p"})

	err := h.s.TriggerCandidate(context.Background(), "a")
	require.ErrorIs(t, err, ErrToolRoundsExceeded)
	assert.Equal(t, 3, p.CallCount())

	failures := h.rec.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, model.FailureOther, failures[0].Kind)
	assert.Equal(t, "a", failures[0].CandidateID)
	assert.Empty(t, h.s.History())
	assert.Empty(t, h.rec.Successes())

	started, stopped := h.rec.Thinking()
	assert.Len(t, started, 1)
	assert.Equal(t, started, stopped)
}

func TestToolsDisabledIgnoresToolCalls(t *testing.T) {
	p := testutil.NewScriptedProvider("m",
		model.Response{Text: "plain", ToolCalls: []model.ToolCall{quickReplyCall("c1", "x")}},
	)
	st := testSettings()
	st.ToolsEnabled = false
	h := newHarness(t, p, st, &stubGen{id: "a", prompt: "p"})

	require.NoError(t, h.s.TriggerCandidate(context.Background(), "a"))
	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Tools)

	successes := h.rec.Successes()
	require.Len(t, successes, 1)
	assert.Equal(t, "plain", successes[0].DisplayText)
	assert.Empty(t, successes[0].QuickReplies)
}

func TestProviderFailuresAreClassified(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.FailureKind
	}{
		{"connection", fmt.Errorf("dial: %w", model.ErrConnection), model.FailureConnection},
		{"model not found", fmt.Errorf("pull first: %w", model.ErrModelNotFound), model.FailureModelNotFound},
		{"other", errors.New("bad request"), model.FailureOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.NewMockProvider("llama3")
			p.ChatWithToolsFunc = func(context.Context, []model.Message, []mcptypes.Tool, model.StreamCallback) error {
				return tt.err
			}
			h := newHarness(t, p, testSettings(), &stubGen{id: "a", prompt: "p"})

			err := h.s.TriggerCandidate(context.Background(), "a")
			require.ErrorIs(t, err, tt.err)

			failures := h.rec.Failures()
			require.Len(t, failures, 1)
			assert.Equal(t, tt.want, failures[0].Kind)
			assert.NotEmpty(t, failures[0].Message)
			assert.Empty(t, h.s.History())
		})
	}
}

func TestRoundTimeoutIsAConnectionFailure(t *testing.T) {
	p := testutil.NewMockProvider("m")
	p.ChatWithToolsFunc = func(ctx context.Context, _ []model.Message, _ []mcptypes.Tool, _ model.StreamCallback) error {
		<-ctx.Done()
		return ctx.Err()
	}
	st := testSettings()
	st.RoundTimeout = 20 * time.Millisecond
	h := newHarness(t, p, st, &stubGen{id: "a", prompt: "p"})

	err := h.s.TriggerCandidate(context.Background(), "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	failures := h.rec.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, model.FailureConnection, failures[0].Kind)
}

func TestEmptyReplyFails(t *testing.T) {
	p := testutil.NewScriptedProvider("m", model.Response{Text: "<think>only thoughts</think>"})
	h := newHarness(t, p, testSettings(), &stubGen{id: "a", prompt: "p"})

	require.ErrorIs(t, h.s.TriggerCandidate(context.Background(), "a"), ErrEmptyReply)
	assert.Empty(t, h.s.History())
}

func TestDeclinedCandidateAbortsSilently(t *testing.T) {
	p := testutil.NewScriptedProvider("m", model.Response{Text: "x"})
	gen := &stubGen{id: "a", fn: func(*candidate.Context) (*candidate.Payload, error) { return nil, nil }}
	h := newHarness(t, p, testSettings(), gen)

	require.NoError(t, h.s.TriggerCandidate(context.Background(), "a"))
	assert.Zero(t, p.CallCount())
	assert.Empty(t, h.s.History())
	assert.Empty(t, h.rec.Failures())
	started, _ := h.rec.Thinking()
	assert.Empty(t, started)
}

func TestCandidateErrorIsNotReportedAsDispatchFailure(t *testing.T) {
	p := testutil.NewScriptedProvider("m", model.Response{Text: "x"})
	gen := &stubGen{id: "a", fn: func(*candidate.Context) (*candidate.Payload, error) {
		return nil, errors.New("feed unavailable")
	}}
	h := newHarness(t, p, testSettings(), gen)

	err := h.s.TriggerCandidate(context.Background(), "a")
	var cerr *candidate.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "a", cerr.ID)
	assert.Zero(t, p.CallCount())
	assert.Empty(t, h.rec.Failures())
}

func TestDocumentChangeResetsHistory(t *testing.T) {
	p := testutil.NewScriptedProvider("m", model.Response{Text: "ok"})
	var seen []*candidate.Document
	gen := &stubGen{id: "a", fn: func(c *candidate.Context) (*candidate.Payload, error) {
		seen = append(seen, c.Document)
		return candidate.Text("look"), nil
	}}
	st := testSettings()
	st.Cooldown = MinCooldown
	h := newHarness(t, p, st, gen)
	ctx := context.Background()

	h.s.SetActiveDocument(&candidate.Document{Path: "/src/a.go", LanguageID: "go", Text: "package a"})
	require.NoError(t, h.s.TriggerCandidate(ctx, "a"))
	h.clock.Advance(MinCooldown)
	require.NoError(t, h.s.TriggerCandidate(ctx, "a"))
	assert.Len(t, h.s.History(), 5)

	h.s.SetActiveDocument(&candidate.Document{Path: "/src/b.go"})
	h.clock.Advance(MinCooldown)
	require.NoError(t, h.s.TriggerCandidate(ctx, "a"))

	calls := p.Calls()
	require.Len(t, calls, 3)
	assert.Len(t, calls[2].Messages, 2, "only the system and new user turn")
	assert.Len(t, h.s.History(), 3)

	require.Len(t, seen, 3)
	assert.Equal(t, "/src/a.go", seen[0].Path)
	assert.Equal(t, "/src/b.go", seen[2].Path)
}

func TestPersonaSwitchResetsHistory(t *testing.T) {
	p := testutil.NewScriptedProvider("m", model.Response{Text: "ok"})
	reg := candidate.NewRegistry(nil)
	reg.MustRegister(&stubGen{id: "a", prompt: "p"})
	clock := newManualClock()
	personas := []Persona{
		{ID: "cat", Name: "Cat", SystemPrompt: "You are a cat."},
		{ID: "owl", Name: "Owl", SystemPrompt: "You are an owl."},
	}
	s := New(p, reg, WithClock(clock), WithPersonas(personas, "cat"), WithSettings(testSettings()))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.TriggerCandidate(ctx, "a"))
	assert.Equal(t, "You are a cat.", s.History()[0].Content)

	s.SetPersona("owl")
	assert.Empty(t, s.History())
	assert.Equal(t, "Owl", s.Persona().Name)

	clock.Advance(time.Minute)
	require.NoError(t, s.TriggerCandidate(ctx, "a"))
	assert.Equal(t, "You are an owl.", p.Calls()[1].Messages[0].Content)

	s.SetPersona("missing")
	assert.Equal(t, DefaultPersona.ID, s.Persona().ID)
	assert.Len(t, s.Personas(), 2)
}

func TestImagePayloadReachesModelButNotHistory(t *testing.T) {
	p := testutil.NewScriptedProvider("m", model.Response{Text: "cute desktop"})
	img := model.Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	gen := &stubGen{id: "shot", fn: func(*candidate.Context) (*candidate.Payload, error) {
		return candidate.TextWithImage("what do you see?", img).WithAppend("(screenshot)"), nil
	}}
	h := newHarness(t, p, testSettings(), gen)

	require.NoError(t, h.s.TriggerCandidate(context.Background(), "shot"))

	user := p.Calls()[0].Messages[1]
	require.Len(t, user.Images, 1)
	assert.Equal(t, img, user.Images[0])

	for _, m := range h.s.History() {
		assert.Empty(t, m.Images)
	}

	res := h.rec.Successes()[0]
	require.NotNil(t, res.Image)
	assert.Equal(t, "(screenshot)", res.AppendedText)
}

func TestResetHistory(t *testing.T) {
	p := testutil.NewScriptedProvider("m", model.Response{Text: "ok"})
	h := newHarness(t, p, testSettings(), &stubGen{id: "a", prompt: "p"})

	require.NoError(t, h.s.TriggerCandidate(context.Background(), "a"))
	require.NotEmpty(t, h.s.History())
	h.s.ResetHistory()
	assert.Empty(t, h.s.History())
}

// blockingProvider parks the first model call until release is closed.
func blockingProvider() (p *testutil.MockProvider, entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	first := true
	p = testutil.NewMockProvider("m")
	p.ChatWithToolsFunc = func(_ context.Context, _ []model.Message, _ []mcptypes.Tool, cb model.StreamCallback) error {
		if first {
			first = false
			close(entered)
			<-release
		}
		return cb("ok", nil)
	}
	return p, entered, release
}

func TestPersonaSwitchDuringCycleDiscardsExchange(t *testing.T) {
	p, entered, release := blockingProvider()
	reg := candidate.NewRegistry(nil)
	reg.MustRegister(&stubGen{id: "a", prompt: "p"})
	clock := newManualClock()
	rec := &recorder{}
	personas := []Persona{
		{ID: "cat", Name: "Cat", SystemPrompt: "You are a cat."},
		{ID: "owl", Name: "Owl", SystemPrompt: "You are an owl."},
	}
	s := New(p, reg, WithClock(clock), WithListener(rec), WithPersonas(personas, "cat"), WithSettings(testSettings()))
	defer s.Close()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.TriggerCandidate(ctx, "a") }()
	<-entered
	s.SetPersona("owl")
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, s.History(), "exchange from the old persona is not stored")
	require.Len(t, rec.Successes(), 1, "the reply is still shown")

	clock.Advance(time.Minute)
	require.NoError(t, s.TriggerCandidate(ctx, "a"))
	calls := p.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "You are an owl.", calls[1].Messages[0].Content)
	assert.Len(t, calls[1].Messages, 2)

	hist := s.History()
	require.Len(t, hist, 3)
	assert.Equal(t, "You are an owl.", hist[0].Content)
}

func TestResetDuringCycleDiscardsExchange(t *testing.T) {
	p, entered, release := blockingProvider()
	h := newHarness(t, p, testSettings(), &stubGen{id: "a", prompt: "p"})

	done := make(chan error, 1)
	go func() { done <- h.s.TriggerCandidate(context.Background(), "a") }()
	<-entered
	h.s.ResetHistory()
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, h.s.History())
	assert.Len(t, h.rec.Successes(), 1)
}
