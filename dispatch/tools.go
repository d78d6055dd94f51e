package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"companion/model"
)

const (
	QuickRepliesTool = "suggest_quick_replies"
	maxQuickReplies  = 4
)

// cycleState collects tool side effects for one dispatch cycle.
type cycleState struct {
	quickReplies []string
}

type toolHandler func(ctx context.Context, args map[string]any, state *cycleState) *mcptypes.CallToolResult

// toolbox holds the tool definitions offered to the model and the local
// handlers that execute them.
type toolbox struct {
	defs     []mcptypes.Tool
	handlers map[string]toolHandler
}

func newToolbox() *toolbox {
	t := &toolbox{handlers: make(map[string]toolHandler)}
	t.register(quickRepliesDefinition(), handleQuickReplies)
	return t
}

func (t *toolbox) register(def mcptypes.Tool, h toolHandler) {
	t.defs = append(t.defs, def)
	t.handlers[def.Name] = h
}

// Definitions returns a copy of the tool list.
func (t *toolbox) Definitions() []mcptypes.Tool {
	out := make([]mcptypes.Tool, len(t.defs))
	copy(out, t.defs)
	return out
}

// Execute runs a single tool call. Unknown tools and malformed arguments
// yield an error-status result for the model rather than failing the cycle.
func (t *toolbox) Execute(ctx context.Context, call model.ToolCall, state *cycleState) model.ToolResult {
	var res *mcptypes.CallToolResult
	if h, ok := t.handlers[call.Name]; ok {
		res = h(ctx, call.Arguments, state)
	} else {
		res = mcptypes.NewToolResultError(fmt.Sprintf("unknown tool %q", call.Name))
	}

	status := model.ToolSuccess
	if res.IsError {
		status = model.ToolError
	}
	return model.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: resultText(res),
		Status:  status,
	}
}

func resultText(res *mcptypes.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcptypes.TextContent:
			parts = append(parts, tc.Text)
		case *mcptypes.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func quickRepliesDefinition() mcptypes.Tool {
	return mcptypes.Tool{
		Name: QuickRepliesTool,
		Description: "Offer the user up to four short replies they can send back with one keypress. " +
			"Each reply should be a few words written from the user's point of view.",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"replies": map[string]any{
					"type":        "array",
					"description": "One to four short reply options",
					"items":       map[string]any{"type": "string"},
					"minItems":    1,
					"maxItems":    maxQuickReplies,
				},
			},
			Required: []string{"replies"},
		},
	}
}

func handleQuickReplies(_ context.Context, args map[string]any, state *cycleState) *mcptypes.CallToolResult {
	raw, ok := args["replies"]
	if !ok {
		return mcptypes.NewToolResultError("missing required argument: replies")
	}
	list, ok := raw.([]any)
	if !ok {
		if strs, isStrings := raw.([]string); isStrings {
			for _, s := range strs {
				list = append(list, s)
			}
		} else {
			return mcptypes.NewToolResultError("replies must be an array of strings")
		}
	}

	var replies []string
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return mcptypes.NewToolResultError("replies must be an array of strings")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		replies = append(replies, s)
		if len(replies) == maxQuickReplies {
			break
		}
	}
	if len(replies) == 0 {
		return mcptypes.NewToolResultError("replies must contain at least one non-empty string")
	}

	state.quickReplies = replies
	return mcptypes.NewToolResultText(fmt.Sprintf("Showing %d quick replies to the user.", len(replies)))
}

// withCallIDs fills in identifiers for tool calls the provider left
// anonymous so each tool turn can reference its call.
func withCallIDs(calls []model.ToolCall) []model.ToolCall {
	out := make([]model.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		out[i] = c
	}
	return out
}
