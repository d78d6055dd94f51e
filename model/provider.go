package model

import (
	"context"
	"encoding/json"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts LLM provider implementations (Ollama, OpenAI, Anthropic)
// using provider-agnostic types from the model layer.
//
// The dispatcher treats a Provider as a synchronous call: it collects the
// streamed chunks and tool calls of one Chat/ChatWithTools invocation into a
// single Response.
type Provider interface {
	// Chat sends messages and streams responses back via callback.
	Chat(ctx context.Context, messages []Message, callback StreamCallback) error

	// ChatWithTools sends messages with available tools and streams responses.
	ChatWithTools(ctx context.Context, messages []Message, tools []mcptypes.Tool, callback StreamCallback) error

	// ListModels returns available models for this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the currently selected model name used for API calls.
	GetModel() string

	// GetDisplayName returns the model name formatted for display.
	GetDisplayName() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// StreamCallback is called for each chunk of streamed response.
type StreamCallback func(chunk string, toolCalls []ToolCall) error

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	Name         string // Display name (vendor prefix stripped for OpenRouter)
	InternalName string // Full API name
	Size         int64
	Provider     string
}

// ToolCall is a provider-agnostic tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ArgumentsJSON returns the call arguments encoded as JSON.
func (c ToolCall) ArgumentsJSON() json.RawMessage {
	if len(c.Arguments) == 0 {
		return json.RawMessage("{}")
	}
	b, err := json.Marshal(c.Arguments)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

// ToolStatus is the outcome of a local tool execution.
type ToolStatus string

const (
	ToolSuccess ToolStatus = "success"
	ToolError   ToolStatus = "error"
)

// ToolResult is the answer to one ToolCall, folded back into the
// conversation as a tool turn.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	Status  ToolStatus
}

// Message converts the result into a tool-result turn.
func (r ToolResult) Message() Message {
	return Message{
		Role:       RoleTool,
		Content:    r.Content,
		ToolCallID: r.CallID,
		ToolName:   r.Name,
		ToolError:  r.Status == ToolError,
	}
}

// Response is the collected output of one provider round.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// HasToolCalls reports whether the model asked for more tool work.
func (r Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Collect runs one provider round and gathers its stream into a Response.
// Tools are only offered when the slice is non-empty.
func Collect(ctx context.Context, p Provider, messages []Message, tools []mcptypes.Tool) (Response, error) {
	var resp Response
	callback := func(chunk string, toolCalls []ToolCall) error {
		resp.Text += chunk
		resp.ToolCalls = append(resp.ToolCalls, toolCalls...)
		return nil
	}

	var err error
	if len(tools) > 0 {
		err = p.ChatWithTools(ctx, messages, tools, callback)
	} else {
		err = p.Chat(ctx, messages, callback)
	}
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}
