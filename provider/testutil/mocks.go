package testutil

import (
	"context"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"companion/model"
)

// Call records one Chat or ChatWithTools invocation.
type Call struct {
	Messages []model.Message
	Tools    []mcptypes.Tool
}

// MockProvider implements model.Provider for testing
type MockProvider struct {
	// Configurable responses
	ChatFunc          func(ctx context.Context, messages []model.Message, callback model.StreamCallback) error
	ChatWithToolsFunc func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error
	ListModelsFunc    func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc          func(ctx context.Context) error

	mu           sync.Mutex
	calls        []Call
	currentModel string
}

// NewMockProvider creates a mock provider with default implementations
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{
		currentModel: modelName,
	}
	mock.ChatFunc = mock.defaultChat
	mock.ChatWithToolsFunc = mock.defaultChatWithTools
	mock.ListModelsFunc = mock.defaultListModels
	mock.PingFunc = mock.defaultPing
	return mock
}

// NewScriptedProvider returns a mock that answers successive rounds with the
// given responses, tools or not. Once the script runs out the last response
// repeats.
func NewScriptedProvider(modelName string, script ...model.Response) *MockProvider {
	mock := NewMockProvider(modelName)
	var mu sync.Mutex
	next := 0
	respond := func(callback model.StreamCallback) error {
		mu.Lock()
		if len(script) == 0 {
			mu.Unlock()
			return nil
		}
		resp := script[min(next, len(script)-1)]
		next++
		mu.Unlock()
		return callback(resp.Text, resp.ToolCalls)
	}
	mock.ChatFunc = func(_ context.Context, _ []model.Message, callback model.StreamCallback) error {
		return respond(callback)
	}
	mock.ChatWithToolsFunc = func(_ context.Context, _ []model.Message, _ []mcptypes.Tool, callback model.StreamCallback) error {
		return respond(callback)
	}
	return mock
}

func (m *MockProvider) defaultChat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	// Default: echo back a mock response
	if len(messages) > 0 {
		return callback("Mock response", nil)
	}
	return nil
}

func (m *MockProvider) defaultChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	// Default: mock response with tools available
	return callback("Mock response with tools", nil)
}

func (m *MockProvider) defaultListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return []model.ModelInfo{
		{Name: "mock-model-1", InternalName: "mock-model-1", Size: 1000, Provider: "mock"},
		{Name: "mock-model-2", InternalName: "mock-model-2", Size: 2000, Provider: "mock"},
	}, nil
}

func (m *MockProvider) defaultPing(ctx context.Context) error {
	return nil
}

func (m *MockProvider) record(messages []model.Message, tools []mcptypes.Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{
		Messages: append([]model.Message(nil), messages...),
		Tools:    append([]mcptypes.Tool(nil), tools...),
	})
}

// Calls returns the recorded invocations in order.
func (m *MockProvider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns the number of recorded invocations.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *MockProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	m.record(messages, nil)
	return m.ChatFunc(ctx, messages, callback)
}

func (m *MockProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	m.record(messages, tools)
	return m.ChatWithToolsFunc(ctx, messages, tools, callback)
}

func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return m.ListModelsFunc(ctx)
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModel
}

func (m *MockProvider) GetDisplayName() string {
	// Mock provider returns same value as GetModel (no prefix stripping)
	return m.GetModel()
}

func (m *MockProvider) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentModel = model
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}
