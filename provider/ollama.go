package provider

import (
	"context"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"

	"companion/model"
	"companion/ollama"
)

// OllamaProvider wraps ollama.Client to implement model.Provider.
//
// It converts model.Message to api.Message, tool definitions to api.Tool,
// and api.ToolCall back to model.ToolCall.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates a new Ollama provider instance.
//
// Parameters:
//   - baseURL: The Ollama server URL (e.g., "http://localhost:11434").
//     If empty, defaults to "http://localhost:11434".
//   - model: The model name to use (e.g., "llama3.1:latest").
//     If empty, defaults to "llama3.1:latest".
//
// Returns an error if the baseURL is invalid.
func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return &OllamaProvider{
		client: client,
	}, nil
}

// Chat implements Provider.Chat by delegating to ChatWithTools with no tools.
func (p *OllamaProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools implements Provider.ChatWithTools with type conversions.
//
// Tool calls arrive in the final chunk of an Ollama stream; they are
// converted to provider-agnostic form before reaching the callback.
func (p *OllamaProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	ollamaMessages := ConvertToOllamaMessages(messages)
	ollamaTools := ConvertToolsToOllama(tools)

	ollamaCallback := func(chunk string, ollamaCalls []api.ToolCall) error {
		if callback == nil {
			return nil
		}
		return callback(chunk, ConvertToProviderToolCalls(ollamaCalls))
	}

	err := p.client.ChatWithTools(ctx, ollamaMessages, ollamaTools, ollamaCallback)
	return normalizeError("ollama", err)
}

// ListModels implements Provider.ListModels.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models, err := p.client.ListModels(ctx)
	return models, normalizeError("ollama", err)
}

// GetModel implements Provider.GetModel.
func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// GetDisplayName implements Provider.GetDisplayName.
// For Ollama, the display name is the model name.
func (p *OllamaProvider) GetDisplayName() string {
	return p.client.GetModel()
}

// SetModel implements Provider.SetModel.
func (p *OllamaProvider) SetModel(model string) {
	p.client.SetModel(model)
}

// Ping implements Provider.Ping. It checks that the server answers and that
// the active model has been pulled.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return normalizeError("ollama", err)
	}
	return normalizeError("ollama", p.client.HasModel(ctx))
}
