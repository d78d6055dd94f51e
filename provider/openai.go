package provider

import (
	"context"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"companion/model"
)

// OpenAIProvider implements the Provider interface using OpenAI's official API.
// Any OpenAI-compatible server (LM Studio, vLLM, llama.cpp) works through
// the base URL.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	baseURL string
}

// NewOpenAIProvider creates a new OpenAI provider instance.
//
// Parameters:
//   - baseURL: OpenAI API base URL (default: "https://api.openai.com/v1")
//   - apiKey: OpenAI API key (required)
//   - model: Initial model to use (default: "gpt-4o-mini")
//
// Returns an error if the API key is missing.
func NewOpenAIProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini" // Default to affordable model
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // no automatic retries
	)

	return &OpenAIProvider{
		client:  client,
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Chat implements Provider.Chat by delegating to ChatWithTools with no tools.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
func (p *OpenAIProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	messagesWithInstructions := messages
	if len(tools) > 0 {
		toolInstruction := model.Message{
			Role:    model.RoleSystem,
			Content: buildToolInstructions(tools),
		}
		messagesWithInstructions = append([]model.Message{toolInstruction}, messages...)
	}

	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messagesWithInstructions),
		Model:    openai.ChatModel(p.model),
	}
	if len(tools) > 0 {
		params.Tools = ConvertToolsToOpenAIFormat(tools)
	}

	err := streamChatCompletion(ctx, &p.client, params, nil, callback)
	return normalizeError("openai", err)
}

// streamChatCompletion runs a streaming completion and forwards text deltas
// and finished tool calls. rename maps wire tool names back to local ones.
func streamChatCompletion(ctx context.Context, client *openai.Client, params openai.ChatCompletionNewParams, rename func(string) string, callback model.StreamCallback) error {
	stream := client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok && callback != nil {
			name := tool.Name
			if rename != nil {
				name = rename(name)
			}
			toolCall := model.ToolCall{
				ID:        tool.ID,
				Name:      name,
				Arguments: ParseToolArguments(tool.Arguments),
			}
			if err := callback("", []model.ToolCall{toolCall}); err != nil {
				return err
			}
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" && callback != nil {
			if err := callback(chunk.Choices[0].Delta.Content, nil); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("streaming error: %w", err)
	}
	return nil
}

// ListModels implements Provider.ListModels.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, normalizeError("openai", fmt.Errorf("failed to list models: %w", err))
	}

	result := make([]model.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, model.ModelInfo{
			Name:         m.ID, // OpenAI models don't have vendor prefixes
			InternalName: m.ID,
			Provider:     "openai",
		})
	}

	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// GetDisplayName implements Provider.GetDisplayName.
func (p *OpenAIProvider) GetDisplayName() string {
	return p.model
}

// SetModel implements Provider.SetModel.
func (p *OpenAIProvider) SetModel(model string) {
	p.model = model
}

// Ping implements Provider.Ping by retrieving the active model, which also
// tells a missing model apart from an unreachable server.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model); err != nil {
		return normalizeError("openai", fmt.Errorf("ping failed: %w", err))
	}
	return nil
}
