package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"companion/model"
)

// AnthropicProvider implements the Provider interface using Anthropic's official API.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
}

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// Parameters:
//   - baseURL: Anthropic API base URL (default: "https://api.anthropic.com")
//   - apiKey: Anthropic API key (required)
//   - model: Initial model to use (default: "claude-sonnet-4-5-20250929")
//
// Returns an error if the API key is missing.
func NewAnthropicProvider(baseURL, apiKey, model string) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if model != "" {
		anthropicModel = anthropic.Model(model)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // no automatic retries
	)

	return &AnthropicProvider{
		client:  &client,
		model:   anthropicModel,
		baseURL: baseURL,
	}, nil
}

// Chat implements Provider.Chat by delegating to ChatWithTools with no tools.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
// Text deltas stream as they arrive; tool calls are read from the
// accumulated message once the stream ends.
func (p *AnthropicProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

	// Tool instructions go first, then the persona prompt.
	if len(tools) > 0 {
		toolInstructionBlock := anthropic.TextBlockParam{Text: buildToolInstructions(tools)}
		systemPrompt = append([]anthropic.TextBlockParam{toolInstructionBlock}, systemPrompt...)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: 1024,
	}
	if len(systemPrompt) > 0 {
		params.System = systemPrompt
	}
	if len(tools) > 0 {
		params.Tools = ConvertToolsToAnthropicFormat(tools)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()
	msg := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return fmt.Errorf("error accumulating message: %w", err)
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if deltaVariant, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok && callback != nil {
				if err := callback(deltaVariant.Text, nil); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return normalizeError("anthropic", fmt.Errorf("streaming error: %w", err))
	}

	if callback != nil {
		if toolCalls := extractToolCalls(msg.Content); len(toolCalls) > 0 {
			return callback("", toolCalls)
		}
	}

	return nil
}

// ListModels implements Provider.ListModels with a curated list of Claude
// models known to the SDK version in use.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	result := make([]model.ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, model.ModelInfo{
			Name:         string(m),
			InternalName: string(m),
			Provider:     "anthropic",
		})
	}

	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// GetDisplayName implements Provider.GetDisplayName.
func (p *AnthropicProvider) GetDisplayName() string {
	return string(p.model)
}

// SetModel implements Provider.SetModel.
func (p *AnthropicProvider) SetModel(model string) {
	p.model = anthropic.Model(model)
}

// Ping implements Provider.Ping with a minimal request, since Anthropic has
// no health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return normalizeError("anthropic", fmt.Errorf("ping failed: %w", err))
	}
	return nil
}

// convertToAnthropicMessages converts model messages to Anthropic format.
// System turns are returned separately; consecutive tool-result turns are
// merged into one user message as the API requires.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})

		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				input := call.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(blocks) > 0 {
				anthropicMsgs = append(anthropicMsgs, anthropic.NewAssistantMessage(blocks...))
			}

		case model.RoleTool:
			var blocks []anthropic.ContentBlockParamUnion
			for ; i < len(messages) && messages[i].Role == model.RoleTool; i++ {
				blocks = append(blocks, anthropic.NewToolResultBlock(messages[i].ToolCallID, messages[i].Content, messages[i].ToolError))
			}
			i--
			anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(blocks...))

		default:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)}
			for _, img := range msg.Images {
				mime := img.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				blocks = append(blocks, anthropic.NewImageBlockBase64(mime, base64.StdEncoding.EncodeToString(img.Data)))
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(blocks...))
		}
	}

	return anthropicMsgs, systemBlocks
}

// extractToolCalls extracts tool calls from Anthropic message content.
func extractToolCalls(content []anthropic.ContentBlockUnion) []model.ToolCall {
	var toolCalls []model.ToolCall

	for _, block := range content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal(toolUse.Input, &args); err != nil {
			// Skip if we can't parse the arguments
			continue
		}
		toolCalls = append(toolCalls, model.ToolCall{
			ID:        toolUse.ID,
			Name:      toolUse.Name,
			Arguments: args,
		})
	}

	return toolCalls
}
