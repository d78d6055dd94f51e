package provider

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"companion/model"
)

// ConvertToOllamaMessages converts model.Message to Ollama api.Message.
//
// Images travel as raw bytes, assistant turns keep their tool calls and
// tool-result turns carry the name of the tool they answer. Timestamps are
// not sent.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		m := api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if msg.Role == model.RoleTool {
			m.Content = toolResultContent(msg)
		}
		for _, img := range msg.Images {
			m.Images = append(m.Images, api.ImageData(img.Data))
		}
		if len(msg.ToolCalls) > 0 {
			m.ToolCalls = ConvertFromProviderToolCalls(msg.ToolCalls)
		}
		if msg.Role == model.RoleTool {
			m.ToolName = msg.ToolName
		}
		result[i] = m
	}
	return result
}

// toolErrorPrefix marks failed tool results for backends without an error
// flag on tool turns.
const toolErrorPrefix = "Error: "

func toolResultContent(msg model.Message) string {
	if !msg.ToolError || strings.HasPrefix(msg.Content, toolErrorPrefix) {
		return msg.Content
	}
	return toolErrorPrefix + msg.Content
}

// ConvertFromOllamaMessages converts Ollama api.Message to model.Message.
// The Timestamp field is left zero.
func ConvertFromOllamaMessages(messages []api.Message) []model.Message {
	result := make([]model.Message, len(messages))
	for i, msg := range messages {
		result[i] = model.Message{
			Role:      model.Role(msg.Role),
			Content:   msg.Content,
			ToolCalls: ConvertToProviderToolCalls(msg.ToolCalls),
			ToolName:  msg.ToolName,
		}
	}
	return result
}

// ParseToolArguments parses JSON arguments string into a map.
// Used by OpenAI and OpenRouter providers for tool call parsing.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args == nil {
		// If parsing fails, return empty map
		return make(map[string]any)
	}
	return args
}

// ConvertToProviderToolCalls converts Ollama api.ToolCall to model.ToolCall.
// Ollama does not assign call ids; the dispatcher fills them in.
//
// Returns nil if the input is nil or empty.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		result[i] = model.ToolCall{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
	}
	return result
}

// ConvertFromProviderToolCalls converts model.ToolCall to Ollama api.ToolCall,
// used when replaying an assistant turn that requested tools.
//
// Returns nil if the input is nil or empty.
func ConvertFromProviderToolCalls(providerCalls []model.ToolCall) []api.ToolCall {
	if len(providerCalls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(providerCalls))
	for i, call := range providerCalls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		}
	}
	return result
}

// ConvertToOpenAIMessages converts model messages to OpenAI chat format.
// Tool-result turns become native tool messages keyed by call id.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case model.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				result[i] = openAIAssistantWithToolCalls(msg)
			} else {
				result[i] = openai.AssistantMessage(msg.Content)
			}
		case model.RoleTool:
			result[i] = openai.ToolMessage(toolResultContent(msg), msg.ToolCallID)
		default:
			result[i] = openAIUserMessage(msg)
		}
	}

	return result
}

func openAIUserMessage(msg model.Message) openai.ChatCompletionMessageParamUnion {
	if len(msg.Images) == 0 {
		return openai.UserMessage(msg.Content)
	}
	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(msg.Content)}
	for _, img := range msg.Images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(img),
		}))
	}
	return openai.UserMessage(parts)
}

func openAIAssistantWithToolCalls(msg model.Message) openai.ChatCompletionMessageParamUnion {
	calls := make([]openai.ChatCompletionMessageToolCallUnionParam, len(msg.ToolCalls))
	for i, c := range msg.ToolCalls {
		calls[i] = openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: c.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      c.Name,
					Arguments: string(c.ArgumentsJSON()),
				},
			},
		}
	}

	asst := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
	if msg.Content != "" {
		asst.Content.OfString = openai.String(msg.Content)
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
}

func dataURL(img model.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
