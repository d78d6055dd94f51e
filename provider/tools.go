package provider

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// ConvertToolsToOllama converts tool definitions to Ollama API tool format.
func ConvertToolsToOllama(tools []mcptypes.Tool) []api.Tool {
	if len(tools) == 0 {
		return nil
	}
	ollamaTools := make([]api.Tool, 0, len(tools))

	for _, tool := range tools {
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  convertInputSchemaToParameters(tool.InputSchema),
			},
		})
	}

	return ollamaTools
}

// convertInputSchemaToParameters converts an input schema to Ollama ToolFunctionParameters.
func convertInputSchemaToParameters(inputSchema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       inputSchema.Type,
		Required:   inputSchema.Required,
		Properties: make(map[string]api.ToolProperty),
	}

	if inputSchema.Defs != nil {
		params.Defs = inputSchema.Defs
	}

	for propName, propValue := range inputSchema.Properties {
		params.Properties[propName] = convertPropertyValue(propValue)
	}

	return params
}

// convertPropertyValue converts one JSON schema property to an Ollama ToolProperty.
func convertPropertyValue(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		// Round-trip through JSON for typed schema values.
		bytes, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		var m map[string]any
		if err := json.Unmarshal(bytes, &m); err != nil {
			return toolProp
		}
		propMap = m
	}

	// type can be string or []string
	if typeVal, ok := propMap["type"]; ok {
		switch t := typeVal.(type) {
		case string:
			toolProp.Type = api.PropertyType{t}
		case []string:
			toolProp.Type = api.PropertyType(t)
		case []any:
			types := make([]string, 0, len(t))
			for _, v := range t {
				if s, ok := v.(string); ok {
					types = append(types, s)
				}
			}
			toolProp.Type = api.PropertyType(types)
		}
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}

	if enumSlice, ok := propMap["enum"].([]any); ok {
		toolProp.Enum = enumSlice
	}

	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}

	if anyOfSlice, ok := propMap["anyOf"].([]any); ok {
		anyOfProps := make([]api.ToolProperty, 0, len(anyOfSlice))
		for _, item := range anyOfSlice {
			anyOfProps = append(anyOfProps, convertPropertyValue(item))
		}
		toolProp.AnyOf = anyOfProps
	}

	return toolProp
}

// ConvertToolsToOpenAIFormat converts tool definitions to OpenAI/OpenRouter
// format. Both are JSON Schema, so the input schema maps onto function
// parameters directly.
func ConvertToolsToOpenAIFormat(tools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(tools))

	for i, tool := range tools {
		params := openai.FunctionParameters{
			"type":       tool.InputSchema.Type,
			"properties": tool.InputSchema.Properties,
		}

		if len(tool.InputSchema.Required) > 0 {
			params["required"] = tool.InputSchema.Required
		}

		if tool.InputSchema.Defs != nil {
			params["$defs"] = tool.InputSchema.Defs
		}

		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  params,
			},
		)
	}

	return result
}

// ConvertToolsToAnthropicFormat converts tool definitions to Anthropic's
// tool union with an input_schema.
func ConvertToolsToAnthropicFormat(tools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		// Type defaults to "object" when omitted
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: tool.InputSchema.Properties,
		}

		if len(tool.InputSchema.Required) > 0 {
			inputSchema.Required = tool.InputSchema.Required
		}

		if tool.InputSchema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{
				"$defs": tool.InputSchema.Defs,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)

		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}

	return result
}
