package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/provider/testutil"
)

func TestConvertToolsToOllama(t *testing.T) {
	assert.Nil(t, ConvertToolsToOllama(nil))

	tools := ConvertToolsToOllama(testutil.TestMCPTools())
	require.Len(t, tools, 3)
	assert.Equal(t, "function", tools[0].Type)
	assert.Equal(t, "get_weather", tools[0].Function.Name)
	assert.Equal(t, []string{"location"}, tools[0].Function.Parameters.Required)

	loc := tools[0].Function.Parameters.Properties["location"]
	assert.Equal(t, "The city and state, e.g. San Francisco, CA", loc.Description)
	assert.Contains(t, loc.Type, "string")

	replies := tools[2].Function.Parameters.Properties["replies"]
	assert.Contains(t, replies.Type, "array")
	assert.Equal(t, map[string]any{"type": "string"}, replies.Items)
}

func TestConvertToolsToOpenAIFormat(t *testing.T) {
	assert.Nil(t, ConvertToolsToOpenAIFormat(nil))

	tools := ConvertToolsToOpenAIFormat(testutil.TestMCPTools())
	require.Len(t, tools, 3)
	require.NotNil(t, tools[0].OfFunction)
	fn := tools[0].OfFunction.Function
	assert.Equal(t, "get_weather", fn.Name)
	assert.Equal(t, []string{"location"}, fn.Parameters["required"])
}

func TestConvertToolsToAnthropicFormat(t *testing.T) {
	assert.Nil(t, ConvertToolsToAnthropicFormat(nil))

	tools := ConvertToolsToAnthropicFormat(testutil.TestMCPTools())
	require.Len(t, tools, 3)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "get_weather", tools[0].OfTool.Name)
	assert.Equal(t, []string{"location"}, tools[0].OfTool.InputSchema.Required)
}

func TestOpenRouterToolNames(t *testing.T) {
	converted := convertToolNamesForOpenRouter(testutil.TestMCPTools()[:1])
	assert.Equal(t, "get_weather", converted[0].Name)
	assert.Equal(t, "plugin.read_file", convertToolNameFromOpenRouter("plugin__read_file"))
	assert.True(t, shouldSkipToolInstructions("qwen/qwen3-coder:free"))
	assert.Equal(t, "qwen3-coder:free", stripProviderPrefix("qwen/qwen3-coder:free"))
}

func TestBuildToolInstructions(t *testing.T) {
	text := buildToolInstructions(testutil.TestMCPTools())
	assert.Contains(t, text, "TOOLS: get_weather, calculate, suggest_quick_replies")
}
