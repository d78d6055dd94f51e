package provider

import (
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// buildToolInstructions creates the short system note sent alongside tool
// definitions to hosted models. Replies must stay conversational: a tool
// call never replaces the answer.
func buildToolInstructions(tools []mcptypes.Tool) string {
	toolNames := make([]string, 0, len(tools))
	for _, tool := range tools {
		toolNames = append(toolNames, tool.Name)
	}

	return strings.Join([]string{
		"TOOLS: " + strings.Join(toolNames, ", "),
		"",
		"Call a tool only when it adds something for the user.",
		"Call each tool at most once per reply.",
		"After any tool call, still answer the user in plain text.",
		"Never describe the tools or mention that you are calling them.",
	}, "\n")
}
