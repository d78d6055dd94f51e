package model

import "time"

// Role tags a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents one turn of the conversation sent to a provider.
//
// ToolCalls is set on assistant turns that requested tools; ToolCallID and
// ToolName are set on tool-result turns and point back at the call they answer.
// ToolError marks a tool-result turn whose tool failed.
type Message struct {
	Role       Role
	Content    string
	ToolCallID string
	ToolName   string
	ToolError  bool
	ToolCalls  []ToolCall
	Images     []Image
	Timestamp  time.Time
}

// Image is an inline image attached to a user turn.
type Image struct {
	MIMEType string
	Data     []byte
}

// IsSystem reports whether the message is a system turn.
func (m Message) IsSystem() bool {
	return m.Role == RoleSystem
}
