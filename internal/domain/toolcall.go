package domain

// ToolCall is one tool invocation extracted from a voice-platform event.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}
