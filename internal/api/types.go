package api

// ToolCallResult echoes the outcome of one tool invocation back to the
// voice platform.
type ToolCallResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

type ToolCallResponse struct {
	ToolCallResults []ToolCallResult `json:"toolCallResults"`
}

type IntakeResponse struct {
	OK        bool   `json:"ok"`
	JobID     string `json:"jobId"`
	PhotoLink string `json:"photoLink"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
