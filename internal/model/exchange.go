package model

// ResponseType is the backend's classification of a chat reply.
type ResponseType string

const (
	ResponseChat           ResponseType = "chat_response"
	ResponseToolGeneration ResponseType = "tool_generation"
	ResponseError          ResponseType = "error"
)

// ChatExchangeRequest is one outbound chat request.
type ChatExchangeRequest struct {
	Message        string
	History        []Message
	Persona        Persona
	RecipientEmail string
	FileContext    []FileContextRecord
}

// ToolResult is a backend-computed chart artifact.
type ToolResult struct {
	Success       bool           `json:"success"`
	ToolType      string         `json:"tool_type,omitempty"`
	ChartImage    string         `json:"chart_data,omitempty"`
	ChartHTML     string         `json:"chart_html,omitempty"`
	DataSummary   map[string]any `json:"data_summary,omitempty"`
	ChartMetadata map[string]any `json:"chart_metadata,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// ChatExchangeResponse is the decoded body of POST /api/chat.
type ChatExchangeResponse struct {
	Type       ResponseType `json:"type"`
	Message    string       `json:"message"`
	ToolResult *ToolResult  `json:"tool_result,omitempty"`
	ToolType   string       `json:"tool_type,omitempty"`
}
