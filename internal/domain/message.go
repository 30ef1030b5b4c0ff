package domain

import "time"

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single turn in a conversation transcript.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Name      string     `json:"name,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
}

// Parameters are the sampling knobs persisted with each conversation and
// forwarded verbatim to the completion API.
type Parameters struct {
	Temperature      float64 `json:"temperature" yaml:"temperature"`
	TopP             float64 `json:"top_p" yaml:"top_p"`
	PresencePenalty  float64 `json:"presence_penalty" yaml:"presence_penalty"`
	FrequencyPenalty float64 `json:"frequency_penalty" yaml:"frequency_penalty"`
}

// DefaultParameters returns the sampling defaults applied to new conversations
// and to records that fail to load.
func DefaultParameters() Parameters {
	return Parameters{
		Temperature:      0.7,
		TopP:             0.7,
		PresencePenalty:  0.7,
		FrequencyPenalty: 0.7,
	}
}

// ContextSpec controls how much history and which system context a
// conversation sends with each request.
type ContextSpec struct {
	// Preset names a canned system context ("default" means none).
	Preset string `json:"context_select"`
	// FreeText is an ad-hoc system context typed by the user.
	FreeText string `json:"context_input"`
	// Level scales the history window: the 2*Level most recent turns are
	// kept. Zero or negative keeps everything.
	Level int `json:"context_level"`
}

// DefaultContextSpec returns the context settings for new conversations.
func DefaultContextSpec() ContextSpec {
	return ContextSpec{Preset: "default", Level: 3}
}

// ChatRequest is sent to a completion provider.
type ChatRequest struct {
	Model            string       `json:"model"`
	Messages         []Message    `json:"messages"`
	Tools            []ToolSchema `json:"tools,omitempty"`
	MaxTokens        int          `json:"max_tokens,omitempty"`
	Temperature      float64      `json:"temperature,omitempty"`
	TopP             float64      `json:"top_p,omitempty"`
	PresencePenalty  float64      `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64      `json:"frequency_penalty,omitempty"`
	Stream           bool         `json:"stream,omitempty"`
}

// ApplyParameters copies the conversation sampling knobs onto the request.
func (r *ChatRequest) ApplyParameters(p Parameters) {
	r.Temperature = p.Temperature
	r.TopP = p.TopP
	r.PresencePenalty = p.PresencePenalty
	r.FrequencyPenalty = p.FrequencyPenalty
}

// ChatResponse is a complete (non-streamed) provider response.
type ChatResponse struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Message   Message   `json:"message"`
	Usage     Usage     `json:"usage"`
	CreatedAt time.Time `json:"created_at"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
