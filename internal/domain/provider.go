package domain

import "context"

// Finish reasons reported by OpenAI-compatible streaming APIs.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

// LLMProvider is the interface for any completion backend.
type LLMProvider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g. "openai", "groq").
	Name() string
}

// StreamDelta is a single incremental chunk from a streaming response.
// Content carries a visible text fragment. ToolCalls carries tool call
// fragments positioned by index: the first fragment for a slot has ID and
// Name set, later fragments carry only argument bytes. FinishReason is set
// on the chunk that terminates the choice; Done marks the end of stream.
type StreamDelta struct {
	Content      string     `json:"content,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Done         bool       `json:"done,omitempty"`
	Usage        *Usage     `json:"usage,omitempty"`
}

// StreamingLLMProvider extends LLMProvider with streaming support.
type StreamingLLMProvider interface {
	LLMProvider
	// ChatStream sends a request and returns a channel of incremental deltas.
	// The channel is closed after the final delta (Done=true) or on context
	// cancellation.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamDelta, error)
}
