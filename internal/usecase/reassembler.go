package usecase

import (
	"encoding/json"
	"strings"

	"parrot-ai/internal/domain"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// maxToolCallSlots bounds the number of tool call slots the reassembler will
// allocate. Indices beyond this are dropped to prevent memory exhaustion from
// malformed streaming deltas.
const maxToolCallSlots = 50

// ChunkReassembler rebuilds a complete assistant turn from streaming deltas.
// It splits in-band thinking segments into collapsible blocks, concatenates
// tool-call argument fragments verbatim by slot index, and defers the single
// JSON parse of the arguments until the stream has terminated.
//
// A reassembler serves exactly one turn; start a new one per request.
type ChunkReassembler struct {
	answer       strings.Builder
	thinking     strings.Builder
	inThinking   bool
	toolCalls    []domain.ToolCall
	finishReason string
	done         bool
}

func NewChunkReassembler() *ChunkReassembler {
	return &ChunkReassembler{}
}

// Feed merges one delta and returns the visible increment it produced.
// Increments are append-only: the concatenation of all returned increments
// equals the final answer text. Text inside an open thinking segment is held
// back until the segment closes, then emitted as one block.
func (r *ChunkReassembler) Feed(delta domain.StreamDelta) string {
	inc := r.feedContent(delta.Content)

	for idx, tc := range delta.ToolCalls {
		if idx >= maxToolCallSlots {
			break
		}
		for len(r.toolCalls) <= idx {
			r.toolCalls = append(r.toolCalls, domain.ToolCall{})
		}
		slot := &r.toolCalls[idx]
		if tc.ID != "" {
			slot.ID = tc.ID
		}
		if tc.Name != "" {
			slot.Name = tc.Name
		}
		if len(tc.Arguments) > 0 {
			slot.Arguments = append(slot.Arguments, tc.Arguments...)
		}
	}

	if delta.FinishReason != "" {
		r.finishReason = delta.FinishReason
	}
	if delta.Done {
		r.done = true
	}

	r.answer.WriteString(inc)
	return inc
}

// feedContent routes a content fragment between the answer and thinking
// buffers. Markers are detected within a single fragment; a close marker with
// no matching open passes through as literal text.
func (r *ChunkReassembler) feedContent(content string) string {
	if content == "" {
		return ""
	}

	var inc strings.Builder
	for content != "" {
		if r.inThinking {
			i := strings.Index(content, thinkClose)
			if i < 0 {
				r.thinking.WriteString(content)
				return inc.String()
			}
			r.thinking.WriteString(content[:i])
			inc.WriteString(formatThinkingBlock(r.thinking.String()))
			r.thinking.Reset()
			r.inThinking = false
			content = content[i+len(thinkClose):]
			continue
		}

		i := strings.Index(content, thinkOpen)
		if i < 0 {
			inc.WriteString(content)
			return inc.String()
		}
		inc.WriteString(content[:i])
		r.inThinking = true
		content = content[i+len(thinkOpen):]
	}
	return inc.String()
}

// formatThinkingBlock renders a completed thinking segment as a collapsible
// HTML details block, matching how answers are displayed.
func formatThinkingBlock(inner string) string {
	return "<details>\n<summary>💭 Thinking</summary>\n\n" +
		strings.TrimSpace(inner) + "\n\n</details>\n\n"
}

// Finalize closes the turn. It returns the full answer text and, when the
// stream opened a tool call, the completed call from slot zero. The
// accumulated argument bytes are parsed exactly once here; if they do not
// form valid JSON the text is still returned alongside ErrToolArgumentParse.
//
// A stream that terminated without a thinking-close marker flushes the open
// marker and buffered text back as plain answer text so nothing is dropped.
func (r *ChunkReassembler) Finalize() (string, *domain.ToolCall, error) {
	if r.inThinking {
		r.answer.WriteString(thinkOpen + r.thinking.String())
		r.thinking.Reset()
		r.inThinking = false
	}
	text := r.answer.String()

	if len(r.toolCalls) == 0 || len(r.toolCalls[0].Arguments) == 0 {
		return text, nil, nil
	}

	call := r.toolCalls[0]
	if !json.Valid(call.Arguments) {
		return text, nil, domain.NewDomainError("ChunkReassembler.Finalize",
			domain.ErrToolArgumentParse, string(call.Arguments))
	}
	return text, &call, nil
}

// FinishReason reports the terminal signal seen on the stream. An empty
// reason after Done indicates the transport dropped mid-stream.
func (r *ChunkReassembler) FinishReason() string { return r.finishReason }

// Done reports whether the stream has terminated.
func (r *ChunkReassembler) Done() bool { return r.done }
