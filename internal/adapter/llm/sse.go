package llm

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"parrot-ai/internal/domain"
)

// maxSSELineSize bounds a single SSE line. Argument deltas are small; a
// line this large means the server is not speaking SSE.
const maxSSELineSize = 1024 * 1024

// parseSSEStream reads SSE-formatted lines from body and converts each data
// payload into a StreamDelta using parseLine. The returned channel is closed
// when the stream ends, the body closes, or ctx is cancelled.
//
// A Done delta with an empty FinishReason signals abnormal termination
// (transport failure or a server that hung up without finishing the choice);
// consumers map that to a stream transport error.
func parseSSEStream(ctx context.Context, body io.ReadCloser, parseLine func(data []byte) (*domain.StreamDelta, error)) <-chan domain.StreamDelta {
	ch := make(chan domain.StreamDelta, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		finished := false
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			data, ok := sseData(scanner.Bytes())
			if !ok {
				continue
			}

			// Common termination signal.
			if bytes.Equal(data, []byte("[DONE]")) {
				if !finished {
					// Terminator without a finish_reason chunk: treat the
					// stream as cleanly stopped.
					ch <- domain.StreamDelta{Done: true, FinishReason: domain.FinishStop}
				}
				return
			}

			delta, err := parseLine(data)
			if err != nil || delta == nil {
				// Skip unparseable lines.
				continue
			}

			select {
			case ch <- *delta:
			case <-ctx.Done():
				return
			}

			if delta.Done {
				finished = true
			}
		}

		// Stream ended without [DONE]. If the choice never finished, tell
		// the consumer the transport dropped.
		if !finished {
			select {
			case ch <- domain.StreamDelta{Done: true}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

// sseData extracts the payload of a "data:" line. Empty lines, comments,
// and other SSE fields are skipped.
func sseData(line []byte) ([]byte, bool) {
	if len(line) == 0 || line[0] == ':' {
		return nil, false
	}
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil, false
	}
	data := line[len("data:"):]
	// The space after the colon is optional in the SSE grammar.
	if len(data) > 0 && data[0] == ' ' {
		data = data[1:]
	}
	return data, true
}
