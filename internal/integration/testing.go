// Package integration holds end-to-end tests that exercise the full turn
// pipeline: the OpenAI-compatible streaming adapter, the search tool with a
// live (faked) backend, the orchestrator, and both persistence schemas.
package integration

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sseBody writes a chat-completions SSE stream from raw chunk payloads.
func sseBody(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		fmt.Fprintf(w, "data: %s\n\n", c)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

// skipIfShort skips in -short mode; these tests spin up several servers.
func skipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}
