package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"parrot-ai/internal/adapter/llm"
	"parrot-ai/internal/adapter/store"
	"parrot-ai/internal/adapter/tool"
	"parrot-ai/internal/domain"
	"parrot-ai/internal/infra/config"
	"parrot-ai/internal/usecase"
)

// TestSearchTurnEndToEnd drives a full search-mode turn through real
// adapters: a faked completions API that first requests the search tool and
// then answers from its result, and a faked search backend.
func TestSearchTurnEndToEnd(t *testing.T) {
	skipIfShort(t)

	searx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[
			{"title":"Go 1.26 Release Notes","url":"https://go.dev/doc/go1.26","content":"Go 1.26 was released in February 2026."}
		]}`))
	}))
	defer searx.Close()

	var llmCalls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		switch llmCalls.Add(1) {
		case 1:
			if _, ok := req["tools"]; !ok {
				t.Error("drafting request must declare tools")
			}
			// Tool call split across chunks: id and name first, then the
			// argument JSON one piece at a time.
			sseBody(w,
				`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"search","arguments":"{\"query\":"}}]},"finish_reason":null}]}`,
				`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"go 1.26 release\"}"}}]},"finish_reason":null}]}`,
				`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
			)
		case 2:
			if _, ok := req["tools"]; ok {
				t.Error("finalizing request must not declare tools")
			}
			msgs := req["messages"].([]any)
			last := msgs[len(msgs)-1].(map[string]any)["content"].(string)
			if !strings.Contains(last, "Go 1.26 Release Notes") {
				t.Errorf("finalizing prompt missing tool result: %q", last)
			}
			sseBody(w,
				`{"choices":[{"delta":{"content":"Go 1.26 shipped "},"finish_reason":null}]}`,
				`{"choices":[{"delta":{"content":"in February 2026."},"finish_reason":null}]}`,
				`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			)
		default:
			t.Error("unexpected third completion call")
		}
	}))
	defer api.Close()

	dataDir := t.TempDir()
	log := testLogger()

	provider := llm.NewOpenAIProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: api.URL,
		Model:   "test-model",
	}, log)

	registry := tool.NewRegistry(log)
	if err := registry.Register(tool.NewSearchTool(
		tool.NewSearXNGBackend(searx.URL, log), nil, 0, log,
	)); err != nil {
		t.Fatalf("register search tool: %v", err)
	}

	legacy := store.NewLegacyStore(dataDir, log)
	sessions := store.NewSessionLogStore(dataDir, log)

	orch := usecase.NewOrchestrator(
		provider, registry, usecase.NewContextWindowBuilder(nil),
		legacy, sessions, "test-model", 0, 10*time.Second, log,
	)

	conv := usecase.NewConversation()
	conv.Mode = domain.ModeSearch

	var shown strings.Builder
	orch.OnUpdate = func(inc string) { shown.WriteString(inc) }

	final, err := orch.RunTurn(context.Background(), conv, "when did go 1.26 ship?")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if final != "Go 1.26 shipped in February 2026." {
		t.Fatalf("final = %q", final)
	}
	if shown.String() != final {
		t.Fatalf("progressive output %q != final %q", shown.String(), final)
	}
	if got := llmCalls.Load(); got != 2 {
		t.Fatalf("completion calls = %d, want 2", got)
	}

	// First exchange auto-titles the conversation.
	if !strings.HasPrefix(conv.Name, "when did go 126 sh") {
		t.Fatalf("conversation not auto-titled: %q", conv.Name)
	}

	// Both schemas persisted.
	rec := legacy.Load(conv.Name)
	if len(rec.History) != 2 {
		t.Fatalf("legacy history = %d turns", len(rec.History))
	}
	entries := sessions.Load(conv.SessionID)
	if len(entries) != 1 {
		t.Fatalf("session entries = %d", len(entries))
	}
	if entries[0].Output != final {
		t.Fatalf("session output = %q", entries[0].Output)
	}

	// On-disk layout: one legacy file, one session log.
	if _, err := os.Stat(filepath.Join(dataDir, conv.Name+".json")); err != nil {
		t.Fatalf("legacy file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "sessions", conv.SessionID+".json")); err != nil {
		t.Fatalf("session log file: %v", err)
	}
}

// TestPlainTurnEndToEnd covers the default mode fast path: one streaming
// call, no tool declaration, answer persisted to both stores.
func TestPlainTurnEndToEnd(t *testing.T) {
	skipIfShort(t)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if _, ok := req["tools"]; ok {
			t.Error("default mode must not declare tools")
		}
		sseBody(w,
			`{"choices":[{"delta":{"content":"Hello, "},"finish_reason":null}]}`,
			`{"choices":[{"delta":{"content":"world!"},"finish_reason":null}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		)
	}))
	defer api.Close()

	dataDir := t.TempDir()
	log := testLogger()

	provider := llm.NewOpenAIProvider(config.ProviderConfig{
		Name: "test", BaseURL: api.URL, Model: "test-model",
	}, log)
	legacy := store.NewLegacyStore(dataDir, log)
	sessions := store.NewSessionLogStore(dataDir, log)

	orch := usecase.NewOrchestrator(
		provider, nil, usecase.NewContextWindowBuilder(nil),
		legacy, sessions, "test-model", 0, 10*time.Second, log,
	)

	conv := usecase.NewConversation()
	final, err := orch.RunTurn(context.Background(), conv, "say hello world")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if final != "Hello, world!" {
		t.Fatalf("final = %q", final)
	}
	if len(sessions.Load(conv.SessionID)) != 1 {
		t.Fatal("session entry missing")
	}
}
