package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"parrot-ai/internal/domain"
	"parrot-ai/internal/infra/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "test-model",
	}, testLogger())
}

func TestChatRequestWire(t *testing.T) {
	var got wireRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(wireResponse{
			ID: "resp-1",
			Choices: []wireChoice{
				{Message: wireMessage{Role: "assistant", Content: "hi"}, FinishReason: "stop"},
			},
			Usage: wireUsage{TotalTokens: 3},
		})
	})

	req := domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hello"}},
	}
	req.ApplyParameters(domain.DefaultParameters())

	resp, err := p.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "hi", resp.Message.Content)

	require.Equal(t, "test-model", got.Model)
	require.NotNil(t, got.Temperature)
	require.InDelta(t, 0.7, *got.Temperature, 1e-9)
	require.NotNil(t, got.TopP)
	require.NotNil(t, got.PresencePenalty)
	require.NotNil(t, got.FrequencyPenalty)
}

func TestChatStreamEndToEnd(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.True(t, body.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"},\"finish_reason\":null}]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"b\"},\"finish_reason\":null}]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	})

	ch, err := p.ChatStream(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var content string
	var finish string
	for d := range ch {
		content += d.Content
		if d.Done {
			finish = d.FinishReason
		}
	}
	require.Equal(t, "ab", content)
	require.Equal(t, domain.FinishStop, finish)
}

func TestChatStreamHTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
	})

	_, err := p.ChatStream(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrRateLimit))
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimit},
		{http.StatusUnauthorized, domain.ErrAuthInvalid},
		{http.StatusForbidden, domain.ErrAuthInvalid},
		{http.StatusRequestEntityTooLarge, domain.ErrContextOverflow},
		{http.StatusInternalServerError, domain.ErrProviderError},
		{http.StatusBadGateway, domain.ErrProviderError},
	}
	for _, tt := range tests {
		err := mapHTTPError(tt.status, []byte("body"))
		require.True(t, errors.Is(err, tt.want), "status %d: got %v", tt.status, err)
	}
	// 4xx without a dedicated sentinel stays a plain error.
	err := mapHTTPError(http.StatusBadRequest, []byte("bad"))
	require.Error(t, err)
	require.Equal(t, domain.CodeUnknown, domain.ErrorCodeOf(err))
}

func TestParseStreamChunkToolCallIndex(t *testing.T) {
	chunk := []byte(`{"choices":[{"delta":{"tool_calls":[` +
		`{"index":1,"id":"call_2","function":{"name":"search","arguments":"{}"}}` +
		`]},"finish_reason":null}]}`)
	delta, err := parseStreamChunk(chunk)
	require.NoError(t, err)
	require.Len(t, delta.ToolCalls, 2, "slot 0 padded, fragment in slot 1")
	require.Equal(t, "call_2", delta.ToolCalls[1].ID)

	// A wire index beyond the slot bound must not drive the allocation.
	for _, idx := range []string{"1000000", "-1", "2147483647"} {
		chunk := []byte(`{"choices":[{"delta":{"tool_calls":[` +
			`{"index":` + idx + `,"id":"x","function":{"name":"search"}}` +
			`]},"finish_reason":null}]}`)
		delta, err := parseStreamChunk(chunk)
		require.NoError(t, err)
		require.Empty(t, delta.ToolCalls, "index %s must be dropped", idx)
	}
}

func TestToWireRequestToolMessages(t *testing.T) {
	req := domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{
				{ID: "call_1", Name: "search", Arguments: json.RawMessage(`{"query":"go"}`)},
			}},
			{Role: domain.RoleTool, Name: "search", Content: "results",
				ToolCalls: []domain.ToolCall{{ID: "call_1"}}},
		},
	}

	wr := toWireRequest(req)
	require.Len(t, wr.Messages, 2)
	require.Equal(t, "call_1", wr.Messages[0].ToolCalls[0].ID)
	require.Equal(t, `{"query":"go"}`, wr.Messages[0].ToolCalls[0].Function.Arguments)
	require.Equal(t, "call_1", wr.Messages[1].ToolCallID)
	require.Empty(t, wr.Messages[1].ToolCalls)
}
