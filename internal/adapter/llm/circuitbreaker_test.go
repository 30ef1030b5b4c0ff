package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"parrot-ai/internal/domain"
	"parrot-ai/internal/infra/config"
)

type flakyProvider struct {
	err   error
	calls int
}

func (f *flakyProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: "ok"}}, nil
}

func (f *flakyProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan domain.StreamDelta, 1)
	ch <- domain.StreamDelta{Done: true, FinishReason: domain.FinishStop}
	close(ch)
	return ch, nil
}

func (f *flakyProvider) Name() string { return "flaky" }

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyProvider{err: errors.New("boom")}
	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{
		MaxFailures: 2,
		Timeout:     time.Minute,
	}, testLogger())

	_, err := cb.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	_, err = cb.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)

	require.Equal(t, gobreaker.StateOpen, cb.State())

	// Third call fails fast without reaching the provider.
	_, err = cb.Chat(context.Background(), domain.ChatRequest{})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, 2, inner.calls)
}

func TestCircuitAllowsStreamWhenHealthy(t *testing.T) {
	inner := &flakyProvider{}
	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{}, testLogger())

	ch, err := cb.ChatStream(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	d := <-ch
	require.True(t, d.Done)
	require.Equal(t, gobreaker.StateClosed, cb.State())
}
