package tool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parrot-ai/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackend struct {
	results  []SearchResult
	err      error
	calls    int
	lastType string
	lastNum  int
}

func (f *fakeBackend) Search(ctx context.Context, query string, count int, searchType string) ([]SearchResult, error) {
	f.calls++
	f.lastType = searchType
	f.lastNum = count
	return f.results, f.err
}

func (f *fakeBackend) Name() string { return "fake" }

func TestSearchBlankQuery(t *testing.T) {
	st := NewSearchTool(&fakeBackend{}, nil, 0, testLogger())

	_, err := st.Execute(context.Background(), json.RawMessage(`{"query":"   "}`))
	require.True(t, errors.Is(err, domain.ErrInvalidArguments))
}

func TestSearchDefaultsAndCap(t *testing.T) {
	fb := &fakeBackend{results: []SearchResult{{Title: "t", URL: "u", Snippet: "s"}}}
	st := NewSearchTool(fb, nil, 0, testLogger())

	_, err := st.Execute(context.Background(), json.RawMessage(`{"query":"go"}`))
	require.NoError(t, err)
	require.Equal(t, 5, fb.lastNum, "default max_results")
	require.Equal(t, SearchTypeWeb, fb.lastType, "default search_type")

	_, err = st.Execute(context.Background(), json.RawMessage(`{"query":"go2","max_results":100}`))
	require.NoError(t, err)
	require.Equal(t, 20, fb.lastNum, "max_results capped")
}

func TestSearchInvalidType(t *testing.T) {
	st := NewSearchTool(&fakeBackend{}, nil, 0, testLogger())

	_, err := st.Execute(context.Background(), json.RawMessage(`{"query":"go","search_type":"videos"}`))
	require.True(t, errors.Is(err, domain.ErrInvalidArguments))
}

func TestSearchBackendErrorPropagates(t *testing.T) {
	fb := &fakeBackend{err: domain.ErrSearchBackend}
	st := NewSearchTool(fb, nil, 0, testLogger())

	_, err := st.Execute(context.Background(), json.RawMessage(`{"query":"go"}`))
	require.True(t, errors.Is(err, domain.ErrSearchBackend))
}

func TestSearchCacheHit(t *testing.T) {
	fb := &fakeBackend{results: []SearchResult{{Title: "t", URL: "u", Snippet: "s"}}}
	st := NewSearchTool(fb, nil, time.Minute, testLogger())

	args := json.RawMessage(`{"query":"cached"}`)
	r1, err := st.Execute(context.Background(), args)
	require.NoError(t, err)
	r2, err := st.Execute(context.Background(), args)
	require.NoError(t, err)

	require.Equal(t, r1.Content, r2.Content)
	require.Equal(t, 1, fb.calls, "second call must be served from cache")
}

func TestSearchRateLimited(t *testing.T) {
	fb := &fakeBackend{results: []SearchResult{{Title: "t"}}}
	limiter := NewRateLimiter(1, time.Minute)
	st := NewSearchTool(fb, limiter, 0, testLogger())

	_, err := st.Execute(context.Background(), json.RawMessage(`{"query":"one"}`))
	require.NoError(t, err)

	res, err := st.Execute(context.Background(), json.RawMessage(`{"query":"two"}`))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Equal(t, 1, fb.calls)
}

func TestFormatSearchResultsWeb(t *testing.T) {
	out := FormatSearchResults([]SearchResult{
		{Title: "Go", URL: "https://go.dev", Snippet: "The Go language."},
		{Title: "Wiki", URL: "https://example.com", Snippet: "About Go."},
	}, SearchTypeWeb)

	require.Contains(t, out, "### Search Results")
	require.Contains(t, out, "**1. Go**")
	require.Contains(t, out, "**2. Wiki**")
	require.Contains(t, out, "URL: https://go.dev")
}

func TestFormatSearchResultsNews(t *testing.T) {
	out := FormatSearchResults([]SearchResult{
		{Title: "Release", URL: "u", Snippet: "s", Source: "Blog", Date: "today"},
	}, SearchTypeNews)

	require.Contains(t, out, "Source: Blog, Date: today")
}

func TestFormatSearchResultsPlaces(t *testing.T) {
	out := FormatSearchResults([]SearchResult{
		{Title: "Cafe", Address: "1 Main St", Rating: "4.5", Reviews: "120"},
	}, SearchTypePlaces)

	require.Contains(t, out, "Address: 1 Main St")
	require.Contains(t, out, "Rating: 4.5 (120 reviews)")
}

func TestFormatSearchResultsEmpty(t *testing.T) {
	require.Equal(t, "No search results found.", FormatSearchResults(nil, SearchTypeWeb))
}
