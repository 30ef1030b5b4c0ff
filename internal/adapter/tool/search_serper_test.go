package tool

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"parrot-ai/internal/domain"
)

func newTestSerper(t *testing.T, handler http.HandlerFunc) *SerperBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	b := NewSerperBackend("test-key", testLogger())
	b.baseURL = srv.URL
	return b
}

func TestSerperWebSearch(t *testing.T) {
	b := newTestSerper(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "golang", payload["q"])
		require.EqualValues(t, 2, payload["num"])

		w.Write([]byte(`{"organic":[
			{"title":"Go","link":"https://go.dev","snippet":"The Go language"},
			{"title":"Docs","link":"https://go.dev/doc","snippet":"Documentation"},
			{"title":"Extra","link":"https://example.com","snippet":"dropped"}
		]}`))
	})

	results, err := b.Search(context.Background(), "golang", 2, SearchTypeWeb)
	require.NoError(t, err)
	require.Len(t, results, 2, "results capped to requested count")
	require.Equal(t, "Go", results[0].Title)
	require.Equal(t, "https://go.dev", results[0].URL)
	require.Equal(t, "The Go language", results[0].Snippet)
}

func TestSerperNewsSearch(t *testing.T) {
	b := newTestSerper(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/news", r.URL.Path)
		w.Write([]byte(`{"news":[
			{"title":"Go 1.26","link":"u","snippet":"released","source":"Go Blog","date":"2 days ago"}
		]}`))
	})

	results, err := b.Search(context.Background(), "go release", 5, SearchTypeNews)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Go Blog", results[0].Source)
	require.Equal(t, "2 days ago", results[0].Date)
}

func TestSerperPlacesSearch(t *testing.T) {
	b := newTestSerper(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/places", r.URL.Path)
		w.Write([]byte(`{"places":[
			{"title":"Cafe","address":"1 Main St","rating":4.5,"reviewsCount":120}
		]}`))
	})

	results, err := b.Search(context.Background(), "coffee", 5, SearchTypePlaces)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "1 Main St", results[0].Address)
	require.Equal(t, "4.5", results[0].Rating)
	require.Equal(t, "120", results[0].Reviews)
}

func TestSerperImagesSearch(t *testing.T) {
	b := newTestSerper(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images", r.URL.Path)
		w.Write([]byte(`{"images":[
			{"title":"Gopher","link":"u","imageUrl":"https://img/gopher.png","source":"go.dev"}
		]}`))
	})

	results, err := b.Search(context.Background(), "gopher", 5, SearchTypeImages)
	require.NoError(t, err)
	require.Equal(t, "https://img/gopher.png", results[0].ImageURL)
}

func TestSerperHTTPError(t *testing.T) {
	b := newTestSerper(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusForbidden)
	})

	_, err := b.Search(context.Background(), "q", 5, SearchTypeWeb)
	require.True(t, errors.Is(err, domain.ErrSearchBackend))
}

func TestRawToString(t *testing.T) {
	require.Equal(t, "4.5", rawToString(json.RawMessage(`4.5`)))
	require.Equal(t, "120", rawToString(json.RawMessage(`120`)))
	require.Equal(t, "many", rawToString(json.RawMessage(`"many"`)))
	require.Equal(t, "", rawToString(nil))
}
