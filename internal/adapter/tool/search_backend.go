package tool

import "context"

// Search types accepted by the search tool.
const (
	SearchTypeWeb    = "search"
	SearchTypeNews   = "news"
	SearchTypeImages = "images"
	SearchTypePlaces = "places"
)

// SearchBackend abstracts a web search API.
type SearchBackend interface {
	// Search performs a search of the given type and returns normalized
	// results. Backends that only support plain web search degrade other
	// types to it.
	Search(ctx context.Context, query string, count int, searchType string) ([]SearchResult, error)
	// Name returns the backend identifier (e.g. "serper").
	Name() string
}

// SearchResult is a normalized search hit. Only the fields relevant to the
// search type are populated.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string

	// News fields.
	Source string
	Date   string

	// Image fields.
	ImageURL string

	// Place fields.
	Address string
	Rating  string
	Reviews string
}
