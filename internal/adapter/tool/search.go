package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"parrot-ai/internal/domain"
)

const (
	defaultSearchCount = 5
	maxSearchCount     = 20
	defaultCacheTTL    = 15 * time.Minute
)

// cacheEntry holds a cached formatted result with its expiration time.
type cacheEntry struct {
	result    string
	expiresAt time.Time
}

// SearchTool performs web searches via a pluggable SearchBackend and
// formats the hits as a markdown block for prompt embedding.
type SearchTool struct {
	backend  SearchBackend
	limiter  *RateLimiter
	cacheTTL time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewSearchTool creates the search tool. limiter may be nil to disable
// rate limiting.
func NewSearchTool(backend SearchBackend, limiter *RateLimiter, cacheTTL time.Duration, logger *slog.Logger) *SearchTool {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &SearchTool{
		backend:  backend,
		limiter:  limiter,
		cacheTTL: cacheTTL,
		logger:   logger,
		cache:    make(map[string]cacheEntry),
	}
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Description() string {
	return "Search the web for information on a given query."
}

func (t *SearchTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Enhanced query which works properly with web search"},
				"max_results": {"type": "integer", "description": "Maximum number of results to return (default: 5)"},
				"search_type": {"type": "string", "description": "Type of search to perform", "enum": ["search", "news", "images", "places"]}
			},
			"required": ["query"],
			"additionalProperties": false
		}`),
	}
}

type searchParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
	SearchType string `json:"search_type,omitempty"`
}

func (t *SearchTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	var p searchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, domain.NewDomainError("SearchTool.Execute", domain.ErrInvalidArguments, err.Error())
	}

	if err := RequireField("query", p.Query); err != nil {
		return nil, domain.NewDomainError("SearchTool.Execute", domain.ErrInvalidArguments, err.Error())
	}
	if p.MaxResults <= 0 {
		p.MaxResults = defaultSearchCount
	}
	if p.MaxResults > maxSearchCount {
		p.MaxResults = maxSearchCount
	}
	if p.SearchType == "" {
		p.SearchType = SearchTypeWeb
	}
	if err := ValidateEnum("search_type", p.SearchType,
		SearchTypeWeb, SearchTypeNews, SearchTypeImages, SearchTypePlaces); err != nil {
		return nil, domain.NewDomainError("SearchTool.Execute", domain.ErrInvalidArguments, err.Error())
	}

	cacheKey := fmt.Sprintf("%s|%d|%s", p.Query, p.MaxResults, p.SearchType)
	if cached, ok := t.getCached(cacheKey); ok {
		t.logger.Debug("search cache hit", "query", p.Query)
		return &domain.ToolResult{Content: cached}, nil
	}

	if t.limiter != nil && !t.limiter.Allow() {
		return &domain.ToolResult{
			Content: "Search rate limit reached. Please wait before searching again.",
			IsError: true,
		}, nil
	}

	results, err := t.backend.Search(ctx, p.Query, p.MaxResults, p.SearchType)
	if err != nil {
		return nil, domain.WrapOp("SearchTool.Execute", err)
	}
	if len(results) > p.MaxResults {
		results = results[:p.MaxResults]
	}

	content := FormatSearchResults(results, p.SearchType)
	t.putCache(cacheKey, content)

	t.logger.Debug("search completed",
		"query", p.Query, "type", p.SearchType, "results", len(results))
	return &domain.ToolResult{Content: content}, nil
}

// FormatSearchResults renders hits as a numbered markdown block. Result
// order is preserved; the fields shown depend on the search type.
func FormatSearchResults(results []SearchResult, searchType string) string {
	if len(results) == 0 {
		return "No search results found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s Results\n\n", titleCase(searchType))

	for i, r := range results {
		switch searchType {
		case SearchTypeImages:
			fmt.Fprintf(&sb, "**%d. %s**\n", i+1, r.Title)
			fmt.Fprintf(&sb, "URL: %s\n", r.URL)
			fmt.Fprintf(&sb, "Image: %s\n", r.ImageURL)
			fmt.Fprintf(&sb, "Source: %s\n\n", orUnknown(r.Source))
		case SearchTypePlaces:
			fmt.Fprintf(&sb, "**%d. %s**\n", i+1, r.Title)
			fmt.Fprintf(&sb, "Address: %s\n", r.Address)
			fmt.Fprintf(&sb, "Rating: %s (%s reviews)\n\n", orDefault(r.Rating, "N/A"), orDefault(r.Reviews, "0"))
		default: // search, news
			fmt.Fprintf(&sb, "**%d. %s**\n", i+1, r.Title)
			fmt.Fprintf(&sb, "URL: %s\n", r.URL)
			fmt.Fprintf(&sb, "%s\n", r.Snippet)
			if searchType == SearchTypeNews {
				fmt.Fprintf(&sb, "Source: %s, Date: %s\n", orUnknown(r.Source), orUnknown(r.Date))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orUnknown(s string) string { return orDefault(s, "Unknown") }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (t *SearchTool) getCached(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.cache[key]
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		delete(t.cache, key)
		return "", false
	}
	return entry.result, true
}

func (t *SearchTool) putCache(key, result string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cache[key] = cacheEntry{
		result:    result,
		expiresAt: time.Now().Add(t.cacheTTL),
	}

	// Lazy eviction once the cache grows.
	if len(t.cache) > 100 {
		now := time.Now()
		for k, v := range t.cache {
			if now.After(v.expiresAt) {
				delete(t.cache, k)
			}
		}
	}
}
