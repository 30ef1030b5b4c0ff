package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"parrot-ai/internal/domain"
)

const maxSearchBodySize = 512 * 1024 // 512KB

// searxngResponse models the relevant portion of the SearXNG JSON response.
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// SearXNGBackend searches the web via a self-hosted SearXNG instance.
// It only supports plain web search; news/images/places requests degrade
// to it.
type SearXNGBackend struct {
	client      *http.Client
	instanceURL string
	logger      *slog.Logger
}

// NewSearXNGBackend creates a search backend backed by a SearXNG instance.
func NewSearXNGBackend(instanceURL string, logger *slog.Logger) *SearXNGBackend {
	return &SearXNGBackend{
		client:      &http.Client{Timeout: 15 * time.Second},
		instanceURL: strings.TrimRight(instanceURL, "/"),
		logger:      logger,
	}
}

func (b *SearXNGBackend) Name() string { return "searxng" }

func (b *SearXNGBackend) Search(ctx context.Context, query string, count int, searchType string) ([]SearchResult, error) {
	if searchType != SearchTypeWeb {
		b.logger.Debug("searxng degrading search type", "requested", searchType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.instanceURL+"/search", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchBackend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrSearchBackend, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: searxng HTTP %d: %s", domain.ErrSearchBackend, resp.StatusCode, body)
	}

	var sx searxngResponse
	if err := json.Unmarshal(body, &sx); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", domain.ErrSearchBackend, err)
	}

	results := make([]SearchResult, 0, len(sx.Results))
	for _, r := range sx.Results {
		if len(results) >= count {
			break
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}

	b.logger.Debug("searxng search completed", "query", query, "results", len(results))
	return results, nil
}
