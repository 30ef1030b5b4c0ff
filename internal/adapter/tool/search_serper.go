package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"parrot-ai/internal/domain"
)

const serperBaseURL = "https://google.serper.dev"

// serperResponse models the portions of the serper.dev response we consume.
// Each search type returns its results under a different key.
type serperResponse struct {
	Organic []serperItem `json:"organic"`
	News    []serperItem `json:"news"`
	Images  []serperItem `json:"images"`
	Places  []serperItem `json:"places"`
}

type serperItem struct {
	Title        string          `json:"title"`
	Link         string          `json:"link"`
	Snippet      string          `json:"snippet"`
	Source       string          `json:"source"`
	Date         string          `json:"date"`
	ImageURL     string          `json:"imageUrl"`
	Address      string          `json:"address"`
	Rating       json.RawMessage `json:"rating"`
	ReviewsCount json.RawMessage `json:"reviewsCount"`
}

// SerperBackend searches the web via the serper.dev API.
type SerperBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewSerperBackend creates a serper.dev search backend.
func NewSerperBackend(apiKey string, logger *slog.Logger) *SerperBackend {
	return &SerperBackend{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: serperBaseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (b *SerperBackend) Name() string { return "serper" }

func (b *SerperBackend) Search(ctx context.Context, query string, count int, searchType string) ([]SearchResult, error) {
	payload, err := json.Marshal(map[string]any{"q": query, "num": count})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/"+searchType, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", b.apiKey)
	req.Header.Set("Content-Type", "application/json")

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
		return nil, fmt.Errorf("%w: serper HTTP %d: %s", domain.ErrSearchBackend, resp.StatusCode, body)
	}

	var sr serperResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", domain.ErrSearchBackend, err)
	}

	results := mapSerperResults(sr, searchType, count)
	b.logger.Debug("serper search completed",
		"query", query, "type", searchType, "results", len(results))
	return results, nil
}

func mapSerperResults(sr serperResponse, searchType string, count int) []SearchResult {
	var items []serperItem
	switch searchType {
	case SearchTypeNews:
		items = sr.News
	case SearchTypeImages:
		items = sr.Images
	case SearchTypePlaces:
		items = sr.Places
	default:
		items = sr.Organic
	}
	if len(items) > count {
		items = items[:count]
	}

	results := make([]SearchResult, 0, len(items))
	for _, it := range items {
		r := SearchResult{
			Title:    it.Title,
			URL:      it.Link,
			Snippet:  it.Snippet,
			Source:   it.Source,
			Date:     it.Date,
			ImageURL: it.ImageURL,
			Address:  it.Address,
			Rating:   rawToString(it.Rating),
			Reviews:  rawToString(it.ReviewsCount),
		}
		results = append(results, r)
	}
	return results
}

// rawToString renders a JSON scalar (serper returns ratings as numbers and
// review counts as either) as display text.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	}
	return string(raw)
}
