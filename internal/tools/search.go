package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	duckduckgoEndpoint = "https://html.duckduckgo.com/html/"
	searchUserAgent    = "Mozilla/5.0 (compatible; chatgraph/1.0)"
)

// Search queries the DuckDuckGo HTML endpoint and returns result snippets.
type Search struct {
	client     *http.Client
	endpoint   string
	region     string
	maxResults int
}

// NewSearch creates the web search tool
func NewSearch(region string, maxResults int, timeout time.Duration) *Search {
	if region == "" {
		region = "us-en"
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Search{
		client:     &http.Client{Timeout: timeout},
		endpoint:   duckduckgoEndpoint,
		region:     region,
		maxResults: maxResults,
	}
}

func (s *Search) Name() string {
	return "search"
}

func (s *Search) Description() string {
	return "Search the web for current information. Input is a plain-text query."
}

func (s *Search) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query",
			},
		},
		"required": []string{"query"},
	}
}

// Call runs the search and returns the concatenated result snippets.
func (s *Search) Call(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return map[string]any{"error": "query must be a non-empty string"}, nil
	}

	form := url.Values{}
	form.Set("q", query)
	form.Set("kl", s.region)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	snippets, err := ParseResults(resp.Body, s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}
	if len(snippets) == 0 {
		return "No results found.", nil
	}
	return strings.Join(snippets, "\n"), nil
}

// ParseResults extracts up to max result snippets from a DuckDuckGo HTML page.
func ParseResults(body io.Reader, max int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	var snippets []string
	doc.Find(".result__body").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find(".result__title").Text())
		snippet := strings.TrimSpace(sel.Find(".result__snippet").Text())
		if snippet == "" {
			return true
		}
		if title != "" {
			snippets = append(snippets, title+": "+snippet)
		} else {
			snippets = append(snippets, snippet)
		}
		return len(snippets) < max
	})
	return snippets, nil
}
