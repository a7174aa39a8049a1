// Package websearch implements the web search tool on top of the Serper
// Google Search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fashnai/fashnai/runtime/agent/tools"
	"github.com/fashnai/fashnai/runtime/credentials"
)

// Ident is the tool identifier presented to models.
const Ident tools.Ident = "web.search"

const (
	// DefaultEndpoint is the Serper search endpoint.
	DefaultEndpoint   = "https://google.serper.dev/search"
	defaultNumResults = 10
	defaultTimeout    = 15 * time.Second
)

type (
	// Searcher queries Serper.
	Searcher struct {
		client   *http.Client
		endpoint string
		keys     *credentials.Pool
		num      int
	}

	// Option configures a Searcher.
	Option func(*Searcher)

	// Result is one organic search result.
	Result struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	}

	// ShoppingResult is one shopping search result.
	ShoppingResult struct {
		Title  string `json:"title"`
		Source string `json:"source"`
		Link   string `json:"link"`
		Price  string `json:"price"`
	}

	response struct {
		Organic  []Result         `json:"organic"`
		Shopping []ShoppingResult `json:"shopping"`
	}

	input struct {
		Query      string `json:"query"`
		NumResults int    `json:"num_results,omitempty"`
	}
)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Searcher) { s.client = c }
}

// WithEndpoint overrides the Serper endpoint.
func WithEndpoint(u string) Option {
	return func(s *Searcher) { s.endpoint = u }
}

// WithNumResults sets the default number of results requested.
func WithNumResults(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.num = n
		}
	}
}

// New returns a Searcher authenticating with keys.
func New(keys *credentials.Pool, opts ...Option) *Searcher {
	s := &Searcher{
		client:   &http.Client{Timeout: defaultTimeout},
		endpoint: DefaultEndpoint,
		keys:     keys,
		num:      defaultNumResults,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name implements tools.Tool.
func (s *Searcher) Name() tools.Ident { return Ident }

// Description implements tools.Tool.
func (s *Searcher) Description() string {
	return "Search the web with Google. Returns titles, links and snippets, plus shopping offers with prices when available."
}

// InputSchema implements tools.Tool.
func (s *Searcher) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string", "description": "Search query"},
			"num_results": map[string]any{"type": "integer", "minimum": 1, "maximum": 20},
		},
		"required": []string{"query"},
	}
}

// Call implements tools.Tool.
func (s *Searcher) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	var in input
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", fmt.Errorf("search: invalid input: %w", err)
	}
	organic, shopping, err := s.Search(ctx, in.Query, in.NumResults)
	if err != nil {
		return "", err
	}
	return format(organic, shopping), nil
}

// Search runs query and returns organic and shopping results.
func (s *Searcher) Search(ctx context.Context, query string, num int) ([]Result, []ShoppingResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil, errors.New("search: query is required")
	}
	if num <= 0 {
		num = s.num
	}
	key, err := s.keys.Next()
	if err != nil {
		return nil, nil, fmt.Errorf("search: %w", err)
	}
	body, err := json.Marshal(map[string]any{"q": query, "num": num})
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("search: %w", err)
	}
	req.Header.Set("X-API-KEY", key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, fmt.Errorf("search: status code %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("search: decode response: %w", err)
	}
	return out.Organic, out.Shopping, nil
}

func format(organic []Result, shopping []ShoppingResult) string {
	if len(organic) == 0 && len(shopping) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, r := range organic {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.Link, r.Snippet)
	}
	if len(shopping) > 0 {
		b.WriteString("\nShopping results:\n")
		for _, r := range shopping {
			fmt.Fprintf(&b, "- %s | %s | %s | %s\n", r.Title, r.Source, r.Price, r.Link)
		}
	}
	return b.String()
}
