// Package crawl implements the page fetch tool: it downloads a web page and
// returns its content as markdown, truncated to a maximum length.
package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/fashnai/fashnai/runtime/agent/tools"
)

// Ident is the tool identifier presented to models.
const Ident tools.Ident = "web.crawl"

const (
	// DefaultMaxLength is the default number of markdown bytes returned.
	DefaultMaxLength = 15000
	defaultTimeout   = 20 * time.Second
	maxBodyBytes     = 5 << 20
	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type (
	// Crawler fetches pages and converts them to markdown.
	Crawler struct {
		client    *http.Client
		converter *md.Converter
		maxLength int
	}

	// Option configures a Crawler.
	Option func(*Crawler)

	input struct {
		URL string `json:"url"`
	}
)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cr *Crawler) { cr.client = c }
}

// WithMaxLength sets the maximum number of markdown bytes returned.
func WithMaxLength(n int) Option {
	return func(cr *Crawler) {
		if n > 0 {
			cr.maxLength = n
		}
	}
}

// New returns a Crawler.
func New(opts ...Option) *Crawler {
	c := &Crawler{
		client:    &http.Client{Timeout: defaultTimeout},
		converter: md.NewConverter("", true, nil),
		maxLength: DefaultMaxLength,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetBrowserHeaders sets headers retailers expect from a desktop browser.
func SetBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
}

// Name implements tools.Tool.
func (c *Crawler) Name() tools.Ident { return Ident }

// Description implements tools.Tool.
func (c *Crawler) Description() string {
	return "Fetch a web page and return its main content as markdown. Use it to read product pages, retailer listings and review pages."
}

// InputSchema implements tools.Tool.
func (c *Crawler) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute URL of the page to fetch"},
		},
		"required": []string{"url"},
	}
}

// Call implements tools.Tool.
func (c *Crawler) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	var in input
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", fmt.Errorf("crawl: invalid input: %w", err)
	}
	return c.Fetch(ctx, in.URL)
}

// Fetch downloads url and returns its markdown content.
func (c *Crawler) Fetch(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", errors.New("crawl: url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("crawl: %w", err)
	}
	SetBrowserHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("crawl: failed to fetch URL %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("crawl: failed to fetch URL %s, status code: %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("crawl: read %s: %w", url, err)
	}
	markdown, err := c.converter.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("crawl: md conversion error: %w", err)
	}
	return truncate(strings.TrimSpace(markdown), c.maxLength), nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
