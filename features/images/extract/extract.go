// Package extract scrapes product reference images from retailer pages.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	_ "golang.org/x/image/webp"

	"github.com/fashnai/fashnai/features/tools/crawl"
	"github.com/fashnai/fashnai/runtime/agent/telemetry"
)

const (
	// DefaultMaxImages is the number of images returned when the caller does
	// not set a limit.
	DefaultMaxImages = 3
	// MinDimension is the smallest accepted width and height in pixels.
	MinDimension = 200

	pageTimeout   = 15 * time.Second
	imageTimeout  = 5 * time.Second
	maxImageBytes = 10 << 20
	maxPageBytes  = 5 << 20
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

type (
	// Image is a downloaded product image.
	Image struct {
		URL      string
		MimeType string
		Data     []byte
		Width    int
		Height   int
	}

	// Extractor finds and downloads product images.
	Extractor struct {
		client *http.Client
		logger telemetry.Logger
	}

	// Option configures an Extractor.
	Option func(*Extractor)

	// selector reports whether an img node matches one of the product image
	// heuristics.
	selector func(img *html.Node) bool
)

// WithHTTPClient overrides the HTTP client. Request deadlines are still
// applied per page and per image.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Extractor) { e.client = c }
}

// WithLogger sets the logger.
func WithLogger(l telemetry.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New returns an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{client: http.DefaultClient, logger: telemetry.NewNoopLogger()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// selectors are tried in order; earlier heuristics are more specific.
var selectors = []selector{
	attrContains("data-testid", "product"),
	attrContains("class", "product"),
	attrContains("class", "ProductImage"),
	attrContains("alt", "product"),
	ancestorAttrContains("class", "product-image"),
	ancestorAttrContains("class", "ProductImageCarousel"),
	ancestorAttrContains("data-test-id", "product"),
	attrContains("src", "product"),
	attrContains("src", "cdn"),
}

// Extract returns up to max product images found on pageURL. Failures are
// logged and yield fewer (possibly zero) images; Extract never fails.
func (e *Extractor) Extract(ctx context.Context, pageURL string, max int) []Image {
	if max <= 0 {
		max = DefaultMaxImages
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		e.logger.Warn(ctx, "invalid product URL", "url", pageURL, "err", err)
		return nil
	}
	doc, err := e.fetchPage(ctx, pageURL)
	if err != nil {
		e.logger.Warn(ctx, "failed to extract product images", "url", pageURL, "err", err)
		return nil
	}
	var (
		imgs   []Image
		seen   = make(map[string]struct{})
		imgTag = collectImages(doc)
	)
	for _, sel := range selectors {
		for _, n := range imgTag {
			if !sel(n) {
				continue
			}
			src := imageSource(n)
			if src == "" {
				continue
			}
			abs := resolve(base, src)
			if _, dup := seen[abs]; dup || !hasImageExtension(abs) {
				continue
			}
			seen[abs] = struct{}{}
			img, err := e.download(ctx, abs)
			if err != nil {
				e.logger.Debug(ctx, "failed to download image", "url", abs, "err", err)
				continue
			}
			if img.Width < MinDimension || img.Height < MinDimension {
				continue
			}
			imgs = append(imgs, img)
			if len(imgs) >= max {
				return imgs
			}
		}
	}
	e.logger.Info(ctx, "extracted product images", "url", pageURL, "count", len(imgs))
	return imgs
}

func (e *Extractor) fetchPage(ctx context.Context, pageURL string) (*html.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	crawl.SetBrowserHeaders(req)
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code: %d", resp.StatusCode)
	}
	return html.Parse(io.LimitReader(resp.Body, maxPageBytes))
}

func (e *Extractor) download(ctx context.Context, imgURL string) (Image, error) {
	ctx, cancel := context.WithTimeout(ctx, imageTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return Image{}, err
	}
	crawl.SetBrowserHeaders(req)
	resp, err := e.client.Do(req)
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("failed to download image, status code: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return Image{}, err
	}
	if len(data) > maxImageBytes {
		return Image{}, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}
	return Image{URL: imgURL, MimeType: "image/" + format, Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}

func collectImages(doc *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func attrContains(key, sub string) selector {
	return func(n *html.Node) bool {
		return strings.Contains(attr(n, key), sub)
	}
}

func ancestorAttrContains(key, sub string) selector {
	return func(n *html.Node) bool {
		for p := n.Parent; p != nil; p = p.Parent {
			if p.Type == html.ElementNode && strings.Contains(attr(p, key), sub) {
				return true
			}
		}
		return false
	}
}

func imageSource(n *html.Node) string {
	for _, k := range []string{"src", "data-src", "data-original"} {
		if v := strings.TrimSpace(attr(n, k)); v != "" {
			return v
		}
	}
	return ""
}

func resolve(base *url.URL, src string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}

func hasImageExtension(u string) bool {
	lower := strings.ToLower(u)
	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}
