// Package agents defines the price, specification, review and try-on agents
// and exposes them as a Service whose methods always return a
// contract-valid result.
package agents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fashnai/fashnai/analysis/contract"
	"github.com/fashnai/fashnai/analysis/fallback"
	"github.com/fashnai/fashnai/analysis/tryon"
	"github.com/fashnai/fashnai/features/cache"
	"github.com/fashnai/fashnai/features/images"
	"github.com/fashnai/fashnai/features/tools/crawl"
	"github.com/fashnai/fashnai/runtime/agent/invoke"
	"github.com/fashnai/fashnai/runtime/agent/model"
	"github.com/fashnai/fashnai/runtime/agent/runner"
	"github.com/fashnai/fashnai/runtime/agent/telemetry"
	"github.com/fashnai/fashnai/runtime/agent/tools"
)

// ErrEmptyURL is returned when a product URL is missing.
var ErrEmptyURL = errors.New("product_url is required")

type (
	// Config wires the Service collaborators. Only Model is required.
	Config struct {
		// Model runs every agent.
		Model model.Client
		// ModelID overrides the client default model for all agents.
		ModelID string
		// Search is the web search tool. Agents run without search when nil.
		Search tools.Tool
		// HTTPClient is used by the crawlers.
		HTTPClient *http.Client
		// SpecCache receives successful specification results and feeds
		// the try-on pipeline.
		SpecCache cache.SpecCache
		// Vision analyzes user photos. Defaults to Model.
		Vision model.Client
		// Generator renders try-on images. Try-on is text only when nil.
		Generator images.Generator
		// Extractor finds product reference images.
		Extractor tryon.ImageExtractor
		// Invoke configures retries.
		Invoke invoke.Config
		// Telemetry receives logs, spans and metrics.
		Telemetry telemetry.Set
	}

	// Service runs the analysis agents.
	Service struct {
		price  invoke.Runner
		spec   invoke.Runner
		review invoke.Runner
		tryon  *tryon.Pipeline
		cache  cache.SpecCache
		cfg    invoke.Config
		tel    telemetry.Set
	}
)

// NewService builds the four agents and the try-on pipeline.
func NewService(cfg Config) (*Service, error) {
	if cfg.Model == nil {
		return nil, errors.New("agents: model client is required")
	}
	tel := cfg.Telemetry.WithDefaults()
	ic := cfg.Invoke
	if ic.MaxRetries == 0 {
		ic.MaxRetries = invoke.DefaultMaxRetries
	}
	ic.Telemetry = tel
	vision := cfg.Vision
	if vision == nil {
		vision = cfg.Model
	}

	build := func(agent runner.Agent) *runner.Runner {
		agent.Model = cfg.ModelID
		return runner.New(cfg.Model, agent, runner.WithTelemetry(tel))
	}
	crawler := func(n int) tools.Tool {
		opts := []crawl.Option{crawl.WithMaxLength(n)}
		if cfg.HTTPClient != nil {
			opts = append(opts, crawl.WithHTTPClient(cfg.HTTPClient))
		}
		return crawl.New(opts...)
	}

	s := &Service{
		price:  build(PriceAgent(tools.NewSet(cfg.Search, crawler(PriceCrawlLength)))),
		spec:   build(SpecificationAgent(tools.NewSet(cfg.Search, crawler(SpecificationCrawlLength)))),
		review: build(ReviewAgent(tools.NewSet(cfg.Search, crawler(ReviewCrawlLength)))),
		cache:  cfg.SpecCache,
		cfg:    ic,
		tel:    tel,
	}
	opts := []tryon.Option{
		tryon.WithVision(vision),
		tryon.WithInvokeConfig(ic),
		tryon.WithTelemetry(tel),
	}
	if cfg.Generator != nil {
		opts = append(opts, tryon.WithGenerator(cfg.Generator))
	}
	if cfg.Extractor != nil {
		opts = append(opts, tryon.WithExtractor(cfg.Extractor))
	}
	if cfg.SpecCache != nil {
		opts = append(opts, tryon.WithSpecCache(cfg.SpecCache))
	}
	s.tryon = tryon.New(build(TryOnAgent(tools.NewSet(crawler(TryOnCrawlLength)))), opts...)
	return s, nil
}

// ComparePrices finds the product on other retailers.
func (s *Service) ComparePrices(ctx context.Context, url string) (invoke.Outcome[contract.PriceComparisonResult], error) {
	url, err := normalizeURL(url)
	if err != nil {
		return invoke.Outcome[contract.PriceComparisonResult]{}, err
	}
	return invoke.Invoke(ctx, invoke.Request[contract.PriceComparisonResult]{
		Name:     PriceAgentName,
		Runner:   s.price,
		Task:     runner.Task{Prompt: productPrompt(url, "Please find this product on other e-commerce websites and compare prices.")},
		Contract: contract.Price,
		Fallback: func(string) contract.PriceComparisonResult { return fallback.Price(url) },
	}, s.cfg)
}

// ExtractSpecifications extracts the product specifications. Successful
// results are written to the spec cache.
func (s *Service) ExtractSpecifications(ctx context.Context, url string) (invoke.Outcome[contract.ProductSpecification], error) {
	url, err := normalizeURL(url)
	if err != nil {
		return invoke.Outcome[contract.ProductSpecification]{}, err
	}
	out, err := invoke.Invoke(ctx, invoke.Request[contract.ProductSpecification]{
		Name:     SpecificationAgentName,
		Runner:   s.spec,
		Task:     runner.Task{Prompt: productPrompt(url, "Please extract comprehensive product specifications for this fashion product.")},
		Contract: contract.Specification,
		Fallback: func(string) contract.ProductSpecification { return fallback.Specification(url) },
	}, s.cfg)
	if err != nil {
		return out, err
	}
	if s.cache != nil && !out.IsDegraded() {
		if err := s.cache.Set(ctx, url, out.Value); err != nil {
			s.tel.Logger.Warn(ctx, "failed to cache product specifications", "agent", SpecificationAgentName, "err", err)
		}
	}
	return out, nil
}

// AnalyzeReviews summarizes customer reviews. A sentiment distribution
// that does not add up to 100 is logged and kept.
func (s *Service) AnalyzeReviews(ctx context.Context, url string) (invoke.Outcome[contract.ReviewAnalysis], error) {
	url, err := normalizeURL(url)
	if err != nil {
		return invoke.Outcome[contract.ReviewAnalysis]{}, err
	}
	out, err := invoke.Invoke(ctx, invoke.Request[contract.ReviewAnalysis]{
		Name:     ReviewAgentName,
		Runner:   s.review,
		Task:     runner.Task{Prompt: productPrompt(url, "Please analyze customer reviews for this fashion product from multiple sources.")},
		Contract: contract.Review,
		Fallback: fallback.ReviewPlaceholder,
	}, s.cfg)
	if err != nil {
		return out, err
	}
	if total := out.Value.Sentiment.Total(); !out.IsDegraded() && total != 100 {
		s.tel.Logger.Warn(ctx, "sentiment percentages do not add up to 100", "agent", ReviewAgentName, "total", total)
	}
	return out, nil
}

// VirtualTryOn runs the try-on pipeline.
func (s *Service) VirtualTryOn(ctx context.Context, req tryon.Request) (*tryon.Session, error) {
	url, err := normalizeURL(req.ProductURL)
	if err != nil {
		return nil, err
	}
	req.ProductURL = url
	return s.tryon.Run(ctx, req)
}

func normalizeURL(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", ErrEmptyURL
	}
	return url, nil
}

func productPrompt(url, ask string) string {
	return fmt.Sprintf("product_url: %s\n\n%s", url, ask)
}
