// Package coordinator runs the price, review and specification analyses of a
// product concurrently and merges them into a single AnalysisBundle.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/fashnai/fashnai/analysis/contract"
	"github.com/fashnai/fashnai/analysis/fallback"
	"github.com/fashnai/fashnai/runtime/agent/invoke"
	"github.com/fashnai/fashnai/runtime/agent/telemetry"
)

// DefaultBranchTimeout bounds each branch when no timeout is configured.
const DefaultBranchTimeout = 120 * time.Second

// Branch names used in logs, spans and metrics.
const (
	BranchPrice         = "price"
	BranchReview        = "review"
	BranchSpecification = "specification"
)

// ErrEmptyURL is returned when Analyze is called without a product URL.
var ErrEmptyURL = errors.New("product_url is required")

type (
	// Analyzer runs the individual analyses. *agents.Service implements it.
	Analyzer interface {
		ComparePrices(ctx context.Context, url string) (invoke.Outcome[contract.PriceComparisonResult], error)
		AnalyzeReviews(ctx context.Context, url string) (invoke.Outcome[contract.ReviewAnalysis], error)
		ExtractSpecifications(ctx context.Context, url string) (invoke.Outcome[contract.ProductSpecification], error)
	}

	// Coordinator fans a product URL out to the three analyses.
	Coordinator struct {
		analyzer Analyzer
		timeout  time.Duration
		tel      telemetry.Set
	}

	// Option configures a Coordinator.
	Option func(*Coordinator)
)

// WithBranchTimeout sets the per-branch wall-clock limit. Non-positive
// values keep the default.
func WithBranchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTelemetry sets the logger, tracer and metrics.
func WithTelemetry(t telemetry.Set) Option {
	return func(c *Coordinator) { c.tel = t }
}

// New returns a Coordinator dispatching to a.
func New(a Analyzer, opts ...Option) *Coordinator {
	c := &Coordinator{analyzer: a, timeout: DefaultBranchTimeout}
	for _, o := range opts {
		o(c)
	}
	c.tel = c.tel.WithDefaults()
	return c
}

// Analyze runs the three branches concurrently. Branches do not share
// cancellation: each gets its own timeout derived from ctx, and a branch
// that fails or panics is replaced by its placeholder without affecting the
// others. The returned error is non-nil only for an empty URL or when ctx
// itself ends.
func (c *Coordinator) Analyze(ctx context.Context, url string) (contract.AnalysisBundle, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return contract.AnalysisBundle{}, ErrEmptyURL
	}
	if err := ctx.Err(); err != nil {
		return contract.AnalysisBundle{}, err
	}
	ctx, span := c.tel.Tracer.Start(ctx, "coordinator.analyze")
	defer span.End()

	var (
		g      errgroup.Group
		bundle contract.AnalysisBundle
	)
	g.Go(func() error {
		bundle.PriceComparison, bundle.Branches.Price = runBranch(ctx, c, BranchPrice,
			func(ctx context.Context) (invoke.Outcome[contract.PriceComparisonResult], error) {
				return c.analyzer.ComparePrices(ctx, url)
			},
			func(reason string) contract.PriceComparisonResult { return fallback.PricePlaceholder(url, reason) })
		return nil
	})
	g.Go(func() error {
		bundle.ReviewAnalysis, bundle.Branches.Review = runBranch(ctx, c, BranchReview,
			func(ctx context.Context) (invoke.Outcome[contract.ReviewAnalysis], error) {
				return c.analyzer.AnalyzeReviews(ctx, url)
			},
			fallback.ReviewPlaceholder)
		return nil
	})
	g.Go(func() error {
		bundle.Specifications, bundle.Branches.Specification = runBranch(ctx, c, BranchSpecification,
			func(ctx context.Context) (invoke.Outcome[contract.ProductSpecification], error) {
				return c.analyzer.ExtractSpecifications(ctx, url)
			},
			func(reason string) contract.ProductSpecification { return fallback.SpecificationPlaceholder(url, reason) })
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "caller context ended")
		return contract.AnalysisBundle{}, fmt.Errorf("analysis interrupted: %w", err)
	}

	bundle.Status = contract.BundleSuccess
	for _, r := range []contract.BranchReport{bundle.Branches.Price, bundle.Branches.Review, bundle.Branches.Specification} {
		if r.Status == contract.BranchFailed {
			bundle.Status = contract.BundleDegraded
		}
	}
	c.tel.Logger.Info(ctx, "analysis complete", "url", url, "status", string(bundle.Status))
	span.SetStatus(codes.Ok, "")
	return bundle, nil
}

// runBranch executes call under the branch timeout and converts any error or
// panic into the placeholder built by placeholder.
func runBranch[T any](
	ctx context.Context,
	c *Coordinator,
	name string,
	call func(context.Context) (invoke.Outcome[T], error),
	placeholder func(reason string) T,
) (value T, report contract.BranchReport) {
	start := time.Now()
	ctx, span := c.tel.Tracer.Start(ctx, "coordinator.branch."+name)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer func() {
		cancel()
		c.tel.Metrics.RecordTimer(telemetry.MetricBranchDuration, time.Since(start), "branch", name, "status", string(report.Status))
		span.End()
	}()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s branch panicked: %v", name, r)
			value, report = failed(ctx, c, name, err, placeholder)
			span.RecordError(err)
		}
	}()

	out, err := call(ctx)
	if err != nil {
		span.RecordError(err)
		return failed(ctx, c, name, err, placeholder)
	}
	report = contract.BranchReport{Status: contract.BranchOK, Attempts: len(out.Attempts)}
	if out.IsDegraded() {
		report.Status = contract.BranchFallback
		report.Cause = string(out.Cause)
		report.Reason = out.Reason
		span.AddEvent("fallback", "cause", report.Cause)
	}
	return out.Value, report
}

func failed[T any](ctx context.Context, c *Coordinator, name string, err error, placeholder func(string) T) (T, contract.BranchReport) {
	c.tel.Logger.Error(ctx, "analysis branch failed", "branch", name, "err", err)
	return placeholder(err.Error()), contract.BranchReport{Status: contract.BranchFailed, Reason: err.Error()}
}
