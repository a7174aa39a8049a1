package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fashnai/fashnai/analysis/contract"
	"github.com/fashnai/fashnai/analysis/fallback"
	"github.com/fashnai/fashnai/runtime/agent/invoke"
)

const productURL = "https://www.asos.com/asos-design/asos-design-oversized-t-shirt-in-black/prd/1234"

type mockAnalyzer struct{ mock.Mock }

func (m *mockAnalyzer) ComparePrices(ctx context.Context, url string) (invoke.Outcome[contract.PriceComparisonResult], error) {
	args := m.Called(ctx, url)
	return args.Get(0).(invoke.Outcome[contract.PriceComparisonResult]), args.Error(1)
}

func (m *mockAnalyzer) AnalyzeReviews(ctx context.Context, url string) (invoke.Outcome[contract.ReviewAnalysis], error) {
	args := m.Called(ctx, url)
	return args.Get(0).(invoke.Outcome[contract.ReviewAnalysis]), args.Error(1)
}

func (m *mockAnalyzer) ExtractSpecifications(ctx context.Context, url string) (invoke.Outcome[contract.ProductSpecification], error) {
	args := m.Called(ctx, url)
	return args.Get(0).(invoke.Outcome[contract.ProductSpecification]), args.Error(1)
}

var oneAttempt = []invoke.Attempt{{Number: 1, SessionID: "s1", Valid: true}}

func priceOK() invoke.Outcome[contract.PriceComparisonResult] {
	return invoke.Success(contract.PriceComparisonResult{OriginalProductName: "Oversized T-Shirt"}, oneAttempt)
}

func reviewOK() invoke.Outcome[contract.ReviewAnalysis] {
	return invoke.Success(contract.ReviewAnalysis{Summary: "Good"}, oneAttempt)
}

func specOK() invoke.Outcome[contract.ProductSpecification] {
	return invoke.Success(contract.ProductSpecification{ProductName: "Oversized T-Shirt"}, oneAttempt)
}

func TestAnalyzeAllBranchesSucceed(t *testing.T) {
	m := new(mockAnalyzer)
	m.On("ComparePrices", mock.Anything, productURL).Return(priceOK(), nil)
	m.On("AnalyzeReviews", mock.Anything, productURL).Return(reviewOK(), nil)
	m.On("ExtractSpecifications", mock.Anything, productURL).Return(specOK(), nil)

	b, err := New(m).Analyze(context.Background(), " "+productURL+" ")
	require.NoError(t, err)
	m.AssertExpectations(t)

	assert.Equal(t, contract.BundleSuccess, b.Status)
	assert.Equal(t, "Oversized T-Shirt", b.PriceComparison.OriginalProductName)
	assert.Equal(t, "Good", b.ReviewAnalysis.Summary)
	assert.Equal(t, "Oversized T-Shirt", b.Specifications.ProductName)
	for _, r := range []contract.BranchReport{b.Branches.Price, b.Branches.Review, b.Branches.Specification} {
		assert.Equal(t, contract.BranchOK, r.Status)
		assert.Equal(t, 1, r.Attempts)
	}
}

func TestAnalyzeReviewPanicIsIsolated(t *testing.T) {
	m := new(mockAnalyzer)
	m.On("ComparePrices", mock.Anything, productURL).Return(priceOK(), nil)
	m.On("AnalyzeReviews", mock.Anything, productURL).
		Run(func(mock.Arguments) { panic("search quota exceeded") }).
		Return(reviewOK(), nil)
	m.On("ExtractSpecifications", mock.Anything, productURL).Return(specOK(), nil)

	b, err := New(m).Analyze(context.Background(), productURL)
	require.NoError(t, err)

	assert.Equal(t, contract.BundleDegraded, b.Status)
	assert.Equal(t, contract.BranchFailed, b.Branches.Review.Status)
	assert.Contains(t, b.ReviewAnalysis.Summary, "search quota exceeded")
	assert.Equal(t, 0, b.ReviewAnalysis.TotalReviews)
	assert.Equal(t, contract.BranchOK, b.Branches.Price.Status)
	assert.Equal(t, "Oversized T-Shirt", b.PriceComparison.OriginalProductName)
	assert.Equal(t, contract.BranchOK, b.Branches.Specification.Status)
}

func TestAnalyzeBranchErrorUsesPlaceholder(t *testing.T) {
	m := new(mockAnalyzer)
	m.On("ComparePrices", mock.Anything, productURL).
		Return(invoke.Outcome[contract.PriceComparisonResult]{}, errors.New("boom"))
	m.On("AnalyzeReviews", mock.Anything, productURL).Return(reviewOK(), nil)
	m.On("ExtractSpecifications", mock.Anything, productURL).
		Return(invoke.Outcome[contract.ProductSpecification]{}, invoke.ErrInvalidFallback)

	b, err := New(m).Analyze(context.Background(), productURL)
	require.NoError(t, err)

	assert.Equal(t, contract.BundleDegraded, b.Status)
	assert.Equal(t, fallback.PricePlaceholder(productURL, "boom"), b.PriceComparison)
	assert.Equal(t, "boom", b.Branches.Price.Reason)
	assert.Equal(t, contract.BranchFailed, b.Branches.Specification.Status)
	assert.Equal(t, fallback.ExtractionMethodNone, b.Specifications.AdditionalSpecs[fallback.ExtractionMethodKey])
}

func TestAnalyzeFallbackKeepsBundleSuccessful(t *testing.T) {
	m := new(mockAnalyzer)
	fb := fallback.Price(productURL)
	m.On("ComparePrices", mock.Anything, productURL).
		Return(invoke.Degraded(fb, invoke.CauseMalformedOutput, "price failed after 3 attempt(s)", make([]invoke.Attempt, 3)), nil)
	m.On("AnalyzeReviews", mock.Anything, productURL).Return(reviewOK(), nil)
	m.On("ExtractSpecifications", mock.Anything, productURL).Return(specOK(), nil)

	b, err := New(m).Analyze(context.Background(), productURL)
	require.NoError(t, err)

	assert.Equal(t, contract.BundleSuccess, b.Status)
	assert.Equal(t, fb, b.PriceComparison)
	assert.Equal(t, contract.BranchReport{
		Status:   contract.BranchFallback,
		Cause:    string(invoke.CauseMalformedOutput),
		Reason:   "price failed after 3 attempt(s)",
		Attempts: 3,
	}, b.Branches.Price)
}

func TestAnalyzeBranchTimeoutIsPerBranch(t *testing.T) {
	m := new(mockAnalyzer)
	m.On("ComparePrices", mock.Anything, productURL).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return(invoke.Degraded(fallback.Price(productURL), invoke.CauseTimeout, "deadline exceeded", nil), nil)
	m.On("AnalyzeReviews", mock.Anything, productURL).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, ok := ctx.Deadline()
			assert.True(t, ok)
		}).
		Return(reviewOK(), nil)
	m.On("ExtractSpecifications", mock.Anything, productURL).Return(specOK(), nil)

	start := time.Now()
	b, err := New(m, WithBranchTimeout(50*time.Millisecond)).Analyze(context.Background(), productURL)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, contract.BranchFallback, b.Branches.Price.Status)
	assert.Equal(t, string(invoke.CauseTimeout), b.Branches.Price.Cause)
	assert.Equal(t, contract.BranchOK, b.Branches.Review.Status)
	assert.Equal(t, contract.BundleSuccess, b.Status)
}

func TestAnalyzeRejectsEmptyURL(t *testing.T) {
	m := new(mockAnalyzer)
	_, err := New(m).Analyze(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyURL)
	m.AssertNotCalled(t, "ComparePrices", mock.Anything, mock.Anything)
}

func TestAnalyzeCanceledCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := new(mockAnalyzer)
	_, err := New(m).Analyze(ctx, productURL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeCanceledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := new(mockAnalyzer)
	m.On("ComparePrices", mock.Anything, productURL).
		Run(func(mock.Arguments) { cancel() }).
		Return(priceOK(), nil)
	m.On("AnalyzeReviews", mock.Anything, productURL).Return(reviewOK(), nil)
	m.On("ExtractSpecifications", mock.Anything, productURL).Return(specOK(), nil)

	_, err := New(m).Analyze(ctx, productURL)
	assert.ErrorIs(t, err, context.Canceled)
}
