package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/fashnai/fashnai/runtime/agent/model"
)

type fakeClient struct {
	completeErr   error
	completeCalls int
}

func (f *fakeClient) Complete(_ context.Context, _ model.Request) (model.Response, error) {
	f.completeCalls++
	return model.Response{}, f.completeErr
}

func TestAdaptiveRateLimiter_BackoffOnRateLimited(t *testing.T) {
	limiter := NewAdaptiveRateLimiter(6000, 6000)
	var backoffs []float64
	limiter.OnBackoff(func(rpm float64) { backoffs = append(backoffs, rpm) })

	rateErr := model.NewProviderError("anthropic", "messages.new", 429, model.ProviderErrorKindRateLimited, "slow down", nil)
	client := &fakeClient{completeErr: rateErr}
	wrapped := limiter.Middleware()(client)

	_, err := wrapped.Complete(context.Background(), model.Request{Messages: []*model.Message{model.UserText("hello")}})
	if !errors.Is(err, model.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if got := limiter.CurrentRPM(); got != 3000 {
		t.Fatalf("expected budget to halve to 3000, got %v", got)
	}
	if len(backoffs) != 1 || backoffs[0] != 3000 {
		t.Fatalf("expected one backoff callback with 3000, got %v", backoffs)
	}
	if limiter.limiter.Limit() != rate.Limit(3000.0/60.0) {
		t.Fatalf("expected limiter rate to follow budget, got %v", limiter.limiter.Limit())
	}
}

func TestAdaptiveRateLimiter_FloorAndRecovery(t *testing.T) {
	limiter := NewAdaptiveRateLimiter(600, 1200)
	for i := 0; i < 10; i++ {
		limiter.observe(model.ErrRateLimited)
	}
	if got := limiter.CurrentRPM(); got != 120 {
		t.Fatalf("expected floor of 120, got %v", got)
	}
	limiter.observe(nil)
	if got := limiter.CurrentRPM(); got != 180 {
		t.Fatalf("expected additive recovery to 180, got %v", got)
	}
	limiter.observe(errors.New("other failure"))
	if got := limiter.CurrentRPM(); got != 180 {
		t.Fatalf("non rate-limit errors must not change the budget, got %v", got)
	}
}

func TestAdaptiveRateLimiter_RecoveryCapped(t *testing.T) {
	limiter := NewAdaptiveRateLimiter(60, 0)
	limiter.observe(nil)
	if got := limiter.CurrentRPM(); got != 60 {
		t.Fatalf("expected budget capped at 60, got %v", got)
	}
}

func TestAdaptiveRateLimiter_WaitHonorsContext(t *testing.T) {
	limiter := NewAdaptiveRateLimiter(1, 1)
	client := &fakeClient{}
	wrapped := limiter.Middleware()(client)

	if _, err := wrapped.Complete(context.Background(), model.Request{}); err != nil {
		t.Fatalf("first call should use the burst: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := wrapped.Complete(ctx, model.Request{}); err == nil {
		t.Fatal("expected wait to fail once the context deadline is shorter than the refill")
	}
	if client.completeCalls != 1 {
		t.Fatalf("expected a single delegated call, got %d", client.completeCalls)
	}
}

func TestMiddlewareNilClient(t *testing.T) {
	if NewAdaptiveRateLimiter(5, 5).Middleware()(nil) != nil {
		t.Fatal("expected nil client to stay nil")
	}
}
