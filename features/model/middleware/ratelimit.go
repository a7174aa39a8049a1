// Package middleware provides model.Client middlewares: adaptive rate
// limiting and API key rotation.
package middleware

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/fashnai/fashnai/runtime/agent/model"
)

type (
	// AdaptiveRateLimiter applies an AIMD-style adaptive request budget on top
	// of a model.Client. Callers block until capacity is available; the
	// requests-per-minute budget is halved when the provider reports rate
	// limiting and recovers additively after successful calls.
	AdaptiveRateLimiter struct {
		mu sync.Mutex

		limiter *rate.Limiter

		currentRPM float64
		minRPM     float64
		maxRPM     float64

		recoveryRate float64

		onBackoff func(newRPM float64)
	}

	limitedClient struct {
		next    model.Client
		limiter *AdaptiveRateLimiter
	}
)

// DefaultRequestsPerMinute is the per-credential budget used when none is
// configured.
const DefaultRequestsPerMinute = 5

// NewAdaptiveRateLimiter constructs a limiter starting at rpm requests per
// minute and never exceeding maxRPM. maxRPM below rpm is clamped to rpm.
func NewAdaptiveRateLimiter(rpm, maxRPM float64) *AdaptiveRateLimiter {
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	if maxRPM < rpm {
		maxRPM = rpm
	}
	minRPM := rpm * 0.2
	if minRPM < 1 {
		minRPM = 1
	}
	recovery := rpm * 0.1
	if recovery < 0.5 {
		recovery = 0.5
	}
	return &AdaptiveRateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(rpm/60.0), burst(rpm)),
		currentRPM:   rpm,
		minRPM:       minRPM,
		maxRPM:       maxRPM,
		recoveryRate: recovery,
	}
}

// OnBackoff registers a callback invoked with the new budget after a
// backoff.
func (l *AdaptiveRateLimiter) OnBackoff(fn func(newRPM float64)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onBackoff = fn
}

// CurrentRPM returns the current requests-per-minute budget.
func (l *AdaptiveRateLimiter) CurrentRPM() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentRPM
}

// Middleware returns a model.Client middleware enforcing the limit.
func (l *AdaptiveRateLimiter) Middleware() func(model.Client) model.Client {
	return func(next model.Client) model.Client {
		if next == nil {
			return nil
		}
		return &limitedClient{next: next, limiter: l}
	}
}

// Complete waits for capacity before delegating to the underlying client.
func (c *limitedClient) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	if err := c.limiter.limiter.Wait(ctx); err != nil {
		return model.Response{}, err
	}
	resp, err := c.next.Complete(ctx, req)
	c.limiter.observe(err)
	return resp, err
}

func (l *AdaptiveRateLimiter) observe(err error) {
	if err == nil {
		l.adjust(l.recoveryRate, false)
		return
	}
	if errors.Is(err, model.ErrRateLimited) {
		l.adjust(0, true)
	}
}

func (l *AdaptiveRateLimiter) adjust(add float64, halve bool) {
	l.mu.Lock()
	newRPM := l.currentRPM + add
	if halve {
		newRPM = l.currentRPM * 0.5
	}
	newRPM = max(l.minRPM, min(newRPM, l.maxRPM))
	if newRPM == l.currentRPM {
		l.mu.Unlock()
		return
	}
	l.currentRPM = newRPM
	l.limiter.SetLimit(rate.Limit(newRPM / 60.0))
	l.limiter.SetBurst(burst(newRPM))
	cb := l.onBackoff
	l.mu.Unlock()

	if halve && cb != nil {
		cb(newRPM)
	}
}

func burst(rpm float64) int {
	b := int(rpm / 5)
	if b < 1 {
		return 1
	}
	return b
}
