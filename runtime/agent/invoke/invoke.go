// Package invoke runs an agent until its output satisfies a result contract,
// retrying with a fresh session each time and substituting a deterministic
// fallback once the retry budget is spent.
package invoke

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/fashnai/fashnai/runtime/agent/runner"
	"github.com/fashnai/fashnai/runtime/agent/telemetry"
)

type (
	// Runner executes a single agent run.
	Runner interface {
		Run(ctx context.Context, sessionID string, task runner.Task) (runner.Result, error)
	}

	// Contract parses raw model output into T and validates values of T.
	Contract[T any] interface {
		Parse(raw string) (T, error)
		Validate(v T) error
	}

	// Request describes one invocation.
	Request[T any] struct {
		// Name labels logs, spans and metrics (for example "price").
		Name string
		// Runner executes the agent.
		Runner Runner
		// Task is passed unchanged to every attempt.
		Task runner.Task
		// Contract validates the model output.
		Contract Contract[T]
		// Fallback synthesizes the degraded result. It receives the failure
		// reason and is called at most once.
		Fallback func(reason string) T
	}

	// Config configures the retry loop.
	Config struct {
		// MaxRetries is the number of attempts made before falling back.
		// Values below 1 are treated as 1.
		MaxRetries int
		// NewSessionID generates a session identifier per attempt.
		NewSessionID func() string
		// Telemetry receives logs, spans and metrics.
		Telemetry telemetry.Set
	}
)

// DefaultMaxRetries is the attempt budget used when none is configured.
const DefaultMaxRetries = 3

var (
	// ErrInvalidFallback is returned when the fallback value does not satisfy
	// the result contract.
	ErrInvalidFallback = errors.New("invoke: fallback result violates contract")
	// ErrInvalidRequest is returned when the request is missing a runner,
	// contract or fallback.
	ErrInvalidRequest = errors.New("invoke: runner, contract and fallback are required")
)

// DefaultConfig returns the default configuration: three attempts and UUID
// session identifiers.
func DefaultConfig() Config {
	return Config{MaxRetries: DefaultMaxRetries, NewSessionID: uuid.NewString}
}

// Invoke runs req.Runner up to cfg.MaxRetries times. Attempts are strictly
// sequential, each with a fresh session identifier, and there is no delay
// between them. The first output that satisfies the contract is returned as
// a success. When every attempt fails, or the context ends, the fallback is
// called exactly once and returned as a degraded outcome. The returned error
// is non-nil only for an invalid request or a fallback that violates the
// contract.
func Invoke[T any](ctx context.Context, req Request[T], cfg Config) (Outcome[T], error) {
	if req.Runner == nil || req.Contract == nil || req.Fallback == nil {
		return Outcome[T]{}, ErrInvalidRequest
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.NewSessionID == nil {
		cfg.NewSessionID = uuid.NewString
	}
	tel := cfg.Telemetry.WithDefaults()

	ctx, span := tel.Tracer.Start(ctx, "invoke."+req.Name)
	defer span.End()

	attempts := make([]Attempt, 0, cfg.MaxRetries)
	var (
		lastErr error
		cause   = CauseMalformedOutput
	)
	for n := 1; n <= cfg.MaxRetries; n++ {
		if err := ctx.Err(); err != nil {
			lastErr, cause = err, contextCause(err)
			break
		}
		a := Attempt{Number: n, SessionID: cfg.NewSessionID()}
		tel.Metrics.IncCounter(telemetry.MetricInvokeAttempts, 1, "agent", req.Name)

		res, err := req.Runner.Run(ctx, a.SessionID, req.Task)
		if err != nil {
			a.Err = err
			attempts = append(attempts, a)
			lastErr = err
			cause = CauseServiceException
			if cerr := ctx.Err(); cerr != nil {
				cause = contextCause(cerr)
			}
			tel.Logger.Warn(ctx, "agent run failed", "agent", req.Name, "attempt", n, "max_attempts", cfg.MaxRetries, "session_id", a.SessionID, "err", err)
			if cause == CauseTimeout || cause == CauseCanceled {
				break
			}
			continue
		}

		a.Raw = res.Text
		v, err := req.Contract.Parse(res.Text)
		if err != nil {
			a.Err = err
			attempts = append(attempts, a)
			lastErr = err
			cause = CauseMalformedOutput
			tel.Logger.Warn(ctx, "agent output failed validation", "agent", req.Name, "attempt", n, "max_attempts", cfg.MaxRetries, "session_id", a.SessionID, "err", err)
			continue
		}
		a.Valid = true
		attempts = append(attempts, a)
		tel.Logger.Debug(ctx, "agent output validated", "agent", req.Name, "attempt", n, "session_id", a.SessionID, "tool_calls", res.ToolCalls)
		span.SetStatus(codes.Ok, "")
		return Success(v, attempts), nil
	}

	reason := fmt.Sprintf("%s failed after %d attempt(s): %v", req.Name, len(attempts), lastErr)
	tel.Logger.Warn(ctx, "using fallback result", "agent", req.Name, "cause", string(cause), "attempts", len(attempts), "err", lastErr)
	tel.Metrics.IncCounter(telemetry.MetricInvokeFallbacks, 1, "agent", req.Name, "cause", string(cause))
	span.AddEvent("fallback", "cause", string(cause), "attempts", len(attempts))

	fb := req.Fallback(reason)
	if err := req.Contract.Validate(fb); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid fallback")
		return Outcome[T]{}, fmt.Errorf("%w: %s: %v", ErrInvalidFallback, req.Name, err)
	}
	return Degraded(fb, cause, reason, attempts), nil
}

func contextCause(err error) Cause {
	if errors.Is(err, context.Canceled) {
		return CauseCanceled
	}
	return CauseTimeout
}
