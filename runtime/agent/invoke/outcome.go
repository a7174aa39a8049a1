package invoke

type (
	// Status is the top-level outcome of an invocation.
	Status string

	// Cause explains why an invocation degraded to its fallback.
	Cause string

	// Attempt records one model run. Attempts are kept for diagnostics only
	// and never persisted.
	Attempt struct {
		// Number is the 1-based attempt index.
		Number int
		// SessionID is the fresh session identifier used for the attempt.
		SessionID string
		// Raw is the unvalidated model output, empty when the run failed.
		Raw string
		// Valid reports whether Raw satisfied the result contract.
		Valid bool
		// Err is the validation or provider error of a failed attempt.
		Err error
	}

	// Outcome is the result of Invoke: either a validated model result
	// (StatusSuccess) or a fallback value (StatusDegraded) with the reason.
	Outcome[T any] struct {
		Status   Status
		Value    T
		Reason   string
		Cause    Cause
		Attempts []Attempt
	}
)

const (
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded"
)

const (
	// CauseMalformedOutput means every attempt produced output that failed
	// validation, or the last failure was a validation failure.
	CauseMalformedOutput Cause = "malformed_output"
	// CauseServiceException means the last failed attempt was a provider or
	// tool error.
	CauseServiceException Cause = "service_exception"
	// CauseTimeout means the context deadline expired before a valid result
	// was obtained.
	CauseTimeout Cause = "timeout"
	// CauseCanceled means the caller canceled the context.
	CauseCanceled Cause = "canceled"
)

// Success returns a successful outcome.
func Success[T any](v T, attempts []Attempt) Outcome[T] {
	return Outcome[T]{Status: StatusSuccess, Value: v, Attempts: attempts}
}

// Degraded returns a fallback outcome.
func Degraded[T any](v T, cause Cause, reason string, attempts []Attempt) Outcome[T] {
	return Outcome[T]{Status: StatusDegraded, Value: v, Cause: cause, Reason: reason, Attempts: attempts}
}

// IsDegraded reports whether the outcome carries a fallback value.
func (o Outcome[T]) IsDegraded() bool { return o.Status == StatusDegraded }
