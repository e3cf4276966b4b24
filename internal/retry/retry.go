package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"storyreel/internal/logging"
	"storyreel/internal/services"
)

// DefaultJitter is the maximum fraction a delay is moved up or down.
const DefaultJitter = 0.25

// Policy controls attempt count and delay growth.
type Policy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
	Jitter        float64
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// BaseBackoff returns min(base * factor^retry, maxDelay) without jitter.
// retry is zero for the delay after the first failed attempt.
func (p Policy) BaseBackoff(retry int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	if retry < 0 {
		retry = 0
	}
	delay := float64(p.BaseDelay) * math.Pow(factor, float64(retry))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// Delay applies jitter to BaseBackoff. r must be in [0, 1); 0.5 yields the
// un-jittered value.
func (p Policy) Delay(retry int, r float64) time.Duration {
	base := p.BaseBackoff(retry)
	jitter := p.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	offset := float64(base) * jitter * (2*r - 1)
	delay := time.Duration(float64(base) + offset)
	if delay < 0 {
		return 0
	}
	return delay
}

// Classifier decides whether an error is worth another attempt.
type Classifier func(error) bool

// Markers returns a Classifier accepting errors matching any marker.
func Markers(markers ...error) Classifier {
	return func(err error) bool {
		for _, marker := range markers {
			if marker != nil && errors.Is(err, marker) {
				return true
			}
		}
		return false
	}
}

// ExhaustedError reports that every attempt failed.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempts: %v", services.ErrRetryExhausted, e.Operation, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{services.ErrRetryExhausted, e.Last}
}

// Handler executes operations under a Policy.
type Handler struct {
	policy    Policy
	retryable Classifier
	logger    *slog.Logger
	sleep     func(context.Context, time.Duration) error
	random    func() float64
}

// Option customizes a Handler.
type Option func(*Handler)

// WithSleep replaces the context-aware sleep (tests).
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(h *Handler) {
		if fn != nil {
			h.sleep = fn
		}
	}
}

// WithRandom replaces the jitter source; fn must return values in [0, 1).
func WithRandom(fn func() float64) Option {
	return func(h *Handler) {
		if fn != nil {
			h.random = fn
		}
	}
}

// New constructs a Handler. A nil classifier retries nothing.
func New(policy Policy, retryable Classifier, logger *slog.Logger, opts ...Option) *Handler {
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	h := &Handler{
		policy:    policy,
		retryable: retryable,
		logger:    logging.NewComponentLogger(logger, "retry"),
		sleep:     sleepWithContext,
		random:    rand.Float64,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Policy returns the handler's policy.
func (h *Handler) Policy() Policy {
	return h.policy
}

// WithPolicy returns a copy of the handler using policy.
func (h *Handler) WithPolicy(policy Policy) *Handler {
	clone := *h
	clone.policy = policy
	return &clone
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// policy's attempts are used up.
func (h *Handler) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	_, err := Execute(ctx, h, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Execute is the value-returning form of Handler.Do.
func Execute[T any](ctx context.Context, h *Handler, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := h.policy.Attempts()
	logger := logging.WithContext(ctx, h.logger)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry",
					logging.String("operation", operation),
					logging.Int("attempt", attempt),
					logging.String(logging.FieldEventType, "retry_recovered"),
				)
			}
			return value, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if !h.retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		delay := h.policy.Delay(attempt-1, h.random())
		logger.Warn("operation failed; retrying",
			logging.String("operation", operation),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "retry_scheduled"),
		)
		if err := h.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	logger.Warn("operation retries exhausted",
		logging.String("operation", operation),
		logging.Int("attempts", attempts),
		logging.Error(lastErr),
		logging.String(logging.FieldEventType, "retry_exhausted"),
		logging.String(logging.FieldErrorHint, "check the collaborator named in the operation"),
	)
	return zero, &ExhaustedError{Operation: operation, Attempts: attempts, Last: lastErr}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
