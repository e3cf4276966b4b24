package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"storyreel/internal/logging"
	"storyreel/internal/services"
)

// State mirrors the gobreaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

// Settings configure a Breaker.
type Settings struct {
	Name             string
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
	// HalfOpenMaxCalls bounds concurrent half-open trials. gobreaker closes
	// only after MaxRequests consecutive successes, so anything above 1 is
	// clamped to keep "first successful trial closes" intact.
	HalfOpenMaxCalls uint32
}

// errAbandonedTrial marks a half-open trial that ended in cancellation. It is
// reported to gobreaker as a failure so the trial cannot close the circuit.
var errAbandonedTrial = errors.New("half-open trial abandoned")

// Snapshot is a point-in-time view of the breaker.
type Snapshot struct {
	Name                string
	State               State
	ConsecutiveFailures uint32
	LastFailure         time.Time
	OpenedAt            time.Time
	HalfOpenTrials      uint32
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger

	threshold uint32

	mu          sync.Mutex
	consecutive uint32
	lastFailure time.Time
	openedAt    time.Time
}

// New constructs a Breaker. Zero thresholds fall back to 5 failures, a 30s
// recovery timeout and a single half-open trial.
func New(settings Settings, logger *slog.Logger) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.RecoveryTimeout <= 0 {
		settings.RecoveryTimeout = 30 * time.Second
	}
	b := &Breaker{
		name:      settings.Name,
		threshold: settings.FailureThreshold,
		logger:    logging.NewComponentLogger(logger, "breaker").With(logging.String("breaker", settings.Name)),
	}
	if settings.HalfOpenMaxCalls > 1 {
		b.logger.Warn("half-open trials limited to one",
			logging.Int("requested", int(settings.HalfOpenMaxCalls)),
			logging.String(logging.FieldEventType, "breaker_settings_clamped"),
		)
	}
	// The failure streak is tracked here rather than in gobreaker.Counts so a
	// cancelled call leaves it untouched.
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.RecoveryTimeout,
		ReadyToTrip: func(gobreaker.Counts) bool {
			return b.failures() >= b.threshold
		},
		OnStateChange: b.onStateChange,
		IsSuccessful: func(err error) bool {
			return err == nil || (isCancellation(err) && !errors.Is(err, errAbandonedTrial))
		},
	})
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call is the value-returning form of Breaker.Execute.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	var callErr error
	result, err := b.cb.Execute(func() (interface{}, error) {
		trial := b.cb.State() == gobreaker.StateHalfOpen
		var value T
		value, callErr = fn(ctx)
		switch {
		case callErr == nil:
			b.recordSuccess()
		case isCancellation(callErr):
			if trial {
				return value, fmt.Errorf("%w: %w", errAbandonedTrial, callErr)
			}
		default:
			b.recordFailure()
		}
		return value, callErr
	})
	if errors.Is(err, errAbandonedTrial) {
		return zero, callErr
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.WithContext(ctx, b.logger).Debug("call rejected by open breaker",
				logging.String(logging.FieldEventType, "breaker_rejected"),
				logging.String("state", string(b.State())),
			)
			return zero, services.Wrap(services.ErrBreakerOpen, "", b.name, "collaborator unavailable", err)
		}
		return zero, err
	}
	value, _ := result.(T)
	return value, nil
}

// State returns the current state. Reading it may move an expired Open
// breaker to HalfOpen.
func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

// Snapshot reports state and counters.
func (b *Breaker) Snapshot() Snapshot {
	state := b.State()
	counts := b.cb.Counts()
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		Name:                b.name,
		State:               state,
		ConsecutiveFailures: b.consecutive,
		LastFailure:         b.lastFailure,
		OpenedAt:            b.openedAt,
	}
	if state == StateHalfOpen {
		snap.HalfOpenTrials = counts.Requests
	}
	return snap
}

func (b *Breaker) failures() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutive
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	b.consecutive++
	b.lastFailure = time.Now()
	b.mu.Unlock()
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	b.consecutive = 0
	b.mu.Unlock()
}

func (b *Breaker) onStateChange(_ string, from, to gobreaker.State) {
	if to == gobreaker.StateOpen {
		b.mu.Lock()
		b.openedAt = time.Now()
		b.mu.Unlock()
	}
	level := slog.LevelInfo
	if to == gobreaker.StateOpen {
		level = slog.LevelWarn
	}
	b.logger.Log(context.Background(), level, "breaker state changed",
		logging.String("from", string(fromGobreaker(from))),
		logging.String("to", string(fromGobreaker(to))),
		logging.String(logging.FieldEventType, "breaker_state_change"),
	)
}

// isCancellation reports caller-side cancellation, which counts as neither
// success nor failure.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, services.ErrCancelled)
}

func fromGobreaker(state gobreaker.State) State {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}
