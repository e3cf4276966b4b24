package media_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"storyreel/internal/breaker"
	"storyreel/internal/media"
	"storyreel/internal/model"
	"storyreel/internal/retry"
	"storyreel/internal/services"
)

type flakyOps struct {
	media.Operations
	failures int
	calls    int
}

func (f *flakyOps) Mux(context.Context, string, string, string) error {
	f.calls++
	if f.calls <= f.failures {
		return services.Wrap(services.ErrExternalTool, "", "mux", "flaky", nil)
	}
	return nil
}

func (f *flakyOps) Probe(context.Context, string) (time.Duration, error) {
	f.calls++
	return 23 * time.Second, nil
}

func (f *flakyOps) Concat(context.Context, model.ArtifactKind, []string, string) error {
	f.calls++
	return services.Wrap(services.ErrExternalTool, "", "concat", "down", nil)
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestGuardedRetriesTransientFailures(t *testing.T) {
	ops := &flakyOps{failures: 2}
	r := retry.New(retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond, BackoffFactor: 2, MaxDelay: 10 * time.Millisecond},
		retry.Markers(services.ErrExternalTool), nil, retry.WithSleep(noSleep))
	g := media.NewGuarded(ops, r, breaker.New(breaker.Settings{Name: "media", FailureThreshold: 10}, nil))

	if err := g.Mux(context.Background(), "v", "a", "out"); err != nil {
		t.Fatalf("Mux returned error: %v", err)
	}
	if ops.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", ops.calls)
	}

	d, err := g.Probe(context.Background(), "out")
	if err != nil || d != 23*time.Second {
		t.Fatalf("Probe = %v, %v", d, err)
	}
}

func TestGuardedStopsRetryingWhenBreakerOpens(t *testing.T) {
	ops := &flakyOps{}
	r := retry.New(retry.Policy{MaxRetries: 5, BaseDelay: time.Millisecond, BackoffFactor: 1, MaxDelay: time.Millisecond},
		retry.Markers(services.ErrExternalTool), nil, retry.WithSleep(noSleep))
	b := breaker.New(breaker.Settings{Name: "media", FailureThreshold: 2, RecoveryTimeout: time.Hour}, nil)
	g := media.NewGuarded(ops, r, b)

	err := g.Concat(context.Background(), model.KindVoice, []string{"a"}, "out")
	if !errors.Is(err, services.ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}
	if ops.calls != 2 {
		t.Fatalf("expected breaker to stop calls after threshold, got %d", ops.calls)
	}
	if g.Breaker().State() != breaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", g.Breaker().State())
	}
}
