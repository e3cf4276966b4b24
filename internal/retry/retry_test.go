package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/internal/logging"
	"storyreel/internal/retry"
	"storyreel/internal/services"
)

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newHandler(t *testing.T, policy retry.Policy, sleeps *recordedSleeps) *retry.Handler {
	t.Helper()
	return retry.New(policy, retry.Markers(services.ErrTransient), logging.NewNop(),
		retry.WithSleep(sleeps.sleep),
		retry.WithRandom(func() float64 { return 0.5 }),
	)
}

func TestExecuteSucceedsOnAttemptK(t *testing.T) {
	policy := retry.Policy{MaxRetries: 4, BaseDelay: 10 * time.Millisecond, BackoffFactor: 2}
	for k := 1; k <= policy.MaxRetries+1; k++ {
		sleeps := &recordedSleeps{}
		h := newHandler(t, policy, sleeps)
		calls := 0
		value, err := retry.Execute(context.Background(), h, "voice", func(context.Context) (string, error) {
			calls++
			if calls < k {
				return "", services.Wrap(services.ErrTransient, "voice", "generate", "flaky", nil)
			}
			return "ok", nil
		})
		require.NoError(t, err, "k=%d", k)
		assert.Equal(t, "ok", value)
		assert.Equal(t, k, calls, "function should be invoked exactly k times")
		assert.Len(t, sleeps.delays, k-1)
	}
}

func TestExecuteExhaustsRetries(t *testing.T) {
	sleeps := &recordedSleeps{}
	h := newHandler(t, retry.Policy{MaxRetries: 2, BaseDelay: 10 * time.Millisecond, BackoffFactor: 2}, sleeps)
	underlying := services.Wrap(services.ErrTransient, "visual", "generate", "down", nil)
	calls := 0
	err := h.Do(context.Background(), "visual", func(context.Context) error {
		calls++
		return underlying
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, services.ErrRetryExhausted)
	assert.ErrorIs(t, err, services.ErrTransient)

	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, underlying, exhausted.Last)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, sleeps.delays)
}

func TestNonRetryableErrorPropagatesImmediately(t *testing.T) {
	sleeps := &recordedSleeps{}
	h := newHandler(t, retry.Policy{MaxRetries: 5, BaseDelay: time.Millisecond}, sleeps)
	fatal := services.Wrap(services.ErrBreakerOpen, "ui", "", "open", nil)
	calls := 0
	err := h.Do(context.Background(), "ui", func(context.Context) error {
		calls++
		return fatal
	})
	assert.Equal(t, 1, calls)
	assert.Same(t, fatal, err)
	assert.NotErrorIs(t, err, services.ErrRetryExhausted)
	assert.Empty(t, sleeps.delays)
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := retry.New(retry.Policy{MaxRetries: 5, BaseDelay: time.Hour}, retry.Markers(services.ErrTransient), logging.NewNop())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- h.Do(ctx, "voice", func(context.Context) error {
			calls++
			return services.ErrTransient
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestPolicyDelay(t *testing.T) {
	p := retry.Policy{BaseDelay: 100 * time.Millisecond, BackoffFactor: 2, MaxDelay: 500 * time.Millisecond, Jitter: retry.DefaultJitter}

	assert.Equal(t, 100*time.Millisecond, p.BaseBackoff(0))
	assert.Equal(t, 400*time.Millisecond, p.BaseBackoff(2))
	assert.Equal(t, 500*time.Millisecond, p.BaseBackoff(5), "capped at max delay")

	assert.Equal(t, 100*time.Millisecond, p.Delay(0, 0.5))
	assert.Equal(t, 75*time.Millisecond, p.Delay(0, 0))
	for i := 0; i < 6; i++ {
		for _, r := range []float64{0, 0.25, 0.5, 0.99} {
			d := p.Delay(i, r)
			base := p.BaseBackoff(i)
			assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.75))
			assert.LessOrEqual(t, d, time.Duration(float64(base)*1.25))
		}
	}
}

func TestMarkersClassifier(t *testing.T) {
	classify := retry.Markers(services.ErrTransient, services.ErrTimeout)
	assert.True(t, classify(services.Wrap(services.ErrTimeout, "", "", "", nil)))
	assert.False(t, classify(errors.New("other")))
	assert.False(t, classify(nil))
}
