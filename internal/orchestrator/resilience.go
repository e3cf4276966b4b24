package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"storyreel/internal/breaker"
	"storyreel/internal/config"
	"storyreel/internal/generator"
	"storyreel/internal/model"
	"storyreel/internal/resources"
	"storyreel/internal/retry"
	"storyreel/internal/services"
)

// guard is the retry handler, breaker, and lease request protecting one
// external boundary.
type guard struct {
	retry   *retry.Handler
	breaker *breaker.Breaker
	request resources.Request
}

func newRetryHandler(cfg *config.Config, logger *slog.Logger, opts ...retry.Option) *retry.Handler {
	markers := make([]error, 0, len(cfg.Retry.Retryable))
	for _, name := range cfg.Retry.Retryable {
		if marker, ok := services.MarkerForKind(name); ok {
			markers = append(markers, marker)
		}
	}
	policy := retry.Policy{
		MaxRetries:    cfg.Retry.MaxRetries,
		BaseDelay:     time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		BackoffFactor: cfg.Retry.BackoffFactor,
		MaxDelay:      time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		Jitter:        retry.DefaultJitter,
	}
	return retry.New(policy, retry.Markers(markers...), logger, opts...)
}

func newBreaker(cfg *config.Config, name string, logger *slog.Logger) *breaker.Breaker {
	return breaker.New(breaker.Settings{
		Name:             name,
		FailureThreshold: uint32(max(cfg.Breaker.FailureThreshold, 0)),
		RecoveryTimeout:  time.Duration(cfg.Breaker.RecoveryTimeoutSeconds) * time.Second,
		HalfOpenMaxCalls: uint32(max(cfg.Breaker.HalfOpenMaxCalls, 0)),
	}, logger)
}

func kindRequest(cfg *config.Config, kind model.ArtifactKind) resources.Request {
	switch kind {
	case model.KindVoice:
		return requestFor(cfg.Resources.Voice)
	case model.KindVisual:
		return requestFor(cfg.Resources.Visual)
	default:
		return requestFor(cfg.Resources.UI)
	}
}

// generate runs one protected generator call: each attempt holds a lease,
// passes the breaker, and runs under the per-call deadline.
func (o *Orchestrator) generate(ctx context.Context, g guard, gen generator.Generator, scene model.Scene, settings model.Settings, outDir string) (string, error) {
	operation := string(gen.Kind()) + " scene " + scene.Key
	return retry.Execute(ctx, g.retry, operation, func(ctx context.Context) (string, error) {
		var path string
		err := o.resources.Do(ctx, g.request, func(ctx context.Context) error {
			var callErr error
			path, callErr = breaker.Call(ctx, g.breaker, func(ctx context.Context) (string, error) {
				return o.callWithDeadline(ctx, gen, scene, settings, outDir)
			})
			return callErr
		})
		return path, err
	})
}

func (o *Orchestrator) callWithDeadline(ctx context.Context, gen generator.Generator, scene model.Scene, settings model.Settings, outDir string) (string, error) {
	callCtx := ctx
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}
	path, err := gen.Generate(callCtx, scene, settings, outDir)
	if err == nil {
		return path, nil
	}
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", services.Wrap(services.ErrTimeout, string(gen.Kind()), "generate", "scene "+scene.Key+" exceeded "+o.callTimeout.String(), err)
	}
	return "", err
}
