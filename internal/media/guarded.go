package media

import (
	"context"
	"time"

	"storyreel/internal/breaker"
	"storyreel/internal/model"
	"storyreel/internal/retry"
)

// Guarded routes every operation through a retry handler and a circuit
// breaker. Retries wrap the breaker so an open breaker stops retrying.
type Guarded struct {
	next    Operations
	retry   *retry.Handler
	breaker *breaker.Breaker
}

var _ Operations = (*Guarded)(nil)

// NewGuarded wraps next. Nil guards are replaced by pass-through defaults.
func NewGuarded(next Operations, r *retry.Handler, b *breaker.Breaker) *Guarded {
	if r == nil {
		r = retry.New(retry.Policy{}, nil, nil)
	}
	if b == nil {
		b = breaker.New(breaker.Settings{Name: "media"}, nil)
	}
	return &Guarded{next: next, retry: r, breaker: b}
}

// Breaker exposes the media breaker for status reporting.
func (g *Guarded) Breaker() *breaker.Breaker {
	return g.breaker
}

func (g *Guarded) guard(ctx context.Context, operation string, fn func(context.Context) error) error {
	return g.retry.Do(ctx, "media "+operation, func(ctx context.Context) error {
		return g.breaker.Execute(ctx, fn)
	})
}

// Trim implements Operations.
func (g *Guarded) Trim(ctx context.Context, req TrimRequest) error {
	return g.guard(ctx, "trim", func(ctx context.Context) error { return g.next.Trim(ctx, req) })
}

// Concat implements Operations.
func (g *Guarded) Concat(ctx context.Context, kind model.ArtifactKind, inputs []string, output string) error {
	return g.guard(ctx, "concat", func(ctx context.Context) error { return g.next.Concat(ctx, kind, inputs, output) })
}

// Overlay implements Operations.
func (g *Guarded) Overlay(ctx context.Context, req OverlayRequest) error {
	return g.guard(ctx, "overlay", func(ctx context.Context) error { return g.next.Overlay(ctx, req) })
}

// Mux implements Operations.
func (g *Guarded) Mux(ctx context.Context, video, audio, output string) error {
	return g.guard(ctx, "mux", func(ctx context.Context) error { return g.next.Mux(ctx, video, audio, output) })
}

// Silence implements Operations.
func (g *Guarded) Silence(ctx context.Context, duration time.Duration, sampleRate int, output string) error {
	return g.guard(ctx, "silence", func(ctx context.Context) error {
		return g.next.Silence(ctx, duration, sampleRate, output)
	})
}

// Blank implements Operations.
func (g *Guarded) Blank(ctx context.Context, req BlankRequest) error {
	return g.guard(ctx, "blank", func(ctx context.Context) error { return g.next.Blank(ctx, req) })
}

// Probe implements Operations.
func (g *Guarded) Probe(ctx context.Context, path string) (time.Duration, error) {
	return retry.Execute(ctx, g.retry, "media probe", func(ctx context.Context) (time.Duration, error) {
		return breaker.Call(ctx, g.breaker, func(ctx context.Context) (time.Duration, error) {
			return g.next.Probe(ctx, path)
		})
	})
}
