package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"storyreel/internal/logging"
	"storyreel/internal/media"
	"storyreel/internal/model"
	"storyreel/internal/resources"
	"storyreel/internal/services"
)

const stageName = "assembling"

// Options controls one assembly run.
type Options struct {
	// WorkDir receives fillers, normalized segments, and intermediate tracks.
	WorkDir      string
	OutputPath   string
	ManifestPath string
	Canvas       media.Canvas
	OverlayX     int
	OverlayY     int
	// Tolerance bounds |probed - planned| output duration.
	Tolerance time.Duration
	Title     string
	JobID     string
}

// Output describes a finished assembly.
type Output struct {
	Path           string
	ManifestPath   string
	Duration       time.Duration
	ProbedDuration time.Duration
	Timeline       Timeline
}

// Engine assembles timelines through a media.Operations backend.
type Engine struct {
	ops         media.Operations
	logger      *slog.Logger
	resources   *resources.Manager
	request     resources.Request
	parallelism int
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithResources holds a lease of req for the whole assembly.
func WithResources(m *resources.Manager, req resources.Request) EngineOption {
	return func(e *Engine) {
		e.resources = m
		e.request = req
	}
}

// WithParallelism bounds concurrent segment normalization.
func WithParallelism(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(ops media.Operations, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		ops:         ops,
		logger:      logging.NewComponentLogger(logger, "assembly"),
		parallelism: 2,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assemble builds the timeline for scenes and renders it to opts.OutputPath.
func (e *Engine) Assemble(ctx context.Context, scenes []model.Scene, voice, visual, ui model.ArtifactSet, opts Options) (Output, error) {
	if len(scenes) == 0 {
		return Output{}, services.Wrap(services.ErrAssembly, stageName, "timeline", "no scenes", nil)
	}
	if opts.OutputPath == "" || opts.WorkDir == "" {
		return Output{}, services.Wrap(services.ErrAssembly, stageName, "options", "work dir and output path are required", nil)
	}
	if opts.ManifestPath == "" {
		opts.ManifestPath = opts.OutputPath + ".manifest.json"
	}

	if e.resources != nil {
		lease, err := e.resources.Acquire(ctx, e.request)
		if err != nil {
			return Output{}, e.fail(ctx, "acquire lease", err)
		}
		defer lease.Release()
	}

	logger := logging.WithContext(ctx, e.logger)
	timeline := BuildTimeline(scenes, voice, visual, ui, filepath.Join(opts.WorkDir, "filler"))
	logger.Info("assembly started",
		logging.Int("scenes", len(timeline.Entries)),
		logging.Int("fillers", timeline.Fillers()),
		logging.Duration("planned_duration", timeline.Duration),
		logging.String(logging.FieldEventType, "assembly_started"),
	)

	tracks, err := e.buildTracks(ctx, timeline, opts)
	if err != nil {
		return Output{}, err
	}

	composed := filepath.Join(opts.WorkDir, "tracks", "composed.mp4")
	if err := e.ops.Overlay(ctx, media.OverlayRequest{
		Base:   tracks[model.KindVisual],
		Layer:  tracks[model.KindUI],
		Output: composed,
		X:      opts.OverlayX,
		Y:      opts.OverlayY,
	}); err != nil {
		return Output{}, e.fail(ctx, "overlay", err)
	}
	if err := e.ops.Mux(ctx, composed, tracks[model.KindVoice], opts.OutputPath); err != nil {
		return Output{}, e.fail(ctx, "mux", err)
	}

	probed, err := e.ops.Probe(ctx, opts.OutputPath)
	if err != nil {
		return Output{}, e.fail(ctx, "probe", err)
	}
	if drift := absDuration(probed - timeline.Duration); drift > opts.Tolerance {
		return Output{}, services.Wrap(services.ErrAssembly, stageName, "verify duration",
			fmt.Sprintf("output is %s, planned %s (tolerance %s)", probed, timeline.Duration, opts.Tolerance), nil)
	}

	if err := WriteManifest(opts.ManifestPath, newManifest(timeline, opts.OutputPath, probed, opts.Title, opts.JobID)); err != nil {
		return Output{}, e.fail(ctx, "manifest", err)
	}

	logger.Info("assembly completed",
		logging.String("output", opts.OutputPath),
		logging.Duration("duration", timeline.Duration),
		logging.Duration("probed_duration", probed),
		logging.String(logging.FieldEventType, "assembly_completed"),
	)
	return Output{
		Path:           opts.OutputPath,
		ManifestPath:   opts.ManifestPath,
		Duration:       timeline.Duration,
		ProbedDuration: probed,
		Timeline:       timeline,
	}, nil
}

// buildTracks produces one concatenated track per kind. Segments land in
// index-addressed slots so concatenation follows timeline order.
func (e *Engine) buildTracks(ctx context.Context, timeline Timeline, opts Options) (map[model.ArtifactKind]string, error) {
	segmentDir := filepath.Join(opts.WorkDir, "segments")
	segments := make(map[model.ArtifactKind][]string, 3)
	for _, kind := range model.ArtifactKinds() {
		segments[kind] = make([]string, len(timeline.Entries))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for idx, entry := range timeline.Entries {
		for _, kind := range model.ArtifactKinds() {
			slot := &segments[kind][idx]
			artifact := entry.Artifact(kind)
			duration := entry.Duration
			key := entry.Scene.Key
			g.Go(func() error {
				if artifact.Filler {
					if err := e.ops.Blank(gctx, media.BlankRequest{
						Kind: kind, Output: artifact.Path, Duration: duration, Canvas: opts.Canvas,
					}); err != nil {
						return e.fail(gctx, "synthesize "+string(kind)+" filler for "+key, err)
					}
					*slot = artifact.Path
					return nil
				}
				out := segmentPath(segmentDir, kind, idx, key)
				if err := e.ops.Trim(gctx, media.TrimRequest{
					Kind: kind, Input: artifact.Path, Output: out, Duration: duration, Canvas: opts.Canvas,
				}); err != nil {
					return e.fail(gctx, "normalize "+string(kind)+" for "+key, err)
				}
				*slot = out
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	tracks := make(map[model.ArtifactKind]string, 3)
	for _, kind := range model.ArtifactKinds() {
		out := filepath.Join(opts.WorkDir, "tracks", string(kind)+media.Extension(kind))
		if err := e.ops.Concat(ctx, kind, segments[kind], out); err != nil {
			return nil, e.fail(ctx, "concat "+string(kind), err)
		}
		tracks[kind] = out
	}
	return tracks, nil
}

// fail tags err as an assembly error unless the run was cancelled.
func (e *Engine) fail(ctx context.Context, operation string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return services.Wrap(services.ErrAssembly, stageName, operation, "", err)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
