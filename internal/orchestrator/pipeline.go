package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"storyreel/internal/assembly"
	"storyreel/internal/job"
	"storyreel/internal/logging"
	"storyreel/internal/media"
	"storyreel/internal/model"
	"storyreel/internal/services"
)

// sceneResult is the per-scene slot written by one fan-out goroutine.
type sceneResult struct {
	path string
	err  error
}

// Generate runs j from its current state to a terminal stage and returns
// it. A nil error means Completed, possibly with recorded non-fatal errors.
// Fatal errors leave the job Failed; cancellation leaves it Cancelled and
// returns an error matching services.ErrCancelled.
func (o *Orchestrator) Generate(ctx context.Context, j *job.Job) (*job.Job, error) {
	if j == nil {
		return nil, errors.New("job is nil")
	}
	if j.Stage.Terminal() {
		return j, services.Wrap(services.ErrValidation, "", "generate", fmt.Sprintf("job %s already %s", j.ID, j.Stage), nil)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if !o.register(j.ID, cancel) {
		return j, services.Wrap(services.ErrValidation, "", "generate", "job "+j.ID+" is already running", nil)
	}
	defer o.unregister(j.ID)

	lock, err := job.TryLock(o.cfg.Paths.WorkDir, j.ID)
	if err != nil {
		return j, services.Wrap(services.ErrValidation, "", "generate", "job work directory is in use", err)
	}
	defer func() { _ = lock.Unlock(false) }()

	runCtx = services.WithJobID(runCtx, j.ID)
	runCtx = services.WithRequestID(runCtx, uuid.NewString())
	logger := logging.WithContext(runCtx, o.logger)
	started := time.Now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("title", j.Title),
	)

	if err := o.execute(runCtx, j, logger); err != nil {
		if runCtx.Err() != nil {
			return o.cancelled(runCtx, j, logger)
		}
		o.fail(runCtx, j, err, logger)
		return j, err
	}

	now := time.Now().UTC()
	j.Stage = job.StageCompleted
	j.SetProgress(job.ProgressCompleted)
	j.CompletedAt = &now
	if err := o.persist(runCtx, j); err != nil {
		return j, err
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("output", j.OutputPath),
		logging.Int("recorded_errors", len(j.Errors)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return j, nil
}

func (o *Orchestrator) execute(ctx context.Context, j *job.Job, logger *slog.Logger) error {
	j.Stage = job.StageParsing
	if err := o.persist(ctx, j); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	parsed, err := o.parser.Parse(j.RawScript)
	if err != nil {
		return err
	}
	if j.Title == "" {
		j.Title = parsed.Title
	}
	j.SetProgress(job.ProgressParsed)
	if err := o.persist(ctx, j); err != nil {
		return err
	}
	logger.Info("script parsed",
		logging.String(logging.FieldEventType, "script_parsed"),
		logging.Int("scenes", len(parsed.Scenes)),
		logging.Duration("total_duration", parsed.TotalDuration),
	)

	settings := j.Settings.WithDefaults(o.defaultSettings())
	artifactDir := filepath.Join(o.jobDir(j.ID), "artifacts")
	for _, kind := range model.ArtifactKinds() {
		j.Stage = job.StageForKind(kind)
		if err := o.persist(ctx, j); err != nil {
			return err
		}
		artifacts, failures, err := o.runStage(ctx, kind, parsed.Scenes, settings, artifactDir)
		if err != nil {
			return err
		}
		if j.Artifacts == nil {
			j.Artifacts = make(map[model.ArtifactKind][]model.Artifact, 3)
		}
		j.Artifacts[kind] = artifacts
		for _, failure := range failures {
			j.RecordError(failure)
		}
		j.SetProgress(job.ProgressAfter(kind))
		if err := o.persist(ctx, j); err != nil {
			return err
		}
	}

	j.Stage = job.StageAssembly
	if err := o.persist(ctx, j); err != nil {
		return err
	}
	out, err := o.engine.Assemble(services.WithStage(ctx, string(job.StageAssembly)), parsed.Scenes,
		j.ArtifactSet(model.KindVoice), j.ArtifactSet(model.KindVisual), j.ArtifactSet(model.KindUI),
		assembly.Options{
			WorkDir:    filepath.Join(o.jobDir(j.ID), "assembly"),
			OutputPath: o.outputPath(j),
			Canvas: media.Canvas{
				Width:      settings.Width,
				Height:     settings.Height,
				FPS:        settings.FPS,
				SampleRate: o.cfg.Media.SampleRate,
				Background: settings.Background,
			},
			OverlayX:  o.cfg.Media.OverlayX,
			OverlayY:  o.cfg.Media.OverlayY,
			Tolerance: o.cfg.DurationTolerance(),
			Title:     j.Title,
			JobID:     j.ID,
		})
	if err != nil {
		return err
	}
	j.OutputPath = out.Path
	j.ManifestPath = out.ManifestPath
	j.SetProgress(job.ProgressAssembled)
	return o.persist(ctx, j)
}

// runStage fans the scenes of one generation stage out and merges the
// per-scene slots in scene order once every call has returned.
func (o *Orchestrator) runStage(ctx context.Context, kind model.ArtifactKind, scenes []model.Scene, settings model.Settings, artifactDir string) ([]model.Artifact, []job.StageError, error) {
	stage := job.StageForKind(kind)
	ctx = services.WithStage(ctx, string(stage))
	logger := logging.WithContext(ctx, o.logger)
	gen := o.generators.For(kind)
	g := o.guards[kind]
	started := time.Now()

	results := make([]sceneResult, len(scenes))
	var group errgroup.Group
	group.SetLimit(max(o.cfg.Pipeline.SceneParallelism, 1))
	for idx, scene := range scenes {
		if ctx.Err() != nil {
			break
		}
		slot := &results[idx]
		group.Go(func() error {
			sceneCtx := services.WithSceneKey(ctx, scene.Key)
			if err := sceneCtx.Err(); err != nil {
				slot.err = err
				return nil
			}
			slot.path, slot.err = o.generate(sceneCtx, g, gen, scene, settings, artifactDir)
			return nil
		})
	}
	_ = group.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	artifacts := make([]model.Artifact, 0, len(scenes))
	var failures []job.StageError
	for idx, res := range results {
		scene := scenes[idx]
		if res.err != nil {
			details := services.Details(res.err)
			failures = append(failures, job.StageError{
				Stage:     stage,
				SceneKey:  scene.Key,
				Kind:      string(details.Kind),
				Message:   details.Message,
				Timestamp: time.Now().UTC(),
			})
			logging.WarnWithContext(logging.WithContext(services.WithSceneKey(ctx, scene.Key), o.logger),
				"scene generation failed; filler will be used", "scene_failed",
				logging.Error(res.err),
				logging.ErrorKind(res.err),
				logging.String(logging.FieldErrorHint, "check the "+string(kind)+" generator backend"),
			)
			continue
		}
		if res.path == "" {
			continue
		}
		artifacts = append(artifacts, model.Artifact{
			SceneKey:  scene.Key,
			Kind:      kind,
			Path:      res.path,
			CreatedAt: time.Now().UTC(),
		})
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("artifacts", len(artifacts)),
		logging.Int("failures", len(failures)),
		logging.String("breaker_state", string(g.breaker.State())),
		logging.Duration("stage_duration", time.Since(started)),
	)
	return artifacts, failures, nil
}

func (o *Orchestrator) defaultSettings() model.Settings {
	m := o.cfg.Media
	return model.Settings{
		Voice:      o.cfg.Generators.EspeakVoice,
		Width:      m.Width,
		Height:     m.Height,
		FPS:        m.FPS,
		Background: m.Background,
		TextColor:  m.TextColor,
	}
}

// cancelled discards partial work and finishes j as Cancelled. Leases are
// already released: runStage and Assemble only return after every call has.
func (o *Orchestrator) cancelled(ctx context.Context, j *job.Job, logger *slog.Logger) (*job.Job, error) {
	cause := context.Cause(ctx)
	stage := j.Stage
	o.markCancelled(ctx, j, logger)
	if errors.Is(cause, services.ErrCancelled) {
		return j, cause
	}
	return j, services.Wrap(services.ErrCancelled, string(stage), "generate", "", cause)
}

// markCancelled clears artifacts, removes the job's work directory, and
// persists the Cancelled stage. Progress is left unchanged.
func (o *Orchestrator) markCancelled(ctx context.Context, j *job.Job, logger *slog.Logger) {
	from := j.Stage
	j.ClearArtifacts()
	if err := os.RemoveAll(o.jobDir(j.ID)); err != nil {
		logger.Warn("failed to remove cancelled job directory",
			logging.Error(err),
			logging.String(logging.FieldEventType, "cleanup_failed"),
		)
	}
	now := time.Now().UTC()
	j.Stage = job.StageCancelled
	j.CompletedAt = &now
	if err := o.persist(ctx, j); err != nil {
		logger.Error("failed to persist cancellation", logging.Error(err))
	}
	logger.Info("job cancelled",
		logging.String(logging.FieldEventType, "job_cancelled"),
		logging.String("from_stage", string(from)),
		logging.Int("progress", j.Progress),
	)
}

func (o *Orchestrator) fail(ctx context.Context, j *job.Job, cause error, logger *slog.Logger) {
	from := j.Stage
	details := services.Details(cause)
	now := time.Now().UTC()
	j.Stage = job.StageFailed
	j.FailureReason = details.Message
	j.CompletedAt = &now
	if err := o.persist(ctx, j); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed", cause,
		logging.String("failed_stage", string(from)),
		logging.Alert("job_failure"),
	)
}

// persist writes j and notifies the observer. Writes ignore cancellation so
// the terminal state always lands.
func (o *Orchestrator) persist(ctx context.Context, j *job.Job) error {
	if err := o.store.Update(context.WithoutCancel(ctx), j); err != nil {
		return fmt.Errorf("persist job %s: %w", j.ID, err)
	}
	if o.observer != nil {
		o.observer(j.Clone())
	}
	return nil
}
