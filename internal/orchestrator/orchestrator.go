package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"storyreel/internal/assembly"
	"storyreel/internal/breaker"
	"storyreel/internal/config"
	"storyreel/internal/generator"
	"storyreel/internal/job"
	"storyreel/internal/logging"
	"storyreel/internal/media"
	"storyreel/internal/model"
	"storyreel/internal/resources"
	"storyreel/internal/retry"
	"storyreel/internal/script"
	"storyreel/internal/services"
	"storyreel/internal/textutil"
)

// Observer receives a copy of the job each time a stage boundary is
// persisted. It runs synchronously on the pipeline goroutine.
type Observer func(*job.Job)

// Option customizes an Orchestrator.
type Option func(*options)

type options struct {
	observer     Observer
	retryOptions []retry.Option
}

// WithObserver registers a boundary observer.
func WithObserver(fn Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithRetryOptions passes options to every retry handler, typically a fake
// sleep for tests.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(o *options) {
		o.retryOptions = append(o.retryOptions, opts...)
	}
}

// Orchestrator runs jobs through the generation pipeline. It is safe for
// concurrent use; each job runs on the caller's goroutine.
type Orchestrator struct {
	cfg         *config.Config
	store       *job.Store
	logger      *slog.Logger
	parser      script.Parser
	generators  generator.Set
	resources   *resources.Manager
	media       *media.Guarded
	engine      *assembly.Engine
	guards      map[model.ArtifactKind]guard
	observer    Observer
	callTimeout time.Duration

	mu      sync.Mutex
	running map[string]context.CancelCauseFunc
}

// New constructs an Orchestrator. Missing dependencies are built from cfg.
func New(cfg *config.Config, store *job.Store, deps Dependencies, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("orchestrator: config is required")
	}
	if store == nil {
		return nil, errors.New("orchestrator: job store is required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	deps, err := deps.withDefaults(cfg, logger)
	if err != nil {
		return nil, err
	}

	guards := make(map[model.ArtifactKind]guard, 3)
	for _, kind := range model.ArtifactKinds() {
		guards[kind] = guard{
			retry:   newRetryHandler(cfg, logger, o.retryOptions...),
			breaker: newBreaker(cfg, string(kind), logger),
			request: kindRequest(cfg, kind),
		}
	}
	guarded := media.NewGuarded(deps.Media, newRetryHandler(cfg, logger, o.retryOptions...), newBreaker(cfg, "media", logger))
	engine := assembly.NewEngine(guarded, logger,
		assembly.WithResources(deps.Resources, requestFor(cfg.Resources.Assembly)),
		assembly.WithParallelism(cfg.Pipeline.SceneParallelism),
	)

	return &Orchestrator{
		cfg:         cfg,
		store:       store,
		logger:      logging.NewComponentLogger(logger, "orchestrator"),
		parser:      deps.Parser,
		generators:  deps.Generators,
		resources:   deps.Resources,
		media:       guarded,
		engine:      engine,
		guards:      guards,
		observer:    o.observer,
		callTimeout: cfg.CallTimeout(),
		running:     make(map[string]context.CancelCauseFunc),
	}, nil
}

// Breaker returns the breaker guarding generator kind.
func (o *Orchestrator) Breaker(kind model.ArtifactKind) *breaker.Breaker {
	return o.guards[kind].breaker
}

// MediaBreaker returns the breaker guarding media operations.
func (o *Orchestrator) MediaBreaker() *breaker.Breaker {
	return o.media.Breaker()
}

// Resources returns the shared admission manager.
func (o *Orchestrator) Resources() *resources.Manager {
	return o.resources
}

// Submit creates the job record for raw. The title is filled from the script
// when empty.
func (o *Orchestrator) Submit(ctx context.Context, title, raw string, settings model.Settings) (*job.Job, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, services.Wrap(services.ErrValidation, "", "submit", "script is empty", nil)
	}
	j, err := o.store.New(ctx, title, raw, settings)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}
	logging.WithContext(services.WithJobID(ctx, j.ID), o.logger).Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.Int("script_bytes", len(raw)),
	)
	return j, nil
}

// Run submits raw and generates it to completion.
func (o *Orchestrator) Run(ctx context.Context, title, raw string, settings model.Settings) (*job.Job, error) {
	j, err := o.Submit(ctx, title, raw, settings)
	if err != nil {
		return nil, err
	}
	return o.Generate(ctx, j)
}

// Status returns the status view of job id.
func (o *Orchestrator) Status(ctx context.Context, id string) (job.Status, error) {
	j, err := o.lookup(ctx, id)
	if err != nil {
		return job.Status{}, err
	}
	return j.Status(), nil
}

// Jobs lists every stored job, oldest first.
func (o *Orchestrator) Jobs(ctx context.Context, stages ...job.Stage) ([]*job.Job, error) {
	return o.store.List(ctx, stages...)
}

// Cancel stops job id. A job running in this process is interrupted and
// finishes as Cancelled once in-flight calls return; a submitted job that
// never started is marked Cancelled directly.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	o.mu.Lock()
	cancel, ok := o.running[id]
	o.mu.Unlock()
	if ok {
		cancel(services.ErrCancelled)
		return nil
	}

	j, err := o.lookup(ctx, id)
	if err != nil {
		return err
	}
	if j.Stage.Terminal() {
		return services.Wrap(services.ErrValidation, "", "cancel", fmt.Sprintf("job %s already %s", id, j.Stage), nil)
	}
	lock, err := job.TryLock(o.cfg.Paths.WorkDir, id)
	if err != nil {
		return services.Wrap(services.ErrValidation, "", "cancel", "job is running in another process", err)
	}
	defer func() { _ = lock.Unlock(false) }()
	o.markCancelled(ctx, j, o.logger)
	return nil
}

// Cleanup removes the record and work directory of job id. It refuses while
// the job is running.
func (o *Orchestrator) Cleanup(ctx context.Context, id string) error {
	if o.isRunning(id) {
		return services.Wrap(services.ErrValidation, "", "cleanup", "job "+id+" is running", nil)
	}
	if _, err := o.lookup(ctx, id); err != nil {
		return err
	}
	lock, err := job.TryLock(o.cfg.Paths.WorkDir, id)
	if err != nil {
		return services.Wrap(services.ErrValidation, "", "cleanup", "job "+id+" is locked by another process", err)
	}
	defer func() { _ = lock.Unlock(true) }()

	if err := os.RemoveAll(o.jobDir(id)); err != nil {
		return fmt.Errorf("remove work directory: %w", err)
	}
	if _, err := o.store.Delete(ctx, id); err != nil {
		return err
	}
	logging.WithContext(services.WithJobID(ctx, id), o.logger).Info("job cleaned up",
		logging.String(logging.FieldEventType, "job_cleanup"),
	)
	return nil
}

// PurgeExpired cleans up terminal jobs older than the configured TTL and
// returns how many were removed.
func (o *Orchestrator) PurgeExpired(ctx context.Context) (int, error) {
	ids, err := o.store.ExpiredBefore(ctx, time.Now().Add(-o.cfg.JobTTL()))
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, id := range ids {
		if err := o.Cleanup(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		o.logger.Info("expired jobs purged",
			logging.Int("removed", removed),
			logging.Duration("ttl", o.cfg.JobTTL()),
			logging.String(logging.FieldEventType, "jobs_purged"),
		)
	}
	return removed, errors.Join(errs...)
}

func (o *Orchestrator) lookup(ctx context.Context, id string) (*job.Job, error) {
	j, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "lookup", "job "+id, nil)
	}
	return j, nil
}

func (o *Orchestrator) register(id string, cancel context.CancelCauseFunc) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.running[id]; exists {
		return false
	}
	o.running[id] = cancel
	return true
}

func (o *Orchestrator) unregister(id string) {
	o.mu.Lock()
	delete(o.running, id)
	o.mu.Unlock()
}

func (o *Orchestrator) isRunning(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[id]
	return ok
}

func (o *Orchestrator) jobDir(id string) string {
	return filepath.Join(o.cfg.Paths.WorkDir, id)
}

func (o *Orchestrator) outputPath(j *job.Job) string {
	name := textutil.Slug(j.Title, "storyreel")
	short := j.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return filepath.Join(o.cfg.Paths.OutputDir, name+"-"+short+".mp4")
}
