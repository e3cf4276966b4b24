package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"storyreel/internal/assembly"
	"storyreel/internal/breaker"
	"storyreel/internal/config"
	"storyreel/internal/generator"
	"storyreel/internal/job"
	"storyreel/internal/model"
	"storyreel/internal/orchestrator"
	"storyreel/internal/retry"
	"storyreel/internal/services"
	"storyreel/internal/testsupport"
)

type harness struct {
	cfg    *config.Config
	store  *job.Store
	orch   *orchestrator.Orchestrator
	voice  *fakeGenerator
	visual *fakeGenerator
	ui     *fakeGenerator
	media  *fakeMedia

	mu        sync.Mutex
	snapshots []*job.Job
}

func newHarness(t *testing.T, setup func(h *harness), opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	h := &harness{
		cfg:    cfg,
		store:  testsupport.MustOpenStore(t, cfg),
		voice:  &fakeGenerator{kind: model.KindVoice},
		visual: &fakeGenerator{kind: model.KindVisual},
		ui:     &fakeGenerator{kind: model.KindUI},
		media:  newFakeMedia(),
	}
	if setup != nil {
		setup(h)
	}
	deps := orchestrator.Dependencies{
		Generators: generator.Set{Voice: h.voice, Visual: h.visual, UI: h.ui},
		Media:      h.media,
	}
	orch, err := orchestrator.New(cfg, h.store, deps, nil,
		orchestrator.WithObserver(func(j *job.Job) {
			h.mu.Lock()
			h.snapshots = append(h.snapshots, j)
			h.mu.Unlock()
		}),
		orchestrator.WithRetryOptions(retry.WithSleep(func(context.Context, time.Duration) error { return nil })),
	)
	if err != nil {
		t.Fatalf("orchestrator.New failed: %v", err)
	}
	h.orch = orch
	return h
}

func TestRunCompletesWithExactDuration(t *testing.T) {
	h := newHarness(t, nil)

	j, err := h.orch.Run(context.Background(), "", testsupport.SampleScript, model.Settings{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if j.Stage != job.StageCompleted || j.Progress != job.ProgressCompleted {
		t.Fatalf("unexpected terminal state %s/%d", j.Stage, j.Progress)
	}
	if j.Title != "Launch Day" {
		t.Fatalf("title not taken from script: %q", j.Title)
	}
	if len(j.Errors) != 0 {
		t.Fatalf("unexpected recorded errors: %+v", j.Errors)
	}
	if j.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}

	manifest, err := assembly.ReadManifest(j.ManifestPath)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if manifest.TotalDurationMS != 23000 || manifest.ProbedDurationMS != 23000 {
		t.Fatalf("unexpected manifest durations %d/%d", manifest.TotalDurationMS, manifest.ProbedDurationMS)
	}
	// The third scene has no on-screen text; the fake still returns a UI
	// artifact, so nothing should be synthesized.
	if manifest.FillerCount != 0 || h.media.blanks != 0 {
		t.Fatalf("expected no fillers, got %d (%d blanks)", manifest.FillerCount, h.media.blanks)
	}
	if filepath.Dir(j.OutputPath) != h.cfg.Paths.OutputDir {
		t.Fatalf("output %q not under output dir", j.OutputPath)
	}

	wantStages := []job.Stage{
		job.StageParsing, job.StageVoiceGeneration, job.StageVisualGeneration,
		job.StageUIGeneration, job.StageAssembly, job.StageCompleted,
	}
	var seen []job.Stage
	last := -1
	for _, snap := range h.snapshots {
		if snap.Progress < last {
			t.Fatalf("progress decreased from %d to %d", last, snap.Progress)
		}
		last = snap.Progress
		if len(seen) == 0 || seen[len(seen)-1] != snap.Stage {
			seen = append(seen, snap.Stage)
		}
	}
	if len(seen) != len(wantStages) {
		t.Fatalf("stages = %v, want %v", seen, wantStages)
	}
	for i := range wantStages {
		if seen[i] != wantStages[i] {
			t.Fatalf("stages = %v, want %v", seen, wantStages)
		}
	}

	status, err := h.orch.Status(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Stage != job.StageCompleted || status.OutputPath != j.OutputPath || status.Progress != 100 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestVisualFailureRecordsOneErrorPerScene(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.visual.fn = func(context.Context, model.Scene) (string, error) {
			return "", services.Wrap(services.ErrTransient, "visual", "render", "backend down", nil)
		}
	})

	j, err := h.orch.Run(context.Background(), "", testsupport.SampleScript, model.Settings{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if j.Stage != job.StageCompleted {
		t.Fatalf("expected completion despite stage failures, got %s", j.Stage)
	}
	visualErrs := j.ErrorsForStage(job.StageVisualGeneration)
	if len(visualErrs) != 3 || len(j.Errors) != 3 {
		t.Fatalf("expected one error per scene, got %+v", j.Errors)
	}
	keys := map[string]bool{}
	for _, e := range visualErrs {
		keys[e.SceneKey] = true
	}
	for _, key := range []string{"00:00", "00:05", "00:15"} {
		if !keys[key] {
			t.Fatalf("missing error for scene %s: %+v", key, visualErrs)
		}
	}
	if state := h.orch.Breaker(model.KindVisual).State(); state != breaker.StateOpen {
		t.Fatalf("visual breaker = %s, want open", state)
	}
	if calls := h.visual.calls.Load(); calls >= 12 {
		t.Fatalf("open breaker should short-circuit retries, saw %d calls", calls)
	}
	if h.orch.Breaker(model.KindVoice).State() != breaker.StateClosed {
		t.Fatal("voice breaker should stay closed")
	}

	manifest, err := assembly.ReadManifest(j.ManifestPath)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if manifest.FillerCount != 3 || manifest.TotalDurationMS != 23000 {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	for _, entry := range manifest.Entries {
		if !entry.Visual.Filler || entry.Voice.Filler {
			t.Fatalf("unexpected filler flags for %s: %+v", entry.SceneKey, entry)
		}
	}
}

// finishInReverse makes each scene wait for the scene after it, so calls
// complete last-to-first. finished receives keys in completion order.
func finishInReverse(keys []string, finished *[]string, mu *sync.Mutex, result func(model.Scene) (string, error)) func(context.Context, model.Scene) (string, error) {
	done := make(map[string]chan struct{}, len(keys))
	once := make(map[string]*sync.Once, len(keys))
	next := make(map[string]string, len(keys))
	for i, key := range keys {
		done[key] = make(chan struct{})
		once[key] = &sync.Once{}
		if i+1 < len(keys) {
			next[key] = keys[i+1]
		}
	}
	return func(ctx context.Context, scene model.Scene) (string, error) {
		if after, ok := next[scene.Key]; ok {
			select {
			case <-done[after]:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		once[scene.Key].Do(func() {
			mu.Lock()
			*finished = append(*finished, scene.Key)
			mu.Unlock()
			close(done[scene.Key])
		})
		return result(scene)
	}
}

func TestOutOfOrderCompletionKeepsSceneOrder(t *testing.T) {
	keys := []string{"00:00", "00:05", "00:15"}
	var (
		mu             sync.Mutex
		visualFinished []string
		uiFinished     []string
	)
	h := newHarness(t, func(h *harness) {
		visualDir := filepath.Join(t.TempDir(), "visual")
		h.visual.fn = finishInReverse(keys, &visualFinished, &mu, func(scene model.Scene) (string, error) {
			return filepath.Join(visualDir, model.SceneFileStem(scene.Key)+".mp4"), nil
		})
		h.ui.fn = finishInReverse(keys, &uiFinished, &mu, func(scene model.Scene) (string, error) {
			return "", services.Wrap(services.ErrValidation, "ui", "render", "bad caption "+scene.Key, nil)
		})
	}, testsupport.WithSceneParallelism(3))

	j, err := h.orch.Run(context.Background(), "", testsupport.SampleScript, model.Settings{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	reversed := []string{"00:15", "00:05", "00:00"}
	if strings.Join(visualFinished, ",") != strings.Join(reversed, ",") || strings.Join(uiFinished, ",") != strings.Join(reversed, ",") {
		t.Fatalf("generators did not finish in reverse: visual=%v ui=%v", visualFinished, uiFinished)
	}

	visual := j.Artifacts[model.KindVisual]
	if len(visual) != len(keys) {
		t.Fatalf("expected %d visual artifacts, got %+v", len(keys), visual)
	}
	uiErrs := j.ErrorsForStage(job.StageUIGeneration)
	if len(uiErrs) != len(keys) {
		t.Fatalf("expected %d ui errors, got %+v", len(keys), uiErrs)
	}
	manifest, err := assembly.ReadManifest(j.ManifestPath)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if len(manifest.Entries) != len(keys) {
		t.Fatalf("expected %d manifest entries, got %d", len(keys), len(manifest.Entries))
	}
	var lastStart int64 = -1
	for i, key := range keys {
		if visual[i].SceneKey != key || uiErrs[i].SceneKey != key {
			t.Fatalf("position %d: artifact %s, error %s, want %s", i, visual[i].SceneKey, uiErrs[i].SceneKey, key)
		}
		entry := manifest.Entries[i]
		if entry.SceneKey != key || entry.StartMS <= lastStart {
			t.Fatalf("manifest entry %d = %s at %dms, want %s after %dms", i, entry.SceneKey, entry.StartMS, key, lastStart)
		}
		lastStart = entry.StartMS
		if entry.Visual.Filler || !entry.UI.Filler {
			t.Fatalf("unexpected filler flags for %s: %+v", key, entry)
		}
	}
}

func TestEmptyArtifactBecomesFillerWithoutError(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.ui.fn = func(context.Context, model.Scene) (string, error) { return "", nil }
	})
	j, err := h.orch.Run(context.Background(), "", testsupport.SampleScript, model.Settings{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(j.Errors) != 0 || len(j.Artifacts[model.KindUI]) != 0 {
		t.Fatalf("expected no errors and no ui artifacts, got %+v / %+v", j.Errors, j.Artifacts[model.KindUI])
	}
	if h.media.blanks != 3 {
		t.Fatalf("expected 3 ui fillers, got %d", h.media.blanks)
	}
}

func TestParseFailureFailsJob(t *testing.T) {
	h := newHarness(t, nil)

	j, err := h.orch.Run(context.Background(), "late", "[00:05] starts late", model.Settings{})
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	if j.Stage != job.StageFailed || j.FailureReason == "" {
		t.Fatalf("unexpected job state %s %q", j.Stage, j.FailureReason)
	}
	if h.voice.calls.Load() != 0 {
		t.Fatal("generators ran after parse failure")
	}
	stored, err := h.store.Get(context.Background(), j.ID)
	if err != nil || stored == nil || stored.Stage != job.StageFailed {
		t.Fatalf("failure not persisted: %+v, %v", stored, err)
	}
}

func TestAssemblyFailureFailsJob(t *testing.T) {
	h := newHarness(t, nil)
	h.cfg.Media.DurationToleranceMS = -1 // any probe result is out of tolerance

	j, err := h.orch.Run(context.Background(), "", testsupport.SampleScript, model.Settings{})
	if !errors.Is(err, services.ErrAssembly) {
		t.Fatalf("expected ErrAssembly, got %v", err)
	}
	if j.Stage != job.StageFailed || j.Progress != job.ProgressUI {
		t.Fatalf("unexpected job state %s/%d", j.Stage, j.Progress)
	}
}

func TestCancelDiscardsPartialWork(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	h := newHarness(t, func(h *harness) {
		h.voice.fn = func(ctx context.Context, _ model.Scene) (string, error) {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return "", ctx.Err()
		}
	})
	ctx := context.Background()
	submitted, err := h.orch.Submit(ctx, "", testsupport.SampleScript, model.Settings{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	go func() {
		<-started
		if err := h.orch.Cancel(ctx, submitted.ID); err != nil {
			t.Errorf("Cancel failed: %v", err)
		}
	}()

	j, err := h.orch.Generate(ctx, submitted)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if j.Stage != job.StageCancelled {
		t.Fatalf("stage = %s, want cancelled", j.Stage)
	}
	if j.Progress != job.ProgressParsed {
		t.Fatalf("cancellation changed progress to %d", j.Progress)
	}
	if len(j.Artifacts) != 0 {
		t.Fatalf("artifacts not cleared: %+v", j.Artifacts)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Paths.WorkDir, j.ID)); !os.IsNotExist(err) {
		t.Fatalf("job directory still present: %v", err)
	}
	if h.visual.calls.Load() != 0 {
		t.Fatal("later stage ran after cancellation")
	}
	if stats := h.orch.Resources().Stats(); stats.Active != 0 || stats.Acquired != stats.Released {
		t.Fatalf("leases leaked: %+v", stats)
	}
	stored, _ := h.store.Get(ctx, j.ID)
	if stored == nil || stored.Stage != job.StageCancelled {
		t.Fatalf("cancellation not persisted: %+v", stored)
	}
}

func TestParentContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, func(h *harness) {
		h.visual.fn = func(ctx context.Context, _ model.Scene) (string, error) {
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		}
	})
	j, err := h.orch.Run(ctx, "", testsupport.SampleScript, model.Settings{})
	if !errors.Is(err, services.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if j.Stage != job.StageCancelled || j.Progress != job.ProgressVoice {
		t.Fatalf("unexpected state %s/%d", j.Stage, j.Progress)
	}
}

func TestCancelSubmittedJob(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	j, err := h.orch.Submit(ctx, "", testsupport.SampleScript, model.Settings{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := h.orch.Cancel(ctx, j.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	status, err := h.orch.Status(ctx, j.ID)
	if err != nil || status.Stage != job.StageCancelled {
		t.Fatalf("unexpected status %+v, %v", status, err)
	}
	if err := h.orch.Cancel(ctx, j.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error cancelling a terminal job, got %v", err)
	}
	if _, err := h.orch.Generate(ctx, j); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error generating a cancelled job, got %v", err)
	}
}

func TestGeneratorTimeoutIsRecorded(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.ui.fn = func(ctx context.Context, _ model.Scene) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}
		h.cfg.Generators.CallTimeoutSeconds = 1
	}, testsupport.WithRetries(0), testsupport.WithSceneParallelism(3))

	j, err := h.orch.Run(context.Background(), "", testsupport.SampleScript, model.Settings{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	uiErrs := j.ErrorsForStage(job.StageUIGeneration)
	if len(uiErrs) != 3 {
		t.Fatalf("expected 3 ui errors, got %+v", j.Errors)
	}
	for _, e := range uiErrs {
		if e.Kind != string(services.KindRetryExhausted) || !strings.Contains(e.Message, "timeout") {
			t.Fatalf("expected exhausted timeout, got %+v", e)
		}
	}
}

func TestStatusUnknownJob(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.orch.Status(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCleanupRemovesRecordAndWorkDir(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	j, err := h.orch.Run(ctx, "", testsupport.SampleScript, model.Settings{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	workDir := filepath.Join(h.cfg.Paths.WorkDir, j.ID)
	if _, err := os.Stat(workDir); err != nil {
		t.Fatalf("expected work dir after run: %v", err)
	}

	held, err := job.TryLock(h.cfg.Paths.WorkDir, j.ID)
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if err := h.orch.Cleanup(ctx, j.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected locked cleanup to be refused, got %v", err)
	}
	_ = held.Unlock(false)

	if err := h.orch.Cleanup(ctx, j.ID); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Fatalf("work dir not removed: %v", err)
	}
	if _, err := h.orch.Status(ctx, j.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("record not removed: %v", err)
	}
	if _, err := os.Stat(j.OutputPath); err != nil {
		t.Fatalf("output should survive cleanup: %v", err)
	}
}

func TestPurgeExpiredRemovesTerminalJobs(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	done, err := h.orch.Run(ctx, "", testsupport.SampleScript, model.Settings{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	pending, err := h.orch.Submit(ctx, "", testsupport.SampleScript, model.Settings{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	h.cfg.Pipeline.JobTTLHours = 0

	removed, err := h.orch.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 purged job, got %d", removed)
	}
	if _, err := h.orch.Status(ctx, done.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("completed job not purged: %v", err)
	}
	if _, err := h.orch.Status(ctx, pending.ID); err != nil {
		t.Fatalf("pending job purged: %v", err)
	}
}
