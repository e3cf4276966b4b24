package job_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"storyreel/internal/job"
	"storyreel/internal/model"
	"storyreel/internal/testsupport"
)

func TestStoreRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created, err := store.New(ctx, "Launch", testsupport.SampleScript, model.Settings{Voice: "en", Width: 640})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if created.ID == "" || created.Stage != job.StageParsing {
		t.Fatalf("unexpected new job %+v", created)
	}

	fetched, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil || fetched.Title != "Launch" || fetched.RawScript != testsupport.SampleScript {
		t.Fatalf("unexpected fetched job %+v", fetched)
	}
	if fetched.Settings.Width != 640 || fetched.Settings.Voice != "en" {
		t.Fatalf("settings not persisted: %+v", fetched.Settings)
	}

	fetched.Stage = job.StageVisualGeneration
	fetched.SetProgress(job.ProgressVoice)
	fetched.RecordError(job.StageError{Stage: job.StageVisualGeneration, SceneKey: "00:05", Message: "boom"})
	fetched.Artifacts = map[model.ArtifactKind][]model.Artifact{
		model.KindVoice: {{SceneKey: "00:00", Kind: model.KindVoice, Path: "/tmp/a.wav"}},
	}
	if err := store.Update(ctx, fetched); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if updated.Stage != job.StageVisualGeneration || updated.Progress != job.ProgressVoice {
		t.Fatalf("unexpected stage/progress %s/%d", updated.Stage, updated.Progress)
	}
	if len(updated.Errors) != 1 || updated.Errors[0].SceneKey != "00:05" {
		t.Fatalf("errors not persisted: %+v", updated.Errors)
	}
	if got := updated.ArtifactSet(model.KindVoice)["00:00"].Path; got != "/tmp/a.wav" {
		t.Fatalf("artifacts not persisted: %+v", updated.Artifacts)
	}
	if updated.UpdatedAt.Before(created.CreatedAt) {
		t.Fatalf("updated_at %v before created_at %v", updated.UpdatedAt, created.CreatedAt)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	got, err := store.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil job, got %+v", got)
	}
}

func TestUpdateMissingJobFails(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if err := store.Update(context.Background(), &job.Job{ID: "ghost", Stage: job.StageFailed}); err == nil {
		t.Fatal("expected error updating missing job")
	}
}

func TestListFiltersByStage(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.NewJob(t, store, "A", "[00:00] a")
	b := testsupport.NewJob(t, store, "B", "[00:00] b")
	b.Stage = job.StageCompleted
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != a.ID {
		t.Fatalf("unexpected list %+v", all)
	}

	completed, err := store.List(ctx, job.StageCompleted)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != b.ID {
		t.Fatalf("unexpected filtered list %+v", completed)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[job.StageParsing] != 1 || stats[job.StageCompleted] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestDelete(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	j := testsupport.NewJob(t, store, "A", "[00:00] a")

	removed, err := store.Delete(ctx, j.ID)
	if err != nil || !removed {
		t.Fatalf("Delete = %v, %v", removed, err)
	}
	removed, err = store.Delete(ctx, j.ID)
	if err != nil || removed {
		t.Fatalf("second Delete = %v, %v", removed, err)
	}
}

func TestPurgeOlderThanKeepsActiveJobs(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	active := testsupport.NewJob(t, store, "active", "[00:00] a")
	done := testsupport.NewJob(t, store, "done", "[00:00] b")
	done.Stage = job.StageCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	cutoff := time.Now().Add(time.Minute)
	ids, err := store.ExpiredBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("ExpiredBefore failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != done.ID {
		t.Fatalf("unexpected expired ids %v", ids)
	}

	purged, err := store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("PurgeOlderThan failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged job, got %d", purged)
	}
	if got, _ := store.Get(ctx, active.ID); got == nil {
		t.Fatal("active job was purged")
	}

	none, err := store.PurgeOlderThan(ctx, time.Now().Add(-time.Hour))
	if err != nil || none != 0 {
		t.Fatalf("expected nothing to purge, got %d, %v", none, err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := job.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	j, err := first.New(context.Background(), "A", "[00:00] a", model.Settings{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := testsupport.MustOpenStore(t, cfg)
	got, err := second.Get(context.Background(), j.ID)
	if err != nil || got == nil {
		t.Fatalf("expected job after reopen, got %v, %v", got, err)
	}
}

func TestWorkLockExcludesSecondHolder(t *testing.T) {
	root := t.TempDir()
	first, err := job.TryLock(root, "job-1")
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if _, err := job.TryLock(root, "job-1"); !errors.Is(err, job.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if _, err := job.TryLock(root, "job-2"); err != nil {
		t.Fatalf("independent job lock failed: %v", err)
	}
	if err := first.Unlock(true); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	again, err := job.TryLock(root, "job-1")
	if err != nil {
		t.Fatalf("TryLock after unlock failed: %v", err)
	}
	_ = again.Unlock(true)
}
