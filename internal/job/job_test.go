package job_test

import (
	"testing"

	"storyreel/internal/job"
	"storyreel/internal/model"
)

func TestSetProgressIsMonotonic(t *testing.T) {
	j := &job.Job{}
	j.SetProgress(job.ProgressVisual)
	j.SetProgress(job.ProgressVoice)
	if j.Progress != job.ProgressVisual {
		t.Fatalf("progress decreased to %d", j.Progress)
	}
	j.SetProgress(250)
	if j.Progress != job.ProgressCompleted {
		t.Fatalf("progress exceeded 100: %d", j.Progress)
	}
}

func TestTerminalStages(t *testing.T) {
	for _, stage := range job.AllStages() {
		want := stage == job.StageCompleted || stage == job.StageFailed || stage == job.StageCancelled
		if stage.Terminal() != want {
			t.Fatalf("%s.Terminal() = %v", stage, stage.Terminal())
		}
	}
	if _, ok := job.ParseStage("bogus"); ok {
		t.Fatal("expected unknown stage to fail parsing")
	}
}

func TestStageForKind(t *testing.T) {
	if job.StageForKind(model.KindVisual) != job.StageVisualGeneration || job.ProgressAfter(model.KindUI) != job.ProgressUI {
		t.Fatal("unexpected kind mapping")
	}
}

func TestCloneIsDeep(t *testing.T) {
	j := &job.Job{
		Errors:    []job.StageError{{Message: "a"}},
		Artifacts: map[model.ArtifactKind][]model.Artifact{model.KindVoice: {{Path: "a"}}},
	}
	clone := j.Clone()
	clone.Errors[0].Message = "b"
	clone.Artifacts[model.KindVoice][0].Path = "b"
	if j.Errors[0].Message != "a" || j.Artifacts[model.KindVoice][0].Path != "a" {
		t.Fatal("clone shares state with original")
	}
}
