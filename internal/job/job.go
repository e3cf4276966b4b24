package job

import (
	"slices"
	"time"

	"storyreel/internal/model"
)

// Stage represents the lifecycle of a job.
type Stage string

const (
	StageParsing          Stage = "parsing"
	StageVoiceGeneration  Stage = "voice_generation"
	StageVisualGeneration Stage = "visual_generation"
	StageUIGeneration     Stage = "ui_generation"
	StageAssembly         Stage = "assembly"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
	StageCancelled        Stage = "cancelled"
)

// Progress checkpoints persisted when a stage boundary is crossed.
const (
	ProgressParsed    = 10
	ProgressVoice     = 25
	ProgressVisual    = 45
	ProgressUI        = 75
	ProgressAssembled = 90
	ProgressCompleted = 100
)

var allStages = []Stage{
	StageParsing,
	StageVoiceGeneration,
	StageVisualGeneration,
	StageUIGeneration,
	StageAssembly,
	StageCompleted,
	StageFailed,
	StageCancelled,
}

// AllStages returns every stage in lifecycle order.
func AllStages() []Stage {
	return slices.Clone(allStages)
}

// ParseStage reports whether value names a known stage.
func ParseStage(value string) (Stage, bool) {
	for _, stage := range allStages {
		if string(stage) == value {
			return stage, true
		}
	}
	return "", false
}

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool {
	switch s {
	case StageCompleted, StageFailed, StageCancelled:
		return true
	}
	return false
}

// StageForKind is the generation stage producing artifacts of kind.
func StageForKind(kind model.ArtifactKind) Stage {
	switch kind {
	case model.KindVoice:
		return StageVoiceGeneration
	case model.KindVisual:
		return StageVisualGeneration
	default:
		return StageUIGeneration
	}
}

// ProgressAfter is the checkpoint reached when the generation stage for kind
// finishes.
func ProgressAfter(kind model.ArtifactKind) int {
	switch kind {
	case model.KindVoice:
		return ProgressVoice
	case model.KindVisual:
		return ProgressVisual
	default:
		return ProgressUI
	}
}

// StageError is a non-fatal failure recorded against one scene.
type StageError struct {
	Stage     Stage     `json:"stage"`
	SceneKey  string    `json:"scene_key,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Job is one script-to-video run persisted in SQLite.
type Job struct {
	ID            string
	Title         string
	RawScript     string
	Settings      model.Settings
	Stage         Stage
	Progress      int
	Errors        []StageError
	Artifacts     map[model.ArtifactKind][]model.Artifact
	OutputPath    string
	ManifestPath  string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// Clone returns a deep copy safe to hand to observers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	clone.Errors = slices.Clone(j.Errors)
	if j.Artifacts != nil {
		clone.Artifacts = make(map[model.ArtifactKind][]model.Artifact, len(j.Artifacts))
		for kind, artifacts := range j.Artifacts {
			clone.Artifacts[kind] = slices.Clone(artifacts)
		}
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}

// SetProgress raises progress to value; lower values are ignored.
func (j *Job) SetProgress(value int) {
	if value > j.Progress {
		j.Progress = min(value, ProgressCompleted)
	}
}

// RecordError appends a non-fatal stage error.
func (j *Job) RecordError(e StageError) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	j.Errors = append(j.Errors, e)
}

// ErrorsForStage filters recorded errors by stage.
func (j *Job) ErrorsForStage(stage Stage) []StageError {
	var out []StageError
	for _, e := range j.Errors {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// ArtifactSet indexes the job's artifacts of kind by scene key.
func (j *Job) ArtifactSet(kind model.ArtifactKind) model.ArtifactSet {
	return model.NewArtifactSet(j.Artifacts[kind])
}

// ClearArtifacts drops every artifact reference.
func (j *Job) ClearArtifacts() {
	j.Artifacts = nil
}

// Status is the read-only view returned by job status queries.
type Status struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Stage         Stage        `json:"stage"`
	Progress      int          `json:"progress"`
	Errors        []StageError `json:"errors,omitempty"`
	OutputPath    string       `json:"output_path,omitempty"`
	ManifestPath  string       `json:"manifest_path,omitempty"`
	FailureReason string       `json:"failure_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
}

// Status returns the job's status view.
func (j *Job) Status() Status {
	return Status{
		ID:            j.ID,
		Title:         j.Title,
		Stage:         j.Stage,
		Progress:      j.Progress,
		Errors:        slices.Clone(j.Errors),
		OutputPath:    j.OutputPath,
		ManifestPath:  j.ManifestPath,
		FailureReason: j.FailureReason,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		CompletedAt:   j.CompletedAt,
	}
}
