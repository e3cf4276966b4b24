package assembly

import (
	"fmt"
	"path/filepath"
	"time"

	"storyreel/internal/media"
	"storyreel/internal/model"
)

// TimelineEntry places one scene on the output timeline with an artifact for
// every kind.
type TimelineEntry struct {
	Scene    model.Scene
	Start    time.Duration
	Duration time.Duration
	Voice    model.Artifact
	Visual   model.Artifact
	UI       model.Artifact
}

// Artifact returns the entry's artifact of kind.
func (e TimelineEntry) Artifact(kind model.ArtifactKind) model.Artifact {
	switch kind {
	case model.KindVoice:
		return e.Voice
	case model.KindVisual:
		return e.Visual
	default:
		return e.UI
	}
}

func (e *TimelineEntry) setArtifact(kind model.ArtifactKind, a model.Artifact) {
	switch kind {
	case model.KindVoice:
		e.Voice = a
	case model.KindVisual:
		e.Visual = a
	default:
		e.UI = a
	}
}

// Timeline is the ordered list of entries and their summed duration.
type Timeline struct {
	Entries  []TimelineEntry
	Duration time.Duration
}

// Fillers counts filler artifacts across all entries.
func (t Timeline) Fillers() int {
	count := 0
	for _, entry := range t.Entries {
		for _, kind := range model.ArtifactKinds() {
			if entry.Artifact(kind).Filler {
				count++
			}
		}
	}
	return count
}

// FillersByKind counts filler artifacts of each kind.
func (t Timeline) FillersByKind() map[model.ArtifactKind]int {
	counts := make(map[model.ArtifactKind]int, 3)
	for _, entry := range t.Entries {
		for _, kind := range model.ArtifactKinds() {
			if entry.Artifact(kind).Filler {
				counts[kind]++
			}
		}
	}
	return counts
}

// BuildTimeline lays scenes end to end in order. Artifacts missing from a set
// (or with an empty path) become filler placeholders under fillerDir sized
// to the scene. Entry starts are cumulative, so they match the scene starts
// for any parser-produced script.
func BuildTimeline(scenes []model.Scene, voice, visual, ui model.ArtifactSet, fillerDir string) Timeline {
	sets := map[model.ArtifactKind]model.ArtifactSet{
		model.KindVoice:  voice,
		model.KindVisual: visual,
		model.KindUI:     ui,
	}
	timeline := Timeline{Entries: make([]TimelineEntry, 0, len(scenes))}
	var cursor time.Duration
	for idx, scene := range scenes {
		entry := TimelineEntry{Scene: scene, Start: cursor, Duration: scene.Duration}
		for _, kind := range model.ArtifactKinds() {
			artifact, ok := sets[kind][scene.Key]
			if !ok || artifact.Path == "" {
				artifact = model.Artifact{
					SceneKey: scene.Key,
					Kind:     kind,
					Path:     fillerPath(fillerDir, kind, idx, scene.Key),
					Filler:   true,
				}
			}
			entry.setArtifact(kind, artifact)
		}
		timeline.Entries = append(timeline.Entries, entry)
		cursor += scene.Duration
	}
	timeline.Duration = cursor
	return timeline
}

func fillerPath(dir string, kind model.ArtifactKind, idx int, key string) string {
	name := fmt.Sprintf("%03d_%s.filler%s", idx, model.SceneFileStem(key), media.Extension(kind))
	return filepath.Join(dir, string(kind), name)
}

func segmentPath(dir string, kind model.ArtifactKind, idx int, key string) string {
	name := fmt.Sprintf("%03d_%s%s", idx, model.SceneFileStem(key), media.Extension(kind))
	return filepath.Join(dir, string(kind), name)
}
