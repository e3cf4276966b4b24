package assembly

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest describes an assembled output and where each segment came from.
type Manifest struct {
	Title            string          `json:"title,omitempty"`
	JobID            string          `json:"job_id,omitempty"`
	Output           string          `json:"output"`
	TotalDurationMS  int64           `json:"total_duration_ms"`
	ProbedDurationMS int64           `json:"probed_duration_ms"`
	FillerCount      int             `json:"filler_count"`
	Entries          []ManifestEntry `json:"entries"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ManifestEntry is one timeline entry.
type ManifestEntry struct {
	SceneKey   string           `json:"scene_key"`
	StartMS    int64            `json:"start_ms"`
	DurationMS int64            `json:"duration_ms"`
	Voice      ManifestArtifact `json:"voice"`
	Visual     ManifestArtifact `json:"visual"`
	UI         ManifestArtifact `json:"ui"`
}

// ManifestArtifact records the source of a segment.
type ManifestArtifact struct {
	Path   string `json:"path"`
	Filler bool   `json:"filler"`
}

func newManifest(timeline Timeline, output string, probed time.Duration, title, jobID string) Manifest {
	m := Manifest{
		Title:            title,
		JobID:            jobID,
		Output:           output,
		TotalDurationMS:  timeline.Duration.Milliseconds(),
		ProbedDurationMS: probed.Milliseconds(),
		FillerCount:      timeline.Fillers(),
		Entries:          make([]ManifestEntry, 0, len(timeline.Entries)),
		CreatedAt:        time.Now().UTC(),
	}
	for _, entry := range timeline.Entries {
		m.Entries = append(m.Entries, ManifestEntry{
			SceneKey:   entry.Scene.Key,
			StartMS:    entry.Start.Milliseconds(),
			DurationMS: entry.Duration.Milliseconds(),
			Voice:      ManifestArtifact{Path: entry.Voice.Path, Filler: entry.Voice.Filler},
			Visual:     ManifestArtifact{Path: entry.Visual.Path, Filler: entry.Visual.Filler},
			UI:         ManifestArtifact{Path: entry.UI.Path, Filler: entry.UI.Filler},
		})
	}
	return m
}

// WriteManifest writes m as indented JSON, replacing path atomically.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure manifest directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
