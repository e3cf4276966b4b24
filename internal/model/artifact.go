package model

import (
	"strings"
	"time"
)

// ArtifactKind identifies which generation stage produced an artifact.
type ArtifactKind string

const (
	KindVoice  ArtifactKind = "voice"
	KindVisual ArtifactKind = "visual"
	KindUI     ArtifactKind = "ui"
)

// ArtifactKinds lists the kinds in pipeline order.
func ArtifactKinds() []ArtifactKind {
	return []ArtifactKind{KindVoice, KindVisual, KindUI}
}

// Artifact is a file produced for one scene by a generator or by filler
// synthesis. Filler is true for synthesized silent/blank content.
type Artifact struct {
	SceneKey  string       `json:"scene_key"`
	Kind      ArtifactKind `json:"kind"`
	Path      string       `json:"path"`
	Filler    bool         `json:"filler,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ArtifactSet maps scene keys to the artifact of a single kind.
type ArtifactSet map[string]Artifact

// Ordered returns the artifacts following the given scene order, skipping
// scenes without an artifact.
func (s ArtifactSet) Ordered(keys []string) []Artifact {
	out := make([]Artifact, 0, len(s))
	for _, key := range keys {
		if a, ok := s[key]; ok {
			out = append(out, a)
		}
	}
	return out
}

// NewArtifactSet indexes artifacts by scene key.
func NewArtifactSet(artifacts []Artifact) ArtifactSet {
	set := make(ArtifactSet, len(artifacts))
	for _, a := range artifacts {
		set[a.SceneKey] = a
	}
	return set
}

var sceneFileReplacer = strings.NewReplacer(":", "-", ".", "_", "/", "_")

// SceneFileStem turns a scene key such as "01:05.250" into a file-safe stem.
func SceneFileStem(key string) string {
	return sceneFileReplacer.Replace(key)
}
