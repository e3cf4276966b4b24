package model

import (
	"fmt"
	"time"
)

// Scene is one timestamped block of a script. Scenes are immutable once the
// parser returns them.
type Scene struct {
	Key          string        `json:"key" yaml:"key"`
	Start        time.Duration `json:"start" yaml:"start"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	Narration    []string      `json:"narration,omitempty" yaml:"narration,omitempty"`
	Visuals      []string      `json:"visuals,omitempty" yaml:"visuals,omitempty"`
	OnScreenText []string      `json:"on_screen_text,omitempty" yaml:"on_screen_text,omitempty"`
}

// TimestampSeconds returns the scene start in seconds.
func (s Scene) TimestampSeconds() float64 {
	return s.Start.Seconds()
}

// End returns the instant the scene stops.
func (s Scene) End() time.Duration {
	return s.Start + s.Duration
}

// Script is the parsed form of a raw script.
type Script struct {
	Title         string        `json:"title"`
	Scenes        []Scene       `json:"scenes"`
	TotalDuration time.Duration `json:"total_duration"`
}

// SceneKeys returns the keys in script order.
func (s Script) SceneKeys() []string {
	keys := make([]string, 0, len(s.Scenes))
	for _, scene := range s.Scenes {
		keys = append(keys, scene.Key)
	}
	return keys
}

// FormatTimestamp renders a scene start as the canonical key form: mm:ss,
// hh:mm:ss past the hour, with a millisecond suffix only when needed.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	seconds := (ms / 1000) % 60
	frac := ms % 1000

	var out string
	if hours > 0 {
		out = fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	} else {
		out = fmt.Sprintf("%02d:%02d", minutes, seconds)
	}
	if frac > 0 {
		out += fmt.Sprintf(".%03d", frac)
	}
	return out
}
