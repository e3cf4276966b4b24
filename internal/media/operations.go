package media

import (
	"context"
	"time"

	"storyreel/internal/model"
)

// Canvas describes the frame and audio format every segment is normalized to.
type Canvas struct {
	Width      int
	Height     int
	FPS        int
	SampleRate int
	Background string
}

// TrimRequest cuts Input from Start for exactly Duration, padding when the
// source runs short.
type TrimRequest struct {
	Kind     model.ArtifactKind
	Input    string
	Output   string
	Start    time.Duration
	Duration time.Duration
	Canvas   Canvas
}

// BlankRequest synthesizes filler content of exactly Duration: silence for
// voice, an opaque background card for visual, fully transparent frames for ui.
type BlankRequest struct {
	Kind     model.ArtifactKind
	Output   string
	Duration time.Duration
	Canvas   Canvas
}

// OverlayRequest layers Layer over Base at (X, Y).
type OverlayRequest struct {
	Base   string
	Layer  string
	Output string
	X      int
	Y      int
}

// Operations is the media collaborator used by assembly and generators.
type Operations interface {
	Trim(ctx context.Context, req TrimRequest) error
	Concat(ctx context.Context, kind model.ArtifactKind, inputs []string, output string) error
	Overlay(ctx context.Context, req OverlayRequest) error
	Mux(ctx context.Context, video, audio, output string) error
	Silence(ctx context.Context, duration time.Duration, sampleRate int, output string) error
	Blank(ctx context.Context, req BlankRequest) error
	Probe(ctx context.Context, path string) (time.Duration, error)
}

// Extension returns the container extension used for segments of kind.
func Extension(kind model.ArtifactKind) string {
	switch kind {
	case model.KindVoice:
		return ".wav"
	case model.KindUI:
		return ".mov"
	default:
		return ".mp4"
	}
}
