package generator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"storyreel/internal/config"
	"storyreel/internal/model"
	"storyreel/internal/services"
)

// Generator produces one artifact of its kind for a scene.
type Generator interface {
	Kind() model.ArtifactKind
	Generate(ctx context.Context, scene model.Scene, settings model.Settings, outDir string) (string, error)
}

// Set is the generator chosen for each stage.
type Set struct {
	Voice  Generator
	Visual Generator
	UI     Generator
}

// For returns the generator of kind.
func (s Set) For(kind model.ArtifactKind) Generator {
	switch kind {
	case model.KindVoice:
		return s.Voice
	case model.KindVisual:
		return s.Visual
	case model.KindUI:
		return s.UI
	}
	return nil
}

type commandRunner func(ctx context.Context, name string, args ...string) error

// Option customizes generators built by NewSet.
type Option func(*options)

type options struct {
	run commandRunner
}

// WithCommandRunner replaces process execution, typically for tests.
func WithCommandRunner(r func(ctx context.Context, name string, args ...string) error) Option {
	return func(o *options) {
		if r != nil {
			o.run = r
		}
	}
}

// NewSet builds the configured backends.
func NewSet(cfg *config.Config, logger *slog.Logger, opts ...Option) (Set, error) {
	o := options{run: defaultCommandRunner}
	for _, opt := range opts {
		opt(&o)
	}
	r := renderer{
		ffmpeg:     cfg.Media.FFmpegBinary,
		fontFile:   cfg.Generators.FontFile,
		sampleRate: cfg.Media.SampleRate,
		run:        o.run,
	}

	var set Set
	switch cfg.Generators.Voice {
	case "silent":
		set.Voice = &SilentVoice{sampleRate: cfg.Media.SampleRate}
	case "espeak":
		set.Voice = &EspeakVoice{binary: cfg.Generators.EspeakBinary, voice: cfg.Generators.EspeakVoice, renderer: r, logger: logger}
	default:
		return Set{}, fmt.Errorf("generators.voice: unsupported backend %q", cfg.Generators.Voice)
	}
	switch cfg.Generators.Visual {
	case "card":
		set.Visual = &CardVisual{renderer: r}
	default:
		return Set{}, fmt.Errorf("generators.visual: unsupported backend %q", cfg.Generators.Visual)
	}
	switch cfg.Generators.UI {
	case "caption":
		set.UI = &CaptionUI{renderer: r}
	case "none":
		set.UI = NoUI{}
	default:
		return Set{}, fmt.Errorf("generators.ui: unsupported backend %q", cfg.Generators.UI)
	}
	return set, nil
}

// ArtifactPath is where a generator writes the artifact of kind for scene.
func ArtifactPath(outDir string, kind model.ArtifactKind, scene model.Scene, ext string) string {
	return filepath.Join(outDir, string(kind), model.SceneFileStem(scene.Key)+ext)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure artifact directory: %w", err)
	}
	return nil
}

func toolError(kind model.ArtifactKind, scene model.Scene, operation string, err error) error {
	return services.Wrap(services.ErrExternalTool, string(kind), operation, "scene "+scene.Key, err)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
