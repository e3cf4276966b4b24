package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"storyreel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Resilience settings are tightened so failure paths finish quickly, and the
// resource probe is disabled so tests do not depend on host load.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	for dir, target := range map[string]*string{
		"work":   &cfg.Paths.WorkDir,
		"output": &cfg.Paths.OutputDir,
		"logs":   &cfg.Paths.LogDir,
		"data":   &cfg.Paths.DataDir,
	} {
		*target = filepath.Join(base, dir)
	}
	cfg.Retry.BaseDelayMS = 1
	cfg.Retry.MaxDelayMS = 5
	cfg.Resources.Probe = "none"
	cfg.Resources.AcquireTimeoutSeconds = 5
	cfg.Resources.PollIntervalMS = 5
	cfg.Media.SampleRate = 8000

	b := &configBuilder{t: t, baseDir: base, cfg: &cfg}
	for _, opt := range opts {
		opt(b)
	}
	return b.cfg
}

// WithRetries overrides the retry budget on the test config.
func WithRetries(maxRetries int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retry.MaxRetries = maxRetries
	}
}

// WithBreakerThreshold overrides the consecutive failure threshold.
func WithBreakerThreshold(threshold int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Breaker.FailureThreshold = threshold
	}
}

// WithSceneParallelism overrides the per-stage fan-out.
func WithSceneParallelism(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.SceneParallelism = n
	}
}

// WithStubbedBinaries puts no-op executables for names first on PATH for
// the rest of the test. With no names the ffmpeg, ffprobe, and espeak-ng
// defaults are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	if len(names) == 0 {
		names = []string{"ffmpeg", "ffprobe", "espeak-ng"}
	}
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("create stub dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
