package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"storyreel/internal/media"
	"storyreel/internal/model"
)

type fakeGenerator struct {
	kind  model.ArtifactKind
	fn    func(ctx context.Context, scene model.Scene) (string, error)
	calls atomic.Int64
}

func (g *fakeGenerator) Kind() model.ArtifactKind { return g.kind }

func (g *fakeGenerator) Generate(ctx context.Context, scene model.Scene, _ model.Settings, outDir string) (string, error) {
	g.calls.Add(1)
	if g.fn != nil {
		return g.fn(ctx, scene)
	}
	return filepath.Join(outDir, string(g.kind), model.SceneFileStem(scene.Key)+media.Extension(g.kind)), nil
}

// fakeMedia records the duration of every output so probing the final file
// reports the composed length.
type fakeMedia struct {
	mu        sync.Mutex
	durations map[string]time.Duration
	blanks    int
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{durations: map[string]time.Duration{}}
}

func (f *fakeMedia) record(path string, d time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		return err
	}
	f.mu.Lock()
	f.durations[path] = d
	f.mu.Unlock()
	return nil
}

func (f *fakeMedia) lookup(path string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.durations[path]
}

func (f *fakeMedia) Trim(_ context.Context, req media.TrimRequest) error {
	return f.record(req.Output, req.Duration)
}

func (f *fakeMedia) Concat(_ context.Context, _ model.ArtifactKind, inputs []string, output string) error {
	var total time.Duration
	for _, in := range inputs {
		total += f.lookup(in)
	}
	return f.record(output, total)
}

func (f *fakeMedia) Overlay(_ context.Context, req media.OverlayRequest) error {
	return f.record(req.Output, f.lookup(req.Base))
}

func (f *fakeMedia) Mux(_ context.Context, video, _ string, output string) error {
	return f.record(output, f.lookup(video))
}

func (f *fakeMedia) Silence(_ context.Context, d time.Duration, _ int, output string) error {
	return f.record(output, d)
}

func (f *fakeMedia) Blank(_ context.Context, req media.BlankRequest) error {
	f.mu.Lock()
	f.blanks++
	f.mu.Unlock()
	return f.record(req.Output, req.Duration)
}

func (f *fakeMedia) Probe(_ context.Context, path string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.durations[path]
	if !ok {
		return 0, errors.New("missing output")
	}
	return d, nil
}
