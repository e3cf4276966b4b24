package generator

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"storyreel/internal/logging"
	"storyreel/internal/media"
	"storyreel/internal/model"
)

// SilentVoice writes a silent track of the scene's duration. It keeps the
// pipeline runnable where no speech engine is installed.
type SilentVoice struct {
	sampleRate int
}

// NewSilentVoice constructs a SilentVoice at sampleRate.
func NewSilentVoice(sampleRate int) *SilentVoice {
	return &SilentVoice{sampleRate: sampleRate}
}

// Kind implements Generator.
func (g *SilentVoice) Kind() model.ArtifactKind { return model.KindVoice }

// Generate implements Generator.
func (g *SilentVoice) Generate(ctx context.Context, scene model.Scene, _ model.Settings, outDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := ArtifactPath(outDir, model.KindVoice, scene, ".wav")
	if err := media.WriteSilence(path, scene.Duration, g.sampleRate); err != nil {
		return "", toolError(model.KindVoice, scene, "silence", err)
	}
	return path, nil
}

// EspeakVoice speaks the scene narration with espeak-ng, then normalizes the
// WAV to the pipeline sample rate.
type EspeakVoice struct {
	binary   string
	voice    string
	renderer renderer
	logger   *slog.Logger
}

// Kind implements Generator.
func (g *EspeakVoice) Kind() model.ArtifactKind { return model.KindVoice }

// Generate implements Generator. Scenes without narration get no artifact.
func (g *EspeakVoice) Generate(ctx context.Context, scene model.Scene, settings model.Settings, outDir string) (string, error) {
	text := strings.TrimSpace(strings.Join(scene.Narration, " "))
	if text == "" {
		return "", nil
	}
	voice := settings.Voice
	if voice == "" {
		voice = g.voice
	}

	raw := ArtifactPath(outDir, model.KindVoice, scene, ".raw.wav")
	path := ArtifactPath(outDir, model.KindVoice, scene, ".wav")
	if err := ensureDir(path); err != nil {
		return "", err
	}
	defer os.Remove(raw)

	logging.WithContext(ctx, logging.NewComponentLogger(g.logger, "generator")).Debug("speaking narration",
		logging.String("voice", voice),
		logging.Int("characters", len(text)),
	)
	if err := g.renderer.run(ctx, g.binary, "-v", voice, "-w", raw, text); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", toolError(model.KindVoice, scene, "espeak", err)
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", raw,
		"-ar", strconv.Itoa(g.renderer.sampleRate), "-ac", "1", "-c:a", "pcm_s16le", path}
	if err := g.renderer.ffmpegRun(ctx, scene, model.KindVoice, "normalize", args); err != nil {
		return "", err
	}
	return path, nil
}

func sceneSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
