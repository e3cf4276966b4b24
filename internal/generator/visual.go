package generator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"storyreel/internal/model"
)

// CardVisual renders an opaque colour card showing the scene's visual
// description.
type CardVisual struct {
	renderer renderer
}

// Kind implements Generator.
func (g *CardVisual) Kind() model.ArtifactKind { return model.KindVisual }

// Generate implements Generator.
func (g *CardVisual) Generate(ctx context.Context, scene model.Scene, settings model.Settings, outDir string) (string, error) {
	path := ArtifactPath(outDir, model.KindVisual, scene, ".mp4")
	if err := ensureDir(path); err != nil {
		return "", err
	}
	source := fmt.Sprintf("color=c=%s:s=%dx%d:r=%d:d=%s",
		settings.Background, settings.Width, settings.Height, settings.FPS, sceneSeconds(scene.Duration))
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "lavfi", "-i", source}

	lines := scene.Visuals
	if len(lines) == 0 {
		lines = []string{scene.Key}
	}
	textPath := strings.TrimSuffix(path, ".mp4") + ".txt"
	defer os.Remove(textPath)
	filter, err := g.renderer.drawText(textPath, lines, settings.TextColor, fontSize(settings.Height, 18), "(h-text_h)/2")
	if err != nil {
		return "", err
	}
	args = append(args, "-vf", filter, "-t", sceneSeconds(scene.Duration),
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p", path)
	if err := g.renderer.ffmpegRun(ctx, scene, model.KindVisual, "card", args); err != nil {
		return "", err
	}
	return path, nil
}

func fontSize(height, divisor int) int {
	size := height / divisor
	if size < 12 {
		return 12
	}
	return size
}
