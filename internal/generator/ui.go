package generator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"storyreel/internal/model"
)

// CaptionUI renders the scene's on-screen text on transparent frames.
type CaptionUI struct {
	renderer renderer
}

// Kind implements Generator.
func (g *CaptionUI) Kind() model.ArtifactKind { return model.KindUI }

// Generate implements Generator. Scenes without on-screen text get no artifact.
func (g *CaptionUI) Generate(ctx context.Context, scene model.Scene, settings model.Settings, outDir string) (string, error) {
	if len(scene.OnScreenText) == 0 {
		return "", nil
	}
	path := ArtifactPath(outDir, model.KindUI, scene, ".mov")
	if err := ensureDir(path); err != nil {
		return "", err
	}
	source := fmt.Sprintf("color=c=black@0.0:s=%dx%d:r=%d:d=%s,format=rgba",
		settings.Width, settings.Height, settings.FPS, sceneSeconds(scene.Duration))

	textPath := strings.TrimSuffix(path, ".mov") + ".txt"
	defer os.Remove(textPath)
	filter, err := g.renderer.drawText(textPath, scene.OnScreenText, settings.TextColor, fontSize(settings.Height, 24), "h-text_h-40")
	if err != nil {
		return "", err
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "lavfi", "-i", source,
		"-vf", filter, "-t", sceneSeconds(scene.Duration), "-c:v", "qtrle", "-pix_fmt", "argb", path}
	if err := g.renderer.ffmpegRun(ctx, scene, model.KindUI, "caption", args); err != nil {
		return "", err
	}
	return path, nil
}

// NoUI never produces an overlay.
type NoUI struct{}

// Kind implements Generator.
func (NoUI) Kind() model.ArtifactKind { return model.KindUI }

// Generate implements Generator.
func (NoUI) Generate(ctx context.Context, _ model.Scene, _ model.Settings, _ string) (string, error) {
	return "", ctx.Err()
}
