package generator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"storyreel/internal/model"
)

// renderer holds the ffmpeg plumbing shared by the card and caption backends.
type renderer struct {
	ffmpeg     string
	fontFile   string
	sampleRate int
	run        commandRunner
}

func (r renderer) ffmpegRun(ctx context.Context, scene model.Scene, kind model.ArtifactKind, operation string, args []string) error {
	if err := r.run(ctx, r.ffmpeg, args...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return toolError(kind, scene, operation, err)
	}
	return nil
}

// drawText writes lines to a sidecar text file and returns a drawtext filter
// reading it, so scene text never needs filtergraph escaping.
func (r renderer) drawText(textPath string, lines []string, color string, fontSize int, y string) (string, error) {
	if err := os.WriteFile(textPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return "", fmt.Errorf("write caption text: %w", err)
	}
	filter := fmt.Sprintf("drawtext=textfile=%s:fontcolor=%s:fontsize=%d:line_spacing=8:x=(w-text_w)/2:y=%s",
		escapeFilterPath(textPath), color, fontSize, y)
	if r.fontFile != "" {
		filter += ":fontfile=" + escapeFilterPath(r.fontFile)
	}
	return filter, nil
}

// graphEscaper protects characters the filtergraph parser consumes before
// the filter sees its option string.
var graphEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)

// escapeFilterPath quotes path for a filter option, where a literal quote is
// written as '\'' (close, escaped quote, reopen), then escapes the result for
// the filtergraph level.
func escapeFilterPath(path string) string {
	quoted := "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
	return graphEscaper.Replace(quoted)
}
