package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"storyreel/internal/logging"
	"storyreel/internal/media/ffprobe"
	"storyreel/internal/model"
	"storyreel/internal/services"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

// FFmpeg implements Operations by shelling out to ffmpeg and ffprobe.
type FFmpeg struct {
	binary string
	prober *ffprobe.Prober
	run    commandRunner
	logger *slog.Logger
}

var _ Operations = (*FFmpeg)(nil)

// NewFFmpeg constructs the ffmpeg backend.
func NewFFmpeg(binary, probeBinary string, logger *slog.Logger) *FFmpeg {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		binary: binary,
		prober: ffprobe.New(probeBinary),
		run:    defaultCommandRunner,
		logger: logging.NewComponentLogger(logger, "media"),
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (f *FFmpeg) WithCommandRunner(r commandRunner) *FFmpeg {
	if f != nil && r != nil {
		f.run = r
	}
	return f
}

// WithProber replaces the ffprobe wrapper used by Probe.
func (f *FFmpeg) WithProber(p *ffprobe.Prober) *FFmpeg {
	if f != nil && p != nil {
		f.prober = p
	}
	return f
}

// Trim implements Operations.
func (f *FFmpeg) Trim(ctx context.Context, req TrimRequest) error {
	if req.Duration <= 0 {
		return services.Wrap(services.ErrValidation, "", "trim", "duration must be positive", nil)
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if req.Start > 0 {
		args = append(args, "-ss", seconds(req.Start))
	}
	args = append(args, "-i", req.Input)
	dur := seconds(req.Duration)
	switch req.Kind {
	case model.KindVoice:
		args = append(args, "-vn", "-af", "apad", "-t", dur)
		args = append(args, audioCodecArgs(req.Canvas)...)
	case model.KindUI:
		filter := fmt.Sprintf("%s,format=rgba,tpad=stop_mode=add:stop_duration=%s:color=black@0.0", scaleFilter(req.Canvas), dur)
		args = append(args, "-an", "-vf", filter, "-t", dur)
		args = append(args, alphaCodecArgs()...)
	default:
		filter := fmt.Sprintf("%s,tpad=stop_mode=add:stop_duration=%s:color=%s", scaleFilter(req.Canvas), dur, background(req.Canvas))
		args = append(args, "-an", "-vf", filter, "-t", dur)
		args = append(args, videoCodecArgs()...)
	}
	args = append(args, req.Output)
	return f.exec(ctx, "trim", req.Output, args)
}

// Concat implements Operations using the concat demuxer. Segments must share
// codec parameters, which Trim and Blank guarantee.
func (f *FFmpeg) Concat(ctx context.Context, kind model.ArtifactKind, inputs []string, output string) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrValidation, "", "concat", "no inputs", nil)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("concat: ensure directory: %w", err)
	}
	listPath := output + ".concat.txt"
	var list strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			return fmt.Errorf("concat: resolve %s: %w", input, err)
		}
		list.WriteString("file '")
		list.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		list.WriteString("'\n")
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("concat: write list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", output}
	return f.exec(ctx, "concat "+string(kind), output, args)
}

// Overlay implements Operations.
func (f *FFmpeg) Overlay(ctx context.Context, req OverlayRequest) error {
	filter := fmt.Sprintf("[0:v][1:v]overlay=x=%d:y=%d:format=auto:eof_action=pass[v]", req.X, req.Y)
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", req.Base, "-i", req.Layer,
		"-filter_complex", filter, "-map", "[v]", "-an"}
	args = append(args, videoCodecArgs()...)
	args = append(args, req.Output)
	return f.exec(ctx, "overlay", req.Output, args)
}

// Mux implements Operations.
func (f *FFmpeg) Mux(ctx context.Context, video, audio, output string) error {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", video, "-i", audio,
		"-map", "0:v:0", "-map", "1:a:0", "-c:v", "copy", "-c:a", "aac", "-b:a", "192k",
		"-movflags", "+faststart", output}
	return f.exec(ctx, "mux", output, args)
}

// Silence implements Operations without invoking ffmpeg.
func (f *FFmpeg) Silence(ctx context.Context, duration time.Duration, sampleRate int, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := WriteSilence(output, duration, sampleRate); err != nil {
		return services.Wrap(services.ErrExternalTool, "", "silence", "", err)
	}
	return nil
}

// Blank implements Operations.
func (f *FFmpeg) Blank(ctx context.Context, req BlankRequest) error {
	if req.Duration <= 0 {
		return services.Wrap(services.ErrValidation, "", "blank", "duration must be positive", nil)
	}
	if req.Kind == model.KindVoice {
		return f.Silence(ctx, req.Duration, req.Canvas.SampleRate, req.Output)
	}
	dur := seconds(req.Duration)
	size := fmt.Sprintf("%dx%d", req.Canvas.Width, req.Canvas.Height)
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "lavfi"}
	if req.Kind == model.KindUI {
		args = append(args, "-i", fmt.Sprintf("color=c=black@0.0:s=%s:r=%d:d=%s,format=rgba", size, req.Canvas.FPS, dur), "-t", dur)
		args = append(args, alphaCodecArgs()...)
	} else {
		args = append(args, "-i", fmt.Sprintf("color=c=%s:s=%s:r=%d:d=%s", background(req.Canvas), size, req.Canvas.FPS, dur), "-t", dur)
		args = append(args, videoCodecArgs()...)
	}
	args = append(args, req.Output)
	return f.exec(ctx, "blank "+string(req.Kind), req.Output, args)
}

// Probe implements Operations.
func (f *FFmpeg) Probe(ctx context.Context, path string) (time.Duration, error) {
	result, err := f.prober.Inspect(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, services.Wrap(services.ErrExternalTool, "", "probe", path, err)
	}
	d, err := result.Duration()
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "", "probe", path, err)
	}
	return d, nil
}

func (f *FFmpeg) exec(ctx context.Context, operation, output string, args []string) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("%s: ensure directory: %w", operation, err)
	}
	logging.WithContext(ctx, f.logger).Debug("executing ffmpeg",
		logging.String("operation", operation),
		logging.String("output", output),
		logging.String("args", strings.Join(args, " ")),
	)
	if err := f.run(ctx, f.binary, args...); err != nil {
		_ = os.Remove(output)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrExternalTool, "", "ffmpeg "+operation, "", err)
	}
	return nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func scaleFilter(c Canvas) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=%s,fps=%d",
		c.Width, c.Height, c.Width, c.Height, background(c), c.FPS)
}

func background(c Canvas) string {
	if strings.TrimSpace(c.Background) == "" {
		return "black"
	}
	return c.Background
}

func audioCodecArgs(c Canvas) []string {
	rate := c.SampleRate
	if rate <= 0 {
		rate = 44100
	}
	return []string{"-ar", strconv.Itoa(rate), "-ac", strconv.Itoa(silenceChannels), "-c:a", "pcm_s16le"}
}

func videoCodecArgs() []string {
	return []string{"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p"}
}

func alphaCodecArgs() []string {
	return []string{"-c:v", "qtrle", "-pix_fmt", "argb"}
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
