package media

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// Silence output format: mono 16-bit PCM, matching the ffmpeg voice segments.
const (
	silenceChannels  = 1
	silencePrecision = 2
)

// WriteSilence encodes exactly duration of silence at sampleRate to path.
func WriteSilence(path string, duration time.Duration, sampleRate int) error {
	if duration <= 0 {
		return fmt.Errorf("silence: duration must be positive, got %s", duration)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("silence: sample rate must be positive, got %d", sampleRate)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("silence: ensure directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("silence: create %s: %w", path, err)
	}

	rate := beep.SampleRate(sampleRate)
	format := beep.Format{SampleRate: rate, NumChannels: silenceChannels, Precision: silencePrecision}
	if err := wav.Encode(file, beep.Silence(rate.N(duration)), format); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("silence: encode wav: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("silence: close %s: %w", path, err)
	}
	return nil
}
