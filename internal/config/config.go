package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	DataDir   string `toml:"data_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Color  string `toml:"color"`
}

// Pipeline contains orchestrator fan-out and job retention settings.
type Pipeline struct {
	SceneParallelism int `toml:"scene_parallelism"`
	JobTTLHours      int `toml:"job_ttl_hours"`
}

// Retry contains the backoff policy shared by every external boundary.
type Retry struct {
	MaxRetries    int      `toml:"max_retries"`
	BaseDelayMS   int      `toml:"base_delay_ms"`
	BackoffFactor float64  `toml:"backoff_factor"`
	MaxDelayMS    int      `toml:"max_delay_ms"`
	Retryable     []string `toml:"retryable"`
}

// Breaker contains circuit breaker thresholds.
type Breaker struct {
	FailureThreshold       int `toml:"failure_threshold"`
	RecoveryTimeoutSeconds int `toml:"recovery_timeout_seconds"`
	HalfOpenMaxCalls       int `toml:"half_open_max_calls"`
}

// Request is the per-operation resource reservation.
type Request struct {
	MemoryMB int     `toml:"memory_mb"`
	CPUCores float64 `toml:"cpu_cores"`
}

// Resources contains admission limits and per-kind requests.
type Resources struct {
	MaxConcurrentOperations int     `toml:"max_concurrent_operations"`
	CPUCeilingPercent       float64 `toml:"cpu_ceiling_percent"`
	DiskFloorMB             int     `toml:"disk_floor_mb"`
	AcquireTimeoutSeconds   int     `toml:"acquire_timeout_seconds"`
	PollIntervalMS          int     `toml:"poll_interval_ms"`
	Probe                   string  `toml:"probe"`
	Voice                   Request `toml:"voice"`
	Visual                  Request `toml:"visual"`
	UI                      Request `toml:"ui"`
	Assembly                Request `toml:"assembly"`
}

// Generators selects the backend for each generation stage.
type Generators struct {
	Voice              string `toml:"voice"`
	Visual             string `toml:"visual"`
	UI                 string `toml:"ui"`
	CallTimeoutSeconds int    `toml:"call_timeout_seconds"`
	EspeakBinary       string `toml:"espeak_binary"`
	EspeakVoice        string `toml:"espeak_voice"`
	FontFile           string `toml:"font_file"`
}

// Media contains ffmpeg settings and the rendering defaults used when a job
// does not override them.
type Media struct {
	FFmpegBinary        string `toml:"ffmpeg_binary"`
	FFprobeBinary       string `toml:"ffprobe_binary"`
	Width               int    `toml:"width"`
	Height              int    `toml:"height"`
	FPS                 int    `toml:"fps"`
	SampleRate          int    `toml:"sample_rate"`
	OverlayX            int    `toml:"overlay_x"`
	OverlayY            int    `toml:"overlay_y"`
	Background          string `toml:"background"`
	TextColor           string `toml:"text_color"`
	DurationToleranceMS int    `toml:"duration_tolerance_ms"`
}

// Script contains parser settings.
type Script struct {
	Format           string `toml:"format"`
	LastSceneSeconds int    `toml:"last_scene_seconds"`
}

// Config encapsulates all configuration values for storyreel.
//
// Configuration sections by subsystem:
//   - Paths: work, output, log, and data directories
//   - Logging: log format, level, and color
//   - Pipeline: scene fan-out and job retention
//   - Retry, Breaker: resilience policy for external collaborators
//   - Resources: admission ceilings and per-kind requests
//   - Generators: voice, visual, and UI backends
//   - Media: ffmpeg binaries and rendering defaults
//   - Script: parser format and last scene duration
type Config struct {
	Paths      Paths      `toml:"paths"`
	Logging    Logging    `toml:"logging"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Retry      Retry      `toml:"retry"`
	Breaker    Breaker    `toml:"breaker"`
	Resources  Resources  `toml:"resources"`
	Generators Generators `toml:"generators"`
	Media      Media      `toml:"media"`
	Script     Script     `toml:"script"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("storyreel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a job run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.DataDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobStorePath is the sqlite database file under the data directory.
func (c *Config) JobStorePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// JobTTL is how long terminal jobs are kept before PurgeExpired removes them.
func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.Pipeline.JobTTLHours) * time.Hour
}

// CallTimeout bounds one generator invocation.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Generators.CallTimeoutSeconds) * time.Second
}

// DurationTolerance is the accepted gap between probed and planned output duration.
func (c *Config) DurationTolerance() time.Duration {
	return time.Duration(c.Media.DurationToleranceMS) * time.Millisecond
}

// LastSceneDuration is used when the script does not declare a total duration.
func (c *Config) LastSceneDuration() time.Duration {
	return time.Duration(c.Script.LastSceneSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}
