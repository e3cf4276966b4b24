package config

import (
	"errors"
	"fmt"

	"storyreel/internal/services"
)

var (
	voiceBackends  = []string{"silent", "espeak"}
	visualBackends = []string{"card"}
	uiBackends     = []string{"caption", "none"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateLogging,
		c.validatePipeline,
		c.validateRetry,
		c.validateBreaker,
		c.validateResources,
		c.validateGenerators,
		c.validateMedia,
		c.validateScript,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("logging.color must be auto, always, or never, got %q", c.Logging.Color)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.SceneParallelism <= 0 {
		return errors.New("pipeline.scene_parallelism must be positive")
	}
	if c.Pipeline.JobTTLHours < 0 {
		return errors.New("pipeline.job_ttl_hours must be zero or positive")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be zero or positive")
	}
	if c.Retry.BaseDelayMS < 0 || c.Retry.MaxDelayMS < 0 {
		return errors.New("retry delays must be zero or positive")
	}
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return errors.New("retry.max_delay_ms must be at least retry.base_delay_ms")
	}
	if c.Retry.BackoffFactor < 1 {
		return errors.New("retry.backoff_factor must be at least 1")
	}
	for _, kind := range c.Retry.Retryable {
		if _, ok := services.MarkerForKind(kind); !ok {
			return fmt.Errorf("retry.retryable: unknown error kind %q", kind)
		}
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if c.Breaker.FailureThreshold <= 0 {
		return errors.New("breaker.failure_threshold must be positive")
	}
	if c.Breaker.RecoveryTimeoutSeconds <= 0 {
		return errors.New("breaker.recovery_timeout_seconds must be positive")
	}
	if c.Breaker.HalfOpenMaxCalls != 1 {
		return errors.New("breaker.half_open_max_calls must be 1 (one trial closes or reopens the circuit)")
	}
	return nil
}

func (c *Config) validateResources() error {
	r := c.Resources
	if r.MaxConcurrentOperations <= 0 {
		return errors.New("resources.max_concurrent_operations must be positive")
	}
	if r.CPUCeilingPercent < 0 || r.CPUCeilingPercent > 100 {
		return errors.New("resources.cpu_ceiling_percent must be between 0 and 100")
	}
	if r.DiskFloorMB < 0 {
		return errors.New("resources.disk_floor_mb must be zero or positive")
	}
	if r.AcquireTimeoutSeconds <= 0 {
		return errors.New("resources.acquire_timeout_seconds must be positive")
	}
	switch r.Probe {
	case "system", "none":
	default:
		return fmt.Errorf("resources.probe must be system or none, got %q", r.Probe)
	}
	for name, req := range map[string]Request{"voice": r.Voice, "visual": r.Visual, "ui": r.UI, "assembly": r.Assembly} {
		if req.MemoryMB < 0 || req.CPUCores < 0 {
			return fmt.Errorf("resources.%s requests must be zero or positive", name)
		}
	}
	return nil
}

func (c *Config) validateGenerators() error {
	if !contains(voiceBackends, c.Generators.Voice) {
		return fmt.Errorf("generators.voice must be one of %v, got %q", voiceBackends, c.Generators.Voice)
	}
	if !contains(visualBackends, c.Generators.Visual) {
		return fmt.Errorf("generators.visual must be one of %v, got %q", visualBackends, c.Generators.Visual)
	}
	if !contains(uiBackends, c.Generators.UI) {
		return fmt.Errorf("generators.ui must be one of %v, got %q", uiBackends, c.Generators.UI)
	}
	if c.Generators.CallTimeoutSeconds <= 0 {
		return errors.New("generators.call_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateMedia() error {
	m := c.Media
	if m.Width <= 0 || m.Height <= 0 {
		return errors.New("media.width and media.height must be positive")
	}
	if m.Width%2 != 0 || m.Height%2 != 0 {
		return errors.New("media.width and media.height must be even")
	}
	if m.FPS <= 0 {
		return errors.New("media.fps must be positive")
	}
	if m.SampleRate <= 0 {
		return errors.New("media.sample_rate must be positive")
	}
	if m.OverlayX < 0 || m.OverlayY < 0 || m.OverlayX >= m.Width || m.OverlayY >= m.Height {
		return errors.New("media.overlay_x and media.overlay_y must fall inside the frame")
	}
	if m.DurationToleranceMS < 0 {
		return errors.New("media.duration_tolerance_ms must be zero or positive")
	}
	return nil
}

func (c *Config) validateScript() error {
	switch c.Script.Format {
	case "auto", "text", "yaml":
	default:
		return fmt.Errorf("script.format must be auto, text, or yaml, got %q", c.Script.Format)
	}
	if c.Script.LastSceneSeconds <= 0 {
		return errors.New("script.last_scene_seconds must be positive")
	}
	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
