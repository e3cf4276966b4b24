package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeRetry()
	c.normalizeResources()
	c.normalizeGenerators()
	c.normalizeMedia()
	c.Script.Format = lowerOr(c.Script.Format, defaultScriptFormat)
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.work_dir", &c.Paths.WorkDir, defaultWorkDir},
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.log_dir", &c.Paths.LogDir, ""},
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = lowerOr(c.Logging.Format, defaultLogFormat)
	c.Logging.Level = lowerOr(c.Logging.Level, defaultLogLevel)
	c.Logging.Color = lowerOr(c.Logging.Color, defaultLogColor)
}

func (c *Config) normalizeRetry() {
	kinds := make([]string, 0, len(c.Retry.Retryable))
	seen := make(map[string]struct{}, len(c.Retry.Retryable))
	for _, kind := range c.Retry.Retryable {
		kind = strings.ToLower(strings.TrimSpace(kind))
		if kind == "" {
			continue
		}
		if _, ok := seen[kind]; ok {
			continue
		}
		seen[kind] = struct{}{}
		kinds = append(kinds, kind)
	}
	c.Retry.Retryable = kinds
}

func (c *Config) normalizeResources() {
	c.Resources.Probe = lowerOr(c.Resources.Probe, defaultProbe)
	if c.Resources.PollIntervalMS <= 0 {
		c.Resources.PollIntervalMS = defaultPollIntervalMS
	}
}

func (c *Config) normalizeGenerators() {
	c.Generators.Voice = lowerOr(c.Generators.Voice, defaultVoiceBackend)
	c.Generators.Visual = lowerOr(c.Generators.Visual, defaultVisualBackend)
	c.Generators.UI = lowerOr(c.Generators.UI, defaultUIBackend)
	c.Generators.EspeakBinary = trimOr(c.Generators.EspeakBinary, defaultEspeakBinary)
	c.Generators.EspeakVoice = trimOr(c.Generators.EspeakVoice, defaultEspeakVoice)
	c.Generators.FontFile = strings.TrimSpace(c.Generators.FontFile)
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = trimOr(c.Media.FFmpegBinary, defaultFFmpegBinary)
	c.Media.FFprobeBinary = trimOr(c.Media.FFprobeBinary, defaultFFprobeBinary)
	c.Media.Background = trimOr(c.Media.Background, defaultBackground)
	c.Media.TextColor = trimOr(c.Media.TextColor, defaultTextColor)
}

func lowerOr(value, fallback string) string {
	return strings.ToLower(trimOr(value, fallback))
}

func trimOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
