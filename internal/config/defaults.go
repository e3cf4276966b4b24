package config

const (
	defaultConfigPath = "~/.config/storyreel/config.toml"

	defaultWorkDir   = "~/.local/share/storyreel/work"
	defaultOutputDir = "~/Videos/storyreel"
	defaultLogDir    = "~/.local/share/storyreel/logs"
	defaultDataDir   = "~/.local/share/storyreel"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
	defaultLogColor  = "auto"

	defaultSceneParallelism = 3
	defaultJobTTLHours      = 168

	defaultMaxRetries    = 3
	defaultBaseDelayMS   = 1000
	defaultBackoffFactor = 2.0
	defaultMaxDelayMS    = 60000

	defaultFailureThreshold       = 5
	defaultRecoveryTimeoutSeconds = 30
	defaultHalfOpenMaxCalls       = 1

	defaultMaxConcurrentOperations = 4
	defaultCPUCeilingPercent       = 90
	defaultDiskFloorMB             = 512
	defaultAcquireTimeoutSeconds   = 60
	defaultPollIntervalMS          = 250
	defaultProbe                   = "system"

	defaultVoiceBackend       = "silent"
	defaultVisualBackend      = "card"
	defaultUIBackend          = "caption"
	defaultCallTimeoutSeconds = 120
	defaultEspeakBinary       = "espeak-ng"
	defaultEspeakVoice        = "en"

	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultWidth               = 1280
	defaultHeight              = 720
	defaultFPS                 = 30
	defaultSampleRate          = 44100
	defaultOverlayY            = 560
	defaultBackground          = "black"
	defaultTextColor           = "white"
	defaultDurationToleranceMS = 100

	defaultScriptFormat     = "auto"
	defaultLastSceneSeconds = 5
)

// defaultRetryable lists the marker kinds retried by default.
var defaultRetryable = []string{"transient", "timeout", "resource_exhausted", "external_tool"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			DataDir:   defaultDataDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			Color:  defaultLogColor,
		},
		Pipeline: Pipeline{
			SceneParallelism: defaultSceneParallelism,
			JobTTLHours:      defaultJobTTLHours,
		},
		Retry: Retry{
			MaxRetries:    defaultMaxRetries,
			BaseDelayMS:   defaultBaseDelayMS,
			BackoffFactor: defaultBackoffFactor,
			MaxDelayMS:    defaultMaxDelayMS,
			Retryable:     append([]string(nil), defaultRetryable...),
		},
		Breaker: Breaker{
			FailureThreshold:       defaultFailureThreshold,
			RecoveryTimeoutSeconds: defaultRecoveryTimeoutSeconds,
			HalfOpenMaxCalls:       defaultHalfOpenMaxCalls,
		},
		Resources: Resources{
			MaxConcurrentOperations: defaultMaxConcurrentOperations,
			CPUCeilingPercent:       defaultCPUCeilingPercent,
			DiskFloorMB:             defaultDiskFloorMB,
			AcquireTimeoutSeconds:   defaultAcquireTimeoutSeconds,
			PollIntervalMS:          defaultPollIntervalMS,
			Probe:                   defaultProbe,
			Voice:                   Request{MemoryMB: 128, CPUCores: 0.5},
			Visual:                  Request{MemoryMB: 256, CPUCores: 1},
			UI:                      Request{MemoryMB: 128, CPUCores: 0.5},
			Assembly:                Request{MemoryMB: 512, CPUCores: 2},
		},
		Generators: Generators{
			Voice:              defaultVoiceBackend,
			Visual:             defaultVisualBackend,
			UI:                 defaultUIBackend,
			CallTimeoutSeconds: defaultCallTimeoutSeconds,
			EspeakBinary:       defaultEspeakBinary,
			EspeakVoice:        defaultEspeakVoice,
		},
		Media: Media{
			FFmpegBinary:        defaultFFmpegBinary,
			FFprobeBinary:       defaultFFprobeBinary,
			Width:               defaultWidth,
			Height:              defaultHeight,
			FPS:                 defaultFPS,
			SampleRate:          defaultSampleRate,
			OverlayY:            defaultOverlayY,
			Background:          defaultBackground,
			TextColor:           defaultTextColor,
			DurationToleranceMS: defaultDurationToleranceMS,
		},
		Script: Script{
			Format:           defaultScriptFormat,
			LastSceneSeconds: defaultLastSceneSeconds,
		},
	}
}
