package orchestrator

import (
	"fmt"
	"log/slog"
	"time"

	"storyreel/internal/config"
	"storyreel/internal/generator"
	"storyreel/internal/media"
	"storyreel/internal/resources"
	"storyreel/internal/script"
)

// Dependencies are the collaborators an Orchestrator drives. Zero fields are
// built from configuration by New.
type Dependencies struct {
	Parser     script.Parser
	Generators generator.Set
	// Media is the raw backend; the orchestrator wraps it with the media
	// breaker and retry handler.
	Media     media.Operations
	Resources *resources.Manager
}

func (d Dependencies) withDefaults(cfg *config.Config, logger *slog.Logger) (Dependencies, error) {
	if d.Parser == nil {
		parser, err := script.New(script.Format(cfg.Script.Format), script.Options{LastSceneDuration: cfg.LastSceneDuration()})
		if err != nil {
			return d, err
		}
		d.Parser = parser
	}
	if d.Generators.Voice == nil || d.Generators.Visual == nil || d.Generators.UI == nil {
		set, err := generator.NewSet(cfg, logger)
		if err != nil {
			return d, fmt.Errorf("build generators: %w", err)
		}
		if d.Generators.Voice == nil {
			d.Generators.Voice = set.Voice
		}
		if d.Generators.Visual == nil {
			d.Generators.Visual = set.Visual
		}
		if d.Generators.UI == nil {
			d.Generators.UI = set.UI
		}
	}
	if d.Media == nil {
		d.Media = media.NewFFmpeg(cfg.Media.FFmpegBinary, cfg.Media.FFprobeBinary, logger)
	}
	if d.Resources == nil {
		d.Resources = NewResourceManager(cfg, logger)
	}
	return d, nil
}

// NewResourceManager builds the admission manager described by cfg.
func NewResourceManager(cfg *config.Config, logger *slog.Logger) *resources.Manager {
	r := cfg.Resources
	limits := resources.Limits{
		MaxConcurrent:     r.MaxConcurrentOperations,
		CPUCeilingPercent: r.CPUCeilingPercent,
		DiskFloorMB:       r.DiskFloorMB,
		AcquireTimeout:    time.Duration(r.AcquireTimeoutSeconds) * time.Second,
		PollInterval:      time.Duration(r.PollIntervalMS) * time.Millisecond,
	}
	return resources.NewManager(limits, resources.NewProbe(r.Probe, cfg.Paths.WorkDir), logger)
}

func requestFor(c config.Request) resources.Request {
	return resources.Request{MemoryMB: c.MemoryMB, CPUCores: c.CPUCores}
}
