package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"storyreel/internal/config"
)

// Requirement defines an external binary storyreel relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement after resolution against PATH. Path is set only
// when the binary was found.
type Status struct {
	Requirement
	Available bool
	Path      string
	Detail    string
}

// Requirements lists the binaries the configured backends invoke. espeak is
// only required when the espeak voice backend is selected.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Description: "Renders scene artifacts and assembles the final video"},
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Description: "Verifies the duration of assembled output"},
		{
			Name:        "espeak-ng",
			Command:     cfg.Generators.EspeakBinary,
			Description: "Synthesizes narration for the espeak voice backend",
			Optional:    cfg.Generators.Voice != "espeak",
		},
	}
}

// CheckBinaries resolves every requirement, preserving order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		results[i] = resolve(req)
	}
	return results
}

func resolve(req Requirement) Status {
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

// Missing joins the details of every unavailable required dependency, or
// returns nil when all are present.
func Missing(statuses []Status) error {
	var errs []error
	for _, s := range statuses {
		if s.Available || s.Optional {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %s", s.Name, s.Detail))
	}
	return errors.Join(errs...)
}
