package script

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"storyreel/internal/model"
	"storyreel/internal/services"
)

// Parser converts raw script text into scenes. Errors match services.ErrParse.
type Parser interface {
	Parse(raw string) (model.Script, error)
}

// Format selects a script grammar.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatYAML Format = "yaml"
)

// DefaultLastSceneDuration is used for the final scene when the script has
// no Duration header.
const DefaultLastSceneDuration = 5 * time.Second

// Options tunes parser behaviour.
type Options struct {
	LastSceneDuration time.Duration
}

// New returns the parser for format. FormatAuto sniffs the content.
func New(format Format, opts Options) (Parser, error) {
	if opts.LastSceneDuration <= 0 {
		opts.LastSceneDuration = DefaultLastSceneDuration
	}
	switch Format(strings.ToLower(strings.TrimSpace(string(format)))) {
	case FormatText:
		return &TextParser{opts: opts}, nil
	case FormatYAML:
		return &YAMLParser{opts: opts}, nil
	case FormatAuto, "":
		return &autoParser{text: &TextParser{opts: opts}, yaml: &YAMLParser{opts: opts}}, nil
	default:
		return nil, fmt.Errorf("script format: unsupported value %q", format)
	}
}

// FormatForPath picks a grammar from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".txt", ".md", ".script":
		return FormatText
	default:
		return FormatAuto
	}
}

type autoParser struct {
	text *TextParser
	yaml *YAMLParser
}

func (p *autoParser) Parse(raw string) (model.Script, error) {
	if looksLikeYAML(raw) {
		return p.yaml.Parse(raw)
	}
	return p.text.Parse(raw)
}

func looksLikeYAML(raw string) bool {
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if trimmed == "---" {
			return true
		}
		if strings.HasPrefix(trimmed, "scenes:") {
			return true
		}
	}
	return false
}

// rawScene is the grammar-independent form handed to build.
type rawScene struct {
	at        string
	narration []string
	visuals   []string
	text      []string
}

func build(title, totalRaw string, scenes []rawScene, opts Options) (model.Script, error) {
	if len(scenes) == 0 {
		return model.Script{}, parseError("script contains no scenes", nil)
	}

	starts := make([]time.Duration, len(scenes))
	seen := make(map[string]struct{}, len(scenes))
	for i, scene := range scenes {
		start, err := ParseTimestamp(scene.at)
		if err != nil {
			return model.Script{}, parseError(fmt.Sprintf("scene %d", i+1), err)
		}
		if i == 0 && start != 0 {
			return model.Script{}, parseError(fmt.Sprintf("first scene must start at 00:00, got %s", scene.at), nil)
		}
		if i > 0 && start <= starts[i-1] {
			return model.Script{}, parseError(fmt.Sprintf("scene %d timestamp %s is not after %s", i+1, scene.at, model.FormatTimestamp(starts[i-1])), nil)
		}
		key := model.FormatTimestamp(start)
		if _, dup := seen[key]; dup {
			return model.Script{}, parseError(fmt.Sprintf("duplicate scene key %s", key), nil)
		}
		seen[key] = struct{}{}
		starts[i] = start
	}

	last := starts[len(starts)-1]
	total := last + opts.LastSceneDuration
	if strings.TrimSpace(totalRaw) != "" {
		parsed, err := ParseTimestamp(totalRaw)
		if err != nil {
			return model.Script{}, parseError("duration header", err)
		}
		if parsed <= last {
			return model.Script{}, parseError(fmt.Sprintf("duration %s must be after the last scene at %s", totalRaw, model.FormatTimestamp(last)), nil)
		}
		total = parsed
	}

	out := model.Script{Title: strings.TrimSpace(title), TotalDuration: total, Scenes: make([]model.Scene, len(scenes))}
	for i, scene := range scenes {
		end := total
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		out.Scenes[i] = model.Scene{
			Key:          model.FormatTimestamp(starts[i]),
			Start:        starts[i],
			Duration:     end - starts[i],
			Narration:    compact(scene.narration),
			Visuals:      compact(scene.visuals),
			OnScreenText: compact(scene.text),
		}
	}
	return out, nil
}

// MaxTimestamp bounds every timestamp a script may carry.
const MaxTimestamp = 100 * time.Hour

// ParseTimestamp accepts ss, mm:ss and hh:mm:ss with an optional fractional
// second part, and plain seconds such as "23" or "7.5". Precision is
// rounded to milliseconds. Signs, exponents and values at or beyond
// MaxTimestamp are rejected.
func ParseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "[")
	value = strings.TrimSuffix(value, "]")
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	secPart := parts[len(parts)-1]
	if !isDecimal(secPart) {
		return 0, fmt.Errorf("invalid seconds in timestamp %q", value)
	}
	secs, err := strconv.ParseFloat(secPart, 64)
	if err != nil || math.IsInf(secs, 0) || math.IsNaN(secs) || (len(parts) > 1 && secs >= 60) {
		return 0, fmt.Errorf("invalid seconds in timestamp %q", value)
	}
	if secs >= MaxTimestamp.Seconds() {
		return 0, fmt.Errorf("timestamp %q exceeds %s", value, MaxTimestamp)
	}
	total := time.Duration(math.Round(secs*1000)) * time.Millisecond
	multipliers := []time.Duration{time.Minute, time.Hour}
	for i := len(parts) - 2; i >= 0; i-- {
		idx := len(parts) - 2 - i
		if !isDigits(parts[i]) || len(parts[i]) > 3 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		if idx == 0 && len(parts) == 3 && n >= 60 {
			return 0, fmt.Errorf("invalid minutes in timestamp %q", value)
		}
		total += time.Duration(n) * multipliers[idx]
	}
	if total >= MaxTimestamp {
		return 0, fmt.Errorf("timestamp %q exceeds %s", value, MaxTimestamp)
	}
	return total, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isDecimal matches digits with an optional fractional part, e.g. "5" or "02.25".
func isDecimal(s string) bool {
	whole, frac, found := strings.Cut(s, ".")
	if !isDigits(whole) {
		return false
	}
	return !found || isDigits(frac)
}

func compact(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseError(message string, err error) error {
	return services.Wrap(services.ErrParse, "parsing", "parse script", message, err)
}
