package script

import (
	"bufio"
	"strings"

	"storyreel/internal/model"
)

// TextParser parses the line-oriented script grammar.
type TextParser struct {
	opts Options
}

var (
	narrationPrefixes = []string{"narration:", "voice:", "n:"}
	visualPrefixes    = []string{"visual:", "visuals:", "v:"}
	textPrefixes      = []string{"text:", "on-screen:", "ui:", "t:"}
)

// Parse implements Parser.
func (p *TextParser) Parse(raw string) (model.Script, error) {
	if strings.TrimSpace(raw) == "" {
		return model.Script{}, parseError("script is empty", nil)
	}

	var (
		title    string
		duration string
		scenes   []rawScene
		current  *rawScene
	)

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if at, rest, ok := sceneHeader(line); ok {
			scenes = append(scenes, rawScene{at: at})
			current = &scenes[len(scenes)-1]
			if rest != "" {
				current.narration = append(current.narration, rest)
			}
			continue
		}
		if current == nil {
			if value, ok := cutPrefixFold(line, "title:"); ok {
				title = value
				continue
			}
			if value, ok := cutPrefixFold(line, "duration:"); ok {
				duration = value
				continue
			}
			return model.Script{}, parseError("unexpected text before first scene: "+line, nil)
		}
		switch {
		case assign(&current.visuals, line, visualPrefixes):
		case assign(&current.text, line, textPrefixes):
		case assign(&current.narration, line, narrationPrefixes):
		default:
			current.narration = append(current.narration, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return model.Script{}, parseError("read script", err)
	}
	return build(title, duration, scenes, p.opts)
}

func sceneHeader(line string) (string, string, bool) {
	if !strings.HasPrefix(line, "[") {
		return "", "", false
	}
	end := strings.Index(line, "]")
	if end < 0 {
		return "", "", false
	}
	return line[1:end], strings.TrimSpace(line[end+1:]), true
}

func assign(dst *[]string, line string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if value, ok := cutPrefixFold(line, prefix); ok {
			*dst = append(*dst, value)
			return true
		}
	}
	return false
}

func cutPrefixFold(line, prefix string) (string, bool) {
	if len(line) < len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(prefix):]), true
}
