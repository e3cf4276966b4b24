package script

import (
	"strings"

	"gopkg.in/yaml.v3"

	"storyreel/internal/model"
)

// YAMLParser parses the YAML script grammar.
type YAMLParser struct {
	opts Options
}

type yamlScript struct {
	Title    string      `yaml:"title"`
	Duration string      `yaml:"duration"`
	Scenes   []yamlScene `yaml:"scenes"`
}

type yamlScene struct {
	At        string    `yaml:"at"`
	Narration yamlLines `yaml:"narration"`
	Visuals   yamlLines `yaml:"visuals"`
	Text      yamlLines `yaml:"text"`
}

// yamlLines accepts either a single string or a list of strings.
type yamlLines []string

func (l *yamlLines) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = yamlLines{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*l = list
	return nil
}

// Parse implements Parser.
func (p *YAMLParser) Parse(raw string) (model.Script, error) {
	if strings.TrimSpace(raw) == "" {
		return model.Script{}, parseError("script is empty", nil)
	}
	var doc yamlScript
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return model.Script{}, parseError("decode yaml", err)
	}
	scenes := make([]rawScene, 0, len(doc.Scenes))
	for _, s := range doc.Scenes {
		scenes = append(scenes, rawScene{at: s.At, narration: s.Narration, visuals: s.Visuals, text: s.Text})
	}
	return build(doc.Title, doc.Duration, scenes, p.opts)
}
