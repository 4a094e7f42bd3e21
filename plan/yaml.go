package plan

import (
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

type yamlNode struct {
	Key       string   `yaml:"key"`
	Kind      Kind     `yaml:"kind"`
	RecordID  string   `yaml:"record_id,omitempty"`
	Task      string   `yaml:"task,omitempty"`
	Modality  string   `yaml:"modality,omitempty"`
	Position  int      `yaml:"position,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty"`
}

type yamlPlan struct {
	Records []string   `yaml:"records"`
	Nodes   []yamlNode `yaml:"nodes"`
}

// WriteYAML writes a readable description of the plan to w.
func (p *Plan) WriteYAML(w io.Writer) error {
	doc := yamlPlan{Records: p.Records()}
	for _, n := range p.nodes {
		yn := yamlNode{
			Key:       n.Key.String(),
			Kind:      n.Kind,
			RecordID:  n.RecordID,
			Task:      n.Unit.Task,
			Modality:  n.Unit.Modality,
			DependsOn: keyStrings(n.Deps),
		}
		if n.Step != nil {
			yn.Position = n.Step.Position()
		}
		doc.Nodes = append(doc.Nodes, yn)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("plan: encoding yaml: %w", err)
	}
	return enc.Close()
}

func keyStrings(keys []Key) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
