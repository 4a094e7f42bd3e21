package dag

// Pipeline is a named list of node declarations, optionally composed of
// other pipelines through Includes. It is the serializable form of a Graph.
type Pipeline struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Includes    []string  `yaml:"includes,omitempty"`
	Nodes       []NodeDef `yaml:"nodes"`
}

// NodeDef declares one node. Component is looked up in a Registry.
// Kind is informational and ignored during resolution.
type NodeDef struct {
	Component string   `yaml:"component"`
	Kind      string   `yaml:"kind,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty"`
}

// Len returns the number of nodes declared directly in p, not counting
// included pipelines.
func (p *Pipeline) Len() int { return len(p.Nodes) }
