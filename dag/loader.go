package dag

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.yaml.in/yaml/v3"
)

// PipelineLoader loads pipeline definitions by name.
type PipelineLoader interface {
	Load(name string) (*Pipeline, error)
}

// FilePipelineLoader loads pipelines from YAML files on disk.
type FilePipelineLoader struct {
	dirs []string
}

// NewFilePipelineLoader searches dirs, in order, for <name>.yaml or
// <name>.yml.
func NewFilePipelineLoader(dirs ...string) PipelineLoader {
	return &FilePipelineLoader{dirs: dirs}
}

// Load prefers a file directly inside a directory over one found deeper.
func (l *FilePipelineLoader) Load(name string) (*Pipeline, error) {
	for _, dir := range l.dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			if p, err := loadPipelineFile(filepath.Join(dir, name+ext)); err == nil {
				return p, nil
			}
		}
		if p := searchPipeline(dir, name); p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("dag: pipeline %q not found in %v", name, l.dirs)
}

func searchPipeline(dir, name string) *Pipeline {
	var found *Pipeline
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		base := d.Name()
		if base != name+".yaml" && base != name+".yml" {
			return nil
		}
		if p, err := loadPipelineFile(path); err == nil {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	return found
}

func loadPipelineFile(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("dag: parsing %s: %w", path, err)
	}
	return &p, nil
}

// LoadPipeline reads the first of paths that parses as a pipeline.
func LoadPipeline(name string, paths ...string) (*Pipeline, error) {
	var errs []error
	for _, path := range paths {
		p, err := loadPipelineFile(path)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("dag: pipeline %q not found: %w", name, errors.Join(errs...))
}

// WritePipeline encodes p as YAML.
func WritePipeline(w io.Writer, p *Pipeline) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("dag: encoding pipeline %q: %w", p.Name, err)
	}
	return enc.Close()
}

// MemoryLoader serves pipelines built in code.
type MemoryLoader struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

// NewMemoryLoader creates a loader holding the given pipelines.
func NewMemoryLoader(pipelines ...*Pipeline) *MemoryLoader {
	l := &MemoryLoader{pipelines: make(map[string]*Pipeline, len(pipelines))}
	for _, p := range pipelines {
		l.pipelines[p.Name] = p
	}
	return l
}

// Add stores p under its name, replacing any previous pipeline.
func (l *MemoryLoader) Add(p *Pipeline) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pipelines[p.Name] = p
}

// Load implements PipelineLoader.
func (l *MemoryLoader) Load(name string) (*Pipeline, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("dag: pipeline %q not found", name)
	}
	return p, nil
}

// errNoLoader is returned when a pipeline has includes but no loader.
var errNoLoader = errors.New("dag: pipeline has includes but no loader")

// ResolvePipeline turns p into an executable Graph. Includes are resolved
// depth first through loader and merged before the nodes of p. A node
// reached through several includes is added once.
func ResolvePipeline(p *Pipeline, registry *Registry, loader PipelineLoader) (*Graph, error) {
	r := &resolver{
		registry: registry,
		loader:   loader,
		active:   make(map[string]bool),
		done:     make(map[string]bool),
		graph:    &Graph{Nodes: make(map[string]Node)},
	}
	if err := r.resolve(p); err != nil {
		return nil, err
	}
	return r.graph, nil
}

type resolver struct {
	registry *Registry
	loader   PipelineLoader
	active   map[string]bool // include path being walked
	done     map[string]bool
	graph    *Graph
}

func (r *resolver) resolve(p *Pipeline) error {
	if r.active[p.Name] {
		return fmt.Errorf("dag: circular include detected for pipeline %q", p.Name)
	}
	r.active[p.Name] = true
	defer delete(r.active, p.Name)

	for _, name := range p.Includes {
		if r.done[name] {
			continue
		}
		if r.loader == nil {
			return errNoLoader
		}
		sub, err := r.loader.Load(name)
		if err != nil {
			return fmt.Errorf("dag: loading include %q: %w", name, err)
		}
		if err := r.resolve(sub); err != nil {
			return err
		}
	}

	for _, def := range p.Nodes {
		if _, seen := r.graph.Nodes[def.Component]; seen {
			continue
		}
		node, ok := r.registry.Get(def.Component)
		if !ok {
			return fmt.Errorf("dag: component %q not found in registry", def.Component)
		}
		r.graph.Nodes[def.Component] = node
		for _, dep := range def.DependsOn {
			r.graph.Edges = append(r.graph.Edges, Edge{From: dep, To: def.Component})
		}
	}
	r.done[p.Name] = true
	return nil
}
