package runner

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/kbukum/recflow/dag"
	"github.com/kbukum/recflow/errors"
	"github.com/kbukum/recflow/plan"
)

// Pipelines converts p into a root pipeline that includes one pipeline per
// record. Nodes shared between records live in the pipeline of the record
// that introduced them. Components are named by plan key.
func Pipelines(p *plan.Plan) (*dag.Pipeline, *dag.MemoryLoader) {
	root := &dag.Pipeline{Name: rootPipeline}
	loader := dag.NewMemoryLoader()
	byRecord := make(map[string]*dag.Pipeline)

	for _, n := range p.Nodes() {
		sub, ok := byRecord[n.RecordID]
		if !ok {
			sub = &dag.Pipeline{Name: "record-" + n.RecordID, Description: "record " + n.RecordID}
			byRecord[n.RecordID] = sub
			root.Includes = append(root.Includes, sub.Name)
			loader.Add(sub)
		}
		def := dag.NodeDef{Component: n.Key.String(), Kind: string(n.Kind)}
		for _, d := range n.Deps {
			def.DependsOn = append(def.DependsOn, d.String())
		}
		sub.Nodes = append(sub.Nodes, def)
	}
	loader.Add(root)
	return root, loader
}

// SavePipelines writes the pipelines of p into dir, one <name>.yaml file
// per pipeline, so a plan can be inspected or resolved again later.
func SavePipelines(dir string, p *plan.Plan) error {
	root, loader := Pipelines(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.IO("create", dir, err)
	}
	for _, name := range append(slices.Clone(root.Includes), root.Name) {
		pl, err := loader.Load(name)
		if err != nil {
			return err
		}
		if err := savePipeline(filepath.Join(dir, name+".yaml"), pl); err != nil {
			return err
		}
	}
	return nil
}

func savePipeline(path string, pl *dag.Pipeline) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.IO("create", path, err)
	}
	if err := dag.WritePipeline(f, pl); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.IO("close", path, err)
	}
	return nil
}

// LoadPipelines reads the root pipeline saved by SavePipelines. The
// returned loader finds the record pipelines in dir.
func LoadPipelines(dir string) (*dag.Pipeline, dag.PipelineLoader, error) {
	root, err := dag.LoadPipeline(rootPipeline, filepath.Join(dir, rootPipeline+".yaml"))
	if err != nil {
		return nil, nil, errors.NotFound("pipeline", filepath.Join(dir, rootPipeline+".yaml")).WithCause(err)
	}
	return root, dag.NewFilePipelineLoader(dir), nil
}
