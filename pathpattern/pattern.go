// Package pathpattern resolves path templates such as
// ("RAW", "{id}-{task}.csv") against a data root, checks whether the
// resulting files exist, and discovers record ids from files already on disk.
package pathpattern

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Segments is an ordered list of path segments that may contain
// {id}, {task} or {option} placeholders.
type Segments []string

// Pattern is either a single segment list or a set of labelled segment lists.
type Pattern struct {
	single Segments
	named  map[string]Segments
}

// Single returns a pattern made of one segment list.
func Single(segs ...string) Pattern {
	return Pattern{single: Segments(segs)}
}

// Named returns a pattern with one segment list per label.
func Named(m map[string]Segments) Pattern {
	named := make(map[string]Segments, len(m))
	for k, v := range m {
		named[k] = v
	}
	return Pattern{named: named}
}

// IsNamed reports whether p holds labelled segment lists.
func (p Pattern) IsNamed() bool { return p.named != nil }

// IsZero reports whether p holds no segments at all.
func (p Pattern) IsZero() bool { return len(p.single) == 0 && len(p.named) == 0 }

// Labels returns the sorted labels of a named pattern, or nil.
func (p Pattern) Labels() []string {
	if !p.IsNamed() {
		return nil
	}
	labels := make([]string, 0, len(p.named))
	for k := range p.named {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}

// Segments returns the segment list of a single pattern.
func (p Pattern) Segments() Segments { return p.single }

// Get returns the segment list for a label of a named pattern.
func (p Pattern) Get(label string) (Segments, bool) {
	s, ok := p.named[label]
	return s, ok
}

// parts returns the segment lists of p in deterministic order.
func (p Pattern) parts() []Segments {
	if !p.IsNamed() {
		if len(p.single) == 0 {
			return nil
		}
		return []Segments{p.single}
	}
	out := make([]Segments, 0, len(p.named))
	for _, l := range p.Labels() {
		out = append(out, p.named[l])
	}
	return out
}

// Vars are the values substituted into placeholders.
type Vars struct {
	ID      string
	Task    string
	Options map[string]string
}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Format substitutes placeholders in one segment. Placeholders without a
// value are left untouched.
func (v Vars) Format(seg string) string {
	return placeholderRe.ReplaceAllStringFunc(seg, func(m string) string {
		name := m[1 : len(m)-1]
		switch name {
		case "id":
			return v.ID
		case "task":
			return v.Task
		}
		if val, ok := v.Options[name]; ok {
			return val
		}
		return m
	})
}

func (v Vars) join(root string, segs Segments) string {
	elems := make([]string, 0, len(segs)+1)
	elems = append(elems, root)
	for _, s := range segs {
		elems = append(elems, v.Format(s))
	}
	return filepath.Join(elems...)
}

// Paths are concrete filesystem paths with the same shape as the Pattern
// they were resolved from.
type Paths struct {
	single string
	named  map[string]string
}

// Resolve joins root with every formatted segment list of p. An empty root
// produces paths relative to the data root.
func Resolve(root string, p Pattern, v Vars) Paths {
	if !p.IsNamed() {
		if len(p.single) == 0 {
			return Paths{}
		}
		return Paths{single: v.join(root, p.single)}
	}
	named := make(map[string]string, len(p.named))
	for label, segs := range p.named {
		named[label] = v.join(root, segs)
	}
	return Paths{named: named}
}

// IsNamed reports whether ps came from a named pattern.
func (ps Paths) IsNamed() bool { return ps.named != nil }

// Single returns the path of a single pattern.
func (ps Paths) Single() string { return ps.single }

// Named returns a copy of the labelled paths.
func (ps Paths) Named() map[string]string {
	if ps.named == nil {
		return nil
	}
	out := make(map[string]string, len(ps.named))
	for k, v := range ps.named {
		out[k] = v
	}
	return out
}

// Get returns the path for label.
func (ps Paths) Get(label string) (string, bool) {
	p, ok := ps.named[label]
	return p, ok
}

// Labels returns the sorted labels of named paths.
func (ps Paths) Labels() []string {
	labels := make([]string, 0, len(ps.named))
	for k := range ps.named {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}

// All returns every path, ordered by label for named paths.
func (ps Paths) All() []string {
	if !ps.IsNamed() {
		if ps.single == "" {
			return nil
		}
		return []string{ps.single}
	}
	out := make([]string, 0, len(ps.named))
	for _, l := range ps.Labels() {
		out = append(out, ps.named[l])
	}
	return out
}

// String joins all paths with "|".
func (ps Paths) String() string {
	return strings.Join(ps.All(), "|")
}

// AllExist reports whether every path exists. Empty Paths never exist.
func (ps Paths) AllExist() bool {
	all := ps.All()
	if len(all) == 0 {
		return false
	}
	for _, p := range all {
		if !Exists(p) {
			return false
		}
	}
	return true
}

// Exists reports whether path is a directory or a non-empty regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return true
	}
	return info.Mode().IsRegular() && info.Size() > 0
}
