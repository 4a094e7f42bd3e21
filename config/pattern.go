package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kbukum/recflow/pathpattern"
)

// ParsePattern converts a decoded configuration value into a path pattern.
// Accepted shapes: nil, "a/b/{id}.csv", ["a", "b", "{id}.csv"], or a map of
// output names to either string form.
func ParsePattern(v any) (pathpattern.Pattern, error) {
	switch val := v.(type) {
	case nil:
		return pathpattern.Pattern{}, nil
	case map[string]any:
		named := make(map[string]pathpattern.Segments, len(val))
		labels := make([]string, 0, len(val))
		for k := range val {
			labels = append(labels, k)
		}
		sort.Strings(labels)
		for _, k := range labels {
			segs, err := parseSegments(val[k])
			if err != nil {
				return pathpattern.Pattern{}, fmt.Errorf("%s: %w", k, err)
			}
			named[k] = segs
		}
		return pathpattern.Named(named), nil
	default:
		segs, err := parseSegments(v)
		if err != nil {
			return pathpattern.Pattern{}, err
		}
		return pathpattern.Single(segs...), nil
	}
}

func parseSegments(v any) (pathpattern.Segments, error) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil, fmt.Errorf("empty path")
		}
		return pathpattern.Segments(strings.Split(val, "/")), nil
	case []string:
		return pathpattern.Segments(val), nil
	case []any:
		segs := make(pathpattern.Segments, 0, len(val))
		for _, s := range val {
			str, ok := s.(string)
			if !ok {
				return nil, fmt.Errorf("segment %v is not a string", s)
			}
			segs = append(segs, str)
		}
		return segs, nil
	}
	return nil, fmt.Errorf("unsupported path type %T", v)
}
