package pathpattern

import (
	"fmt"
	"iter"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultIDPattern matches any single path element.
const DefaultIDPattern = `[^/]+`

// IDFragment strips a leading ^ and a trailing $ from an id pattern so it
// can sit inside a longer expression: ^REC-\d+$ and REC-\d+ accept the
// same ids.
func IDFragment(pattern string) string {
	pattern = strings.TrimPrefix(pattern, "^")
	if strings.HasSuffix(pattern, "$") {
		body := pattern[:len(pattern)-1]
		escapes := len(body) - len(strings.TrimRight(body, `\`))
		if escapes%2 == 0 {
			pattern = body
		}
	}
	return pattern
}

// CompileID compiles an id pattern that must match a whole id.
func CompileID(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + IDFragment(pattern) + ")$")
}

// Matcher finds files matching one segment list and extracts record ids from
// their paths. Glob and regex are built from the same segments: {id} and
// unknown placeholders become wildcards, {task} is fixed when Task is set.
type Matcher struct {
	glob  string
	re    *regexp.Regexp
	idIdx []int
}

// NewMatcher builds a Matcher for segs. idPattern is a regex fragment for
// valid ids; an empty idPattern accepts any path element.
func NewMatcher(segs Segments, idPattern, task string) (*Matcher, error) {
	if len(segs) == 0 {
		return nil, fmt.Errorf("pathpattern: empty segments")
	}
	if idPattern = IDFragment(idPattern); idPattern == "" {
		idPattern = DefaultIDPattern
	}
	if _, err := regexp.Compile(idPattern); err != nil {
		return nil, fmt.Errorf("pathpattern: invalid id pattern %q: %w", idPattern, err)
	}

	globParts := make([]string, len(segs))
	reParts := make([]string, len(segs))
	groups := 0
	for i, seg := range segs {
		var g, r strings.Builder
		last := 0
		for _, loc := range placeholderRe.FindAllStringSubmatchIndex(seg, -1) {
			lit := seg[last:loc[0]]
			g.WriteString(escapeGlob(lit))
			r.WriteString(regexp.QuoteMeta(lit))
			switch name := seg[loc[2]:loc[3]]; name {
			case "id":
				g.WriteString("*")
				fmt.Fprintf(&r, "(?P<id%d>%s)", groups, idPattern)
				groups++
			case "task":
				if task != "" {
					g.WriteString(escapeGlob(task))
					r.WriteString(regexp.QuoteMeta(task))
				} else {
					g.WriteString("*")
					r.WriteString(`[^/]+`)
				}
			default:
				g.WriteString("*")
				r.WriteString(`[^/]*`)
			}
			last = loc[1]
		}
		g.WriteString(escapeGlob(seg[last:]))
		r.WriteString(regexp.QuoteMeta(seg[last:]))
		globParts[i] = g.String()
		reParts[i] = r.String()
	}
	if groups == 0 {
		return nil, fmt.Errorf("pathpattern: %v has no {id} placeholder", []string(segs))
	}

	re, err := regexp.Compile("^" + strings.Join(reParts, "/") + "$")
	if err != nil {
		return nil, fmt.Errorf("pathpattern: compile: %w", err)
	}
	m := &Matcher{glob: strings.Join(globParts, "/"), re: re}
	for i := 0; i < groups; i++ {
		m.idIdx = append(m.idIdx, re.SubexpIndex(fmt.Sprintf("id%d", i)))
	}
	return m, nil
}

// Glob returns the glob expression relative to the data root, slash separated.
func (m *Matcher) Glob() string { return m.glob }

// Regexp returns the anchored regex matched against slash separated
// relative paths.
func (m *Matcher) Regexp() *regexp.Regexp { return m.re }

// MatchID extracts the record id from a slash separated relative path.
// Every {id} occurrence must capture the same value.
func (m *Matcher) MatchID(rel string) (string, bool) {
	sub := m.re.FindStringSubmatch(rel)
	if sub == nil {
		return "", false
	}
	id := sub[m.idIdx[0]]
	for _, idx := range m.idIdx[1:] {
		if sub[idx] != id {
			return "", false
		}
	}
	return id, true
}

// Matches globs root and yields the id of each matching file in glob order.
// Ids may repeat. Glob failures yield nothing.
func (m *Matcher) Matches(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		files, err := filepath.Glob(filepath.Join(escapeGlob(root), filepath.FromSlash(m.glob)))
		if err != nil {
			return
		}
		for _, f := range files {
			rel, err := filepath.Rel(root, f)
			if err != nil {
				continue
			}
			if id, ok := m.MatchID(filepath.ToSlash(rel)); ok {
				if !yield(id) {
					return
				}
			}
		}
	}
}

// IterIDs yields each distinct record id found under root for p. For a named
// pattern an id is yielded only once it matched in every labelled segment
// list. An invalid pattern yields nothing.
func IterIDs(root string, p Pattern, idPattern, task string) iter.Seq[string] {
	return func(yield func(string) bool) {
		parts := p.parts()
		if len(parts) == 0 {
			return
		}
		matchers := make([]*Matcher, 0, len(parts))
		for _, segs := range parts {
			m, err := NewMatcher(segs, idPattern, task)
			if err != nil {
				return
			}
			matchers = append(matchers, m)
		}

		counts := make(map[string]int)
		for _, m := range matchers {
			seen := make(map[string]struct{})
			for id := range m.Matches(root) {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				counts[id]++
				if counts[id] == len(matchers) {
					if !yield(id) {
						return
					}
				}
			}
		}
	}
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
