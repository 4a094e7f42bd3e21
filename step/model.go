package step

import (
	"encoding/csv"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/kbukum/recflow/pathpattern"
	"github.com/kbukum/recflow/scope"
)

// Model kinds accepted in modality configuration.
const (
	ModelGlob     = "glob"
	ModelCSVIndex = "csv_index"
)

// UnitContext is what a Model needs to list the records of one unit.
type UnitContext struct {
	DataRoot  string
	IDPattern string
	Unit      scope.Scope
	Steps     *Collection
}

// Model discovers the record ids of a unit.
type Model interface {
	IterIDs(u UnitContext) iter.Seq[string]
}

// GlobModel finds ids from files matching the first step's input pattern.
type GlobModel struct{}

// IterIDs implements Model. A unit without steps has no records.
func (GlobModel) IterIDs(u UnitContext) iter.Seq[string] {
	first, err := u.Steps.First()
	if err != nil {
		return func(func(string) bool) {}
	}
	return pathpattern.IterIDs(u.DataRoot, first.PathIn, u.IDPattern, u.Unit.Task)
}

// CSVIndexModel reads ids from one column of a CSV file, for modalities
// whose raw data is a table indexed by record id.
type CSVIndexModel struct {
	// Path is the CSV location relative to the data root. It may use {task}.
	Path pathpattern.Segments
	// IDColumn names the id column. Defaults to "record_id".
	IDColumn string
}

// IterIDs implements Model. Rows with ids not matching the id pattern are
// skipped. An unreadable file yields nothing.
func (m CSVIndexModel) IterIDs(u UnitContext) iter.Seq[string] {
	return func(yield func(string) bool) {
		path := pathpattern.Resolve(u.DataRoot, pathpattern.Single(m.Path...), pathpattern.Vars{Task: u.Unit.Task}).Single()
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return
		}
		defer f.Close()

		var idRe *regexp.Regexp
		if u.IDPattern != "" {
			if idRe, err = pathpattern.CompileID(u.IDPattern); err != nil {
				return
			}
		}
		for id := range csvIDs(f, m.IDColumn, idRe) {
			if !yield(id) {
				return
			}
		}
	}
}

// csvIDs yields the distinct non-empty values of column col (record_id when
// empty) that match idRe. Malformed rows are skipped; any other read error
// ends the sequence.
func csvIDs(src io.Reader, col string, idRe *regexp.Regexp) iter.Seq[string] {
	return func(yield func(string) bool) {
		r := csv.NewReader(src)
		r.FieldsPerRecord = -1
		header, err := r.Read()
		if err != nil {
			return
		}
		if col == "" {
			col = "record_id"
		}
		idx := slices.Index(header, col)
		if idx < 0 {
			return
		}

		seen := make(map[string]struct{})
		for {
			row, err := r.Read()
			var parseErr *csv.ParseError
			switch {
			case err == nil:
			case errors.As(err, &parseErr):
				continue
			default:
				return
			}
			if idx >= len(row) {
				continue
			}
			id := row[idx]
			if id == "" || (idRe != nil && !idRe.MatchString(id)) {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if !yield(id) {
				return
			}
		}
	}
}
