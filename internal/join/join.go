// Package join implements the left-outer join of a package's
// secondary files into their primary file, driven by the
// joinInto/joinColumn/export/joinedTypeName columns of files.tsv.
package join

import (
	"fmt"
	"strings"

	"github.com/pieczasz/tabularium/internal/reporter"
	"github.com/pieczasz/tabularium/internal/value"
)

// Row is one parsed data row: column name to parsed value.
type Row map[string]value.Value

// Meta is one files.tsv row's join-relevant columns.
type Meta struct {
	FileName        string
	JoinInto        string // primary file name, lowercased; empty if this file is itself primary
	JoinColumn      string
	Export          bool
	JoinedTypeName  string
}

// ShouldExport reports whether file should be written/exported:
// primary files (JoinInto empty) always export; secondary files only
// when Export is explicitly true.
func ShouldExport(m Meta) bool {
	if m.JoinInto == "" {
		return true
	}
	return m.Export
}

// GroupSecondaryFiles groups every secondary file's lowercased name
// under its primary file's lowercased name.
func GroupSecondaryFiles(metas []Meta) map[string][]string {
	out := map[string][]string{}
	for _, m := range metas {
		if m.JoinInto == "" {
			continue
		}
		primary := strings.ToLower(m.JoinInto)
		out[primary] = append(out[primary], strings.ToLower(m.FileName))
	}
	return out
}

// BuildJoinIndex indexes rows by the value in columnName, erroring if
// that column is absent from any row's header.
func BuildJoinIndex(rows []Row, columnName string) (map[string]Row, error) {
	index := make(map[string]Row, len(rows))
	for _, row := range rows {
		v, ok := row[columnName]
		if !ok {
			return nil, fmt.Errorf("join column %q is absent", columnName)
		}
		index[keyOf(v)] = row
	}
	return index, nil
}

func keyOf(v value.Value) string {
	if v.Kind == value.KindString {
		return v.Str
	}
	return fmt.Sprintf("%v", v.Num)
}

// DetectColumnConflicts reports columns (other than joinColumn) that
// appear in both headers verbatim, which would silently overwrite a
// primary column on join.
func DetectColumnConflicts(primaryHeader, secondaryHeader []string, joinColumn string) []string {
	primarySet := make(map[string]bool, len(primaryHeader))
	for _, c := range primaryHeader {
		primarySet[c] = true
	}
	var conflicts []string
	for _, c := range secondaryHeader {
		if c == joinColumn {
			continue
		}
		if primarySet[c] {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// Secondary is one secondary file joined against a primary: its rows,
// join column, and source name (used in diagnostics).
type Secondary struct {
	Rows       []Row
	JoinColumn string
	SourceName string
}

// JoinFiles performs a left-outer join of every secondary into
// primary. All secondaries of one primary must share the same join
// column; that is a compile-time (pre-flight) check here, not
// discovered mid-join. Column-name conflicts (other than the join
// column) abort the join. Every unmatched secondary row is reported as
// an error through bad, and if there is at least one the join fails
// (nil rows, ok=false); a primary row with no matching secondary gets
// nil columns for that secondary's non-key fields.
func JoinFiles(primary []Row, secondaries []Secondary, bad *reporter.BadVal) ([]Row, []string, bool) {
	if len(secondaries) == 0 {
		return primary, nil, true
	}
	joinColumn := secondaries[0].JoinColumn
	for _, s := range secondaries[1:] {
		if s.JoinColumn != joinColumn {
			bad.Fail("join", s.SourceName, "secondary files of one primary must share the same join column")
			return nil, nil, false
		}
	}

	type indexed struct {
		idx        map[string]Row
		extraCols  []string
		sourceName string
	}
	var built []indexed
	seenCols := map[string]bool{}
	for _, row := range primary {
		for col := range row {
			seenCols[col] = true
		}
	}

	for _, s := range secondaries {
		idx, err := BuildJoinIndex(s.Rows, joinColumn)
		if err != nil {
			bad.Fail("join", s.SourceName, err.Error())
			return nil, nil, false
		}
		var extra []string
		conflict := false
		if len(s.Rows) > 0 {
			secHeader := make([]string, 0, len(s.Rows[0]))
			for col := range s.Rows[0] {
				secHeader = append(secHeader, col)
			}
			for _, col := range secHeader {
				if col == joinColumn {
					continue
				}
				if seenCols[col] {
					bad.Fail("join", s.SourceName, "column conflict: "+col)
					conflict = true
					continue
				}
				extra = append(extra, col)
				seenCols[col] = true
			}
		}
		if conflict {
			return nil, nil, false
		}
		built = append(built, indexed{idx: idx, extraCols: extra, sourceName: s.SourceName})
	}

	used := make([]map[string]bool, len(built))
	for i := range built {
		used[i] = map[string]bool{}
	}

	joined := make([]Row, len(primary))
	for i, row := range primary {
		merged := make(Row, len(row))
		for k, v := range row {
			merged[k] = v
		}
		key, ok := row[joinColumn]
		keyStr := ""
		if ok {
			keyStr = keyOf(key)
		}
		for bi, b := range built {
			secRow, found := b.idx[keyStr]
			if found {
				used[bi][keyStr] = true
			}
			for _, col := range b.extraCols {
				if found {
					merged[col] = secRow[col]
				} else {
					merged[col] = value.Nil()
				}
			}
		}
		joined[i] = merged
	}

	ok := true
	for bi, b := range built {
		for key := range b.idx {
			if !used[bi][key] {
				bad.Fail("join", b.sourceName, "secondary row with join key "+key+" has no matching primary row")
				ok = false
			}
		}
	}
	if !ok {
		return nil, nil, false
	}

	header := make([]string, 0, len(seenCols))
	for col := range seenCols {
		header = append(header, col)
	}
	return joined, header, true
}
