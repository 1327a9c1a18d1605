// Package exploded reconstructs nested values from the flat,
// dotted/bracketed column-header naming convention a package's
// files.tsv declares: "player.name", "position_1", "position_2",
// "tags[1]", "meta[1]", "meta[1]=" and so on.
package exploded

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pieczasz/tabularium/internal/value"
)

// Column describes one flat header cell after path analysis.
type Column struct {
	Index          int
	Name           string
	Type           string
	IsExploded     bool
	ExplodedPath   []string
	IsCollection   bool
	CollectionInfo *CollectionInfo
}

// CollectionInfo describes a "base[N]" / "base[N]=" collection column.
type CollectionInfo struct {
	Base     string
	Index    int
	IsKey    bool // true for "base[N]", false for "base[N]=" (value half)
}

var collectionColRe = regexp.MustCompile(`^(.+)\[(\d+)\](=)?$`)

// ParseCollectionColumn recognizes the "base[N]" / "base[N]=" naming
// convention. ok is false for a plain (non-collection) column name.
func ParseCollectionColumn(name string) (info CollectionInfo, ok bool) {
	m := collectionColRe.FindStringSubmatch(name)
	if m == nil {
		return CollectionInfo{}, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n < 1 {
		return CollectionInfo{}, false
	}
	return CollectionInfo{Base: m[1], Index: n, IsKey: m[3] == ""}, true
}

// IsTupleStructure reports whether t is a map whose keys are exactly
// "_1".."_k", densely numbered from 1, and returns those indices in
// ascending order. Any gap, duplicate, or non-tuple key disqualifies
// it.
func IsTupleStructure(t value.Value) (bool, []int) {
	if t.Kind != value.KindMap {
		return false, nil
	}
	indices := make([]int, 0, len(t.Entries))
	seen := map[int]bool{}
	for _, e := range t.Entries {
		if !strings.HasPrefix(e.Key, "_") {
			return false, nil
		}
		n, err := strconv.Atoi(e.Key[1:])
		if err != nil || n < 1 {
			return false, nil
		}
		if seen[n] {
			return false, nil
		}
		seen[n] = true
		indices = append(indices, n)
	}
	sort.Ints(indices)
	for i, n := range indices {
		if n != i+1 {
			return false, nil
		}
	}
	return true, indices
}

// node is one level of the reconstructed path tree below a top-level
// field.
type node struct {
	children   map[string]*node
	collection map[int]*collEntry
	leaf       *Column
}

type collEntry struct {
	key   *Column
	value *Column
}

func newNode() *node {
	return &node{children: map[string]*node{}, collection: map[int]*collEntry{}}
}

// BuildStructure groups flat Columns under one top-level field name
// into a path tree, validating density and key/value pairing as it
// goes.
func BuildStructure(fieldName string, cols []Column) (*node, error) {
	root := newNode()
	for _, c := range cols {
		path := c.ExplodedPath
		if len(path) == 0 {
			continue
		}
		if len(path) > 1 && path[0] == fieldName {
			path = path[1:]
		}
		if err := insert(root, path, c); err != nil {
			return nil, fmt.Errorf("field %q: %w", fieldName, err)
		}
	}
	if err := validate(root, fieldName); err != nil {
		return nil, err
	}
	return root, nil
}

func insert(n *node, path []string, c Column) error {
	head := path[0]
	if info, ok := ParseCollectionColumn(head); ok {
		entry := n.collection[info.Index]
		if entry == nil {
			entry = &collEntry{}
			n.collection[info.Index] = entry
		}
		if info.IsKey {
			entry.key = &c
		} else {
			entry.value = &c
		}
		return nil
	}
	if len(path) == 1 {
		leafCopy := c
		n.children[head] = &node{leaf: &leafCopy, children: map[string]*node{}, collection: map[int]*collEntry{}}
		return nil
	}
	child, ok := n.children[head]
	if !ok {
		child = newNode()
		n.children[head] = child
	}
	return insert(child, path[1:], c)
}

func validate(n *node, path string) error {
	if len(n.collection) > 0 {
		indices := make([]int, 0, len(n.collection))
		for idx := range n.collection {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for i, idx := range indices {
			if idx != i+1 {
				return fmt.Errorf("%s: missing index %d", path, i+1)
			}
		}
		isMap := false
		for _, entry := range n.collection {
			if entry.value != nil {
				isMap = true
				break
			}
		}
		if isMap {
			for _, idx := range indices {
				entry := n.collection[idx]
				if entry.key == nil {
					return fmt.Errorf("%s[%d]: missing key column", path, idx)
				}
				if entry.value == nil {
					return fmt.Errorf("%s[%d]: missing value column", path, idx)
				}
			}
		}
	}
	for name, child := range n.children {
		if err := validate(child, path+"."+name); err != nil {
			return err
		}
	}
	return nil
}

// AssembleExplodedValue walks structure, pulling each leaf column's
// already-parsed cell value out of row (keyed by column name) and
// placing it at its reconstructed path. A nil leaf in a collection
// array position is preserved; a nil map key causes that entry to be
// dropped entirely.
func AssembleExplodedValue(row map[string]value.Value, structure *node) value.Value {
	if len(structure.collection) > 0 {
		indices := make([]int, 0, len(structure.collection))
		for idx := range structure.collection {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		items := make([]value.Value, 0, len(indices))
		var entries []value.Entry
		isMap := false
		for _, idx := range indices {
			entry := structure.collection[idx]
			keyVal := row[entry.key.Name]
			if entry.value != nil {
				isMap = true
				if keyVal.IsNil() {
					continue
				}
				entries = append(entries, value.Entry{Key: keyStr(keyVal), Val: row[entry.value.Name]})
			} else {
				items = append(items, keyVal)
			}
		}
		if isMap {
			return value.Map(entries)
		}
		return value.Array(items)
	}
	if len(structure.children) > 0 {
		entries := make([]value.Entry, 0, len(structure.children))
		names := make([]string, 0, len(structure.children))
		for name := range structure.children {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child := structure.children[name]
			if child.leaf != nil {
				entries = append(entries, value.Entry{Key: name, Val: row[child.leaf.Name]})
				continue
			}
			entries = append(entries, value.Entry{Key: name, Val: AssembleExplodedValue(row, child)})
		}
		return value.Map(entries)
	}
	if structure.leaf != nil {
		return row[structure.leaf.Name]
	}
	return value.Nil()
}

func keyStr(v value.Value) string {
	if v.Kind == value.KindString {
		return v.Str
	}
	return strconv.FormatFloat(v.Num, 'f', -1, 64)
}

// GenerateCollapsedColumnSpec renders the "field_name:type_spec" header
// cell used when re-collapsing an exploded structure back into a
// single typed column.
func GenerateCollapsedColumnSpec(fieldName, subtypeSpec string) string {
	return fieldName + ":" + subtypeSpec
}
