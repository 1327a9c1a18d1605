package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pieczasz/tabularium/internal/reporter"
	"github.com/pieczasz/tabularium/internal/typespec"
	"github.com/pieczasz/tabularium/internal/value"
)

// compile turns a parsed type-spec AST into a ParserEntry, recursively
// resolving and registering element/field sub-entries first, then
// caching the result by canonical spec.
func (r *Registry) compile(ast typespec.Type) (*ParserEntry, error) {
	canon := canonicalOf(ast)
	if e, ok := r.entries[canon]; ok {
		return e, nil
	}

	var entry *ParserEntry
	var err error

	switch t := ast.(type) {
	case typespec.Primitive:
		if e, ok := r.Lookup(t.Name); ok {
			return e, nil
		}
		return nil, fmt.Errorf("unknown type name %q", t.Name)

	case typespec.Enum:
		entry, err = r.compileEnum(t, canon)

	case typespec.Array:
		entry, err = r.compileArray(t, canon)

	case typespec.Map:
		entry, err = r.compileMap(t, canon)

	case typespec.Tuple:
		entry, err = r.compileTuple(t, canon)

	case typespec.Record:
		entry, err = r.compileRecord(t, canon)

	case typespec.Union:
		entry, err = r.compileUnion(t, canon)

	case typespec.Extends:
		entry, err = r.compileExtends(t, canon)

	case typespec.AncestorConstraint:
		entry, err = r.compileAncestorConstraint(t, canon)

	case typespec.TypeTag:
		e, ok := r.Lookup(t.Name)
		if !ok {
			return nil, fmt.Errorf("type tag %q is not registered", t.Name)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unhandled type AST node %T", ast)
	}

	if err != nil {
		return nil, err
	}
	entry.AST = ast
	entry.CanonicalSpec = canon
	r.entries[canon] = entry
	return entry, nil
}

func (r *Registry) compileEnum(t typespec.Enum, canon string) (*ParserEntry, error) {
	entry := &ParserEntry{Kind: KindEnum, EnumLabels: t.Labels}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		if in == "" {
			return value.Nil(), "", true
		}
		lower := strings.ToLower(in)
		for _, lbl := range t.Labels {
			if strings.ToLower(lbl) == lower {
				return value.String(strings.ToLower(lbl)), strings.ToLower(lbl), true
			}
		}
		return value.Nil(), "", bad.Fail("enum", in, "not one of the declared labels")
	}
	entry.Compare = func(a, b value.Value) int { return enumLabelOrder(t.Labels, a, b) }
	entry.Default = value.Nil()
	return entry, nil
}

func enumLabelOrder(labels []string, a, b value.Value) int {
	ia, ib := -1, -1
	for i, l := range labels {
		if strings.EqualFold(l, a.Str) {
			ia = i
		}
		if strings.EqualFold(l, b.Str) {
			ib = i
		}
	}
	return ia - ib
}

func (r *Registry) compileArray(t typespec.Array, canon string) (*ParserEntry, error) {
	elem, err := r.compile(t.Elem)
	if err != nil {
		return nil, err
	}
	entry := &ParserEntry{Kind: KindArray, ElemSpec: elem.CanonicalSpec}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		if in == "" {
			return value.Array(nil), "{}", true
		}
		parts := splitTopLevel(in, ',')
		items := make([]value.Value, 0, len(parts))
		ok := true
		for _, p := range parts {
			v, _, itemOK := elem.Parse(bad, p, CtxParsed)
			if !itemOK {
				ok = false
				continue
			}
			items = append(items, v)
		}
		if !ok {
			return value.Nil(), "", false
		}
		out := value.Array(items)
		return out, reformatOf(out), true
	}
	entry.Compare = func(a, b value.Value) int { return compareSequences(a.Items, b.Items, elem.Compare) }
	entry.Default = value.Array(nil)
	return entry, nil
}

func (r *Registry) compileMap(t typespec.Map, canon string) (*ParserEntry, error) {
	if containsNilMember(t.Key) || containsNilMember(t.Value) {
		return nil, fmt.Errorf("map key/value type must not be nil-bearing")
	}
	key, err := r.compile(t.Key)
	if err != nil {
		return nil, err
	}
	val, err := r.compile(t.Value)
	if err != nil {
		return nil, err
	}
	entry := &ParserEntry{Kind: KindMap, KeySpec: key.CanonicalSpec, ValueSpec: val.CanonicalSpec}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		if in == "" {
			return value.Map(nil), "{}", true
		}
		parts := splitTopLevel(in, ',')
		entries := make([]value.Entry, 0, len(parts))
		seen := map[string]bool{}
		ok := true
		for _, p := range parts {
			k, v, hasEq := splitKV(p)
			if !hasEq {
				bad.Fail("map", p, "expected key=value")
				ok = false
				continue
			}
			kv, _, kOK := key.Parse(bad, k, CtxParsed)
			if !kOK || kv.IsNil() {
				bad.Fail("map", k, "nil key")
				ok = false
				continue
			}
			if seen[kv.Str] {
				bad.Fail("map", k, "duplicate key")
				ok = false
				continue
			}
			seen[kv.Str] = true
			vv, _, vOK := val.Parse(bad, v, CtxParsed)
			if !vOK {
				ok = false
				continue
			}
			entries = append(entries, value.Entry{Key: keyString(kv), Val: vv})
		}
		if !ok {
			return value.Nil(), "", false
		}
		out := value.Map(entries)
		return out, reformatOf(out), true
	}
	entry.Compare = func(a, b value.Value) int { return compareMaps(a, b, val.Compare) }
	entry.Default = value.Map(nil)
	return entry, nil
}

// keyString renders a parsed map key to the string used as the
// in-memory Entry.Key. String keys pass through verbatim; composite or
// numeric keys fall back to their canonical reformatted text.
func keyString(v value.Value) string {
	if v.Kind == value.KindString {
		return v.Str
	}
	return reformatOf(v)
}

func (r *Registry) compileTuple(t typespec.Tuple, canon string) (*ParserEntry, error) {
	positions := make([]*ParserEntry, len(t.Positions))
	specs := make([]string, len(t.Positions))
	for i, p := range t.Positions {
		e, err := r.compile(p)
		if err != nil {
			return nil, err
		}
		positions[i] = e
		specs[i] = e.CanonicalSpec
	}
	entry := &ParserEntry{Kind: KindTuple, TupleSpecs: specs}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		parts := splitTopLevel(in, ',')
		if len(parts) != len(positions) {
			return value.Nil(), "", bad.Fail("tuple", in, fmt.Sprintf("expected %d positions, got %d", len(positions), len(parts)))
		}
		items := make([]value.Value, len(parts))
		ok := true
		for i, p := range parts {
			v, _, itemOK := positions[i].Parse(bad, p, CtxParsed)
			if !itemOK {
				ok = false
				continue
			}
			items[i] = v
		}
		if !ok {
			return value.Nil(), "", false
		}
		out := value.Array(items)
		return out, reformatOf(out), true
	}
	entry.Compare = func(a, b value.Value) int {
		for i := 0; i < len(positions) && i < len(a.Items) && i < len(b.Items); i++ {
			if c := positions[i].Compare(a.Items[i], b.Items[i]); c != 0 {
				return c
			}
		}
		return 0
	}
	entry.Default = value.Array(make([]value.Value, len(positions)))
	return entry, nil
}

func (r *Registry) compileRecord(t typespec.Record, canon string) (*ParserEntry, error) {
	fields := make([]FieldSpec, len(t.Fields))
	resolved := make([]*ParserEntry, len(t.Fields))
	for i, f := range t.Fields {
		if err := isValidFieldName(f.Name); err != nil {
			return nil, err
		}
		e, err := r.compile(f.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = FieldSpec{Name: f.Name, Spec: e.CanonicalSpec, Optional: f.Optional}
		resolved[i] = e
	}
	entry := buildRecordEntry(fields, resolved)
	return entry, nil
}

func buildRecordEntry(fields []FieldSpec, resolved []*ParserEntry) *ParserEntry {
	entry := &ParserEntry{Kind: KindRecord, FieldSpecs: fields}
	byName := make(map[string]*ParserEntry, len(fields))
	for i, f := range fields {
		byName[f.Name] = resolved[i]
	}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		entries := map[string]value.Value{}
		if in != "" {
			for _, p := range splitTopLevel(in, ',') {
				k, v, hasEq := splitKV(p)
				if !hasEq {
					bad.Fail("record", p, "expected field=value")
					return value.Nil(), "", false
				}
				if _, known := byName[k]; !known {
					bad.Fail("record", k, "unknown field")
					return value.Nil(), "", false
				}
				parsed, _, ok := byName[k].Parse(bad, v, CtxParsed)
				if !ok {
					return value.Nil(), "", false
				}
				entries[k] = parsed
			}
		}
		out := make([]value.Entry, 0, len(fields))
		for _, f := range fields {
			v, present := entries[f.Name]
			if !present {
				if !f.Optional {
					bad.Fail("record", f.Name, "missing required field")
					return value.Nil(), "", false
				}
				v = byName[f.Name].Default
			}
			out = append(out, value.Entry{Key: f.Name, Val: v})
		}
		rv := value.Map(out)
		return rv, reformatOf(rv), true
	}
	entry.Compare = func(a, b value.Value) int {
		as, bs := a.SortedEntries(), b.SortedEntries()
		for i := 0; i < len(as) && i < len(bs); i++ {
			cmp := byName[as[i].Key]
			if cmp == nil {
				continue
			}
			if c := cmp.Compare(as[i].Val, bs[i].Val); c != 0 {
				return c
			}
		}
		return 0
	}
	defaults := make([]value.Entry, len(fields))
	for i, f := range fields {
		defaults[i] = value.Entry{Key: f.Name, Val: resolved[i].Default}
	}
	entry.Default = value.Map(defaults)
	return entry
}

func (r *Registry) compileUnion(t typespec.Union, canon string) (*ParserEntry, error) {
	members := reorderStringLast(t.Members)
	resolved := make([]*ParserEntry, len(members))
	specs := make([]string, len(members))
	for i, m := range members {
		e, err := r.compile(m)
		if err != nil {
			return nil, err
		}
		resolved[i] = e
		specs[i] = e.CanonicalSpec
	}
	entry := &ParserEntry{Kind: KindUnion, UnionSpecs: specs}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		probe := reporter.NullBadVal()
		// nil vs "" special case: on empty input, a nil member wins
		// outright rather than being tried in declared order — an empty
		// string also parses successfully as an empty array/map/etc.,
		// and without this check that composite member would shadow nil.
		if in == "" {
			for _, m := range resolved {
				if m.CanonicalSpec == "nil" {
					return value.Nil(), "", true
				}
			}
		}
		for _, m := range resolved {
			v, rf, ok := m.Parse(probe, in, ctx)
			if ok {
				return v, rf, true
			}
		}
		return value.Nil(), "", bad.Fail("union", in, "matched no union member")
	}
	entry.Compare = func(a, b value.Value) int { return 0 }
	if len(resolved) > 0 {
		entry.Default = resolved[0].Default
	}
	return entry, nil
}

// reorderStringLast enforces spec's "string must be last among
// members" invariant regardless of declared order, so the union's
// try-in-order parser never eclipses a more specific type with the
// unconditionally-accepting string primitive.
func reorderStringLast(members []typespec.Type) []typespec.Type {
	out := make([]typespec.Type, 0, len(members))
	var strMember typespec.Type
	for _, m := range members {
		if p, ok := m.(typespec.Primitive); ok && p.Name == "string" {
			strMember = m
			continue
		}
		out = append(out, m)
	}
	if strMember != nil {
		out = append(out, strMember)
	}
	return out
}

func (r *Registry) compileExtends(t typespec.Extends, canon string) (*ParserEntry, error) {
	parent, ok := r.Lookup(t.Parent)
	if !ok || parent.Kind != KindRecord {
		return nil, fmt.Errorf("extends parent %q is not a registered record type", t.Parent)
	}
	fields := append([]FieldSpec(nil), parent.FieldSpecs...)
	seen := map[string]bool{}
	for _, f := range fields {
		seen[f.Name] = true
	}
	resolved := make([]*ParserEntry, 0, len(fields)+len(t.Extra.Fields))
	for _, f := range fields {
		e, _ := r.Lookup(f.Spec)
		resolved = append(resolved, e)
	}
	for _, f := range t.Extra.Fields {
		if seen[f.Name] {
			return nil, fmt.Errorf("field %q conflicts with inherited field from %q", f.Name, t.Parent)
		}
		if err := isValidFieldName(f.Name); err != nil {
			return nil, err
		}
		e, err := r.compile(f.Type)
		if err != nil {
			return nil, err
		}
		fields = append(fields, FieldSpec{Name: f.Name, Spec: e.CanonicalSpec, Optional: f.Optional})
		resolved = append(resolved, e)
		seen[f.Name] = true
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	byName := make(map[string]*ParserEntry, len(resolved))
	for i, rf := range append([]FieldSpec(nil), parent.FieldSpecs...) {
		byName[rf.Name] = resolved[i]
	}
	for i, f := range t.Extra.Fields {
		byName[f.Name] = resolved[len(parent.FieldSpecs)+i]
	}
	orderedResolved := make([]*ParserEntry, len(fields))
	for i, f := range fields {
		orderedResolved[i] = byName[f.Name]
	}
	entry := buildRecordEntry(fields, orderedResolved)
	entry.ParentSpec = parent.CanonicalSpec
	return entry, nil
}

func (r *Registry) compileAncestorConstraint(t typespec.AncestorConstraint, canon string) (*ParserEntry, error) {
	ancestor := t.Ancestor
	entry := &ParserEntry{Kind: KindAncestorConstraint, ParentSpec: ancestor}
	entry.Parse = func(bad *reporter.BadVal, in string, ctx Context) (value.Value, string, bool) {
		if in == "" {
			return value.Nil(), "", true
		}
		if !r.ExtendsOrRestrict(in, ancestor) {
			return value.Nil(), "", bad.Fail("ancestor_constraint", in, "does not extend "+ancestor)
		}
		return simpleOK(value.String(in))
	}
	entry.Compare = func(a, b value.Value) int { return strings.Compare(a.Str, b.Str) }
	entry.Default = value.Nil()
	return entry, nil
}
