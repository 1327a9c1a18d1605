// Package typespec implements the type-specification language: a
// hand-written recursive-descent parser that turns a spec string such
// as "{name:string,tags:{string}}" into a typed AST, plus the
// canonicalization rules the registry keys parser entries by.
package typespec

import "strings"

// Type is the closed set of type-AST variants. One concrete struct
// implements it per spec.md §3; callers type-switch on the concrete
// type rather than walking a trait-object hierarchy.
type Type interface {
	isType()
	// Canonical returns the normalized textual form used as a registry
	// key: field names sorted, union members deduplicated and kept in
	// first-declared order, all whitespace removed.
	Canonical() string
}

// Primitive is a bare identifier reference ("string", "integer",
// "Money", ...). The syntactic parser cannot tell a built-in primitive
// name from a previously registered alias or ancestor-type name without
// consulting the registry, so every bare identifier becomes a Primitive
// node here; the registry resolves it to a primitive parser, an alias
// target, or an ancestor-constraint name at compile time.
type Primitive struct{ Name string }

func (Primitive) isType()             {}
func (p Primitive) Canonical() string { return p.Name }

// Enum is an inline "{enum:a|b|c}" declaration. Labels keep their
// original declared order; case-folding to lowercase happens at
// registration time, not here.
type Enum struct{ Labels []string }

func (Enum) isType() {}
func (e Enum) Canonical() string {
	return "{enum:" + strings.Join(e.Labels, "|") + "}"
}

// Array is "{T}".
type Array struct{ Elem Type }

func (Array) isType() {}
func (a Array) Canonical() string { return "{" + a.Elem.Canonical() + "}" }

// Map is "{K:V}", exactly one key/value pair.
type Map struct{ Key, Value Type }

func (Map) isType() {}
func (m Map) Canonical() string {
	return "{" + m.Key.Canonical() + ":" + m.Value.Canonical() + "}"
}

// Tuple is "{T1,T2,...}", at least two unnamed positions.
type Tuple struct{ Positions []Type }

func (Tuple) isType() {}
func (t Tuple) Canonical() string {
	parts := make([]string, len(t.Positions))
	for i, p := range t.Positions {
		parts[i] = p.Canonical()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Field is one named member of a Record.
type Field struct {
	Name     string
	Type     Type
	Optional bool
}

// Record is "{f1:T1,f2:T2,...}", at least two fields.
type Record struct{ Fields []Field }

func (Record) isType() {}

// Canonical sorts fields alphabetically by name; this is what makes
// field-reordered specs hash to the same registry entry.
func (r Record) Canonical() string {
	fields := append([]Field(nil), r.Fields...)
	sortFields(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + ":" + f.Type.Canonical()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func sortFields(fields []Field) {
	for i := 1; i < len(fields); i++ {
		for j := i; j > 0 && fields[j-1].Name > fields[j].Name; j-- {
			fields[j-1], fields[j] = fields[j], fields[j-1]
		}
	}
}

// Union is "A|B|C", left-associative and flattened. Member order is
// preserved exactly as declared (deduplicated); neither the parser that
// builds this value nor Canonical moves "string" last — the registry
// does that when it compiles the union.
type Union struct{ Members []Type }

func (Union) isType() {}
func (u Union) Canonical() string {
	parts := make([]string, len(u.Members))
	for i, m := range u.Members {
		parts[i] = m.Canonical()
	}
	return strings.Join(parts, "|")
}

// Extends is "{extends:Parent,f1:T1,...}": a record that inherits
// Parent's fields plus Extra's own.
type Extends struct {
	Parent string
	Extra  Record
}

func (Extends) isType() {}
func (e Extends) Canonical() string {
	parts := []string{"extends:" + e.Parent}
	fields := append([]Field(nil), e.Extra.Fields...)
	sortFields(fields)
	for _, f := range fields {
		parts = append(parts, f.Name+":"+f.Type.Canonical())
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// AncestorConstraint is bare "{extends:T}": accepts only type names
// that extend T.
type AncestorConstraint struct{ Ancestor string }

func (AncestorConstraint) isType() {}
func (a AncestorConstraint) Canonical() string {
	return "{extends:" + a.Ancestor + "}"
}

// TypeTag is a use-site reference "{extends,TagName}" to a named,
// previously registered set of types sharing a common ancestor.
type TypeTag struct{ Name string }

func (TypeTag) isType() {}
func (t TypeTag) Canonical() string { return "{extends," + t.Name + "}" }
