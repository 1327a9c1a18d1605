// Package registry implements the type registry and parser factory:
// it compiles a type-spec AST (internal/typespec) into a ParserEntry
// holding a cell parser, comparator, and default value, keyed by
// canonical spec, and it implements the subtyping relation over
// registered types.
package registry

import (
	"regexp"

	"github.com/pieczasz/tabularium/internal/reporter"
	"github.com/pieczasz/tabularium/internal/typespec"
	"github.com/pieczasz/tabularium/internal/value"
)

// Context distinguishes parsing a raw TSV cell from re-interpreting an
// already-parsed value (e.g. a table-literal leaf recursing into its
// element parser).
type Context int

const (
	CtxTSV Context = iota
	CtxParsed
)

// Kind is the structural category a ParserEntry belongs to.
type Kind string

const (
	KindPrimitive          Kind = "primitive"
	KindEnum               Kind = "enum"
	KindArray              Kind = "array"
	KindMap                Kind = "map"
	KindTuple              Kind = "tuple"
	KindRecord             Kind = "record"
	KindUnion              Kind = "union"
	KindAlias              Kind = "alias"
	KindRestriction        Kind = "restriction"
	KindTypeTag            Kind = "typetag"
	KindAncestorConstraint Kind = "ancestor_constraint"
)

// ParseFunc parses a raw cell string into a value and its canonical
// reformatted string. ok is false when parsing failed; the BadVal has
// already recorded the diagnostic.
type ParseFunc func(bad *reporter.BadVal, input string, ctx Context) (v value.Value, reformatted string, ok bool)

// CompareFunc is a total-order comparator consistent with equality:
// negative if a<b, zero if equal, positive if a>b.
type CompareFunc func(a, b value.Value) int

// ParserEntry is the compiled, cacheable result of registering a type
// specification: a flat struct carrying function-pointer fields rather
// than an interface with one implementation per kind (mirrors the
// typespec.Type tagged-union / flat-struct approach one layer up).
type ParserEntry struct {
	CanonicalSpec string
	Kind          Kind
	ParentSpec    string
	Parse         ParseFunc
	Compare       CompareFunc
	Default       value.Value
	IsBuiltin     bool

	// Field parsers for composite kinds, resolved once at registration
	// time so Parse closures don't need to re-resolve the registry.
	ElemSpec   string // array/typed-tuple element
	KeySpec    string // map key
	ValueSpec  string // map value
	FieldSpecs []FieldSpec
	UnionSpecs []string
	TupleSpecs []string

	// Constraint descriptors, present only for the relevant kinds.
	Min, Max           *float64
	HasMin, HasMax     bool
	MinLen, MaxLen     *int
	Pattern            *regexp.Regexp
	EnumLabels         []string // full label set for KindEnum
	RestrictedValues   []string // subset allowed by restrict_enum/restrict_union
	ValidatorExprLabel string
	ValidatorFn        func(value.Value) bool
	Members            []string // type-tag members, or restrict_union allowed member specs

	AST typespec.Type
}

// FieldSpec is one record field's name, declared type spec, and
// optionality.
type FieldSpec struct {
	Name     string
	Spec     string
	Optional bool
}
