package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pieczasz/tabularium/internal/predicate"
	"github.com/pieczasz/tabularium/internal/typespec"
	"github.com/pieczasz/tabularium/internal/value"
)

// Registry holds every compiled ParserEntry, keyed by canonical spec,
// plus a name table mapping aliases/enum names/record names/type-tag
// names to the canonical spec they resolve to. All mutation happens
// during the single-threaded bootstrap and manifest-load phase (see
// spec §5's concurrency model); lookups during parsing only ever
// lazily insert a derived composite entry, which is safe because
// nothing else runs concurrently.
type Registry struct {
	entries map[string]*ParserEntry
	names   map[string]string
}

// New builds a registry with every built-in primitive registered.
func New() *Registry {
	r := &Registry{
		entries: make(map[string]*ParserEntry),
		names:   make(map[string]string),
	}
	for _, def := range bootstrapPrimitives() {
		entry := &ParserEntry{
			CanonicalSpec: def.name,
			Kind:          KindPrimitive,
			ParentSpec:    def.parent,
			Parse:         def.parse,
			IsBuiltin:     true,
			Default:       value.Nil(),
		}
		entry.Compare = defaultComparatorFor(entry)
		entry.Default = defaultValueFor(entry)
		r.entries[def.name] = entry
		r.names[def.name] = def.name
	}
	return r
}

// Lookup returns the entry registered under a name or canonical spec,
// resolving aliases/tags/enum names through the name table first.
func (r *Registry) Lookup(nameOrSpec string) (*ParserEntry, bool) {
	if canon, ok := r.names[nameOrSpec]; ok {
		e, ok := r.entries[canon]
		return e, ok
	}
	e, ok := r.entries[nameOrSpec]
	return e, ok
}

// Names returns every name currently registered (aliases, enum and
// record names, and bootstrap primitives), sorted, for diagnostic
// listing such as the CLI's "types" command.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.names))
	for n := range r.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseType resolves specOrName against the registry, parsing and
// compiling it if this is the first time this canonical spec has been
// seen, per §4.6.3's "parse_type" factory.
func (r *Registry) ParseType(specOrName string) (*ParserEntry, error) {
	if e, ok := r.Lookup(specOrName); ok {
		return e, nil
	}
	ast, err := typespec.ParseSpec(specOrName)
	if err != nil {
		return nil, fmt.Errorf("Cannot parse type specification")
	}
	return r.compile(ast)
}

// mustEntry looks up a bootstrap primitive by name; it panics only
// during registry wiring (bootstrap), never at request time, so a
// typo here is a programmer error, not user input.
func (r *Registry) mustEntry(name string) *ParserEntry {
	e, ok := r.entries[name]
	if !ok {
		panic("registry: missing expected entry " + name)
	}
	return e
}

// extendsPrimitiveChain walks ParentSpec pointers starting at name and
// reports whether ancestor appears in the chain (used by callers that
// need "does this primitive ultimately derive from string/number").
func (r *Registry) extendsPrimitiveChain(name, ancestor string) bool {
	cur := name
	for cur != "" {
		if cur == ancestor {
			return true
		}
		e, ok := r.entries[cur]
		if !ok {
			return false
		}
		cur = e.ParentSpec
	}
	return false
}

func isValidFieldName(name string) error {
	if !predicate.IsIdentifier(name) {
		return fmt.Errorf("field name %q is not a valid identifier", name)
	}
	if predicate.IsKeyword(name) {
		return fmt.Errorf("field name %q is a reserved keyword", name)
	}
	return nil
}

func containsNilMember(ast typespec.Type) bool {
	switch t := ast.(type) {
	case typespec.Primitive:
		return t.Name == "nil"
	case typespec.Union:
		for _, m := range t.Members {
			if containsNilMember(m) {
				return true
			}
		}
	}
	return false
}

func canonicalOf(ast typespec.Type) string { return ast.Canonical() }

func normalizeName(s string) string { return strings.TrimSpace(s) }
