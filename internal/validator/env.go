package validator

import (
	"sort"

	"github.com/pieczasz/tabularium/internal/value"
)

// fn is a callable exposed to expressions; args and the return value
// use the dynamic "any" shapes documented in toNative/Eval, not
// value.Value directly, so expressions can do normal arithmetic on
// them without re-wrapping at every step.
type fn func(args []any) (any, error)

// namespace is a dotted-access bag of functions, e.g. predicates.isName.
type namespace map[string]fn

// Env is one evaluation environment: the variable bindings visible to
// an expression plus the fixed namespaces every scope always sees.
type Env struct {
	vars map[string]any
}

func newEnv() *Env { return &Env{vars: map[string]any{}} }

func (e *Env) set(name string, v any) { e.vars[name] = v }

// toNative flattens a parsed value.Value into the plain Go shapes
// expressions operate on: nil, bool, float64, string, []any, or
// map[string]any (sorted-key iteration order is not guaranteed by Go
// maps, but equality/lookups don't need it).
func toNative(v value.Value) any {
	switch v.Kind {
	case value.KindNil:
		return nil
	case value.KindBool:
		return v.Bool
	case value.KindNumber:
		return v.Num
	case value.KindString:
		return v.Str
	case value.KindArray:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = toNative(item)
		}
		return out
	case value.KindMap:
		out := make(map[string]any, len(v.Entries))
		for _, e := range v.Entries {
			out[e.Key] = toNative(e.Val)
		}
		return out
	default:
		return nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
