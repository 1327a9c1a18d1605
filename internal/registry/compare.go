package registry

import (
	"strings"

	"github.com/pieczasz/tabularium/internal/value"
)

// defaultComparatorFor builds the bootstrap primitives' comparator:
// strings compare case-insensitively, numbers numerically, booleans
// false<true, nil compares equal only to nil and otherwise lowest.
func defaultComparatorFor(entry *ParserEntry) CompareFunc {
	return func(a, b value.Value) int {
		if a.Kind == value.KindNil || b.Kind == value.KindNil {
			if a.Kind == b.Kind {
				return 0
			}
			if a.Kind == value.KindNil {
				return -1
			}
			return 1
		}
		switch a.Kind {
		case value.KindString:
			return strings.Compare(strings.ToLower(a.Str), strings.ToLower(b.Str))
		case value.KindNumber:
			switch {
			case a.Num < b.Num:
				return -1
			case a.Num > b.Num:
				return 1
			default:
				return 0
			}
		case value.KindBool:
			if a.Bool == b.Bool {
				return 0
			}
			if !a.Bool {
				return -1
			}
			return 1
		default:
			return 0
		}
	}
}

// defaultValueFor computes the empty-cell default for a bootstrap
// primitive per §4.6.5: number family -> 0, boolean -> false,
// string family -> "", nil -> nil.
func defaultValueFor(entry *ParserEntry) value.Value {
	switch entry.CanonicalSpec {
	case "nil":
		return value.Nil()
	case "boolean":
		return value.Bool(false)
	case "number", "percent":
		return value.Number(0)
	case "float":
		return value.Float(0)
	case "integer", "ubyte", "uint", "long":
		return value.Int(0)
	default:
		return value.String("")
	}
}

func compareSequences(a, b []value.Value, cmp CompareFunc) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := cmp(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareMaps(a, b value.Value, cmp CompareFunc) int {
	as, bs := a.SortedEntries(), b.SortedEntries()
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(as[i].Key, bs[i].Key); c != 0 {
			return c
		}
		if c := cmp(as[i].Val, bs[i].Val); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}
