package validator

import (
	"fmt"
	gomath "math"
	"strings"

	"github.com/pieczasz/tabularium/internal/predicate"
)

func argString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d must be a string", i)
	}
	return s, nil
}

func argNumber(args []any, i int) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	n, ok := args[i].(float64)
	if !ok {
		return 0, fmt.Errorf("argument %d must be a number", i)
	}
	return n, nil
}

func predicateFn(f func(string) bool) fn {
	return func(args []any) (any, error) {
		s, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

func predicatesNamespace() namespace {
	return namespace{
		"isIdentifier":  predicateFn(predicate.IsIdentifier),
		"isName":        predicateFn(predicate.IsName),
		"isInteger":     predicateFn(predicate.IsIntegerValue),
		"isNonZero":     predicateFn(predicate.IsNonZeroNumber),
		"isPercent":     predicateFn(predicate.IsPercent),
		"isHTTPURL":     predicateFn(predicate.IsHTTPURL),
		"isRegex":       predicateFn(predicate.IsRegex),
		"isFilename":    predicateFn(predicate.IsFilename),
		"isValidUTF8":   predicateFn(predicate.IsValidUTF8),
		"isValidASCII":  predicateFn(predicate.IsValidASCII),
		"isVersion":     predicateFn(predicate.IsVersion),
		"isCmpVersion":  predicateFn(predicate.IsCmpVersion),
		"isHexBytes":    predicateFn(predicate.IsHexBytes),
		"isBase64":      predicateFn(predicate.IsBase64),
		"isKeyword":     predicateFn(predicate.IsKeyword),
	}
}

func stringUtilsNamespace() namespace {
	return namespace{
		"trim": func(args []any) (any, error) {
			s, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			return strings.TrimSpace(s), nil
		},
		"toLower": func(args []any) (any, error) {
			s, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			return strings.ToLower(s), nil
		},
		"toUpper": func(args []any) (any, error) {
			s, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			return strings.ToUpper(s), nil
		},
		"contains": func(args []any) (any, error) {
			s, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			sub, err := argString(args, 1)
			if err != nil {
				return nil, err
			}
			return strings.Contains(s, sub), nil
		},
		"split": func(args []any) (any, error) {
			s, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			sep, err := argString(args, 1)
			if err != nil {
				return nil, err
			}
			parts := strings.Split(s, sep)
			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out, nil
		},
	}
}

func stringNamespace() namespace {
	return namespace{
		"len": func(args []any) (any, error) {
			s, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			return float64(len([]rune(s))), nil
		},
		"startsWith": func(args []any) (any, error) {
			s, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			p, err := argString(args, 1)
			if err != nil {
				return nil, err
			}
			return strings.HasPrefix(s, p), nil
		},
		"endsWith": func(args []any) (any, error) {
			s, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			p, err := argString(args, 1)
			if err != nil {
				return nil, err
			}
			return strings.HasSuffix(s, p), nil
		},
		"concat": func(args []any) (any, error) {
			var sb strings.Builder
			for i := range args {
				s, err := argString(args, i)
				if err != nil {
					return nil, err
				}
				sb.WriteString(s)
			}
			return sb.String(), nil
		},
	}
}

func mathNamespace() namespace {
	return namespace{
		"abs": func(args []any) (any, error) {
			n, err := argNumber(args, 0)
			if err != nil {
				return nil, err
			}
			return gomath.Abs(n), nil
		},
		"floor": func(args []any) (any, error) {
			n, err := argNumber(args, 0)
			if err != nil {
				return nil, err
			}
			return gomath.Floor(n), nil
		},
		"ceil": func(args []any) (any, error) {
			n, err := argNumber(args, 0)
			if err != nil {
				return nil, err
			}
			return gomath.Ceil(n), nil
		},
		"round": func(args []any) (any, error) {
			n, err := argNumber(args, 0)
			if err != nil {
				return nil, err
			}
			return gomath.Round(n), nil
		},
		"min": func(args []any) (any, error) {
			a, err := argNumber(args, 0)
			if err != nil {
				return nil, err
			}
			b, err := argNumber(args, 1)
			if err != nil {
				return nil, err
			}
			return gomath.Min(a, b), nil
		},
		"max": func(args []any) (any, error) {
			a, err := argNumber(args, 0)
			if err != nil {
				return nil, err
			}
			b, err := argNumber(args, 1)
			if err != nil {
				return nil, err
			}
			return gomath.Max(a, b), nil
		},
	}
}

// typeOf implements the always-available type() builtin: the native
// Go shape's runtime kind name, matching the registry's vocabulary
// where it overlaps ("string", "number", "boolean", "nil", "table").
func typeOf(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any, map[string]any:
		return "table"
	default:
		return "unknown"
	}
}

// asSlice coerces a table-shaped native value into a []any for
// count/sum, treating a map's values (in sorted-key order, for
// determinism) as its sequence.
func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		keys := sortedKeys(t)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = t[k]
		}
		return out, true
	default:
		return nil, false
	}
}
