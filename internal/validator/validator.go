package validator

import (
	"fmt"

	"github.com/pieczasz/tabularium/internal/value"
)

// Level is a validator's failure severity.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
)

// Spec is one validator declaration: an expression plus its severity.
// A bare expression string defaults to LevelError.
type Spec struct {
	Expr  string
	Level Level
}

// Compile checks an expression's syntax without running it, so callers
// that register a validator ahead of any data (e.g. a custom type's
// "validate" constraint) can reject a malformed expression at
// registration time instead of at first use.
func Compile(expr string) error {
	_, err := compile(expr)
	return err
}

// NewSpec builds a Spec defaulting Level to "error" when empty.
func NewSpec(expr string, level Level) Spec {
	if level == "" {
		level = LevelError
	}
	return Spec{Expr: expr, Level: level}
}

// Quotas per scope, per spec: row validators get the smallest step
// budget, package validators (which may scan every file) the largest.
const (
	RowStepQuota     = 1_000
	FileStepQuota    = 10_000
	PackageStepQuota = 100_000
)

// Outcome is one validator's result against one scope invocation.
// Subject/RowIndex identify where it ran, for callers that fold
// outcomes into a location-aware diagnostic sink: Subject is the file
// name for row/file scope or the package ID for package scope;
// RowIndex is the row's 0-based position for row scope, -1 otherwise.
type Outcome struct {
	Spec     Spec
	Passed   bool
	Message  string
	Subject  string
	RowIndex int
}

// compiled caches a Spec's parsed expr so a scope evaluated across
// many rows doesn't re-lex/re-parse per row.
type compiled struct {
	spec Spec
	expr expr
	err  error
}

func compileAll(specs []Spec) []compiled {
	out := make([]compiled, len(specs))
	for i, s := range specs {
		e, err := compile(s.Expr)
		out[i] = compiled{spec: s, expr: e, err: err}
	}
	return out
}

// runOne evaluates one compiled validator against env/quota and turns
// its result (or any compile/runtime error) into an Outcome per the
// documented interpretation rules:
//
//	true or ""      -> pass
//	false or absent  -> fail, "validation failed"
//	non-empty string -> fail, that string
//	anything else    -> fail, "unexpected value"
//	compile error     -> fail, "failed to compile"
//	runtime error     -> fail, "execution error"
func runOne(c compiled, env *Env, maxSteps int) Outcome {
	if c.err != nil {
		return Outcome{Spec: c.spec, Passed: false, Message: "failed to compile: " + c.err.Error()}
	}
	ev := newEvaluator(env, maxSteps)
	result, err := ev.eval(c.expr)
	if err != nil {
		return Outcome{Spec: c.spec, Passed: false, Message: "execution error: " + err.Error()}
	}
	switch v := result.(type) {
	case bool:
		if v {
			return Outcome{Spec: c.spec, Passed: true}
		}
		return Outcome{Spec: c.spec, Passed: false, Message: "validation failed"}
	case nil:
		return Outcome{Spec: c.spec, Passed: false, Message: "validation failed"}
	case string:
		if v == "" {
			return Outcome{Spec: c.spec, Passed: true}
		}
		return Outcome{Spec: c.spec, Passed: false, Message: v}
	default:
		return Outcome{Spec: c.spec, Passed: false, Message: "unexpected value"}
	}
}

// baseEnv wires the namespaces and builtins every scope sees
// regardless of which fields it adds: predicates.*, stringUtils.*,
// math.*, string.*, count, sum, type, and a shared mutable ctx table.
func baseEnv(ctx map[string]any) *Env {
	env := newEnv()
	env.set("predicates", predicatesNamespace())
	env.set("stringUtils", stringUtilsNamespace())
	env.set("math", mathNamespace())
	env.set("string", stringNamespace())
	env.set("ctx", ctx)
	env.set("count", fn(func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("count expects one argument")
		}
		items, ok := asSlice(args[0])
		if !ok {
			return nil, fmt.Errorf("count expects a table")
		}
		return float64(len(items)), nil
	}))
	env.set("sum", fn(func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("sum expects one argument")
		}
		items, ok := asSlice(args[0])
		if !ok {
			return nil, fmt.Errorf("sum expects a table")
		}
		var total float64
		for _, item := range items {
			n, ok := item.(float64)
			if !ok {
				return nil, fmt.Errorf("sum expects a table of numbers")
			}
			total += n
		}
		return total, nil
	}))
	env.set("type", fn(func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("type expects one argument")
		}
		return typeOf(args[0]), nil
	}))
	return env
}

// RunRow runs specs against one parsed row. self is the row as a
// table (column name -> value), rowIndex is its 0-based position in
// the file, fileName its source file. ctx is shared mutable state
// across every row validator call within one file (and across files
// in a package run, if the caller chooses to reuse it).
func RunRow(specs []Spec, self value.Value, rowIndex int, fileName string, ctx map[string]any) []Outcome {
	env := baseEnv(ctx)
	env.set("self", toNative(self))
	env.set("rowIndex", float64(rowIndex))
	env.set("fileName", fileName)
	out := runScope(specs, env, RowStepQuota)
	for i := range out {
		out[i].Subject = fileName
		out[i].RowIndex = rowIndex
	}
	return out
}

// RunFile runs specs against an entire file's parsed rows.
func RunFile(specs []Spec, rows []value.Value, fileName string, ctx map[string]any) []Outcome {
	env := baseEnv(ctx)
	nativeRows := make([]any, len(rows))
	for i, r := range rows {
		nativeRows[i] = toNative(r)
	}
	env.set("rows", nativeRows)
	env.set("fileName", fileName)
	out := runScope(specs, env, FileStepQuota)
	for i := range out {
		out[i].Subject = fileName
		out[i].RowIndex = -1
	}
	return out
}

// RunPackage runs specs against every file in a package. files maps
// file name to its parsed rows.
func RunPackage(specs []Spec, files map[string][]value.Value, packageID string, ctx map[string]any) []Outcome {
	env := baseEnv(ctx)
	nativeFiles := make(map[string]any, len(files))
	for name, rows := range files {
		nativeRows := make([]any, len(rows))
		for i, r := range rows {
			nativeRows[i] = toNative(r)
		}
		nativeFiles[name] = nativeRows
	}
	env.set("files", nativeFiles)
	env.set("packageId", packageID)
	out := runScope(specs, env, PackageStepQuota)
	for i := range out {
		out[i].Subject = packageID
		out[i].RowIndex = -1
	}
	return out
}

// runScope compiles and runs every validator in specs against env,
// stopping at the first error-level failure (subsequent validators in
// this scope call are skipped); warn-level failures never stop the
// scope, they only accumulate into the returned outcomes.
func runScope(specs []Spec, env *Env, maxSteps int) []Outcome {
	compiledSpecs := compileAll(specs)
	var out []Outcome
	for _, c := range compiledSpecs {
		o := runOne(c, env, maxSteps)
		out = append(out, o)
		if !o.Passed && c.spec.Level == LevelError {
			break
		}
	}
	return out
}
