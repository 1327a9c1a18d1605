package validator

import (
	"testing"

	"github.com/pieczasz/tabularium/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmeticAndComparison(t *testing.T) {
	out := RunRow([]Spec{NewSpec("1 + 2 * 3 == 7", "")}, value.Nil(), 0, "f.tsv", nil)
	require.Len(t, out, 1)
	assert.True(t, out[0].Passed)
}

func TestFieldAccessOnRowSelf(t *testing.T) {
	row := value.Map([]value.Entry{
		{Key: "age", Val: value.Int(30)},
		{Key: "name", Val: value.String("ann")},
	})
	out := RunRow([]Spec{NewSpec("self.age >= 18", "")}, row, 0, "f.tsv", nil)
	assert.True(t, out[0].Passed)
}

func TestStringLiteralResultIsFailureMessage(t *testing.T) {
	row := value.Map([]value.Entry{{Key: "age", Val: value.Int(5)}})
	out := RunRow([]Spec{NewSpec(`self.age >= 18 && "" || "too young"`, "")}, row, 0, "f.tsv", nil)
	require.Len(t, out, 1)
	assert.False(t, out[0].Passed)
	assert.Equal(t, "too young", out[0].Message)
}

func TestEmptyStringResultIsPass(t *testing.T) {
	out := RunRow([]Spec{NewSpec(`""`, "")}, value.Nil(), 0, "f.tsv", nil)
	assert.True(t, out[0].Passed)
}

func TestFalseResultIsValidationFailed(t *testing.T) {
	out := RunRow([]Spec{NewSpec("false", "")}, value.Nil(), 0, "f.tsv", nil)
	assert.False(t, out[0].Passed)
	assert.Equal(t, "validation failed", out[0].Message)
}

func TestNumberResultIsUnexpectedValue(t *testing.T) {
	out := RunRow([]Spec{NewSpec("1 + 1", "")}, value.Nil(), 0, "f.tsv", nil)
	assert.False(t, out[0].Passed)
	assert.Equal(t, "unexpected value", out[0].Message)
}

func TestCompileErrorReported(t *testing.T) {
	out := RunRow([]Spec{NewSpec("self.. bad", "")}, value.Nil(), 0, "f.tsv", nil)
	assert.False(t, out[0].Passed)
	assert.Contains(t, out[0].Message, "failed to compile")
}

func TestRuntimeErrorReported(t *testing.T) {
	out := RunRow([]Spec{NewSpec("1 / 0", "")}, value.Nil(), 0, "f.tsv", nil)
	assert.False(t, out[0].Passed)
	assert.Contains(t, out[0].Message, "execution error")
}

func TestPredicatesNamespace(t *testing.T) {
	row := value.Map([]value.Entry{{Key: "name", Val: value.String("field_one")}})
	out := RunRow([]Spec{NewSpec("predicates.isIdentifier(self.name)", "")}, row, 0, "f.tsv", nil)
	assert.True(t, out[0].Passed)
}

func TestStringUtilsAndStringNamespaces(t *testing.T) {
	row := value.Map([]value.Entry{{Key: "name", Val: value.String("Ann")}})
	out := RunRow([]Spec{NewSpec(`stringUtils.toLower(self.name) == "ann" && string.len(self.name) == 3`, "")}, row, 0, "f.tsv", nil)
	assert.True(t, out[0].Passed)
}

func TestMathNamespace(t *testing.T) {
	out := RunRow([]Spec{NewSpec("math.max(3, 7) == 7", "")}, value.Nil(), 0, "f.tsv", nil)
	assert.True(t, out[0].Passed)
}

func TestTypeBuiltin(t *testing.T) {
	row := value.Map([]value.Entry{{Key: "age", Val: value.Int(1)}})
	out := RunRow([]Spec{NewSpec(`type(self.age) == "number"`, "")}, row, 0, "f.tsv", nil)
	assert.True(t, out[0].Passed)
}

func TestCtxSharedAcrossRowScopeCalls(t *testing.T) {
	ctx := map[string]any{}
	// the caller reuses the same ctx map across row calls; ctx mutated
	// by one row's validator expression must be visible to the next
	// row's, through the compiled "ctx.x = ..." assignment itself.
	RunRow([]Spec{NewSpec("ctx.seen = 1", "")}, value.Nil(), 0, "f.tsv", ctx)
	out := RunRow([]Spec{NewSpec(`ctx.seen == 1`, "")}, value.Nil(), 1, "f.tsv", ctx)
	assert.True(t, out[0].Passed)
}

func TestCtxFieldAssignmentAccumulatesAcrossRows(t *testing.T) {
	ctx := map[string]any{"total": float64(0)}
	spec := NewSpec("ctx.total = ctx.total + self.age", "")
	rows := []value.Value{
		value.Map([]value.Entry{{Key: "age", Val: value.Int(10)}}),
		value.Map([]value.Entry{{Key: "age", Val: value.Int(20)}}),
	}
	for i, r := range rows {
		RunRow([]Spec{spec}, r, i, "f.tsv", ctx)
	}
	assert.Equal(t, float64(30), ctx["total"])
}

func TestCtxIndexAssignment(t *testing.T) {
	ctx := map[string]any{}
	out := RunRow([]Spec{NewSpec(`ctx["seen"] = true`, "")}, value.Nil(), 0, "f.tsv", ctx)
	assert.True(t, out[0].Passed)
	assert.Equal(t, true, ctx["seen"])
}

func TestAssignmentOutsideCtxRejectedAtCompile(t *testing.T) {
	row := value.Map([]value.Entry{{Key: "age", Val: value.Int(1)}})
	out := RunRow([]Spec{NewSpec("self.age = 2", "")}, row, 0, "f.tsv", nil)
	assert.False(t, out[0].Passed)
	assert.Contains(t, out[0].Message, "failed to compile")
}

func TestFileScopeSeesRowsAndCount(t *testing.T) {
	rows := []value.Value{
		value.Map([]value.Entry{{Key: "age", Val: value.Int(10)}}),
		value.Map([]value.Entry{{Key: "age", Val: value.Int(20)}}),
	}
	out := RunFile([]Spec{NewSpec("count(rows) == 2", "")}, rows, "f.tsv", nil)
	assert.True(t, out[0].Passed)
}

func TestPackageScopeSeesFiles(t *testing.T) {
	files := map[string][]value.Value{
		"orders.tsv": {value.Map([]value.Entry{{Key: "id", Val: value.Int(1)}})},
	}
	out := RunPackage([]Spec{NewSpec(`count(files["orders.tsv"]) == 1 && packageId == "pkg"`, LevelWarn)}, files, "pkg", nil)
	require.Len(t, out, 1)
	assert.True(t, out[0].Passed)
}

func TestErrorLevelFailureStopsScope(t *testing.T) {
	specs := []Spec{
		NewSpec("false", LevelError),
		NewSpec("true", LevelError),
	}
	out := RunRow(specs, value.Nil(), 0, "f.tsv", nil)
	assert.Len(t, out, 1, "second validator must be skipped after the first error-level failure")
}

func TestWarnLevelFailureDoesNotStopScope(t *testing.T) {
	specs := []Spec{
		NewSpec("false", LevelWarn),
		NewSpec("true", LevelError),
	}
	out := RunRow(specs, value.Nil(), 0, "f.tsv", nil)
	require.Len(t, out, 2)
	assert.False(t, out[0].Passed)
	assert.True(t, out[1].Passed)
}

func TestStepQuotaExceeded(t *testing.T) {
	expr := "1"
	for i := 0; i < 2000; i++ {
		expr += " + 1"
	}
	out := RunRow([]Spec{NewSpec(expr, "")}, value.Nil(), 0, "f.tsv", nil)
	assert.False(t, out[0].Passed)
	assert.Contains(t, out[0].Message, "execution error")
}

func TestUnaryAndLogicalOperators(t *testing.T) {
	out := RunRow([]Spec{NewSpec("!false && (1 < 2 || 3 > 4)", "")}, value.Nil(), 0, "f.tsv", nil)
	assert.True(t, out[0].Passed)
}
