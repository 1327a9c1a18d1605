package registry

import (
	"testing"

	"github.com/pieczasz/tabularium/internal/reporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOK(t *testing.T, r *Registry, spec, input string) (string, string) {
	t.Helper()
	e, err := r.ParseType(spec)
	require.NoError(t, err, "spec %q", spec)
	bad := reporter.New("test", nil)
	v, rf, ok := e.Parse(bad, input, CtxTSV)
	require.True(t, ok, "parse %q as %q: %v", input, spec, bad)
	_ = v
	return rf, spec
}

func TestBootstrapPrimitivesParse(t *testing.T) {
	r := New()
	bad := reporter.New("test", nil)

	e, err := r.ParseType("integer")
	require.NoError(t, err)
	v, _, ok := e.Parse(bad, "42", CtxTSV)
	require.True(t, ok)
	assert.Equal(t, 42.0, v.Num)

	e, err = r.ParseType("boolean")
	require.NoError(t, err)
	v, _, ok = e.Parse(bad, "TRUE", CtxTSV)
	require.True(t, ok)
	assert.True(t, v.Bool)
}

func TestParseArrayOfIntegers(t *testing.T) {
	r := New()
	bad := reporter.New("test", nil)
	e, err := r.ParseType("{integer}")
	require.NoError(t, err)
	v, rf, ok := e.Parse(bad, "1,2,3", CtxTSV)
	require.True(t, ok)
	require.Len(t, v.Items, 3)
	assert.Equal(t, "{1,2,3}", rf)
}

func TestParseRecordMissingRequiredFieldFails(t *testing.T) {
	r := New()
	bad := reporter.New("test", nil)
	e, err := r.ParseType("{name:string,age:integer}")
	require.NoError(t, err)
	_, _, ok := e.Parse(bad, "name=ann", CtxTSV)
	assert.False(t, ok)
	assert.Greater(t, bad.Errors, 0)
}

func TestParseRecordAllFieldsSucceeds(t *testing.T) {
	r := New()
	bad := reporter.New("test", nil)
	e, err := r.ParseType("{name:string,age:integer}")
	require.NoError(t, err)
	v, _, ok := e.Parse(bad, "name=ann,age=30", CtxTSV)
	require.True(t, ok)
	age, found := v.Get("age")
	require.True(t, found)
	assert.Equal(t, 30.0, age.Num)
}

func TestParseMapRejectsDuplicateKey(t *testing.T) {
	r := New()
	bad := reporter.New("test", nil)
	e, err := r.ParseType("{string:integer}")
	require.NoError(t, err)
	_, _, ok := e.Parse(bad, "a=1,a=2", CtxTSV)
	assert.False(t, ok)
}

func TestUnionTriesInOrderStringLast(t *testing.T) {
	r := New()
	bad := reporter.New("test", nil)
	e, err := r.ParseType("string|integer")
	require.NoError(t, err)
	v, _, ok := e.Parse(bad, "42", CtxTSV)
	require.True(t, ok)
	assert.Equal(t, 42.0, v.Num, "integer must win over string even though string was declared first")
}

func TestUnionEmptyInputPrefersNilOverEmptyContainer(t *testing.T) {
	r := New()
	bad := reporter.New("test", nil)
	e, err := r.ParseType("{string}|nil")
	require.NoError(t, err)
	v, _, ok := e.Parse(bad, "", CtxTSV)
	require.True(t, ok)
	assert.True(t, v.IsNil(), "empty input must parse as nil, not an empty array")
}

func TestUnionDisallowsNilBearingMapKey(t *testing.T) {
	r := New()
	_, err := r.ParseType("{nil|string:integer}")
	assert.Error(t, err)
}

func TestExtendsBuildsMergedRecord(t *testing.T) {
	r := New()
	_, err := r.ParseType("{name:string,legs:integer}")
	require.NoError(t, err)
	require.NoError(t, r.RegisterAlias("Animal", "{name:string,legs:integer}"))

	e, err := r.ParseType("{extends:Animal,breed:string}")
	require.NoError(t, err)
	bad := reporter.New("test", nil)
	v, _, ok := e.Parse(bad, "name=rex,legs=4,breed=lab", CtxTSV)
	require.True(t, ok)
	_, found := v.Get("breed")
	assert.True(t, found)
}

func TestExtendsOrRestrictStrictAndTransitive(t *testing.T) {
	r := New()
	assert.False(t, r.ExtendsOrRestrict("integer", "integer"))
	assert.True(t, r.ExtendsOrRestrict("integer", "number"))
	assert.True(t, r.ExtendsOrRestrict("ubyte", "number"))
	assert.False(t, r.ExtendsOrRestrict("number", "integer"))
}

func TestExtendsOrRestrictArrayCovariant(t *testing.T) {
	r := New()
	r.ParseType("{integer}")
	r.ParseType("{number}")
	assert.True(t, r.ExtendsOrRestrict("{integer}", "{number}"))
}

func TestExtendsOrRestrictRecordWidening(t *testing.T) {
	r := New()
	_, err := r.ParseType("{name:string,legs:integer}")
	require.NoError(t, err)
	_, err = r.ParseType("{name:string,legs:integer,breed:string}")
	require.NoError(t, err)
	assert.True(t, r.ExtendsOrRestrict("{breed:string,legs:integer,name:string}", "{legs:integer,name:string}"))
}

func TestRestrictNumberEnforcesBounds(t *testing.T) {
	r := New()
	min, max := 0.0, 100.0
	entry, err := r.RestrictNumber("integer", &min, &max, "Percentage100")
	require.NoError(t, err)
	bad := reporter.New("test", nil)
	_, _, ok := entry.Parse(bad, "150", CtxTSV)
	assert.False(t, ok)

	bad2 := reporter.New("test", nil)
	_, _, ok = entry.Parse(bad2, "50", CtxTSV)
	assert.True(t, ok)

	byName, err := r.ParseType("Percentage100")
	require.NoError(t, err)
	assert.Equal(t, entry.CanonicalSpec, byName.CanonicalSpec)
}

func TestRestrictStringRequiresLengthForPattern(t *testing.T) {
	r := New()
	_, err := r.RestrictString("string", nil, nil, "^[a-z]+$", "LowerOnly")
	assert.Error(t, err)
}

func TestRegisterEnumLowercasesAndSorts(t *testing.T) {
	r := New()
	entry, err := r.RegisterEnum([]string{"Pro", "FREE", "enterprise"}, "Plan")
	require.NoError(t, err)
	assert.Equal(t, []string{"enterprise", "free", "pro"}, entry.EnumLabels)
}

func TestRestrictEnumRejectsNonSubset(t *testing.T) {
	r := New()
	_, err := r.RegisterEnum([]string{"free", "pro", "enterprise"}, "Plan")
	require.NoError(t, err)
	_, err = r.RestrictEnum("Plan", []string{"free", "ultra"}, "FreeOnly")
	assert.Error(t, err)
}

func TestRegisterTypeTagAcceptsMembersOnly(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAlias("Dog", "{name:string,legs:integer}"))
	require.NoError(t, r.RegisterAlias("Animal2", "{name:string,legs:integer,breed:string}"))
	_, err := r.ParseType("{extends:Animal2,sound:string}")
	require.NoError(t, err)

	_, err = r.RegisterTypeTag("Pet", "Animal2", []string{"Animal2"})
	require.NoError(t, err)

	e, err := r.ParseType("{extends,Pet}")
	require.NoError(t, err)
	bad := reporter.New("test", nil)
	_, _, ok := e.Parse(bad, "Animal2", CtxTSV)
	assert.True(t, ok)
}

func TestRegisterTypesFromSpecBatch(t *testing.T) {
	r := New()
	min := 0.0
	max := 100.0
	rows := []TypeSpecRow{
		{Name: "Score", Parent: "integer", Min: &min, Max: &max},
		{Name: "Plan", Values: []string{"free", "pro"}},
	}
	entries, err := r.RegisterTypesFromSpec(rows)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	_, err = r.ParseType("Score")
	require.NoError(t, err)
	_, err = r.ParseType("Plan")
	require.NoError(t, err)
}

func TestRegisterTypesFromSpecValidateCategory(t *testing.T) {
	r := New()
	rows := []TypeSpecRow{
		{Name: "EvenNumber", Parent: "integer", Validate: "self % 2 == 0"},
	}
	entries, err := r.RegisterTypesFromSpec(rows)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e, err := r.ParseType("EvenNumber")
	require.NoError(t, err)

	bad := reporter.New("test", nil)
	_, _, ok := e.Parse(bad, "4", CtxTSV)
	assert.True(t, ok)

	bad2 := reporter.New("test", nil)
	_, _, ok = e.Parse(bad2, "3", CtxTSV)
	assert.False(t, ok)
}

func TestRegisterTypesFromSpecValidateCategoryRejectsBadExpression(t *testing.T) {
	r := New()
	rows := []TypeSpecRow{{Name: "Bad", Parent: "integer", Validate: "self .. bad"}}
	_, err := r.RegisterTypesFromSpec(rows)
	assert.Error(t, err)
}

func TestRegisterTypesFromSpecRejectsMixedCategories(t *testing.T) {
	r := New()
	min := 0.0
	rows := []TypeSpecRow{{Name: "Bad", Parent: "integer", Min: &min, Values: []string{"x"}}}
	_, err := r.RegisterTypesFromSpec(rows)
	assert.Error(t, err)
}
