package typespec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, spec string) Type {
	t.Helper()
	ty, err := ParseSpec(spec)
	require.NoError(t, err, "spec %q", spec)
	return ty
}

func TestParsePrimitive(t *testing.T) {
	ty := mustParse(t, "integer")
	assert.Equal(t, Primitive{Name: "integer"}, ty)
}

func TestParseArray(t *testing.T) {
	ty := mustParse(t, "{string}")
	arr, ok := ty.(Array)
	require.True(t, ok)
	assert.Equal(t, Primitive{Name: "string"}, arr.Elem)
}

func TestParseMapSingleField(t *testing.T) {
	// A single key:value pair is always a Map, even when the key looks
	// like a record field name.
	ty := mustParse(t, "{name:string}")
	m, ok := ty.(Map)
	require.True(t, ok)
	assert.Equal(t, Primitive{Name: "name"}, m.Key)
	assert.Equal(t, Primitive{Name: "string"}, m.Value)
}

func TestParseMapCompositeKey(t *testing.T) {
	ty := mustParse(t, "{integer:string}")
	m, ok := ty.(Map)
	require.True(t, ok)
	assert.Equal(t, Primitive{Name: "integer"}, m.Key)
}

func TestParseRecordTwoFields(t *testing.T) {
	ty := mustParse(t, "{name:string,age:number}")
	rec, ok := ty.(Record)
	require.True(t, ok)
	require.Len(t, rec.Fields, 2)
	assert.Equal(t, "name", rec.Fields[0].Name)
	assert.Equal(t, "age", rec.Fields[1].Name)
}

func TestCanonicalSortsFieldsAlphabetically(t *testing.T) {
	a := mustParse(t, "{name:string,age:number}")
	b := mustParse(t, "{age:number,name:string}")
	assert.Equal(t, a.Canonical(), b.Canonical())
}

func TestParseTuple(t *testing.T) {
	ty := mustParse(t, "{integer,integer}")
	tup, ok := ty.(Tuple)
	require.True(t, ok)
	assert.Len(t, tup.Positions, 2)
}

func TestParseUnion(t *testing.T) {
	ty := mustParse(t, "integer|string")
	u, ok := ty.(Union)
	require.True(t, ok)
	require.Len(t, u.Members, 2)
	assert.Equal(t, Primitive{Name: "integer"}, u.Members[0])
	assert.Equal(t, Primitive{Name: "string"}, u.Members[1])
}

func TestParseUnionDedup(t *testing.T) {
	ty := mustParse(t, "integer|integer|string")
	u, ok := ty.(Union)
	require.True(t, ok)
	assert.Len(t, u.Members, 2)
}

func TestParseEnum(t *testing.T) {
	ty := mustParse(t, "{enum:free|pro|enterprise}")
	e, ok := ty.(Enum)
	require.True(t, ok)
	assert.Equal(t, []string{"free", "pro", "enterprise"}, e.Labels)
}

func TestParseAncestorConstraint(t *testing.T) {
	ty := mustParse(t, "{extends:Animal}")
	a, ok := ty.(AncestorConstraint)
	require.True(t, ok)
	assert.Equal(t, "Animal", a.Ancestor)
}

func TestParseExtends(t *testing.T) {
	ty := mustParse(t, "{extends:Animal,legs:integer}")
	e, ok := ty.(Extends)
	require.True(t, ok)
	assert.Equal(t, "Animal", e.Parent)
	require.Len(t, e.Extra.Fields, 1)
	assert.Equal(t, "legs", e.Extra.Fields[0].Name)
}

func TestParseTypeTag(t *testing.T) {
	ty := mustParse(t, "{extends,Pet}")
	tag, ok := ty.(TypeTag)
	require.True(t, ok)
	assert.Equal(t, "Pet", tag.Name)
}

func TestParseNestedComposite(t *testing.T) {
	ty := mustParse(t, "{id:integer,tags:{string},meta:{string:string}}")
	rec, ok := ty.(Record)
	require.True(t, ok)
	require.Len(t, rec.Fields, 3)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"{}",
		"{a:string,b}",
		"{a:string,b:integer,c}",
		"not valid spec!",
	}
	for _, c := range cases {
		_, err := ParseSpec(c)
		assert.Error(t, err, "spec %q should fail to parse", c)
	}
}

func TestParseRecordRejectsCompositeFieldKeyWithMultipleFields(t *testing.T) {
	_, err := ParseSpec("{integer:string,name:string}")
	assert.Error(t, err)
}
