package tableliteral

import (
	"testing"

	"github.com/pieczasz/tabularium/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmptyTable(t *testing.T) {
	v, err := Parse("{}")
	require.NoError(t, err)
	assert.Equal(t, value.KindArray, v.Kind)
	assert.Empty(t, v.Items)
}

func TestParsePositionalArray(t *testing.T) {
	v, err := Parse("{1,2,3}")
	require.NoError(t, err)
	require.Equal(t, value.KindArray, v.Kind)
	require.Len(t, v.Items, 3)
	assert.Equal(t, 2.0, v.Items[1].Num)
}

func TestParseKeyedTable(t *testing.T) {
	v, err := Parse(`{a=1,b={2,3}}`)
	require.NoError(t, err)
	require.Equal(t, value.KindMap, v.Kind)
	a, ok := v.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, a.Num)
	b, ok := v.Get("b")
	require.True(t, ok)
	assert.Equal(t, value.KindArray, b.Kind)
	assert.Len(t, b.Items, 2)
}

func TestParseTupleLikeKeys(t *testing.T) {
	v, err := Parse("{_1=1,_2=2}")
	require.NoError(t, err)
	require.Equal(t, value.KindMap, v.Kind)
	assert.Len(t, v.Entries, 2)
	assert.Equal(t, "_1", v.Entries[0].Key)
}

func TestParseQuotedStrings(t *testing.T) {
	v, err := Parse(`{'a','it''s'}`)
	_ = v
	assert.Error(t, err) // lua '' escaping not supported, sanity check of strict grammar

	v2, err2 := Parse(`{"hi there","x\"y"}`)
	require.NoError(t, err2)
	require.Len(t, v2.Items, 2)
	assert.Equal(t, "hi there", v2.Items[0].Str)
	assert.Equal(t, `x"y`, v2.Items[1].Str)
}

func TestParseNestedDepthExceeded(t *testing.T) {
	src := ""
	for i := 0; i < 12; i++ {
		src += "{"
	}
	src += "1"
	for i := 0; i < 12; i++ {
		src += "}"
	}
	_, err := Parse(src)
	assert.Error(t, err)
}

func TestParseRejectsNonTableTop(t *testing.T) {
	for _, src := range []string{"42", `"abc"`, "true"} {
		_, err := Parse(src)
		assert.Error(t, err, "src %q", src)
	}
}

func TestParseBooleanAndNilLiterals(t *testing.T) {
	v, err := Parse("{true,false,nil}")
	require.NoError(t, err)
	require.Len(t, v.Items, 3)
	assert.Equal(t, value.KindBool, v.Items[0].Kind)
	assert.True(t, v.Items[0].Bool)
	assert.False(t, v.Items[1].Bool)
	assert.True(t, v.Items[2].IsNil())
}
