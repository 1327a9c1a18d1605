package serialize

import (
	"strings"
	"testing"

	"github.com/pieczasz/tabularium/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() value.Value {
	return value.Map([]value.Entry{
		{Key: "name", Val: value.String("ann")},
		{Key: "age", Val: value.Int(30)},
	})
}

func TestCanonicalTSVScalarsAndContainers(t *testing.T) {
	s, err := CanonicalTSV(value.String("hi\t\"there\""))
	require.NoError(t, err)
	assert.Equal(t, `"hi\t\"there\""`, s)

	s, err = CanonicalTSV(value.Array([]value.Value{value.Int(1), value.Int(2)}))
	require.NoError(t, err)
	assert.Equal(t, "{1,2}", s)

	s, err = CanonicalTSV(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, `{age=30,name="ann"}`, s)
}

func TestCanonicalTSVFloatAlwaysHasDecimal(t *testing.T) {
	s, err := CanonicalTSV(value.Float(3))
	require.NoError(t, err)
	assert.Equal(t, "3.0", s)
}

func TestCanonicalTSVIntHasNoDecimal(t *testing.T) {
	s, err := CanonicalTSV(value.Int(3))
	require.NoError(t, err)
	assert.Equal(t, "3", s)
}

func TestTypedJSONSequenceAndMap(t *testing.T) {
	s, err := TypedJSON(value.Array([]value.Value{value.Int(1), value.Int(2)}))
	require.NoError(t, err)
	assert.Equal(t, `[2,{"int":"1"},{"int":"2"}]`, s)

	s, err = TypedJSON(value.Map([]value.Entry{{Key: "a", Val: value.Int(1)}}))
	require.NoError(t, err)
	assert.Equal(t, `[0,["a",{"int":"1"}]]`, s)
}

func TestTypedJSONSpecialFloat(t *testing.T) {
	s, err := TypedJSON(value.SpecialFloat(value.SpecialNaN))
	require.NoError(t, err)
	assert.Equal(t, `{"float":"nan"}`, s)
}

func TestNaturalJSONSortsKeys(t *testing.T) {
	s, err := NaturalJSON(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, `{"age":30,"name":"ann"}`, s)
}

func TestNaturalJSONSpecialFloatUppercase(t *testing.T) {
	s, err := NaturalJSON(value.SpecialFloat(value.SpecialInf))
	require.NoError(t, err)
	assert.Equal(t, `"INF"`, s)
}

func TestXMLScalarsAndTable(t *testing.T) {
	s, err := XML(value.Bool(true))
	require.NoError(t, err)
	assert.Equal(t, "<true/>", s)

	s, err = XML(value.String(`a&b<c>`))
	require.NoError(t, err)
	assert.Equal(t, "<string>a&amp;b&lt;c&gt;</string>", s)

	s, err = XML(sampleRecord())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s, "<table>"))
	assert.Contains(t, s, "<key_value><key>age</key>")
}

func TestSQLLiteralEscaping(t *testing.T) {
	s, err := SQLLiteral(value.String("O'Brien\x00\\"), nil)
	require.NoError(t, err)
	assert.Equal(t, `'O''Brien\\'`, s)
}

func TestSQLLiteralNilAndBool(t *testing.T) {
	s, err := SQLLiteral(value.Nil(), nil)
	require.NoError(t, err)
	assert.Equal(t, "NULL", s)

	s, err = SQLLiteral(value.Bool(false), nil)
	require.NoError(t, err)
	assert.Equal(t, "0", s)
}

func TestSQLLiteralNestedUsesSub(t *testing.T) {
	sub := func(v value.Value) (string, error) { return "{1,2}", nil }
	s, err := SQLLiteral(value.Array([]value.Value{value.Int(1), value.Int(2)}), sub)
	require.NoError(t, err)
	assert.Equal(t, `'{1,2}'`, s)
}

func TestMessagePackRoundTripsShape(t *testing.T) {
	b, err := MessagePack(sampleRecord())
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestSQLBlobMessagePackIsHexLiteral(t *testing.T) {
	s, err := SQLBlobMessagePack(value.String("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s, "X'"))
	assert.True(t, strings.HasSuffix(s, "'"))
}

func TestDepthLimitExceeded(t *testing.T) {
	v := value.Int(1)
	for i := 0; i < MaxDepth+2; i++ {
		v = value.Array([]value.Value{v})
	}
	_, err := CanonicalTSV(v)
	assert.ErrorContains(t, err, "Maximal depth reached")
}
