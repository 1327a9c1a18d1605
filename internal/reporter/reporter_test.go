package reporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailFormatsAndCounts(t *testing.T) {
	var got []string
	b := New("orders.tsv", func(msg string) { got = append(got, msg) })
	b.LineNo = 12

	ok := b.Fail("integer", "abc", "not numeric")
	assert.False(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Bad integer  in orders.tsv on line 12: 'abc' (not numeric)", got[0])
	assert.Equal(t, 1, b.Errors)
	assert.False(t, b.OK())
}

func TestWarnDoesNotCountAsError(t *testing.T) {
	b := New("f.tsv", DiscardSink())
	b.Warn("name", "dup", "duplicate across packages")
	assert.Equal(t, 0, b.Errors)
	assert.Equal(t, 1, b.Warnings)
	assert.True(t, b.OK())
}

func TestNullBadValDiscardsSilently(t *testing.T) {
	b := NullBadVal()
	assert.False(t, b.Fail("type", "x", "bad"))
	assert.False(t, b.OK(), "NullBadVal still counts errors, it just discards the message")
}

func TestNilBadValIsSafe(t *testing.T) {
	var b *BadVal
	assert.False(t, b.Fail("type", "x", "bad"))
	assert.True(t, b.OK())
	assert.NotPanics(t, func() { b.Warn("x", "y", "z") })
}

func TestAtLinePreservesSourceAndSink(t *testing.T) {
	var got []string
	b := New("f.tsv", func(msg string) { got = append(got, msg) })
	b2 := b.AtLine(7)
	b2.Fail("number", "9x", "not a number")
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "on line 7")
	assert.Equal(t, 0, b.Errors, "AtLine must not mutate the original")
}
