package tsv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSplitsHeaderAndRows(t *testing.T) {
	in := "name\tage\nann\t30\nbob\t40\n"
	table, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"ann", "30"}, table.Rows[0])
}

func TestReadRejectsRowWithWrongColumnCount(t *testing.T) {
	in := "name\tage\nann\t30\textra\n"
	_, err := Read(strings.NewReader(in))
	assert.Error(t, err)
}

func TestReadTrimsCRLF(t *testing.T) {
	in := "name\tage\r\nann\t30\r\n"
	table, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, table.Header[1:])
}

func TestWriteRoundTrips(t *testing.T) {
	var sb strings.Builder
	err := Write(&sb, []string{"name", "age"}, [][]string{{"ann", "30"}})
	require.NoError(t, err)
	assert.Equal(t, "name\tage\nann\t30\n", sb.String())
}

func TestRowBuildsColumnMap(t *testing.T) {
	table := Table{Header: []string{"name", "age"}, Rows: [][]string{{"ann", "30"}}}
	assert.Equal(t, map[string]string{"name": "ann", "age": "30"}, table.Row(0))
}
