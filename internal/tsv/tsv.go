// Package tsv is the raw, untyped tab-separated-value splitter: it
// turns file bytes into a header and rows of plain strings. It knows
// nothing about cell types; internal/registry's parser factory takes
// it from there. Deliberately out of the core's scope (§1), kept here
// as the thin ambient adapter internal/pipeline drives.
package tsv

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Table is a raw, unparsed TSV file: header column names in order, and
// each data row's cells in the same order.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read splits r into a Table. Lines are split on '\t'; trailing '\r'
// (CRLF line endings) is trimmed. A row with a different cell count
// than the header is an error naming the offending line number.
func Read(r io.Reader) (Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Table{}, err
		}
		return Table{}, nil
	}
	header := splitLine(scanner.Text())

	var rows [][]string
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		cells := splitLine(line)
		if len(cells) != len(header) {
			return Table{}, fmt.Errorf("line %d: expected %d columns, got %d", lineNo, len(header), len(cells))
		}
		rows = append(rows, cells)
	}
	if err := scanner.Err(); err != nil {
		return Table{}, err
	}
	return Table{Header: header, Rows: rows}, nil
}

func splitLine(line string) []string {
	line = strings.TrimSuffix(line, "\r")
	return strings.Split(line, "\t")
}

// Write renders header+rows back to w as TSV, one row per line,
// terminated with "\n".
func Write(w io.Writer, header []string, rows [][]string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(header, "\t") + "\n"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := bw.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Row renders one Table row as a column-name -> raw-cell-string map.
func (t Table) Row(i int) map[string]string {
	out := make(map[string]string, len(t.Header))
	for j, col := range t.Header {
		if j < len(t.Rows[i]) {
			out[col] = t.Rows[i][j]
		}
	}
	return out
}
