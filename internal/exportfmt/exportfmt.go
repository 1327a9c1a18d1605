// Package exportfmt provides thin reference exporters on top of
// internal/serialize, implementing pipeline.Exporter for the four
// backends named out of scope for the pipeline itself: JSON, XML, SQL,
// and MessagePack file writers. The pipeline's job stops at the parsed
// Result; turning that into bytes on disk is glue, mirroring the
// teacher's own split between internal/output (formatting, in scope)
// and internal/apply (talking to a live database, a further adapter
// layer handled separately by exportfmt/sqlapply).
package exportfmt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pieczasz/tabularium/internal/pipeline"
	"github.com/pieczasz/tabularium/internal/serialize"
	"github.com/pieczasz/tabularium/internal/value"
)

// JSONExporter writes one "<file>.json" per reformatted file, each a
// JSON array of NaturalJSON-rendered rows.
type JSONExporter struct{}

func (JSONExporter) Name() string { return "json" }

func (JSONExporter) Export(result *pipeline.Result, params pipeline.ExportParams) bool {
	return writeEach(result, params, "json", func(rows []value.Value) (string, error) {
		parts := make([]string, len(rows))
		for i, r := range rows {
			s, err := serialize.NaturalJSON(r)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	})
}

// XMLExporter writes one "<file>.xml" per reformatted file, a
// <rows> document wrapping one serialize.XML rendering per row.
type XMLExporter struct{}

func (XMLExporter) Name() string { return "xml" }

func (XMLExporter) Export(result *pipeline.Result, params pipeline.ExportParams) bool {
	return writeEach(result, params, "xml", func(rows []value.Value) (string, error) {
		var sb strings.Builder
		sb.WriteString("<rows>")
		for _, r := range rows {
			s, err := serialize.XML(r)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		sb.WriteString("</rows>")
		return sb.String(), nil
	})
}

// SQLExporter writes one "<file>.sql" per reformatted file, one
// INSERT statement per row, columns in the file's reformatted header
// order.
type SQLExporter struct{}

func (SQLExporter) Name() string { return "sql" }

func (SQLExporter) Export(result *pipeline.Result, params pipeline.ExportParams) bool {
	for _, fr := range result.Files {
		stmts, err := sqlInserts(fr)
		if err != nil {
			return false
		}
		if err := writeFile(params, "sql", fr.FileName, strings.Join(stmts, "\n")); err != nil {
			return false
		}
	}
	return true
}

func sqlInserts(fr pipeline.FileResult) ([]string, error) {
	table := tableName(fr.FileName)
	stmts := make([]string, 0, len(fr.Rows))
	for _, row := range fr.Rows {
		vals := make([]string, len(fr.Header))
		for i, col := range fr.Header {
			v, ok := row.Get(col)
			if !ok {
				v = value.Value{Kind: value.KindNil}
			}
			s, err := serialize.SQLLiteral(v, serialize.CanonicalTSV)
			if err != nil {
				return nil, err
			}
			vals[i] = s
		}
		stmts = append(stmts, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
			table, strings.Join(fr.Header, ", "), strings.Join(vals, ", ")))
	}
	return stmts, nil
}

// MessagePackExporter writes one "<file>.msgpack" per reformatted
// file: the row list MessagePack-encoded as a top-level array.
type MessagePackExporter struct{}

func (MessagePackExporter) Name() string { return "msgpack" }

func (MessagePackExporter) Export(result *pipeline.Result, params pipeline.ExportParams) bool {
	for _, fr := range result.Files {
		encoded := make([]value.Value, len(fr.Rows))
		copy(encoded, fr.Rows)
		b, err := serialize.MessagePack(value.Array(encoded))
		if err != nil {
			return false
		}
		dir := exportDir(params, "msgpack")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false
		}
		path := filepath.Join(dir, tableName(fr.FileName)+".msgpack")
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return false
		}
	}
	return true
}

func tableName(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	return strings.ToLower(base)
}

func exportDir(params pipeline.ExportParams, subdir string) string {
	if params.FormatSubdir != "" {
		subdir = params.FormatSubdir
	}
	return filepath.Join(params.ExportDir, subdir)
}

func writeFile(params pipeline.ExportParams, subdir, fileName, content string) error {
	dir := exportDir(params, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, tableName(fileName)+"."+subdir)
	return os.WriteFile(path, []byte(content), 0o644)
}

func writeEach(result *pipeline.Result, params pipeline.ExportParams, subdir string, render func([]value.Value) (string, error)) bool {
	for _, fr := range result.Files {
		content, err := render(fr.Rows)
		if err != nil {
			return false
		}
		if err := writeFile(params, subdir, fr.FileName, content); err != nil {
			return false
		}
	}
	return true
}
