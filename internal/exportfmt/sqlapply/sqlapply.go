// Package sqlapply is an optional exporter that takes a table-shaped
// record type's SQL-literal export and applies it against a live MySQL
// database for verification. It is adapted directly from the teacher's
// internal/apply.Applier: same DSN option, preflight connect, and
// context-bounded timeout, repurposed from "apply a migration" to
// "load verified reformatted rows" and gated, like apply, on a tidb
// parse-check of every generated statement before it reaches the
// database.
package sqlapply

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pingcap/tidb/pkg/parser"

	"github.com/pieczasz/tabularium/internal/pipeline"
	"github.com/pieczasz/tabularium/internal/serialize"
	"github.com/pieczasz/tabularium/internal/value"
)

// Options configures one sqlapply run.
type Options struct {
	DSN     string
	Timeout time.Duration // per-statement; zero means 10s
	DryRun  bool          // parse-check only, never open a connection
}

// Exporter applies every reformatted file's rows as INSERT statements
// against a MySQL database, enabled by tabularium.toml like any other
// exporter.
type Exporter struct {
	Options Options

	db     *sql.DB
	parser *parser.Parser
}

func New(options Options) *Exporter {
	return &Exporter{Options: options, parser: parser.New()}
}

func (e *Exporter) Name() string { return "sqlapply" }

// Connect opens and pings the configured database, mirroring the
// teacher's Applier.Connect.
func (e *Exporter) Connect(ctx context.Context) error {
	db, err := sql.Open("mysql", e.Options.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			return fmt.Errorf("failed to ping database: %w; additionally failed to close connection: %w", pingErr, closeErr)
		}
		return fmt.Errorf("failed to ping database: %w", pingErr)
	}
	e.db = db
	return nil
}

func (e *Exporter) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Export builds one INSERT per row, per file, parse-checks it with the
// tidb parser, and (unless DryRun) executes it. It returns false on the
// first statement that fails either check, halting any exporters
// declared after it in the pipeline.
func (e *Exporter) Export(result *pipeline.Result, params pipeline.ExportParams) bool {
	ctx := context.Background()
	if !e.Options.DryRun && e.db == nil {
		if err := e.Connect(ctx); err != nil {
			return false
		}
	}

	for _, fr := range result.Files {
		stmts, err := insertsFor(fr)
		if err != nil {
			return false
		}
		for _, stmt := range stmts {
			if _, _, err := e.parser.Parse(stmt, "", ""); err != nil {
				return false
			}
			if e.Options.DryRun {
				continue
			}
			timeout := e.Options.Timeout
			if timeout == 0 {
				timeout = 10 * time.Second
			}
			execCtx, cancel := context.WithTimeout(ctx, timeout)
			_, err := e.db.ExecContext(execCtx, stmt)
			cancel()
			if err != nil {
				return false
			}
		}
	}
	return true
}

func insertsFor(fr pipeline.FileResult) ([]string, error) {
	table := strings.ToLower(strings.TrimSuffix(fr.FileName, ".tsv"))
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
