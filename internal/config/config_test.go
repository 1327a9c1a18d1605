package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse(`
package_dirs = ["pkg/orders", "pkg/core"]
export_dir = "out"

[[exporters]]
name = "json"
format_subdir = "json"
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/orders", "pkg/core"}, cfg.PackageDirs)
	require.Len(t, cfg.Exporters, 1)
	assert.Equal(t, "json", cfg.Exporters[0].Name)
}

func TestParseRejectsEmptyPackageDirs(t *testing.T) {
	_, err := Parse(`export_dir = "out"`)
	assert.Error(t, err)
}

func TestParseSQLApplyExporterFields(t *testing.T) {
	cfg, err := Parse(`
package_dirs = ["pkg"]
export_dir = "out"

[[exporters]]
name = "sqlapply"
dsn = "user:pass@tcp(127.0.0.1:3306)/tabularium"
timeout = "5s"
dry_run = true
`)
	require.NoError(t, err)
	require.Len(t, cfg.Exporters, 1)
	e := cfg.Exporters[0]
	assert.Equal(t, "sqlapply", e.Name)
	assert.Equal(t, "user:pass@tcp(127.0.0.1:3306)/tabularium", e.DSN)
	assert.Equal(t, "5s", e.Timeout)
	assert.True(t, e.DryRun)
}

func TestParseRequiresExportDirWhenExportersDeclared(t *testing.T) {
	_, err := Parse(`
package_dirs = ["pkg"]

[[exporters]]
name = "json"
`)
	assert.Error(t, err)
}
