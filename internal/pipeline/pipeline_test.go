package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func setupPackage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "Manifest.transposed.tsv",
		"key:type\tvalue\n"+
			"package_id:identifier\taccounts\n"+
			"name:text\tAccounts\n"+
			"version:version\t1.0.0\n"+
			"description:text\tAccount records\n")
	writeFile(t, dir, "files.tsv",
		"fileName\ttypeName\tsuperType\tbaseType\tpublishContext\tpublishColumn\tloadOrder\tdescription\tjoinInto\tjoinColumn\texport\tjoinedTypeName\n"+
			"Accounts.tsv\tidentifier\t\tfalse\t\t\t1\tAccount names\t\t\t\t\n")
	writeFile(t, dir, "Accounts.tsv",
		"name\n\"ann\"\n\"bob\"\n")
	return dir
}

func TestRunParsesAndWritesBackSimplePackage(t *testing.T) {
	dir := setupPackage(t)
	result, err := Run([]string{dir}, nil, ExportParams{}, nil)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "Accounts.tsv", result.Files[0].FileName)
	assert.Len(t, result.Files[0].Rows, 2)

	written, err := os.ReadFile(filepath.Join(dir, "Accounts.tsv"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "name")
}

func TestRunReportsMissingPackageDir(t *testing.T) {
	_, err := Run([]string{"/nonexistent/path/zzz"}, nil, ExportParams{}, nil)
	assert.Error(t, err)
}

type stubExporter struct {
	called bool
	result string
}

func (s *stubExporter) Name() string { return "stub" }
func (s *stubExporter) Export(result *Result, params ExportParams) bool {
	s.called = true
	return true
}

func TestRunInvokesExportersAfterReformatting(t *testing.T) {
	dir := setupPackage(t)
	exp := &stubExporter{}
	_, err := Run([]string{dir}, []Exporter{exp}, ExportParams{ExportDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.True(t, exp.called)
}

func TestRunFoldsRowValidatorFailureIntoReporter(t *testing.T) {
	dir := setupPackage(t)
	writeFile(t, dir, "validators.toml",
		"[[row]]\nfile = \"Accounts.tsv\"\nexpr = \"self.name != \\\"bob\\\"\"\n")
	result, err := Run([]string{dir}, nil, ExportParams{}, nil)
	require.NoError(t, err)
	assert.False(t, result.Reporter.OK(), "a failing row validator must be recorded as an error")
}

func TestRunPassesWhenValidatorsSucceed(t *testing.T) {
	dir := setupPackage(t)
	writeFile(t, dir, "validators.toml",
		"[[row]]\nfile = \"Accounts.tsv\"\nexpr = \"self.name != \\\"\\\"\"\n\n"+
			"[[package]]\nexpr = \"true\"\nlevel = \"warn\"\n")
	result, err := Run([]string{dir}, nil, ExportParams{}, nil)
	require.NoError(t, err)
	assert.True(t, result.Reporter.OK())
}

func TestRunRegistersCustomTypesTOMLSeed(t *testing.T) {
	dir := setupPackage(t)
	writeFile(t, dir, "custom_types.toml",
		"[[types]]\nname = \"short_code\"\nparent = \"string\"\nmin_len = 1\n")
	_, err := Run([]string{dir}, nil, ExportParams{}, nil)
	require.NoError(t, err)
}
