package manifest

import (
	"testing"

	"github.com/pieczasz/tabularium/internal/reporter"
	"github.com/pieczasz/tabularium/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	extends map[string]bool // "child>parent" -> true
	entries map[string]Entry
}

func (f *fakeRegistry) ExtendsOrRestrict(child, parent string) bool {
	return f.extends[child+">"+parent]
}

func (f *fakeRegistry) Lookup(nameOrSpec string) (Entry, bool) {
	e, ok := f.entries[nameOrSpec]
	return e, ok
}

func (f *fakeRegistry) RegisterTypesFromSpec(rows []TypeSpecRow) error { return nil }

func twoPackages() []PackageManifest {
	return []PackageManifest{
		{
			PackageID: "orders",
			DependsOn: []string{"core"},
			Files: []FileRow{
				{FileName: "Orders.tsv", TypeName: "order", LoadOrder: 1},
				{FileName: "OrderItems.tsv", TypeName: "order_item", LoadOrder: 2},
			},
		},
		{
			PackageID: "core",
			Files: []FileRow{
				{FileName: "Accounts.tsv", TypeName: "account", LoadOrder: 1},
			},
		},
	}
}

func TestLoadOrdersPackagesTopologically(t *testing.T) {
	bad := reporter.New("test", nil)
	reg := &fakeRegistry{}
	result, ok := Load(twoPackages(), reg, bad)
	require.True(t, ok)
	assert.Equal(t, []string{"Accounts.tsv", "Orders.tsv", "OrderItems.tsv"}, result.Order)
}

func TestLoadDetectsDependencyCycle(t *testing.T) {
	bad := reporter.New("test", nil)
	reg := &fakeRegistry{}
	pkgs := []PackageManifest{
		{PackageID: "a", DependsOn: []string{"b"}},
		{PackageID: "b", DependsOn: []string{"a"}},
	}
	_, ok := Load(pkgs, reg, bad)
	assert.False(t, ok)
}

func TestLoadErrorsOnDuplicateFileNameWithinPackage(t *testing.T) {
	bad := reporter.New("test", nil)
	reg := &fakeRegistry{}
	pkgs := []PackageManifest{
		{PackageID: "p", Files: []FileRow{
			{FileName: "A.tsv", TypeName: "a", LoadOrder: 1},
			{FileName: "A.tsv", TypeName: "b", LoadOrder: 2},
		}},
	}
	_, ok := Load(pkgs, reg, bad)
	assert.False(t, ok)
}

func TestLoadWarnsOnDuplicateFileNameAcrossPackages(t *testing.T) {
	bad := reporter.New("test", nil)
	reg := &fakeRegistry{}
	pkgs := []PackageManifest{
		{PackageID: "p1", Files: []FileRow{{FileName: "Shared.tsv", TypeName: "a", LoadOrder: 1}}},
		{PackageID: "p2", Files: []FileRow{{FileName: "Shared.tsv", TypeName: "b", LoadOrder: 1}}},
	}
	_, ok := Load(pkgs, reg, bad)
	require.True(t, ok)
	assert.Equal(t, 1, bad.Warnings)
	assert.Equal(t, 0, bad.Errors)
}

func TestLoadSilentForBootstrapFilesTsv(t *testing.T) {
	bad := reporter.New("test", nil)
	reg := &fakeRegistry{}
	pkgs := []PackageManifest{
		{PackageID: "bootstrap", Files: []FileRow{{FileName: "Files.tsv", TypeName: "x", LoadOrder: 1}}},
		{PackageID: "other", DependsOn: []string{"bootstrap"}, Files: []FileRow{{FileName: "Files.tsv", TypeName: "y", LoadOrder: 1}}},
	}
	_, ok := Load(pkgs, reg, bad)
	require.True(t, ok)
	assert.Equal(t, 0, bad.Warnings)
}

func TestCheckFieldCompatibilityRejectsNonExtendingSubType(t *testing.T) {
	bad := reporter.New("test", nil)
	reg := &fakeRegistry{extends: map[string]bool{}}
	pkgs := []PackageManifest{
		{PackageID: "p", Files: []FileRow{
			{FileName: "A.tsv", TypeName: "account", LoadOrder: 1},
			{FileName: "B.tsv", TypeName: "savings_account", SuperType: "account", LoadOrder: 2},
		}},
	}
	_, ok := Load(pkgs, reg, bad)
	assert.False(t, ok)
}

func TestCheckFieldCompatibilityAcceptsExtendingSubType(t *testing.T) {
	bad := reporter.New("test", nil)
	reg := &fakeRegistry{
		extends: map[string]bool{"savings_account>account": true},
		entries: map[string]Entry{
			"savings_account": {Kind: "record", FieldNames: []string{"id", "rate"}},
		},
	}
	pkgs := []PackageManifest{
		{PackageID: "p", Files: []FileRow{
			{FileName: "A.tsv", TypeName: "account", LoadOrder: 1},
			{FileName: "B.tsv", TypeName: "savings_account", SuperType: "account", LoadOrder: 2},
		}},
	}
	result, ok := Load(pkgs, reg, bad)
	require.True(t, ok)
	assert.Equal(t, "account", result.Extends["savings_account"])
}

func TestIsCustomTypeDefDirectAndTransitive(t *testing.T) {
	extends := map[string]string{"shape_def": "custom_type_def", "circle_def": "shape_def"}
	assert.True(t, IsCustomTypeDef("custom_type_def", extends))
	assert.True(t, IsCustomTypeDef("shape_def", extends))
	assert.True(t, IsCustomTypeDef("circle_def", extends))
	assert.False(t, IsCustomTypeDef("order", extends))
}

func TestRowToTypeSpecIgnoresExtraColumns(t *testing.T) {
	row := map[string]value.Value{
		"name":    value.String("custom_byte"),
		"parent":  value.String("integer"),
		"min":     value.Int(0),
		"max":     value.Int(255),
		"unknown": value.String("ignored"),
	}
	spec := RowToTypeSpec(row)
	assert.Equal(t, "custom_byte", spec.Name)
	assert.Equal(t, "integer", spec.Parent)
	require.NotNil(t, spec.Min)
	assert.Equal(t, 0.0, *spec.Min)
	require.NotNil(t, spec.Max)
	assert.Equal(t, 255.0, *spec.Max)
}

func TestCustomTypeDefRecordColumnsFiltersUnknown(t *testing.T) {
	cols := CustomTypeDefRecordColumns([]string{"name", "parent", "extraNotes"})
	assert.Equal(t, []string{"name", "parent"}, cols)
}
