// Package manifest discovers packages (a directory holding
// Manifest.transposed.tsv plus files.tsv), orders them topologically,
// orders their files, registers custom_type_def rows into the type
// registry, and enforces parent/child record-field compatibility
// before any file is parsed.
package manifest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pieczasz/tabularium/internal/reporter"
)

// FileRow is one parsed row of a package's files.tsv.
type FileRow struct {
	FileName       string
	TypeName       string
	SuperType      string
	BaseType       bool
	PublishContext string
	PublishColumn  string
	LoadOrder      float64
	Description    string
	JoinInto       string
	JoinColumn     string
	Export         bool
	JoinedTypeName string
}

// PackageManifest is one package directory's Manifest.transposed.tsv
// plus its parsed files.tsv rows.
type PackageManifest struct {
	PackageID   string
	Name        string
	Version     string
	Description string
	DependsOn   []string // package_id values this package's manifest declares it needs loaded first
	Dir         string
	Files       []FileRow
}

// FileMeta is the per-file metadata the Return value exposes to
// downstream stages (join, exportfmt) for one file, keyed by file name.
type FileMeta struct {
	Type           string
	PublishContext string
	PublishColumn  string
	JoinInto       string
	JoinColumn     string
	Export         bool
	JoinedTypeName string
}

// Result is the loader's full output per §4.10's documented Return
// shape.
type Result struct {
	Priorities    map[string]int      // fileName -> global strict order
	FileToPackage map[string]string   // fileName -> package_id
	Order         []string            // post-processing file list, in global order
	Extends       map[string]string   // child type name -> parent type name (superType chain)
	Meta          map[string]FileMeta // fileName -> FileMeta
	RawFiles      []FileRow           // every files.tsv row, across every package, in Order
}

// typeExtender is the subset of *registry.Registry this package needs:
// compiling/registering types without importing registry directly
// (which would create an import cycle, since registry has no reason
// to know about manifests). The caller wires its *registry.Registry in.
type typeExtender interface {
	ExtendsOrRestrict(childSpec, parentSpec string) bool
	Lookup(nameOrSpec string) (Entry, bool)
	RegisterTypesFromSpec(rows []TypeSpecRow) error
}

// Entry is the minimal shape this package needs back from a registry
// lookup: enough to check field widening without depending on
// registry's concrete ParserEntry type.
type Entry struct {
	Kind       string
	FieldNames []string
}

// TypeSpecRow mirrors registry.TypeSpecRow's shape; kept as a local
// type to avoid the import cycle described above. The caller's
// registry adapter converts between the two.
type TypeSpecRow struct {
	Name, Parent                 string
	Min, Max                     *float64
	MinLen, MaxLen                *int
	Pattern                       string
	Values, Members               []string
	Validate                      string
}

// Load validates and orders the already-discovered packages, orders
// their files, and checks parent/child field compatibility. It does
// not read any directory and does not register custom types (see
// RegisterCustomTypeDefRows for that). bad accumulates diagnostics; Load returns ok=false if any error-level
// diagnostic was recorded (duplicate names across packages and the
// bootstrap Files.tsv duplicates are warnings and do not affect ok).
func Load(packages []PackageManifest, reg typeExtender, bad *reporter.BadVal) (*Result, bool) {
	order, ok := topoSort(packages, bad)
	if !ok {
		return nil, false
	}

	priorities := map[string]int{}
	fileToPackage := map[string]string{}
	extends := map[string]string{}
	meta := map[string]FileMeta{}
	var rawFiles []FileRow
	var orderedFiles []string

	seenFileNames := map[string]string{} // fileName -> owning package, first seen
	seenTypeNames := map[string]string{}

	nextPriority := 0
	for _, pkg := range order {
		rows := append([]FileRow(nil), pkg.Files...)
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].LoadOrder < rows[j].LoadOrder })

		withinPackageFiles := map[string]bool{}
		withinPackageTypes := map[string]bool{}
		for _, row := range rows {
			if withinPackageFiles[row.FileName] {
				bad.Fail("manifest", row.FileName, "duplicate fileName within package "+pkg.PackageID)
				return nil, false
			}
			withinPackageFiles[row.FileName] = true
			if row.TypeName != "" {
				if withinPackageTypes[row.TypeName] {
					bad.Fail("manifest", row.TypeName, "duplicate typeName within package "+pkg.PackageID)
					return nil, false
				}
				withinPackageTypes[row.TypeName] = true
			}

			isBootstrapFiles := row.FileName == "Files.tsv"
			if owner, seen := seenFileNames[row.FileName]; seen && owner != pkg.PackageID && !isBootstrapFiles {
				bad.Warn("manifest", row.FileName, "duplicate fileName across packages ("+owner+", "+pkg.PackageID+")")
			} else if !seen {
				seenFileNames[row.FileName] = pkg.PackageID
			}
			if row.TypeName != "" {
				if owner, seen := seenTypeNames[row.TypeName]; seen && owner != pkg.PackageID && !isBootstrapFiles {
					bad.Warn("manifest", row.TypeName, "duplicate typeName across packages ("+owner+", "+pkg.PackageID+")")
				} else if !seen {
					seenTypeNames[row.TypeName] = pkg.PackageID
				}
			}

			if row.SuperType != "" {
				extends[row.TypeName] = row.SuperType
			}

			nextPriority++
			priorities[row.FileName] = nextPriority
			fileToPackage[row.FileName] = pkg.PackageID
			meta[row.FileName] = FileMeta{
				Type:           row.TypeName,
				PublishContext: row.PublishContext,
				PublishColumn:  row.PublishColumn,
				JoinInto:       row.JoinInto,
				JoinColumn:     row.JoinColumn,
				Export:         row.Export,
				JoinedTypeName: row.JoinedTypeName,
			}
			orderedFiles = append(orderedFiles, row.FileName)
			rawFiles = append(rawFiles, row)
		}
	}

	if !checkFieldCompatibility(rawFiles, reg, bad) {
		return nil, false
	}

	return &Result{
		Priorities:    priorities,
		FileToPackage: fileToPackage,
		Order:         orderedFiles,
		Extends:       extends,
		Meta:          meta,
		RawFiles:      rawFiles,
	}, bad.OK()
}

// topoSort orders packages leaves-first by DependsOn, erroring on a
// cycle. Ties (independent packages) are broken by PackageID for
// determinism.
func topoSort(packages []PackageManifest, bad *reporter.BadVal) ([]PackageManifest, bool) {
	byID := make(map[string]PackageManifest, len(packages))
	for _, p := range packages {
		byID[p.PackageID] = p
	}

	visited := map[string]int{} // 0 unvisited, 1 in-progress, 2 done
	var out []PackageManifest
	var visit func(id string) bool
	visit = func(id string) bool {
		switch visited[id] {
		case 2:
			return true
		case 1:
			bad.Fail("manifest", id, "cycle in package dependencies")
			return false
		}
		visited[id] = 1
		pkg, ok := byID[id]
		if !ok {
			bad.Fail("manifest", id, "unknown package dependency")
			return false
		}
		deps := append([]string(nil), pkg.DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if !visit(dep) {
				return false
			}
		}
		visited[id] = 2
		out = append(out, pkg)
		return true
	}

	ids := make([]string, 0, len(packages))
	for _, p := range packages {
		ids = append(ids, p.PackageID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !visit(id) {
			return nil, false
		}
	}
	return out, true
}

// checkFieldCompatibility enforces §4.10's parent/child rule: when a
// row's SuperType is A, its record type must extend A under the
// registry's subtyping relation. Sibling sub-types of a common parent
// that declare the same field name with incompatible types also error.
func checkFieldCompatibility(rows []FileRow, reg typeExtender, bad *reporter.BadVal) bool {
	ok := true
	siblingFields := map[string]map[string]string{} // parent -> fieldName -> owning child type (first seen)
	for _, row := range rows {
		if row.SuperType == "" || row.TypeName == "" {
			continue
		}
		if !reg.ExtendsOrRestrict(row.TypeName, row.SuperType) {
			bad.Fail("manifest", row.TypeName, "record type does not extend declared superType "+row.SuperType)
			ok = false
			continue
		}
		child, found := reg.Lookup(row.TypeName)
		if !found {
			continue
		}
		fields := siblingFields[row.SuperType]
		if fields == nil {
			fields = map[string]string{}
			siblingFields[row.SuperType] = fields
		}
		for _, fieldName := range child.FieldNames {
			if owner, seen := fields[fieldName]; seen && owner != row.TypeName {
				bad.Fail("manifest", fieldName, fmt.Sprintf("sibling types %s and %s of %s declare incompatible field %q", owner, row.TypeName, row.SuperType, fieldName))
				ok = false
				continue
			}
			fields[fieldName] = row.TypeName
		}
	}
	return ok
}

// ParseLoadOrder parses the loadOrder cell's textual form; used by the
// files.tsv row loader ahead of this package (tsv/pipeline), kept here
// since it's purely a manifest-row concern.
func ParseLoadOrder(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("loadOrder must not be empty")
	}
	return strconv.ParseFloat(s, 64)
}
