// Package pipeline drives the end-to-end reformatter: discover package
// directories, load their manifests, order files, parse every cell
// through the type registry, reconstruct exploded columns, join
// secondary files, run validators, write back reformatted TSV, and
// finally hand the result to any declared exporters.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pieczasz/tabularium/internal/exploded"
	"github.com/pieczasz/tabularium/internal/join"
	"github.com/pieczasz/tabularium/internal/manifest"
	"github.com/pieczasz/tabularium/internal/registry"
	"github.com/pieczasz/tabularium/internal/reporter"
	"github.com/pieczasz/tabularium/internal/serialize"
	"github.com/pieczasz/tabularium/internal/tsv"
	"github.com/pieczasz/tabularium/internal/validator"
	"github.com/pieczasz/tabularium/internal/value"
)

// ExportParams is the parameter record every exporter receives. Run
// passes the same value, unchanged, to each exporter; exporters declare
// no subdir or serializer of their own that would be merged into it.
type ExportParams struct {
	ExportDir      string
	FormatSubdir   string
	TableSerializer func(value.Value) (string, error)
}

// Exporter is one export backend invoked after every file has been
// reformatted. It returns false to halt any exporters declared after
// it.
type Exporter interface {
	Name() string
	Export(result *Result, params ExportParams) bool
}

// FileResult is one file's parsing/validation outcome.
type FileResult struct {
	FileName string
	PackageID string
	Rows      []value.Value // each row, as a KindMap Value keyed by column name
	Header    []string
	Errors    int
	Warnings  int
}

// Result is everything the pipeline produced, handed to exporters.
type Result struct {
	Files    []FileResult
	Manifest *manifest.Result
	Reporter *reporter.BadVal
}

// Run executes the full pipeline over dirs, writing reformatted TSV
// back into each package directory and then invoking exporters in
// declared order.
func Run(dirs []string, exporters []Exporter, params ExportParams, sink reporter.Sink) (*Result, error) {
	reg := registry.New()
	bad := reporter.New("pipeline", sink)

	packages, err := discoverPackages(dirs, bad)
	if err != nil {
		return nil, err
	}

	if err := registerCustomTypesSeeds(reg, dirs); err != nil {
		return nil, err
	}

	loadResult, ok := manifest.Load(packages, registry.ManifestAdapter{Reg: reg}, bad)
	if !ok {
		return nil, fmt.Errorf("manifest load failed: %d error(s)", bad.Errors)
	}

	pkgByID := make(map[string]manifest.PackageManifest, len(packages))
	for _, p := range packages {
		pkgByID[p.PackageID] = p
	}

	fileRowByName := map[string]manifest.FileRow{}
	for _, row := range loadResult.RawFiles {
		fileRowByName[row.FileName] = row
	}

	var results []FileResult
	rawRows := map[string]tsv.Table{}
	for _, fileName := range loadResult.Order {
		pkgID := loadResult.FileToPackage[fileName]
		pkg := pkgByID[pkgID]
		path := filepath.Join(pkg.Dir, fileName)

		table, err := readTable(path)
		if err != nil {
			bad.Fail("file", fileName, err.Error())
			continue
		}
		rawRows[fileName] = table

		row := fileRowByName[fileName]
		fb := bad.AtLine(0)

		if manifest.IsCustomTypeDef(row.TypeName, loadResult.Extends) {
			if err := registerCustomTypeDefFile(reg, table); err != nil {
				fb.Fail("custom_type_def", fileName, err.Error())
			}
		}

		rows, header, fileErrs, fileWarns := parseFile(reg, table, fileName, row.TypeName, fb)
		results = append(results, FileResult{
			FileName: fileName, PackageID: pkgID, Rows: rows, Header: header,
			Errors: fileErrs, Warnings: fileWarns,
		})
	}

	applyJoins(results, loadResult, bad)

	rowSpecs, packageSpecs, err := loadValidatorSpecs(dirs)
	if err != nil {
		return nil, err
	}
	if len(rowSpecs) > 0 || len(packageSpecs) > 0 {
		preValidation := &Result{Files: results, Manifest: loadResult, Reporter: bad}
		foldValidatorOutcomes(bad, RunValidators(preValidation, rowSpecs, packageSpecs))
	}

	for _, fr := range results {
		if err := writeBack(pkgByID[fr.PackageID].Dir, fr); err != nil {
			bad.Fail("file", fr.FileName, "writing reformatted file: "+err.Error())
		}
	}

	result := &Result{Files: results, Manifest: loadResult, Reporter: bad}

	for _, exporter := range exporters {
		if !exporter.Export(result, params) {
			break
		}
	}
	return result, nil
}

// discoverPackages walks dirs looking for a Manifest.transposed.tsv +
// files.tsv pair in each, building the manifest.PackageManifest the
// loader needs.
func discoverPackages(dirs []string, bad *reporter.BadVal) ([]manifest.PackageManifest, error) {
	var out []manifest.PackageManifest
	for _, dir := range dirs {
		manifestTable, err := readTable(filepath.Join(dir, "Manifest.transposed.tsv"))
		if err != nil {
			return nil, fmt.Errorf("reading manifest in %s: %w", dir, err)
		}
		filesTable, err := readTable(filepath.Join(dir, "files.tsv"))
		if err != nil {
			return nil, fmt.Errorf("reading files.tsv in %s: %w", dir, err)
		}

		m := map[string]string{}
		for i := range manifestTable.Rows {
			r := manifestTable.Row(i)
			key := strings.SplitN(r["key:type"], ":", 2)[0]
			m[key] = r["value"]
		}
		if m["package_id"] == "" {
			bad.Fail("manifest", dir, "missing required manifest field package_id")
			continue
		}

		var dependsOn []string
		if d := m["depends_on"]; d != "" {
			dependsOn = strings.Split(d, ",")
		}

		var fileRows []manifest.FileRow
		for i := range filesTable.Rows {
			cells := filesTable.Row(i)
			loadOrder, _ := strconv.ParseFloat(cells["loadOrder"], 64)
			fileRows = append(fileRows, manifest.FileRow{
				FileName:       cells["fileName"],
				TypeName:       cells["typeName"],
				SuperType:      cells["superType"],
				BaseType:       cells["baseType"] == "true",
				PublishContext: cells["publishContext"],
				PublishColumn:  cells["publishColumn"],
				LoadOrder:      loadOrder,
				Description:    cells["description"],
				JoinInto:       strings.ToLower(cells["joinInto"]),
				JoinColumn:     cells["joinColumn"],
				Export:         cells["export"] == "true",
				JoinedTypeName: cells["joinedTypeName"],
			})
		}

		out = append(out, manifest.PackageManifest{
			PackageID:   m["package_id"],
			Name:        m["name"],
			Version:     m["version"],
			Description: m["description"],
			DependsOn:   dependsOn,
			Dir:         dir,
			Files:       fileRows,
		})
	}
	return out, nil
}

// registerCustomTypesSeeds loads and registers an optional
// custom_types.toml in each package directory, the human-editable
// alternative to custom_type_def TSV rows. Its absence is not an
// error: most packages declare custom types via TSV only.
func registerCustomTypesSeeds(reg *registry.Registry, dirs []string) error {
	adapter := registry.ManifestAdapter{Reg: reg}
	for _, dir := range dirs {
		path := filepath.Join(dir, "custom_types.toml")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		rows, err := manifest.LoadCustomTypesTOML(path)
		if err != nil {
			return err
		}
		if err := adapter.RegisterTypesFromSpec(rows); err != nil {
			return fmt.Errorf("registering custom types from %s: %w", path, err)
		}
	}
	return nil
}

// loadValidatorSpecs merges the optional validators.toml declared by
// each package directory into one row-spec map (keyed by file name,
// shared across packages the same way FileResult is) and one
// package-spec slice run once against the whole result.
func loadValidatorSpecs(dirs []string) (map[string][]validator.Spec, []validator.Spec, error) {
	rowSpecs := map[string][]validator.Spec{}
	var packageSpecs []validator.Spec
	for _, dir := range dirs {
		path := filepath.Join(dir, "validators.toml")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		dirRowSpecs, dirPackageSpecs, err := manifest.LoadValidatorSpecs(path)
		if err != nil {
			return nil, nil, err
		}
		for file, specs := range dirRowSpecs {
			rowSpecs[file] = append(rowSpecs[file], specs...)
		}
		packageSpecs = append(packageSpecs, dirPackageSpecs...)
	}
	return rowSpecs, packageSpecs, nil
}

// foldValidatorOutcomes records every failing outcome into bad, so a
// validators.toml failure surfaces the same way a cell-parse failure
// does: error-level failures count toward Errors, warn-level toward
// Warnings only. Folded directly into bad (rather than through
// AtLine, which returns a detached copy) so Reporter.OK() on the
// returned Result actually reflects these failures; the row index, for
// row-scope outcomes, is carried in the reason text instead.
func foldValidatorOutcomes(bad *reporter.BadVal, outcomes []validator.Outcome) {
	for _, o := range outcomes {
		if o.Passed {
			continue
		}
		reason := o.Message
		if o.RowIndex >= 0 {
			reason = fmt.Sprintf("row %d: %s", o.RowIndex, o.Message)
		}
		if o.Spec.Level == validator.LevelWarn {
			bad.Warn("validator", o.Subject, reason)
			continue
		}
		bad.Fail("validator", o.Subject, reason)
	}
}

func readTable(path string) (tsv.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return tsv.Table{}, err
	}
	defer f.Close()
	return tsv.Read(f)
}

// parseFile parses every cell of table through the column parsers
// declared by typeName's record fields (looked up from reg), assembling
// exploded columns back into nested values per column group.
func parseFile(reg *registry.Registry, table tsv.Table, fileName, typeName string, bad *reporter.BadVal) ([]value.Value, []string, int, int) {
	entry, err := reg.ParseType(typeName)
	if err != nil || entry.Kind != registry.KindRecord {
		// Not every file declares a record type directly (collection
		// files, ancestor-constrained tables); fall back to parsing each
		// column against its own declared type from the header, "name:spec".
		return parseByHeaderSpec(reg, table, fileName, bad)
	}

	colSpec := make(map[string]string, len(entry.FieldSpecs))
	for _, f := range entry.FieldSpecs {
		colSpec[f.Name] = f.Spec
	}

	var explodedCols []exploded.Column
	for i, name := range table.Header {
		if info, ok := exploded.ParseCollectionColumn(name); ok {
			explodedCols = append(explodedCols, exploded.Column{Index: i, Name: name, ExplodedPath: []string{name}, IsCollection: true, CollectionInfo: &info})
			continue
		}
		if strings.Contains(name, ".") {
			explodedCols = append(explodedCols, exploded.Column{Index: i, Name: name, ExplodedPath: strings.Split(name, ".")})
		}
	}

	groups := groupByTopLevelField(explodedCols)
	header := collapseHeader(table.Header, groups)

	errCount, warnCount := 0, 0
	rows := make([]value.Value, 0, len(table.Rows))
	for i := range table.Rows {
		lb := bad.AtLine(i + 2)
		cells := table.Row(i)
		parsed := map[string]value.Value{}
		for col, raw := range cells {
			spec, known := colSpec[col]
			if !known {
				spec = "string"
			}
			colEntry, err := reg.ParseType(spec)
			if err != nil {
				lb.Fail(col, raw, "unknown column type")
				errCount++
				continue
			}
			v, _, ok := colEntry.Parse(lb, raw, registry.CtxTSV)
			if !ok {
				errCount++
				continue
			}
			parsed[col] = v
		}

		for field, cols := range groups {
			structure, err := exploded.BuildStructure(field, cols)
			if err != nil {
				lb.Fail(field, "", err.Error())
				errCount++
				continue
			}
			parsed[field] = exploded.AssembleExplodedValue(parsed, structure)
		}

		entries := make([]value.Entry, 0, len(parsed))
		for k, v := range parsed {
			entries = append(entries, value.Entry{Key: k, Val: v})
		}
		rows = append(rows, value.Map(entries))
	}
	return rows, header, errCount, warnCount
}

// collapseHeader replaces every exploded column group's sub-columns
// with a single column named after the reconstructed top-level field,
// in the position of the group's first sub-column; plain columns pass
// through unchanged.
func collapseHeader(header []string, groups map[string][]exploded.Column) []string {
	colToField := map[string]string{}
	for field, cols := range groups {
		for _, c := range cols {
			colToField[c.Name] = field
		}
	}
	var out []string
	emitted := map[string]bool{}
	for _, name := range header {
		field, isExploded := colToField[name]
		if !isExploded {
			out = append(out, name)
			continue
		}
		if emitted[field] {
			continue
		}
		emitted[field] = true
		out = append(out, field)
	}
	return out
}

func groupByTopLevelField(cols []exploded.Column) map[string][]exploded.Column {
	out := map[string][]exploded.Column{}
	for _, c := range cols {
		if len(c.ExplodedPath) == 0 {
			continue
		}
		head := c.ExplodedPath[0]
		if info, ok := exploded.ParseCollectionColumn(head); ok {
			head = info.Base
		}
		out[head] = append(out[head], c)
	}
	return out
}

// parseByHeaderSpec handles files whose columns are individually typed
// ("fieldName:typeSpec" header cells) rather than through one record
// type, used by files.tsv/Manifest.transposed.tsv themselves and any
// ad hoc column-typed file.
func parseByHeaderSpec(reg *registry.Registry, table tsv.Table, fileName string, bad *reporter.BadVal) ([]value.Value, []string, int, int) {
	type col struct {
		name string
		spec string
	}
	cols := make([]col, len(table.Header))
	for i, h := range table.Header {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			cols[i] = col{name: parts[0], spec: parts[1]}
		} else {
			cols[i] = col{name: h, spec: "string"}
		}
	}

	errCount := 0
	rows := make([]value.Value, 0, len(table.Rows))
	for i, raw := range table.Rows {
		lb := bad.AtLine(i + 2)
		entries := make([]value.Entry, 0, len(cols))
		for j, c := range cols {
			if j >= len(raw) {
				continue
			}
			entry, err := reg.ParseType(c.spec)
			if err != nil {
				lb.Fail(c.name, raw[j], "unknown column type")
				errCount++
				continue
			}
			v, _, ok := entry.Parse(lb, raw[j], registry.CtxTSV)
			if !ok {
				errCount++
				continue
			}
			entries = append(entries, value.Entry{Key: c.name, Val: v})
		}
		rows = append(rows, value.Map(entries))
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return rows, names, errCount, 0
}

// registerCustomTypeDefFile interprets every data row of a
// custom_type_def (or sub-type) file as a register_types_from_spec
// call and registers the file's own column structure as a record type.
// customTypeDefColumnSpec declares the expected type of each
// register_types_from_spec column, so e.g. "min"/"max" parse as
// numbers and "values"/"members" as table literals rather than flat
// strings.
var customTypeDefColumnSpec = map[string]string{
	"name": "identifier", "parent": "identifier",
	"min": "number|nil", "max": "number|nil",
	"minLen": "integer|nil", "maxLen": "integer|nil",
	"pattern": "string|nil", "validate": "string|nil",
	"values": "{string}|nil", "members": "{string}|nil",
}

func registerCustomTypeDefFile(reg *registry.Registry, table tsv.Table) error {
	recordCols := manifest.CustomTypeDefRecordColumns(table.Header)
	colEntries := make(map[string]*registry.ParserEntry, len(recordCols))
	for _, col := range recordCols {
		spec := customTypeDefColumnSpec[col]
		if spec == "" {
			spec = "string|nil"
		}
		entry, err := reg.ParseType(spec)
		if err != nil {
			return fmt.Errorf("custom_type_def column %q: %w", col, err)
		}
		colEntries[col] = entry
	}

	rows := make([]map[string]value.Value, 0, len(table.Rows))
	for _, raw := range table.Rows {
		cellsByCol := map[string]string{}
		for i, h := range table.Header {
			if i < len(raw) {
				cellsByCol[h] = raw[i]
			}
		}
		row := map[string]value.Value{}
		for _, col := range recordCols {
			v, _, ok := colEntries[col].Parse(reporter.NullBadVal(), cellsByCol[col], registry.CtxTSV)
			if ok {
				row[col] = v
			}
		}
		rows = append(rows, row)
	}
	return manifest.RegisterCustomTypeDefRows(registry.ManifestAdapter{Reg: reg}, rows)
}

// applyJoins groups every result by primary/secondary relationship per
// the manifest's joinInto metadata and merges secondary rows in.
func applyJoins(results []FileResult, loadResult *manifest.Result, bad *reporter.BadVal) {
	byName := map[string]*FileResult{}
	for i := range results {
		byName[results[i].FileName] = &results[i]
	}

	var metas []join.Meta
	for fileName, meta := range loadResult.Meta {
		metas = append(metas, join.Meta{
			FileName: fileName, JoinInto: meta.JoinInto, JoinColumn: meta.JoinColumn,
			Export: meta.Export, JoinedTypeName: meta.JoinedTypeName,
		})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].FileName < metas[j].FileName })

	groups := join.GroupSecondaryFiles(metas)
	for primaryLower, secondaryNames := range groups {
		var primary *FileResult
		for name, fr := range byName {
			if strings.ToLower(name) == primaryLower {
				primary = fr
				break
			}
		}
		if primary == nil {
			continue
		}
		var secondaries []join.Secondary
		for _, secName := range secondaryNames {
			var sec *FileResult
			for name, fr := range byName {
				if strings.ToLower(name) == secName {
					sec = fr
					break
				}
			}
			if sec == nil {
				continue
			}
			meta := loadResult.Meta[sec.FileName]
			secRows := make([]join.Row, len(sec.Rows))
			for i, r := range sec.Rows {
				secRows[i] = join.Row(rowMap(r))
			}
			secondaries = append(secondaries, join.Secondary{Rows: secRows, JoinColumn: meta.JoinColumn, SourceName: sec.FileName})
		}
		primaryRows := make([]join.Row, len(primary.Rows))
		for i, r := range primary.Rows {
			primaryRows[i] = join.Row(rowMap(r))
		}
		joined, header, ok := join.JoinFiles(primaryRows, secondaries, bad)
		if !ok {
			continue
		}
		newRows := make([]value.Value, len(joined))
		for i, r := range joined {
			entries := make([]value.Entry, 0, len(r))
			for k, v := range r {
				entries = append(entries, value.Entry{Key: k, Val: v})
			}
			newRows[i] = value.Map(entries)
		}
		primary.Rows = newRows
		primary.Header = header
	}
}

func rowMap(v value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(v.Entries))
	for _, e := range v.Entries {
		out[e.Key] = e.Val
	}
	return out
}

// writeBack serializes fr's rows to their canonical reformatted TSV
// form and overwrites the source file in dir.
func writeBack(dir string, fr FileResult) error {
	path := filepath.Join(dir, fr.FileName)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows := make([][]string, len(fr.Rows))
	for i, row := range fr.Rows {
		cells := make([]string, len(fr.Header))
		for j, col := range fr.Header {
			v, ok := row.Get(col)
			if !ok || v.IsNil() {
				cells[j] = ""
				continue
			}
			cells[j] = cellText(v)
		}
		rows[i] = cells
	}
	return tsv.Write(f, fr.Header, rows)
}

// cellText renders a parsed cell back to its reformatted TSV text
// using the canonical serializer, so exploded/joined columns that now
// hold a nested array or map round-trip correctly instead of silently
// losing their structure.
func cellText(v value.Value) string {
	s, err := serialize.CanonicalTSV(v)
	if err != nil {
		return ""
	}
	return s
}

// RunValidators runs row-scope specs against every row of fr, package-
// scope specs against the whole Result, sharing one ctx accumulator
// across the call as the validator package's contract requires.
func RunValidators(result *Result, rowSpecs map[string][]validator.Spec, packageSpecs []validator.Spec) []validator.Outcome {
	var out []validator.Outcome
	ctx := map[string]any{}
	for _, fr := range result.Files {
		specs := rowSpecs[fr.FileName]
		if len(specs) == 0 {
			continue
		}
		for i, row := range fr.Rows {
			out = append(out, validator.RunRow(specs, row, i, fr.FileName, ctx)...)
		}
	}
	if len(packageSpecs) > 0 {
		files := map[string][]value.Value{}
		for _, fr := range result.Files {
			files[fr.FileName] = fr.Rows
		}
		out = append(out, validator.RunPackage(packageSpecs, files, "", ctx)...)
	}
	return out
}
