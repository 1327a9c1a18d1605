package manifest

import (
	"github.com/pieczasz/tabularium/internal/value"
)

// customTypeDefColumns are the only columns register_types_from_spec
// recognizes from a custom_type_def row; everything else is ignored,
// including extra columns a sub-type of custom_type_def declares.
var customTypeDefColumns = map[string]bool{
	"name": true, "parent": true, "min": true, "max": true,
	"minLen": true, "maxLen": true, "pattern": true,
	"values": true, "members": true, "validate": true,
}

// IsCustomTypeDef reports whether typeName is itself "custom_type_def"
// or extends it per extends (child type name -> parent type name).
func IsCustomTypeDef(typeName string, extends map[string]string) bool {
	seen := map[string]bool{}
	for t := typeName; t != ""; t = extends[t] {
		if t == "custom_type_def" {
			return true
		}
		if seen[t] {
			return false // cycle guard
		}
		seen[t] = true
	}
	return false
}

// RowToTypeSpec converts one custom_type_def data row (column name ->
// parsed cell value) into a TypeSpecRow for registration. Columns
// outside customTypeDefColumns are ignored per §4.10.
func RowToTypeSpec(row map[string]value.Value) TypeSpecRow {
	out := TypeSpecRow{}
	if v, ok := row["name"]; ok {
		out.Name = v.Str
	}
	if v, ok := row["parent"]; ok {
		out.Parent = v.Str
	}
	out.Min = numPtr(row["min"])
	out.Max = numPtr(row["max"])
	out.MinLen = intPtr(row["minLen"])
	out.MaxLen = intPtr(row["maxLen"])
	if v, ok := row["pattern"]; ok && !v.IsNil() {
		out.Pattern = v.Str
	}
	if v, ok := row["values"]; ok && v.Kind == value.KindArray {
		out.Values = stringsOf(v)
	}
	if v, ok := row["members"]; ok && v.Kind == value.KindArray {
		out.Members = stringsOf(v)
	}
	if v, ok := row["validate"]; ok && !v.IsNil() {
		out.Validate = v.Str
	}
	return out
}

func stringsOf(v value.Value) []string {
	out := make([]string, 0, len(v.Items))
	for _, item := range v.Items {
		out = append(out, item.Str)
	}
	return out
}

func numPtr(v value.Value) *float64 {
	if v.IsNil() {
		return nil
	}
	f := v.Num
	return &f
}

func intPtr(v value.Value) *int {
	if v.IsNil() {
		return nil
	}
	n := int(v.Num)
	return &n
}

// CustomTypeDefRecordColumns filters a file's header columns down to
// the ones register_types_from_spec recognizes, preserving header
// order; used to register the file's own column structure as a record
// type alongside processing its rows.
func CustomTypeDefRecordColumns(header []string) []string {
	out := make([]string, 0, len(header))
	for _, col := range header {
		if customTypeDefColumns[col] {
			out = append(out, col)
		}
	}
	return out
}

// RegisterCustomTypeDefRows converts and registers every data row of a
// custom_type_def (or sub-type) file through reg in one batch call, as
// register_types_from_spec.
func RegisterCustomTypeDefRows(reg typeExtender, rows []map[string]value.Value) error {
	specRows := make([]TypeSpecRow, len(rows))
	for i, row := range rows {
		specRows[i] = RowToTypeSpec(row)
	}
	return reg.RegisterTypesFromSpec(specRows)
}
