package registry

import (
	"github.com/pieczasz/tabularium/internal/manifest"
)

// lookupForManifest adapts the registry's internal entry shape to the minimal
// manifest.Entry the loader needs to check field widening, without
// the manifest package importing registry's concrete types (which
// would invert the dependency this module's components are layered
// in: manifest sits above registry).
func (r *Registry) lookupForManifest(nameOrSpec string) (manifest.Entry, bool) {
	e, ok := r.Lookup(nameOrSpec)
	if !ok {
		return manifest.Entry{}, false
	}
	names := make([]string, len(e.FieldSpecs))
	for i, f := range e.FieldSpecs {
		names[i] = f.Name
	}
	return manifest.Entry{Kind: string(e.Kind), FieldNames: names}, true
}

// ManifestAdapter exposes this registry through the interface
// internal/manifest declares for its loader, converting between
// registry.TypeSpecRow and manifest.TypeSpecRow at the boundary.
type ManifestAdapter struct{ Reg *Registry }

func (a ManifestAdapter) ExtendsOrRestrict(childSpec, parentSpec string) bool {
	return a.Reg.ExtendsOrRestrict(childSpec, parentSpec)
}

func (a ManifestAdapter) Lookup(nameOrSpec string) (manifest.Entry, bool) {
	return a.Reg.lookupForManifest(nameOrSpec)
}

func (a ManifestAdapter) RegisterTypesFromSpec(rows []manifest.TypeSpecRow) error {
	converted := make([]TypeSpecRow, len(rows))
	for i, row := range rows {
		converted[i] = TypeSpecRow{
			Name: row.Name, Parent: row.Parent,
			Min: row.Min, Max: row.Max,
			MinLen: row.MinLen, MaxLen: row.MaxLen,
			Pattern:  row.Pattern,
			Values:   row.Values,
			Members:  row.Members,
			Validate: row.Validate,
		}
	}
	_, err := a.Reg.RegisterTypesFromSpec(converted)
	return err
}
