package manifest

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/pieczasz/tabularium/internal/validator"
)

// validatorSpecsFile is the shape of an optional validators.toml
// declaring the row- and package-scope validator specs the reformatter
// pipeline runs after joins, the manifest-level counterpart to
// register_types_from_spec's "validate" constraint category.
type validatorSpecsFile struct {
	Row     []rowValidatorEntry     `toml:"row"`
	Package []packageValidatorEntry `toml:"package"`
}

type rowValidatorEntry struct {
	File  string `toml:"file"`
	Expr  string `toml:"expr"`
	Level string `toml:"level"`
}

type packageValidatorEntry struct {
	Expr  string `toml:"expr"`
	Level string `toml:"level"`
}

// LoadValidatorSpecs decodes path into row-scope specs (keyed by the
// file they run against) and package-scope specs.
func LoadValidatorSpecs(path string) (rowSpecs map[string][]validator.Spec, packageSpecs []validator.Spec, err error) {
	var parsed validatorSpecsFile
	if _, err := toml.DecodeFile(path, &parsed); err != nil {
		return nil, nil, fmt.Errorf("loading validator specs %s: %w", path, err)
	}
	rowSpecs = map[string][]validator.Spec{}
	for _, r := range parsed.Row {
		rowSpecs[r.File] = append(rowSpecs[r.File], validator.NewSpec(r.Expr, validator.Level(r.Level)))
	}
	for _, p := range parsed.Package {
		packageSpecs = append(packageSpecs, validator.NewSpec(p.Expr, validator.Level(p.Level)))
	}
	return rowSpecs, packageSpecs, nil
}
