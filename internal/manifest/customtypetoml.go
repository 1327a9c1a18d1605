package manifest

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// customTypesFile is the shape of an optional custom_types.toml seed
// file: a human-editable alternative to custom_type_def TSV rows for
// the same register_types_from_spec registration, additive alongside
// the TSV path rather than a replacement for it.
type customTypesFile struct {
	Types []customTypeEntry `toml:"types"`
}

type customTypeEntry struct {
	Name     string   `toml:"name"`
	Parent   string   `toml:"parent"`
	Min      *float64 `toml:"min"`
	Max      *float64 `toml:"max"`
	MinLen   *int     `toml:"min_len"`
	MaxLen   *int     `toml:"max_len"`
	Pattern  string   `toml:"pattern"`
	Values   []string `toml:"values"`
	Members  []string `toml:"members"`
	Validate string   `toml:"validate"`
}

// LoadCustomTypesTOML decodes a custom_types.toml seed file into the
// same TypeSpecRow shape RowToTypeSpec produces from TSV rows, so
// callers can register both sources through the one
// RegisterTypesFromSpec entrypoint.
func LoadCustomTypesTOML(path string) ([]TypeSpecRow, error) {
	var parsed customTypesFile
	if _, err := toml.DecodeFile(path, &parsed); err != nil {
		return nil, fmt.Errorf("loading custom types seed %s: %w", path, err)
	}
	rows := make([]TypeSpecRow, len(parsed.Types))
	for i, t := range parsed.Types {
		rows[i] = TypeSpecRow{
			Name: t.Name, Parent: t.Parent,
			Min: t.Min, Max: t.Max,
			MinLen: t.MinLen, MaxLen: t.MaxLen,
			Pattern:  t.Pattern,
			Values:   t.Values,
			Members:  t.Members,
			Validate: t.Validate,
		}
	}
	return rows, nil
}
