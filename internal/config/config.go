// Package config loads the TOML run configuration for a tabularium
// invocation: which package directories to ingest, where to write
// reformatted output, and which exporters to drive, in the
// BurntSushi/toml idiom the teacher's internal/parser/toml package
// already depends on.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// ExporterConfig is one exporter's declared subdir/format, read
// straight out of a [[exporters]] TOML table. DSN/Timeout/DryRun only
// apply to the "sqlapply" exporter; they're ignored by the others.
type ExporterConfig struct {
	Name         string `toml:"name"`
	FormatSubdir string `toml:"format_subdir"`
	DSN          string `toml:"dsn"`
	Timeout      string `toml:"timeout"`
	DryRun       bool   `toml:"dry_run"`
}

// Config is the top-level run configuration.
type Config struct {
	PackageDirs []string         `toml:"package_dirs"`
	ExportDir   string           `toml:"export_dir"`
	Exporters   []ExporterConfig `toml:"exporters"`
	StrictWarn  bool             `toml:"strict_warnings"` // decoded only; no command reads it, so warnings never count as errors
}

// Load parses path as TOML into a Config, validating the required
// fields (package_dirs must be non-empty; export_dir required only
// when exporters are declared).
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes TOML text directly, mainly for tests.
func Parse(text string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(text, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.PackageDirs) == 0 {
		return fmt.Errorf("config: package_dirs must list at least one directory")
	}
	if len(c.Exporters) > 0 && c.ExportDir == "" {
		return fmt.Errorf("config: export_dir is required when exporters are declared")
	}
	return nil
}
