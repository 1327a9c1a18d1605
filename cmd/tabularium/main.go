// Package main contains the cli implementation of the tool. It uses the
// cobra package for cli tool implementation.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/pieczasz/tabularium/internal/config"
	"github.com/pieczasz/tabularium/internal/exportfmt"
	"github.com/pieczasz/tabularium/internal/exportfmt/sqlapply"
	"github.com/pieczasz/tabularium/internal/pipeline"
	"github.com/pieczasz/tabularium/internal/registry"
	"github.com/pieczasz/tabularium/internal/reporter"
)

type ingestFlags struct {
	configPath string
	exportDir  string
}

type checkFlags struct {
	configPath string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "tabularium",
		Short: "Type-system-driven TSV ingest engine",
	}

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(typesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func ingestCmd() *cobra.Command {
	flags := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest <package-dir>...",
		Short: "Run the reformatter pipeline over package directories, writing reformatted TSV back and invoking exporters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runIngest(args, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to tabularium.toml run configuration")
	cmd.Flags().StringVarP(&flags.exportDir, "export-dir", "o", "", "Override the configured export directory")
	return cmd
}

func runIngest(dirs []string, flags *ingestFlags) error {
	cfg, err := loadOptionalConfig(flags.configPath)
	if err != nil {
		return err
	}

	exportDir := flags.exportDir
	var exporters []pipeline.Exporter
	if cfg != nil {
		if exportDir == "" {
			exportDir = cfg.ExportDir
		}
		exporters, err = exportersFromConfig(cfg)
		if err != nil {
			return err
		}
	}

	sink := reporter.Sink(func(msg string) { fmt.Fprintln(os.Stderr, msg) })
	result, err := pipeline.Run(dirs, exporters, pipeline.ExportParams{ExportDir: exportDir}, sink)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	for _, fr := range result.Files {
		fmt.Printf("%s: %d row(s), %d error(s), %d warning(s)\n", fr.FileName, len(fr.Rows), fr.Errors, fr.Warnings)
	}
	if !result.Reporter.OK() {
		return fmt.Errorf("ingest completed with %d error(s)", result.Reporter.Errors)
	}
	return nil
}

func checkCmd() *cobra.Command {
	flags := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "check <package-dir>...",
		Short: "Parse and validate package directories without writing anything back",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runCheck(args, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to tabularium.toml run configuration")
	return cmd
}

// runCheck copies every package directory into a scratch tree before
// calling pipeline.Run, since Run always reformats its files in place;
// copying first is the only way to get "parse and validate, no writes"
// out of the single pipeline entrypoint without special-casing it.
func runCheck(dirs []string, flags *checkFlags) error {
	if _, err := loadOptionalConfig(flags.configPath); err != nil {
		return err
	}

	scratch, err := os.MkdirTemp("", "tabularium-check-")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	scratchDirs := make([]string, len(dirs))
	for i, dir := range dirs {
		dst := filepath.Join(scratch, fmt.Sprintf("pkg%d", i))
		if err := copyDir(dir, dst); err != nil {
			return fmt.Errorf("staging %s: %w", dir, err)
		}
		scratchDirs[i] = dst
	}

	sink := reporter.Sink(func(msg string) { fmt.Fprintln(os.Stderr, msg) })
	result, err := pipeline.Run(scratchDirs, nil, pipeline.ExportParams{}, sink)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	for _, fr := range result.Files {
		fmt.Printf("%s: %d row(s), %d error(s), %d warning(s)\n", fr.FileName, len(fr.Rows), fr.Errors, fr.Warnings)
	}
	if !result.Reporter.OK() {
		return fmt.Errorf("check found %d error(s)", result.Reporter.Errors)
	}
	fmt.Println("check passed")
	return nil
}

func typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "Print the registry's bootstrap type table",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTypes()
		},
	}
}

func runTypes() error {
	reg := registry.New()
	names := reg.Names()
	sort.Strings(names)
	for _, name := range names {
		entry, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		fmt.Printf("%-24s %s\n", name, entry.Kind)
	}
	return nil
}

func loadOptionalConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

func exportersFromConfig(cfg *config.Config) ([]pipeline.Exporter, error) {
	var out []pipeline.Exporter
	for _, e := range cfg.Exporters {
		switch e.Name {
		case "json":
			out = append(out, exportfmt.JSONExporter{})
		case "xml":
			out = append(out, exportfmt.XMLExporter{})
		case "sql":
			out = append(out, exportfmt.SQLExporter{})
		case "msgpack":
			out = append(out, exportfmt.MessagePackExporter{})
		case "sqlapply":
			timeout, err := parseExporterTimeout(e.Timeout)
			if err != nil {
				return nil, fmt.Errorf("exporter %q: %w", e.Name, err)
			}
			out = append(out, sqlapply.New(sqlapply.Options{
				DSN:     e.DSN,
				Timeout: timeout,
				DryRun:  e.DryRun,
			}))
		default:
			return nil, fmt.Errorf("unknown exporter %q in config", e.Name)
		}
	}
	return out, nil
}

// parseExporterTimeout parses the sqlapply exporter's "timeout" config
// field. An empty string defers to sqlapply's own zero-value default.
func parseExporterTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	return d, nil
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}
