// Package markers implements the marker set commands.
package markers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/irscan/internal/cli/helpers"
	"github.com/coral-mesh/irscan/internal/config"
	markerset "github.com/coral-mesh/irscan/internal/markers"
	"github.com/coral-mesh/irscan/internal/report"
	"github.com/coral-mesh/irscan/internal/template"
)

// NewMarkersCmd creates the markers command and its subcommands.
func NewMarkersCmd(global *helpers.GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markers",
		Short: "Inspect and validate marker sets",
		Long: `A marker set maps anchor strings to the targets matched in the function
that contains them. It is read from --markers, from markers_file in the
config, from ~/.irscan/markers.yaml, or falls back to the built-in set.`,
	}

	cmd.AddCommand(newListCmd(global))
	cmd.AddCommand(newValidateCmd(global))
	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newInitCmd())

	return cmd
}

// targetRow is one target of the effective marker set.
type targetRow struct {
	Marker   string `header:"MARKER" json:"marker" yaml:"marker"`
	Target   string `header:"TARGET" json:"target" yaml:"target"`
	Extends  string `header:"EXTENDS" json:"extends,omitempty" yaml:"extends,omitempty"`
	Patterns int    `header:"PATTERNS" json:"patterns" yaml:"patterns"`
}

func rows(set *markerset.Set) []targetRow {
	var out []targetRow
	add := func(marker, extends string, targets []template.Target) {
		for _, t := range targets {
			out = append(out, targetRow{Marker: marker, Target: t.Name, Extends: extends, Patterns: len(t.Patterns)})
		}
	}
	for _, m := range set.Markers {
		if m.LocateOnly() {
			out = append(out, targetRow{Marker: m.Name, Target: "-"})
			continue
		}
		add(m.Name, "", m.Targets)
	}
	for _, c := range set.Chains {
		add("", c.Target, c.Targets)
	}
	return out
}

func newListCmd(global *helpers.GlobalOptions) *cobra.Command {
	var format string
	supported := []report.OutputFormat{report.FormatTable, report.FormatJSON, report.FormatCSV, report.FormatYAML}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the markers and targets of the effective marker set",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, supported); err != nil {
				return err
			}
			cfg, err := global.LoadConfig(cmd)
			if err != nil {
				return err
			}
			set, err := helpers.LoadMarkers(cfg)
			if err != nil {
				return err
			}

			f, err := report.NewFormatter(report.OutputFormat(format))
			if err != nil {
				return err
			}
			return f.Format(rows(set), cmd.OutOrStdout())
		},
	}

	helpers.AddOutputFlag(cmd, &format, report.FormatTable, supported)
	return cmd
}

func newValidateCmd(global *helpers.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a marker set for errors",
		Long: `Check that every marker and target is named, target names are unique,
every target has at least one pattern, every pattern compiles, and every
chain extends a declared target.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.MarkersFile = args[0]
			}
			set, err := helpers.LoadMarkers(cfg)
			if err != nil {
				return err
			}

			source := cfg.MarkersFile
			if source == "" {
				source = "built-in set"
			}
			cmd.Printf("%s: %d markers, %d targets, %d patterns: valid\n",
				source, len(set.Markers), len(set.AllTargets()), set.PatternCount())
			return nil
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the marker file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := markerset.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write the built-in marker set to a file to start from",
		Long: `Write the built-in marker set to a file, ~/.irscan/markers.yaml by
default. That default location is picked up automatically by later runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.NewLoader().MarkersPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			if err := markerset.Save(path, markerset.Default()); err != nil {
				return err
			}
			cmd.Printf("Marker set written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
