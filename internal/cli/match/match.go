// Package match implements the single-binary match command.
package match

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/irscan/internal/chain"
	"github.com/coral-mesh/irscan/internal/cli/helpers"
	"github.com/coral-mesh/irscan/internal/errors"
	"github.com/coral-mesh/irscan/internal/image"
	"github.com/coral-mesh/irscan/internal/report"
)

// NewMatchCmd creates the match command.
func NewMatchCmd(global *helpers.GlobalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "match <binary>",
		Short: "Run the marker set against one binary in this process",
		Long: `Run the marker set against a single binary without spawning a worker.

Report lines are printed as results are found, which makes this the
quickest way to iterate on a marker file against a known release.`,
		Example: `  irscan match bin/libclient.so
  irscan match bin/engine.dll --markers my-markers.yaml -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, report.Formats); err != nil {
				return err
			}

			cfg, err := global.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := helpers.NewLogger(cfg, "match")

			set, err := helpers.LoadMarkers(cfg)
			if err != nil {
				return err
			}

			var reporter chain.Reporter
			if report.OutputFormat(format) == report.FormatLines {
				reporter = report.NewTerminalLines(cmd.OutOrStdout())
			}
			driver := chain.NewDriver(set, helpers.ResolverOptions(cfg), reporter, logger)
			open := image.NewOpener(helpers.ImageConfig(cfg, logger))

			img, err := open(args[0])
			if err != nil {
				return err
			}
			defer errors.DeferClose(logger, img, "failed to close image")

			// Binary failures are recorded in the outcome.
			out, err := driver.Run(cmd.Context(), img)
			if err != nil && cmd.Context().Err() != nil {
				return err
			}

			if report.OutputFormat(format) != report.FormatLines {
				if err := report.Write(cmd.OutOrStdout(), report.OutputFormat(format), []*chain.Outcome{out}); err != nil {
					return err
				}
			}

			if !out.OK() {
				return fmt.Errorf("%s: %d failures recorded", out.Binary, len(out.Failures))
			}
			return nil
		},
	}

	helpers.AddOutputFlag(cmd, &format, report.FormatLines, report.Formats)

	return cmd
}
