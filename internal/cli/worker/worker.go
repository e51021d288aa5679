// Package worker implements the internal _worker command that analyzes one
// binary in its own process.
//
// This command is not intended to be called directly by users. It is invoked
// by the scan command once per candidate binary so that a crash or a hang in
// one binary cannot take the batch down.
package worker

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/irscan/internal/batch"
	"github.com/coral-mesh/irscan/internal/chain"
	"github.com/coral-mesh/irscan/internal/cli/helpers"
	"github.com/coral-mesh/irscan/internal/config"
	"github.com/coral-mesh/irscan/internal/constants"
	"github.com/coral-mesh/irscan/internal/image"
	"github.com/coral-mesh/irscan/internal/logging"
	"github.com/coral-mesh/irscan/internal/markers"
)

// New creates the internal _worker command.
// This command is hidden from help output. Stdout carries exactly one JSON
// outcome; logs go to stderr as JSON lines that the parent relays.
func New(global *helpers.GlobalOptions) *cobra.Command {
	var binary string

	cmd := &cobra.Command{
		Use:    constants.WorkerCommand + " --binary <path> --markers <file>",
		Short:  "Internal command analyzing a single binary",
		Hidden: true, // Don't show in help output.
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, global, binary)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&binary, "binary", "", "Binary to analyze")
	_ = cmd.MarkFlagRequired("binary")

	return cmd
}

// runWorker implements the _worker command logic. The settings come from
// flags only so the parent fully controls them.
func runWorker(cmd *cobra.Command, global *helpers.GlobalOptions, binary string) error {
	logger := logging.NewWithComponent(logging.WorkerConfig(global.LogLevel), "worker").
		With().Str("binary", binary).Logger()

	if global.MarkersFile == "" {
		return fmt.Errorf("a marker set file is required")
	}
	set, err := markers.Load(global.MarkersFile)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load marker set")
		return err
	}

	cfg := config.DefaultConfig()
	cfg.Resolver.AllOccurrences = global.AllOccurrences
	cfg.Resolver.CallTargets = global.CallTargets

	driver := chain.NewDriver(set, helpers.ResolverOptions(cfg), nil, logger)
	open := image.NewOpener(helpers.ImageConfig(cfg, logger))

	out, err := batch.Analyze(cmd.Context(), open, driver, binary, logger)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(out); err != nil {
		return fmt.Errorf("failed to write outcome: %w", err)
	}
	return nil
}
