// Package scan implements the batch scan command.
package scan

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/irscan/internal/batch"
	"github.com/coral-mesh/irscan/internal/chain"
	"github.com/coral-mesh/irscan/internal/cli/helpers"
	"github.com/coral-mesh/irscan/internal/config"
	"github.com/coral-mesh/irscan/internal/errors"
	"github.com/coral-mesh/irscan/internal/image"
	"github.com/coral-mesh/irscan/internal/markers"
	"github.com/coral-mesh/irscan/internal/report"
	"github.com/coral-mesh/irscan/internal/safe"
)

type options struct {
	extensions    []string
	workers       int
	workerTimeout time.Duration
	where         string
	format        string
	write         string
	inProcess     bool
}

// NewScanCmd creates the scan command.
func NewScanCmd(global *helpers.GlobalOptions) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "scan [path|glob...]",
		Short: "Locate the marker set's functions in every candidate binary",
		Long: `Discover candidate binaries and analyze each one in its own worker process.

Paths are directories (their direct entries are considered), files, or
doublestar globs such as 'bin/**/*.so'. Without arguments the configured
search paths are used (./bin by default).

For every binary, each marker string is located, its enclosing function is
canonicalized and matched against the marker's templates, and captured
addresses are resolved to functions. Results stream as report lines:

  ~ bin/libclient.so:CheckUpdatingSteamResources => sub_4f2a0 (0x4f2a0)
  ~ bin/libclient.so:CL_DownloadUpdate => 0x51c10

The command exits non-zero when any binary recorded a failure.`,
		Example: `  irscan scan
  irscan scan ./bin --ext .so
  irscan scan 'releases/**/*.dll' --workers 4 --worker-timeout 2m
  irscan scan --where 'size > 1048576 && name.startsWith("lib")' -o table --write results.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, args, cfg); err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	cmd.Flags().StringSliceVar(&opts.extensions, "ext", nil, "File extensions to scan (default .so, .dll)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "j", 0, "Concurrent workers (default: logical CPUs minus one)")
	cmd.Flags().DurationVar(&opts.workerTimeout, "worker-timeout", 0, "Kill a worker that runs longer (0 waits forever)")
	cmd.Flags().StringVar(&opts.where, "where", "", "CEL filter over path, name, ext and size")
	cmd.Flags().StringVar(&opts.write, "write", "", "Also write the results to this file")
	cmd.Flags().BoolVar(&opts.inProcess, "in-process", false, "Analyze binaries inside this process")
	helpers.AddOutputFlag(cmd, &opts.format, report.FormatLines, report.Formats)

	return cmd
}

func (o *options) apply(cmd *cobra.Command, args []string, cfg *config.Config) error {
	flags := cmd.Flags()
	if len(args) > 0 {
		cfg.Search.Paths = args
	}
	if flags.Changed("ext") {
		cfg.Search.Extensions = o.extensions
	}
	if flags.Changed("workers") {
		cfg.Workers.Count = o.workers
	}
	if flags.Changed("worker-timeout") {
		cfg.Workers.Timeout = o.workerTimeout
	}
	if flags.Changed("where") {
		cfg.Search.Filter = o.where
	}
	if flags.Changed("output") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("write") {
		cfg.Output.File = o.write
	}
	if flags.Changed("in-process") {
		cfg.Workers.InProcess = o.inProcess
	}
	return cfg.Validate()
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	logger := helpers.NewLogger(cfg, "scan")
	format := report.OutputFormat(cfg.Output.Format)

	set, err := helpers.LoadMarkers(cfg)
	if err != nil {
		return err
	}

	candidates, err := batch.Discover(cfg.Search.Paths, cfg.Search.Extensions)
	if err != nil {
		return err
	}
	filter, err := batch.NewFilter(cfg.Search.Filter)
	if err != nil {
		return err
	}
	if candidates, err = filter.Apply(candidates); err != nil {
		return err
	}
	if len(candidates) == 0 {
		logger.Warn().Strs("paths", cfg.Search.Paths).Msg("No candidate binaries found")
		return nil
	}

	exec, cleanup, err := newExecutor(cfg, set, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var reporter chain.Reporter
	if format == report.FormatLines {
		reporter = report.NewTerminalLines(cmd.OutOrStdout())
	}

	orch := batch.New(exec, batch.WorkerCount(cfg.Workers.Count), reporter, logger)
	res, err := orch.Run(cmd.Context(), candidates)
	if err != nil {
		return err
	}

	if format != report.FormatLines {
		if err := report.Write(cmd.OutOrStdout(), format, res.Outcomes); err != nil {
			return err
		}
	}
	if cfg.Output.File != "" {
		if err := report.WriteFile(cfg.Output.File, format, res.Outcomes); err != nil {
			return err
		}
		logger.Info().Str("file", cfg.Output.File).Msg("Results written")
	}

	if failed := res.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d binaries recorded failures", len(failed), len(res.Outcomes))
	}
	return nil
}

// newExecutor returns the executor for cfg and a cleanup function that
// releases what it allocated.
func newExecutor(cfg *config.Config, set *markers.Set, logger zerolog.Logger) (batch.Executor, func(), error) {
	if cfg.Workers.InProcess {
		return &batch.InProcess{
			Open:   image.NewOpener(helpers.ImageConfig(cfg, logger)),
			Driver: chain.NewDriver(set, helpers.ResolverOptions(cfg), nil, logger),
			Logger: logger,
		}, func() {}, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to locate irscan executable: %w", err)
	}

	data, err := yaml.Marshal(set)
	if err != nil {
		return nil, nil, fmt.Errorf("encode marker set: %w", err)
	}
	markersFile, err := safe.WriteTemp("", "irscan-markers-*.yaml", data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write marker set for workers: %w", err)
	}

	proc := &batch.Process{
		Executable:  exe,
		MarkersFile: markersFile,
		Args:        helpers.WorkerArgs(cfg),
		Timeout:     cfg.Workers.Timeout,
		Logger:      logger,
	}
	return proc, func() { errors.DeferRemove(logger, markersFile) }, nil
}
