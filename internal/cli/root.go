package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/irscan/internal/cli/canon"
	"github.com/coral-mesh/irscan/internal/cli/helpers"
	"github.com/coral-mesh/irscan/internal/cli/markers"
	"github.com/coral-mesh/irscan/internal/cli/match"
	"github.com/coral-mesh/irscan/internal/cli/scan"
	"github.com/coral-mesh/irscan/internal/cli/worker"
	"github.com/coral-mesh/irscan/pkg/version"
)

var global = &helpers.GlobalOptions{}

var rootCmd = &cobra.Command{
	Use:   "irscan",
	Short: "irscan - locate functions in binaries by the shape of their code",
	Long: `Re-discover internal entry points across binary releases.

Symbol names get stripped and byte signatures break on every rebuild, but
the structure of a function's code rarely changes. irscan anchors on a
string the function uses, canonicalizes the function's IR into text, and
matches it against wildcard templates:

  ..   matches one token
  ??   matches one token and captures it as an address

Captured addresses are resolved to the functions they start, which can in
turn be matched against further templates.

Workflow:
- irscan canon: print the canonical text of a function to write templates
- irscan markers: list, validate and scaffold marker sets
- irscan match: try a marker set on one binary
- irscan scan: run a marker set over every candidate binary in parallel`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	global.AddFlags(rootCmd.PersistentFlags())

	// Add subcommands
	rootCmd.AddCommand(scan.NewScanCmd(global))
	rootCmd.AddCommand(match.NewMatchCmd(global))
	rootCmd.AddCommand(canon.NewCanonCmd(global))
	rootCmd.AddCommand(markers.NewMarkersCmd(global))
	rootCmd.AddCommand(newVersionCmd())

	// Add internal commands (hidden from help)
	rootCmd.AddCommand(worker.New(global))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("irscan version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command. An interrupt cancels the run and kills
// running workers.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
