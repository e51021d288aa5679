package helpers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coral-mesh/irscan/internal/config"
	"github.com/coral-mesh/irscan/internal/report"
)

// GlobalOptions are the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigFile     string
	MarkersFile    string
	LogLevel       string
	AllOccurrences bool
	CallTargets    bool
}

// AddFlags registers the global flags on fs.
func (o *GlobalOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigFile, "config", "", "Config file (default ~/.irscan/config.yaml)")
	fs.StringVar(&o.MarkersFile, "markers", "", "Marker set YAML file (default: built-in set)")
	fs.StringVar(&o.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	fs.BoolVar(&o.AllOccurrences, "all-occurrences", false, "Try every occurrence of a marker until one is inside a function")
	fs.BoolVar(&o.CallTargets, "call-targets", true, "Add direct call targets to the function table")
}

// Apply copies the flags the user set on cmd over cfg.
func (o *GlobalOptions) Apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("markers") {
		cfg.MarkersFile = o.MarkersFile
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.LogLevel
	}
	if flags.Changed("all-occurrences") {
		cfg.Resolver.AllOccurrences = o.AllOccurrences
	}
	if flags.Changed("call-targets") {
		cfg.Resolver.CallTargets = o.CallTargets
	}
}

// WorkerArgs are the flags that hand the effective settings of cfg to a
// worker process.
func WorkerArgs(cfg *config.Config) []string {
	return []string{
		"--log-level", cfg.Logging.Level,
		"--all-occurrences=" + strconv.FormatBool(cfg.Resolver.AllOccurrences),
		"--call-targets=" + strconv.FormatBool(cfg.Resolver.CallTargets),
	}
}

// AddOutputFlag adds a standard --output/-o flag to a command.
func AddOutputFlag(cmd *cobra.Command, formatVar *string, defaultFormat report.OutputFormat, supportedFormats []report.OutputFormat) {
	formatNames := make([]string, len(supportedFormats))
	for i, f := range supportedFormats {
		formatNames[i] = string(f)
	}

	description := fmt.Sprintf("Output format (%s)", strings.Join(formatNames, ", "))
	cmd.Flags().StringVarP(formatVar, "output", "o", string(defaultFormat), description)

	// Add shell completion for format flag.
	_ = cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return formatNames, cobra.ShellCompDirectiveNoFileComp
	})
}

// ValidateFormat checks if the format is in the supported list.
func ValidateFormat(format string, supported []report.OutputFormat) error {
	for _, s := range supported {
		if format == string(s) {
			return nil
		}
	}

	supportedNames := make([]string, len(supported))
	for i, s := range supported {
		supportedNames[i] = string(s)
	}

	return fmt.Errorf("unsupported format %q, must be one of: %s",
		format, strings.Join(supportedNames, ", "))
}
