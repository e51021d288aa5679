// Package helpers holds the flag and setup code shared by the irscan
// commands.
package helpers

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/irscan/internal/config"
	"github.com/coral-mesh/irscan/internal/image"
	"github.com/coral-mesh/irscan/internal/logging"
	"github.com/coral-mesh/irscan/internal/markers"
	"github.com/coral-mesh/irscan/internal/report"
	"github.com/coral-mesh/irscan/internal/resolver"
)

// LoadConfig loads the configuration and applies the global flags.
func (o *GlobalOptions) LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.NewLoader().Load(o.ConfigFile)
	if err != nil {
		return nil, err
	}
	o.Apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the CLI logger: console output on stderr.
func NewLogger(cfg *config.Config, component string) zerolog.Logger {
	return logging.NewWithComponent(logging.Config{
		Level:   cfg.Logging.Level,
		Pretty:  cfg.Logging.Pretty,
		NoColor: !report.IsTerminal(os.Stderr),
		Output:  os.Stderr,
	}, component)
}

// LoadMarkers returns the configured marker set, or the built-in set when
// none is configured. The set is validated.
func LoadMarkers(cfg *config.Config) (*markers.Set, error) {
	set := markers.Default()
	if cfg.MarkersFile != "" {
		var err error
		set, err = markers.Load(cfg.MarkersFile)
		if err != nil {
			return nil, err
		}
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid marker set: %w", err)
	}
	return set, nil
}

// ImageConfig returns the native image provider settings for cfg.
func ImageConfig(cfg *config.Config, logger zerolog.Logger) *image.Config {
	imgCfg := image.DefaultConfig()
	imgCfg.CallTargets = cfg.Resolver.CallTargets
	imgCfg.Logger = logger
	return imgCfg
}

// ResolverOptions returns the marker resolution settings for cfg.
func ResolverOptions(cfg *config.Config) resolver.Options {
	return resolver.Options{TryAllOccurrences: cfg.Resolver.AllOccurrences}
}
