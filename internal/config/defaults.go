package config

import (
	"github.com/coral-mesh/irscan/internal/constants"
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Version: SchemaVersion,
		Search: SearchConfig{
			Paths:      []string{constants.DefaultSearchPath},
			Extensions: append([]string(nil), constants.DefaultExtensions...),
		},
		Resolver: ResolverConfig{
			CallTargets: true,
		},
		Logging: LoggingConfig{
			Level:  constants.DefaultLogLevel,
			Pretty: true,
		},
		Output: OutputConfig{
			Format: constants.DefaultOutputFormat,
		},
	}
}
