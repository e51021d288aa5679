package image

import (
	"github.com/rs/zerolog"
)

// Config contains configuration for the native image provider.
type Config struct {
	// CallTargets adds the targets of direct calls to the function list.
	// Stripped binaries rely on it.
	CallTargets bool

	// MaxFileSize rejects larger binaries. Zero means no limit.
	MaxFileSize int64

	// LiftCacheSize bounds the number of functions whose lifted
	// instructions are kept.
	LiftCacheSize int

	// Logger for debug messages.
	Logger zerolog.Logger
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		CallTargets:   true,
		MaxFileSize:   1 << 30,
		LiftCacheSize: 256,
		Logger:        zerolog.Nop(),
	}
}

// NewOpener returns an Opener that opens binaries with cfg.
func NewOpener(cfg *Config) Opener {
	return func(path string) (Image, error) {
		return Open(path, cfg)
	}
}
