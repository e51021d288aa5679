// Package config provides configuration loading and management.
package config

import (
	"os"
	"path/filepath"

	"github.com/coral-mesh/irscan/internal/constants"
)

// Loader resolves configuration file locations.
type Loader struct {
	homeDir string
}

// NewLoader creates a new config loader.
// The base directory is resolved in this order:
//  1. IRSCAN_CONFIG environment variable.
//  2. User home directory (~/).
//  3. /tmp/irscan-fallback (containers without a home dir).
func NewLoader() *Loader {
	if baseDir := os.Getenv("IRSCAN_CONFIG"); baseDir != "" {
		return &Loader{homeDir: baseDir}
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		return &Loader{homeDir: homeDir}
	}

	return &Loader{homeDir: "/tmp/irscan-fallback"}
}

// ConfigPath returns the path to the config file.
func (l *Loader) ConfigPath() string {
	return filepath.Join(l.homeDir, constants.DefaultDir, constants.ConfigFile)
}

// MarkersPath returns the path of the marker set looked up when the config
// names none.
func (l *Loader) MarkersPath() string {
	return filepath.Join(l.homeDir, constants.DefaultDir, constants.MarkersFile)
}

// Load loads the configuration from path, or from ConfigPath when path is
// empty. A missing default file yields defaults; a missing explicit file is
// an error. Environment overrides are applied last.
func (l *Loader) Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = l.ConfigPath()
	}

	layered := NewLayeredLoader()
	if !explicit {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			layered.DisableLayer(LayerFile)
		}
	}

	cfg, err := layered.Load(path)
	if err != nil {
		return nil, err
	}

	if cfg.MarkersFile == "" {
		if _, err := os.Stat(l.MarkersPath()); err == nil {
			cfg.MarkersFile = l.MarkersPath()
		}
	}

	return cfg, nil
}
