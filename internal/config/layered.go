package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/irscan/internal/safe"
)

// Layer names a configuration source.
type Layer string

const (
	// LayerDefaults is DefaultConfig.
	LayerDefaults Layer = "defaults"

	// LayerFile is the YAML configuration file.
	LayerFile Layer = "file"

	// LayerEnv is the IRSCAN_* environment variables.
	LayerEnv Layer = "env"
)

// LayeredLoader builds a Config from defaults, then the file, then the
// environment, each layer overriding the previous one. Command-line flags
// are applied by the CLI on top of the result.
type LayeredLoader struct {
	disabled map[Layer]bool
}

// NewLayeredLoader creates a loader with every layer enabled.
func NewLayeredLoader() *LayeredLoader {
	return &LayeredLoader{disabled: make(map[Layer]bool)}
}

// DisableLayer skips a layer.
func (l *LayeredLoader) DisableLayer(layer Layer) {
	l.disabled[layer] = true
}

// Load builds and validates the configuration. Unknown keys in the file are
// rejected so a misspelt setting does not silently fall back to its default.
func (l *LayeredLoader) Load(configPath string) (*Config, error) {
	cfg := &Config{}
	if !l.disabled[LayerDefaults] {
		cfg = DefaultConfig()
	}

	if !l.disabled[LayerFile] && configPath != "" {
		if err := mergeFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if !l.disabled[LayerEnv] {
		if err := LoadFromEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := safe.ReadFile(path, &safe.ReadOptions{AllowSymlinks: true})
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}
