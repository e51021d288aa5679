package config

import (
	"time"
)

// SchemaVersion is the configuration schema version.
const SchemaVersion = "1"

// Config represents ~/.irscan/config.yaml.
type Config struct {
	Version string        `yaml:"version"`
	Search  SearchConfig  `yaml:"search"`
	Workers WorkersConfig `yaml:"workers"`
	// MarkersFile is a YAML marker set. Empty selects the built-in set.
	MarkersFile string         `yaml:"markers_file,omitempty" env:"IRSCAN_MARKERS"`
	Resolver    ResolverConfig `yaml:"resolver"`
	Logging     LoggingConfig  `yaml:"logging"`
	Output      OutputConfig   `yaml:"output"`
}

// SearchConfig controls candidate binary discovery.
type SearchConfig struct {
	// Paths are directories or doublestar globs.
	Paths      []string `yaml:"paths" env:"IRSCAN_SEARCH_PATHS"`
	Extensions []string `yaml:"extensions" env:"IRSCAN_EXTENSIONS"`
	// Filter is a CEL expression over path, name, ext and size.
	Filter string `yaml:"filter,omitempty" env:"IRSCAN_FILTER"`
}

// WorkersConfig controls the worker pool.
type WorkersConfig struct {
	// Count is the number of concurrent workers. Zero picks the number of
	// logical CPUs minus one.
	Count int `yaml:"count" env:"IRSCAN_WORKERS"`
	// Timeout kills a worker that runs longer. Zero waits forever.
	Timeout time.Duration `yaml:"timeout,omitempty" env:"IRSCAN_WORKER_TIMEOUT"`
	// InProcess runs the driver inside the scanning process instead of a
	// child process per binary.
	InProcess bool `yaml:"in_process,omitempty" env:"IRSCAN_IN_PROCESS"`
}

// ResolverConfig controls marker resolution.
type ResolverConfig struct {
	// AllOccurrences walks every occurrence of a marker until one resolves
	// to a function instead of stopping at the first.
	AllOccurrences bool `yaml:"all_occurrences,omitempty" env:"IRSCAN_ALL_OCCURRENCES"`
	// CallTargets adds direct call targets to the function table.
	CallTargets bool `yaml:"call_targets" env:"IRSCAN_CALL_TARGETS"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"IRSCAN_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"IRSCAN_LOG_PRETTY"`
}

// OutputConfig controls result rendering.
type OutputConfig struct {
	// Format is one of lines, table, json, csv or yaml.
	Format string `yaml:"format" env:"IRSCAN_OUTPUT"`
	// File receives the rendered results in addition to stdout.
	File string `yaml:"file,omitempty" env:"IRSCAN_OUTPUT_FILE"`
}
