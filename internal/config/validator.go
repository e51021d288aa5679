package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}

	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		builder.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

// Add records a validation error.
func (e *MultiValidationError) Add(field, format string, args ...any) {
	e.Errors = append(e.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ErrOrNil returns e when it holds errors and nil otherwise.
func (e *MultiValidationError) ErrOrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

var (
	validLogLevels     = []string{"trace", "debug", "info", "warn", "error"}
	validOutputFormats = []string{"lines", "table", "json", "csv", "yaml"}
)

// Validate validates Config.
func (c *Config) Validate() error {
	errs := &MultiValidationError{}

	if c.Version == "" {
		errs.Add("version", "version is required")
	}

	if len(c.Search.Paths) == 0 {
		errs.Add("search.paths", "at least one search path is required")
	}
	for i, ext := range c.Search.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs.Add(fmt.Sprintf("search.extensions[%d]", i), "extension %q must start with '.'", ext)
		}
	}

	if c.Workers.Count < 0 {
		errs.Add("workers.count", "worker count must not be negative")
	}
	if c.Workers.Timeout < 0 {
		errs.Add("workers.timeout", "worker timeout must not be negative")
	}

	if c.Logging.Level != "" && !slices.Contains(validLogLevels, c.Logging.Level) {
		errs.Add("logging.level", "log level must be one of %s", strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" && !slices.Contains(validOutputFormats, c.Output.Format) {
		errs.Add("output.format", "output format must be one of %s", strings.Join(validOutputFormats, ", "))
	}

	return errs.ErrOrNil()
}
