package template

import (
	"errors"
	"fmt"
)

var (
	// ErrCompile marks a malformed template.
	ErrCompile = errors.New("template does not compile")

	// ErrCaptureParse marks a captured token that is not an integer.
	ErrCaptureParse = errors.New("captured value is not an integer")
)

// CompileError describes a template that cannot be compiled.
type CompileError struct {
	Pattern string
	Reason  string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compile template %q: %s: %v", e.Pattern, e.Reason, e.Err)
	}
	return fmt.Sprintf("compile template %q: %s", e.Pattern, e.Reason)
}

// Is reports ErrCompile.
func (e *CompileError) Is(target error) bool {
	return target == ErrCompile
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// CaptureParseError is returned when a template matched but its capture
// does not parse. The template's assumptions about the IR no longer hold.
type CaptureParseError struct {
	Target  string
	Pattern string
	Token   string
	Err     error
}

func (e *CaptureParseError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("target %s: template %q captured %q: not an integer", e.Target, e.Pattern, e.Token)
	}
	return fmt.Sprintf("template %q captured %q: not an integer", e.Pattern, e.Token)
}

// Is reports ErrCaptureParse.
func (e *CaptureParseError) Is(target error) bool {
	return target == ErrCaptureParse
}

func (e *CaptureParseError) Unwrap() error {
	return e.Err
}
