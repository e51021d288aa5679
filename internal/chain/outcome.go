package chain

import (
	"fmt"
)

// FailureKind classifies a recorded failure.
type FailureKind string

const (
	KindPatternCompile    FailureKind = "pattern_compile"
	KindMarkerNotFound    FailureKind = "marker_not_found"
	KindCaptureParse      FailureKind = "capture_parse"
	KindUnresolvedAddress FailureKind = "unresolved_address"
	KindImage             FailureKind = "image"
	KindWorker            FailureKind = "worker"
)

// Failure names the marker or target that failed and why.
type Failure struct {
	Name   string      `json:"name" yaml:"name"`
	Kind   FailureKind `json:"kind" yaml:"kind"`
	Reason string      `json:"reason" yaml:"reason"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Name, f.Reason)
}

// MarkerResult is a located marker.
type MarkerResult struct {
	Marker      string `json:"marker" yaml:"marker"`
	Function    string `json:"function" yaml:"function"`
	Address     uint64 `json:"address" yaml:"address"`
	Occurrence  uint64 `json:"occurrence" yaml:"occurrence"`
	Fingerprint string `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

// TargetResult is a matched target. Resolved is set when the captured
// address starts a function.
type TargetResult struct {
	Target       string `json:"target" yaml:"target"`
	Marker       string `json:"marker" yaml:"marker"`
	Parent       string `json:"parent" yaml:"parent"`
	Depth        int    `json:"depth" yaml:"depth"`
	Pattern      string `json:"pattern" yaml:"pattern"`
	PatternIndex int    `json:"pattern_index" yaml:"pattern_index"`
	Address      uint64 `json:"address" yaml:"address"`
	HasCapture   bool   `json:"has_capture" yaml:"has_capture"`
	Resolved     bool   `json:"resolved" yaml:"resolved"`
	Function     string `json:"function,omitempty" yaml:"function,omitempty"`
}

// Outcome is everything a worker learned about one binary. It is the only
// value handed back to the orchestrator.
type Outcome struct {
	Binary   string         `json:"binary" yaml:"binary"`
	SHA256   string         `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Format   string         `json:"format,omitempty" yaml:"format,omitempty"`
	Arch     string         `json:"arch,omitempty" yaml:"arch,omitempty"`
	Markers  []MarkerResult `json:"markers" yaml:"markers"`
	Targets  []TargetResult `json:"targets" yaml:"targets"`
	Failures []Failure      `json:"failures" yaml:"failures"`
}

// OK reports whether the binary was processed without any failure.
func (o *Outcome) OK() bool {
	return len(o.Failures) == 0
}

// Fail records a failure.
func (o *Outcome) Fail(name string, kind FailureKind, err error) Failure {
	f := Failure{Name: name, Kind: kind, Reason: err.Error()}
	o.Failures = append(o.Failures, f)
	return f
}
