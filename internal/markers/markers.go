// Package markers holds the marker set: named anchor strings, the targets
// matched inside the function each anchor resolves to, and the chained
// targets matched inside the functions those targets resolve to.
//
// Order matters everywhere. Markers run in declaration order, targets in
// declaration order within their marker, and alternatives in listed order
// within their target. The YAML form is parsed node by node so document
// order is kept.
package markers

import (
	"github.com/coral-mesh/irscan/internal/template"
)

// Marker is an anchor string with the targets matched in its function.
// A marker without targets is only located.
type Marker struct {
	Name    string
	Targets []template.Target
}

// LocateOnly reports whether the marker has no targets.
func (m Marker) LocateOnly() bool {
	return len(m.Targets) == 0
}

// Chain lists the targets matched inside the function a target resolved to.
type Chain struct {
	Target  string
	Targets []template.Target
}

// Set is an ordered marker set.
type Set struct {
	Markers []Marker
	Chains  []Chain
}

// ChainFor returns the chained targets of target, if any.
func (s *Set) ChainFor(target string) ([]template.Target, bool) {
	for _, c := range s.Chains {
		if c.Target == target {
			return c.Targets, len(c.Targets) > 0
		}
	}
	return nil, false
}

// Marker returns the marker with the given name.
func (s *Set) Marker(name string) (Marker, bool) {
	for _, m := range s.Markers {
		if m.Name == name {
			return m, true
		}
	}
	return Marker{}, false
}

// AllTargets returns every target of every marker and chain, in order.
func (s *Set) AllTargets() []template.Target {
	var all []template.Target
	for _, m := range s.Markers {
		all = append(all, m.Targets...)
	}
	for _, c := range s.Chains {
		all = append(all, c.Targets...)
	}
	return all
}

// PatternCount returns the number of template alternatives in the set.
func (s *Set) PatternCount() int {
	n := 0
	for _, t := range s.AllTargets() {
		n += len(t.Patterns)
	}
	return n
}
