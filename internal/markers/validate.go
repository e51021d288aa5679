package markers

import (
	"fmt"
	"strings"

	"github.com/coral-mesh/irscan/internal/config"
	"github.com/coral-mesh/irscan/internal/template"
)

// Validate checks the set before any binary is opened: names are present,
// target names are unique across the whole set, every target has at least
// one alternative, every alternative compiles, and every chain extends a
// declared target.
func (s *Set) Validate() error {
	errs := &config.MultiValidationError{}

	if len(s.Markers) == 0 {
		errs.Add("markers", "at least one marker is required")
	}

	declared := make(map[string]string)
	checkTargets := func(owner string, targets []template.Target) {
		for i, t := range targets {
			field := fmt.Sprintf("%s.targets[%d]", owner, i)
			if strings.TrimSpace(t.Name) == "" {
				errs.Add(field, "target name is required")
				continue
			}
			field = fmt.Sprintf("%s.%s", owner, t.Name)
			if prev, ok := declared[t.Name]; ok {
				errs.Add(field, "target %q is already declared by %s", t.Name, prev)
			} else {
				declared[t.Name] = owner
			}
			if len(t.Patterns) == 0 {
				errs.Add(field, "at least one pattern is required")
			}
			for j, p := range t.Patterns {
				if _, err := template.Compile(p); err != nil {
					errs.Add(fmt.Sprintf("%s[%d]", field, j), "%v", err)
				}
			}
		}
	}

	for i, m := range s.Markers {
		if m.Name == "" {
			errs.Add(fmt.Sprintf("markers[%d]", i), "marker text is required")
			continue
		}
		checkTargets(fmt.Sprintf("markers[%q]", m.Name), m.Targets)
	}
	for _, c := range s.Chains {
		checkTargets(fmt.Sprintf("chains[%q]", c.Target), c.Targets)
	}

	for _, c := range s.Chains {
		if _, ok := declared[c.Target]; !ok {
			errs.Add(fmt.Sprintf("chains[%q]", c.Target), "chain extends undeclared target %q", c.Target)
		}
	}

	return errs.ErrOrNil()
}
