package batch

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Filter selects candidates with a CEL expression over the variables path,
// name, ext and size. For example:
//
//	name.startsWith("libclient") && size > 1024
type Filter struct {
	expr    string
	program cel.Program
}

// NewFilter compiles expr. An empty expression yields a nil filter, which
// keeps every candidate.
func NewFilter(expr string) (*Filter, error) {
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("path", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("ext", cel.StringType),
		cel.Variable("size", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, err)
	}
	return &Filter{expr: expr, program: prg}, nil
}

// Match evaluates the filter for c.
func (f *Filter) Match(c Candidate) (bool, error) {
	if f == nil {
		return true, nil
	}
	val, _, err := f.program.Eval(map[string]any{
		"path": c.Path,
		"name": c.Name,
		"ext":  c.Ext,
		"size": c.Size,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate filter on %s: %w", c.Path, err)
	}
	keep, ok := val.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q must evaluate to a bool, got %T", f.expr, val.Value())
	}
	return keep, nil
}

// Apply returns the candidates the filter keeps.
func (f *Filter) Apply(candidates []Candidate) ([]Candidate, error) {
	if f == nil {
		return candidates, nil
	}
	var out []Candidate
	for _, c := range candidates {
		keep, err := f.Match(c)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, c)
		}
	}
	return out, nil
}
