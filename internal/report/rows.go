// Package report renders scan results as report lines or structured
// output.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/coral-mesh/irscan/internal/chain"
)

// Row is one flattened result.
type Row struct {
	Binary   string `header:"BINARY" json:"binary" yaml:"binary"`
	Kind     string `header:"KIND" json:"kind" yaml:"kind"`
	Name     string `header:"NAME" json:"name" yaml:"name"`
	Function string `header:"FUNCTION" json:"function,omitempty" yaml:"function,omitempty"`
	Address  string `header:"ADDRESS" json:"address,omitempty" yaml:"address,omitempty"`
	Detail   string `header:"DETAIL" json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Row kinds.
const (
	KindMarker  = "marker"
	KindTarget  = "target"
	KindFailure = "failure"
)

// Rows flattens outcomes in order: per binary, markers then targets then
// failures.
func Rows(outcomes []*chain.Outcome) []Row {
	var rows []Row
	for _, o := range outcomes {
		for _, m := range o.Markers {
			rows = append(rows, Row{
				Binary:   o.Binary,
				Kind:     KindMarker,
				Name:     m.Marker,
				Function: m.Function,
				Address:  hex(m.Address),
				Detail:   m.Fingerprint,
			})
		}
		for _, t := range o.Targets {
			row := Row{
				Binary:   o.Binary,
				Kind:     KindTarget,
				Name:     t.Target,
				Function: t.Function,
				Detail:   fmt.Sprintf("via %s, pattern %d, depth %d", t.Parent, t.PatternIndex, t.Depth),
			}
			if t.HasCapture {
				row.Address = hex(t.Address)
			}
			rows = append(rows, row)
		}
		for _, f := range o.Failures {
			rows = append(rows, Row{
				Binary: o.Binary,
				Kind:   KindFailure,
				Name:   f.Name,
				Detail: fmt.Sprintf("%s: %s", f.Kind, f.Reason),
			})
		}
	}
	return rows
}

// Write renders outcomes in format. JSON and YAML carry the full outcomes;
// table and CSV carry the flattened rows.
func Write(w io.Writer, format OutputFormat, outcomes []*chain.Outcome) error {
	if format == FormatLines {
		l := NewLines(w, false)
		for _, o := range outcomes {
			chain.Replay(o, l)
		}
		return nil
	}

	f, err := NewFormatter(format)
	if err != nil {
		return err
	}
	switch format {
	case FormatJSON, FormatYAML:
		if outcomes == nil {
			outcomes = []*chain.Outcome{}
		}
		return f.Format(outcomes, w)
	default:
		return f.Format(Rows(outcomes), w)
	}
}

// WriteFile renders outcomes in format into path.
func WriteFile(path string, format OutputFormat, outcomes []*chain.Outcome) error {
	//nolint:gosec // G304: path is the user's --write target.
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := Write(file, format, outcomes); err != nil {
		_ = file.Close()
		return fmt.Errorf("write report file: %w", err)
	}
	return file.Close()
}

func hex(addr uint64) string {
	return fmt.Sprintf("0x%x", addr)
}
