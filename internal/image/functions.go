package image

import (
	"fmt"
	"sort"

	"github.com/coral-mesh/irscan/internal/ir"
)

// candidate is a possible function start.
type candidate struct {
	name string
	size uint64
}

// discoverFunctions merges symbol starts, the entry point, and optionally
// direct call targets into non-overlapping functions. A function without a
// known size runs to the next start or the end of its section.
func (n *Native) discoverFunctions(ld *loaded) []*ir.Function {
	cands := make(map[uint64]*candidate)
	add := func(addr uint64, name string, size uint64) {
		s := n.sectionAt(addr)
		if s == nil || !s.exec {
			return
		}
		c, ok := cands[addr]
		if !ok {
			cands[addr] = &candidate{name: name, size: size}
			return
		}
		if c.name == "" {
			c.name = name
		}
		if size > c.size {
			c.size = size
		}
	}

	for _, sym := range ld.symbols {
		add(sym.addr, sym.name, sym.size)
	}
	if ld.entry != 0 {
		add(ld.entry, "", 0)
	}
	if n.cfg.CallTargets {
		calls := n.callTargets(ld.arch)
		for _, addr := range calls {
			add(addr, "", 0)
		}
		n.logger.Debug().Int("call_targets", len(calls)).Msg("Swept executable sections")
	}

	starts := make([]uint64, 0, len(cands))
	for addr := range cands {
		starts = append(starts, addr)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	funcs := make([]*ir.Function, 0, len(starts))
	for i, start := range starts {
		c := cands[start]
		// A call target inside a sized function is a local label.
		if c.size == 0 && len(funcs) > 0 && funcs[len(funcs)-1].Contains(start) {
			continue
		}

		s := n.sectionAt(start)
		end := s.end()
		if c.size > 0 {
			end = min(start+c.size, s.end())
		} else if i+1 < len(starts) && starts[i+1] < end {
			end = starts[i+1]
		}

		name := c.name
		if name == "" {
			name = fmt.Sprintf("sub_%x", start)
		}
		funcs = append(funcs, &ir.Function{Start: start, End: end, Name: name})
	}
	return funcs
}

// callTargets sweeps every executable section and returns the targets of
// direct calls that land in executable code.
func (n *Native) callTargets(arch Arch) []uint64 {
	seen := make(map[uint64]bool)
	var out []uint64
	for _, s := range n.sections {
		if !s.exec {
			continue
		}
		l, err := newLifter(arch, nil)
		if err != nil {
			return nil
		}
		for off := 0; off < len(s.data); {
			in := l.decode(s.data[off:], s.addr+uint64(off))
			if in.size <= 0 {
				in.size = 1
			}
			if in.call != 0 && !seen[in.call] {
				if t := n.sectionAt(in.call); t != nil && t.exec {
					seen[in.call] = true
					out = append(out, in.call)
				}
			}
			off += in.size
		}
	}
	return out
}
