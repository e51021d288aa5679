package image

import (
	"bytes"
	"errors"
	"slices"
)

// FindText returns the addresses at which text occurs, ascending and
// without duplicates. Occurrences in executable sections are returned as
// is. Data occurrences are replaced by the instructions that reference
// them; an unreferenced data occurrence is returned as is.
func (n *Native) FindText(text string) ([]uint64, error) {
	if text == "" {
		return nil, errors.New("search text is empty")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}

	needle := []byte(text)
	var code, data []uint64
	for _, s := range n.sections {
		for _, off := range indexAll(s.data, needle) {
			addr := s.addr + uint64(off)
			if s.exec {
				code = append(code, addr)
			} else {
				data = append(data, addr)
			}
		}
	}

	if len(data) > 0 && n.refs == nil {
		n.refs = n.buildRefs()
	}

	out := append([]uint64(nil), code...)
	for _, addr := range data {
		if sites := n.refs[addr]; len(sites) > 0 {
			out = append(out, sites...)
		} else {
			out = append(out, addr)
		}
	}

	slices.Sort(out)
	return slices.Compact(out), nil
}

// buildRefs lifts every function once and indexes the instructions by the
// data addresses they compute.
func (n *Native) buildRefs() map[uint64][]uint64 {
	refs := make(map[uint64][]uint64)
	for _, fn := range n.funcs {
		_, insns, err := n.lift(fn)
		if err != nil {
			continue
		}
		for _, in := range insns {
			for _, target := range in.refs {
				s := n.sectionAt(target)
				if s == nil || s.exec {
					continue
				}
				refs[target] = append(refs[target], in.node.Addr)
			}
		}
	}
	n.logger.Debug().Int("referenced", len(refs)).Msg("Indexed data references")
	return refs
}

// indexAll returns every offset of needle in haystack, overlaps included.
func indexAll(haystack, needle []byte) []int {
	var offs []int
	for base := 0; base < len(haystack); {
		i := bytes.Index(haystack[base:], needle)
		if i < 0 {
			break
		}
		offs = append(offs, base+i)
		base += i + 1
	}
	return offs
}
