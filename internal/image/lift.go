package image

import (
	"github.com/coral-mesh/irscan/internal/ir"
)

// Operation tags shared by every lifter.
const (
	opUndef    = "UNDEF"
	opReg      = "REG"
	opConst    = "CONST"
	opConstPtr = "CONST_PTR"
	opMem      = "MEM"
	opNone     = "NONE"
	opSeg      = "SEG"
	opOperand  = "OPND"
)

// insn is one decoded instruction.
type insn struct {
	node *ir.Node
	size int
	// refs holds every absolute address the instruction computes.
	refs []uint64
	// call is the target of a direct call, zero when there is none.
	call uint64
}

// lifter decodes one instruction at a time. A lifter may carry state from
// one instruction to the next, so each function gets a fresh one.
type lifter interface {
	decode(code []byte, addr uint64) insn
}

// newLifter returns a lifter for arch. mapped reports whether an immediate
// names a loaded address and is used to pick reference candidates.
func newLifter(arch Arch, mapped func(uint64) bool) (lifter, error) {
	switch arch {
	case ArchAMD64:
		return &x86Lifter{mode: 64, mapped: mapped}, nil
	case Arch386:
		return &x86Lifter{mode: 32, mapped: mapped}, nil
	case ArchARM64:
		return &arm64Lifter{mapped: mapped, pages: make(map[uint32]uint64)}, nil
	default:
		return nil, ErrUnsupportedArch
	}
}

// liftRange decodes code, which starts at base, into one node per
// instruction.
func liftRange(l lifter, code []byte, base uint64) ([]*ir.Node, []insn) {
	var (
		nodes []*ir.Node
		insns []insn
	)
	for off := 0; off < len(code); {
		addr := base + uint64(off)
		in := l.decode(code[off:], addr)
		if in.size <= 0 {
			in.size = 1
		}
		in.node.Addr = addr
		nodes = append(nodes, in.node)
		insns = append(insns, in)
		off += in.size
	}
	return nodes, insns
}

func undefined(size int) insn {
	return insn{node: ir.NewNode(opUndef), size: size}
}

func regNode(name string) *ir.Node {
	return ir.NewNode(opReg, ir.Ref(name))
}

func constNode(v int64) *ir.Node {
	return ir.NewNode(opConst, ir.Int(v))
}

func constPtrNode(addr uint64) *ir.Node {
	return ir.NewNode(opConstPtr, ir.Uint(addr))
}
