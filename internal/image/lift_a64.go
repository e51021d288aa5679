package image

import (
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"github.com/coral-mesh/irscan/internal/ir"
	"github.com/coral-mesh/irscan/internal/safe"
)

const (
	a64Prefix = "A64_"
	a64Width  = 4
)

// ADD (immediate), 32 and 64 bit, flags not set.
const (
	addImmMask  = 0x7f800000
	addImmValue = 0x11000000
)

// arm64Lifter lifts AArch64 code. It remembers the page each ADRP loaded
// so the following ADD can be folded into a full address.
type arm64Lifter struct {
	mapped func(uint64) bool
	pages  map[uint32]uint64
}

func (l *arm64Lifter) decode(code []byte, addr uint64) insn {
	if len(code) < a64Width {
		return undefined(len(code))
	}

	inst, err := arm64asm.Decode(code[:a64Width])
	if err != nil {
		return undefined(a64Width)
	}

	out := insn{size: a64Width}
	var ops []ir.Operand

	if target, ok := l.foldAdd(inst.Enc); ok {
		ops = append(ops, l.operand(inst.Args[0]), l.operand(inst.Args[1]), constPtrNode(target))
		out.refs = append(out.refs, target)
		out.node = ir.NewNode(a64Prefix+inst.Op.String(), ops...)
		return out
	}

	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch a := arg.(type) {
		case arm64asm.PCRel:
			var target uint64
			if inst.Op == arm64asm.ADRP {
				target = safe.Displace(addr&^0xfff, int64(a))
				l.pages[inst.Enc&0x1f] = target
			} else {
				target = safe.Displace(addr, int64(a))
			}
			ops = append(ops, constPtrNode(target))
			out.refs = append(out.refs, target)
			if inst.Op == arm64asm.BL {
				out.call = target
			}
		case arm64asm.Imm64:
			v, _ := safe.Uint64ToInt64(a.Imm)
			ops = append(ops, constNode(v))
			if l.mapped != nil && l.mapped(a.Imm) {
				out.refs = append(out.refs, a.Imm)
			}
		default:
			ops = append(ops, l.operand(arg))
		}
	}

	out.node = ir.NewNode(a64Prefix+inst.Op.String(), ops...)
	return out
}

// foldAdd resolves ADD Xd, Xn, #imm when Xn holds an ADRP page.
func (l *arm64Lifter) foldAdd(enc uint32) (uint64, bool) {
	if enc&addImmMask != addImmValue {
		return 0, false
	}
	rd := enc & 0x1f
	rn := (enc >> 5) & 0x1f
	page, ok := l.pages[rn]
	if !ok {
		return 0, false
	}
	delete(l.pages, rd)

	imm := uint64((enc >> 10) & 0xfff)
	if enc&(1<<22) != 0 {
		imm <<= 12
	}
	return page + imm, true
}

func (l *arm64Lifter) operand(arg arm64asm.Arg) ir.Operand {
	switch a := arg.(type) {
	case arm64asm.Reg:
		return regNode(strings.ToLower(a.String()))
	case arm64asm.RegSP:
		return regNode(strings.ToLower(a.String()))
	case arm64asm.Imm:
		return constNode(int64(a.Imm))
	case arm64asm.MemImmediate, arm64asm.MemExtend:
		return ir.NewNode(opMem, ir.Str(arg.String()))
	default:
		return ir.NewNode(opOperand, ir.Str(arg.String()))
	}
}
