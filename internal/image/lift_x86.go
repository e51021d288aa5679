package image

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/coral-mesh/irscan/internal/ir"
	"github.com/coral-mesh/irscan/internal/safe"
)

const x86Prefix = "X86_"

// x86Lifter lifts 32- and 64-bit x86 code.
type x86Lifter struct {
	mode   int
	mapped func(uint64) bool
}

func (l *x86Lifter) decode(code []byte, addr uint64) insn {
	// CET landing pads predate the disassembler tables.
	if len(code) >= 4 && code[0] == 0xf3 && code[1] == 0x0f && code[2] == 0x1e {
		switch code[3] {
		case 0xfa:
			return insn{node: ir.NewNode(x86Prefix + "ENDBR64"), size: 4}
		case 0xfb:
			return insn{node: ir.NewNode(x86Prefix + "ENDBR32"), size: 4}
		}
	}

	inst, err := x86asm.Decode(code, l.mode)
	if err != nil || inst.Len == 0 {
		return undefined(1)
	}

	next := addr + uint64(inst.Len)
	out := insn{size: inst.Len}
	var ops []ir.Operand

	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch a := arg.(type) {
		case x86asm.Reg:
			ops = append(ops, regNode(x86Reg(a)))
		case x86asm.Imm:
			ops = append(ops, constNode(int64(a)))
			if v := l.truncate(uint64(a)); l.mapped != nil && l.mapped(v) {
				out.refs = append(out.refs, v)
			}
		case x86asm.Rel:
			target := l.truncate(safe.Displace(next, int64(a)))
			ops = append(ops, constPtrNode(target))
			out.refs = append(out.refs, target)
			if inst.Op == x86asm.CALL {
				out.call = target
			}
		case x86asm.Mem:
			node, ref, ok := l.mem(a, next)
			ops = append(ops, node)
			if ok {
				out.refs = append(out.refs, ref)
			}
		default:
			ops = append(ops, ir.NewNode(opOperand, ir.Str(arg.String())))
		}
	}

	out.node = ir.NewNode(x86Prefix+inst.Op.String(), ops...)
	return out
}

// mem lifts a memory operand. RIP-relative and absolute forms resolve to
// a constant address.
func (l *x86Lifter) mem(m x86asm.Mem, next uint64) (*ir.Node, uint64, bool) {
	if m.Base == x86asm.RIP {
		target := safe.Displace(next, m.Disp)
		return ir.NewNode(opMem, constPtrNode(target)), target, true
	}
	if m.Segment == 0 && m.Base == 0 && m.Index == 0 {
		target := l.truncate(uint64(m.Disp))
		return ir.NewNode(opMem, constPtrNode(target)), target, l.mapped != nil && l.mapped(target)
	}

	var ops []ir.Operand
	if m.Segment != 0 {
		ops = append(ops, ir.NewNode(opSeg, ir.Ref(x86Reg(m.Segment))))
	}
	ops = append(ops,
		x86RegOrNone(m.Base),
		x86RegOrNone(m.Index),
		constNode(int64(m.Scale)),
		constNode(m.Disp),
	)
	return ir.NewNode(opMem, ops...), 0, false
}

func (l *x86Lifter) truncate(v uint64) uint64 {
	return safe.Truncate(v, l.mode)
}

func x86Reg(r x86asm.Reg) string {
	return strings.ToLower(r.String())
}

func x86RegOrNone(r x86asm.Reg) *ir.Node {
	if r == 0 {
		return ir.NewNode(opNone)
	}
	return regNode(x86Reg(r))
}
