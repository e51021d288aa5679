package ir

import (
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Canonical renders an operand depth-first:
//
//	Tag(op1, op2, ...)   for a node
//	(e1, e2, ...)        for a list
//	literal text         for literals, integers in base 10
func Canonical(op Operand) string {
	var b strings.Builder
	writeOperand(&b, op)
	return b.String()
}

// CanonicalInstructions renders each top-level instruction on its own line,
// in instruction order.
func CanonicalInstructions(instrs []*Node) string {
	var b strings.Builder
	for i, n := range instrs {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeOperand(&b, n)
	}
	return b.String()
}

// Fingerprint hashes canonical text. Two functions with the same shape share
// a fingerprint regardless of where they were loaded.
func Fingerprint(text string) uint64 {
	return xxh3.HashString(text)
}

func writeOperand(b *strings.Builder, op Operand) {
	switch v := op.(type) {
	case *Node:
		if v == nil {
			b.WriteString("<nil>")
			return
		}
		b.WriteString(v.Op)
		writeList(b, v.Operands)
	case List:
		writeList(b, v)
	case Int:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case Uint:
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	case Str:
		b.WriteString(string(v))
	case Ref:
		b.WriteString(string(v))
	default:
		b.WriteString("<nil>")
	}
}

func writeList(b *strings.Builder, ops []Operand) {
	b.WriteByte('(')
	for i, op := range ops {
		if i > 0 {
			b.WriteString(", ")
		}
		writeOperand(b, op)
	}
	b.WriteByte(')')
}
