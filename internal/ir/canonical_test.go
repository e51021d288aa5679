package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name string
		op   Operand
		want string
	}{
		{
			name: "int literal",
			op:   Int(-42),
			want: "-42",
		},
		{
			name: "address literal",
			op:   Uint(0xAB),
			want: "171",
		},
		{
			name: "no operands",
			op:   NewNode("HLIL_NOP"),
			want: "HLIL_NOP()",
		},
		{
			name: "empty list operand",
			op:   NewNode("HLIL_CALL", NewNode("HLIL_CONST_PTR", Uint(4096)), List{}),
			want: "HLIL_CALL(HLIL_CONST_PTR(4096), ())",
		},
		{
			name: "nested",
			op: NewNode("HLIL_IF",
				NewNode("HLIL_CMP_E",
					NewNode("HLIL_CALL", NewNode("HLIL_CONST_PTR", Uint(1234)), List{}),
					NewNode("HLIL_CONST", Int(0)),
				),
			),
			want: "HLIL_IF(HLIL_CMP_E(HLIL_CALL(HLIL_CONST_PTR(1234), ()), HLIL_CONST(0)))",
		},
		{
			name: "list with elements keeps order",
			op:   NewNode("CALL", List{Ref("b"), Ref("a"), Ref("b")}),
			want: "CALL((b, a, b))",
		},
		{
			name: "string and ref",
			op:   NewNode("ASSIGN", NewNode("VAR", Ref("var_10")), NewNode("STR", Str("hello world"))),
			want: "ASSIGN(VAR(var_10), STR(hello world))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.op))
		})
	}
}

func TestCanonical_Deterministic(t *testing.T) {
	build := func() *Node {
		return NewNode("HLIL_ASSIGN",
			NewNode("HLIL_VAR", Ref("rax")),
			NewNode("HLIL_CALL", NewNode("HLIL_CONST_PTR", Uint(99)), List{Int(1), NewNode("HLIL_VAR", Ref("rdi"))}),
		)
	}

	tree := build()
	first := Canonical(tree)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Canonical(tree))
		require.Equal(t, first, Canonical(build()))
	}
}

func TestCanonicalInstructions(t *testing.T) {
	instrs := []*Node{
		NewNode("X86_PUSH", NewNode("REG", Ref("rbp"))),
		NewNode("X86_CALL", NewNode("CONST_PTR", Uint(16))),
		NewNode("X86_RET"),
	}

	got := CanonicalInstructions(instrs)
	assert.Equal(t, "X86_PUSH(REG(rbp))\nX86_CALL(CONST_PTR(16))\nX86_RET()", got)
	assert.Equal(t, "", CanonicalInstructions(nil))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("X86_RET()")
	assert.Equal(t, a, Fingerprint("X86_RET()"))
	assert.NotEqual(t, a, Fingerprint("X86_NOP()"))
}

func TestNewNode_EmptyOpPanics(t *testing.T) {
	assert.Panics(t, func() { NewNode("") })
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(NewNode("A", NewNode("B"), List{Int(1)})))

	err := Validate(&Node{Op: "A", Operands: []Operand{&Node{}}})
	require.ErrorIs(t, err, ErrEmptyOp)

	err = Validate(&Node{Op: "A", Operands: []Operand{List{nil}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list element 0")
}

func TestFunction_Contains(t *testing.T) {
	fn := &Function{Start: 0x1000, End: 0x1010, Name: "sub_1000"}
	assert.True(t, fn.Contains(0x1000))
	assert.True(t, fn.Contains(0x100f))
	assert.False(t, fn.Contains(0x1010))
	assert.Equal(t, "sub_1000@0x1000", fn.String())
}
