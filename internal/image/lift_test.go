package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/irscan/internal/ir"
)

func TestX86Lifter(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		addr uint64
		want string
		size int
		refs []uint64
		call uint64
	}{
		{
			name: "direct call",
			code: []byte{0xe8, 0x0b, 0x00, 0x00, 0x00},
			addr: 0x1000,
			want: "X86_CALL(CONST_PTR(4112))",
			size: 5,
			refs: []uint64{0x1010},
			call: 0x1010,
		},
		{
			name: "rip relative lea",
			code: []byte{0x48, 0x8d, 0x05, 0xe9, 0x0f, 0x00, 0x00},
			addr: 0x1010,
			want: "X86_LEA(REG(rax), MEM(CONST_PTR(8192)))",
			size: 7,
			refs: []uint64{0x2000},
		},
		{
			name: "register test",
			code: []byte{0x85, 0xc0},
			want: "X86_TEST(REG(eax), REG(eax))",
			size: 2,
		},
		{
			name: "immediate move",
			code: []byte{0xb8, 0x2a, 0x00, 0x00, 0x00},
			want: "X86_MOV(REG(eax), CONST(42))",
			size: 5,
		},
		{
			name: "return",
			code: []byte{0xc3},
			want: "X86_RET()",
			size: 1,
		},
		{
			name: "landing pad",
			code: []byte{0xf3, 0x0f, 0x1e, 0xfa, 0xc3},
			want: "X86_ENDBR64()",
			size: 4,
		},
		{
			name: "truncated",
			code: []byte{0xe8, 0x00},
			want: "UNDEF()",
			size: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := newLifter(ArchAMD64, nil)
			require.NoError(t, err)

			in := l.decode(tt.code, tt.addr)
			assert.Equal(t, tt.want, ir.Canonical(in.node))
			assert.Equal(t, tt.size, in.size)
			assert.Equal(t, tt.refs, in.refs)
			assert.Equal(t, tt.call, in.call)
		})
	}
}

func TestX86Lifter_MemoryOperand(t *testing.T) {
	l, err := newLifter(ArchAMD64, nil)
	require.NoError(t, err)

	// mov rax, [rsp+8]
	in := l.decode([]byte{0x48, 0x8b, 0x44, 0x24, 0x08}, 0)
	text := ir.Canonical(in.node)
	assert.Contains(t, text, "X86_MOV(REG(rax), MEM(REG(rsp), NONE(), CONST(")
	assert.Contains(t, text, "CONST(8)))")
	assert.Empty(t, in.refs)
}

func TestX86Lifter_MappedImmediate(t *testing.T) {
	mapped := func(addr uint64) bool { return addr >= 0x8049000 && addr < 0x804a000 }
	l, err := newLifter(Arch386, mapped)
	require.NoError(t, err)

	// push 0x8049010
	in := l.decode([]byte{0x68, 0x10, 0x90, 0x04, 0x08}, 0x8048000)
	assert.Equal(t, "X86_PUSH(CONST(134516752))", ir.Canonical(in.node))
	assert.Equal(t, []uint64{0x8049010}, in.refs)

	// push 5
	in = l.decode([]byte{0x6a, 0x05}, 0x8048005)
	assert.Empty(t, in.refs)
}

func TestARM64Lifter_AdrpAddFolding(t *testing.T) {
	l, err := newLifter(ArchARM64, nil)
	require.NoError(t, err)

	code := []byte{
		0x02, 0x00, 0x00, 0x94, // bl .+8
		0x00, 0x00, 0x00, 0xb0, // adrp x0, page+1
		0x00, 0x40, 0x00, 0x91, // add x0, x0, #0x10
	}
	nodes, insns := liftRange(l, code, 0x2000)
	require.Len(t, nodes, 3)

	assert.Equal(t, "A64_BL(CONST_PTR(8200))", ir.Canonical(nodes[0]))
	assert.Equal(t, uint64(0x2008), insns[0].call)

	assert.Equal(t, "A64_ADRP(REG(x0), CONST_PTR(12288))", ir.Canonical(nodes[1]))
	assert.Equal(t, "A64_ADD(REG(x0), REG(x0), CONST_PTR(12304))", ir.Canonical(nodes[2]))
	assert.Equal(t, []uint64{0x3010}, insns[2].refs)

	assert.Equal(t, uint64(0x2000), nodes[0].Addr)
	assert.Equal(t, uint64(0x2004), nodes[1].Addr)
	assert.Equal(t, uint64(0x2008), nodes[2].Addr)
}

func TestARM64Lifter_TrailingBytes(t *testing.T) {
	l, err := newLifter(ArchARM64, nil)
	require.NoError(t, err)

	nodes, insns := liftRange(l, []byte{0x01, 0x02}, 0x4000)
	require.Len(t, nodes, 1)
	assert.Equal(t, "UNDEF()", ir.Canonical(nodes[0]))
	assert.Equal(t, 2, insns[0].size)
}

func TestNewLifter_Unsupported(t *testing.T) {
	_, err := newLifter(Arch("mips"), nil)
	require.ErrorIs(t, err, ErrUnsupportedArch)
}

// Every target architecture is lifted regardless of the host GOARCH.
func TestNewLifter_EverySupportedArch(t *testing.T) {
	for _, arch := range []Arch{ArchAMD64, Arch386, ArchARM64} {
		t.Run(string(arch), func(t *testing.T) {
			l, err := newLifter(arch, nil)
			require.NoError(t, err)
			require.NotNil(t, l)
		})
	}
	_, isA64 := mustLifter(t, ArchARM64).(*arm64Lifter)
	assert.True(t, isA64)
}

func mustLifter(t *testing.T, arch Arch) lifter {
	t.Helper()
	l, err := newLifter(arch, nil)
	require.NoError(t, err)
	return l
}
