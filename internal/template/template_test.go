package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{name: "empty", pattern: ""},
		{name: "unclosed", pattern: "HLIL_CALL(HLIL_CONST_PTR(??)"},
		{name: "stray close", pattern: "HLIL_CONST(0))"},
		{name: "close before open", pattern: ")("},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.pattern)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCompile)

			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.pattern, ce.Pattern)
		})
	}
}

func TestMatcher_Find(t *testing.T) {
	tests := []struct {
		name        string
		pattern     string
		text        string
		wantOK      bool
		wantCapture bool
		wantValue   uint64
	}{
		{
			name:        "capture",
			pattern:     "OP(??)",
			text:        "OP(1234)",
			wantOK:      true,
			wantCapture: true,
			wantValue:   1234,
		},
		{
			name:    "non-capturing wildcard",
			pattern: "OP(..)",
			text:    "OP(1234)",
			wantOK:  true,
		},
		{
			name:    "no match is not an error",
			pattern: "OP(??)",
			text:    "OTHER(5)",
			wantOK:  false,
		},
		{
			name:        "literal parentheses are not groups",
			pattern:     "HLIL_CALL(HLIL_CONST_PTR(??), ())",
			text:        "HLIL_CALL(HLIL_CONST_PTR(4096), ())",
			wantOK:      true,
			wantCapture: true,
			wantValue:   4096,
		},
		{
			name:    "parentheses must be present in text",
			pattern: "HLIL_CALL(HLIL_CONST_PTR(??), ())",
			text:    "HLIL_CALLHLIL_CONST_PTR4096, ",
			wantOK:  false,
		},
		{
			name:        "unanchored search inside multi-line text",
			pattern:     "HLIL_CALL(HLIL_CONST_PTR(??), ())",
			text:        "HLIL_VAR_INIT(var_8, HLIL_CONST(0))\nHLIL_RET((HLIL_CALL(HLIL_CONST_PTR(77), ())))\nHLIL_NORET()",
			wantOK:      true,
			wantCapture: true,
			wantValue:   77,
		},
		{
			name:        "first capture wins",
			pattern:     "ADD(??, ??)",
			text:        "ADD(3, 4)",
			wantOK:      true,
			wantCapture: true,
			wantValue:   3,
		},
		{
			name:        "leftmost occurrence wins",
			pattern:     "CALL(??)",
			text:        "CALL(1)\nCALL(2)",
			wantOK:      true,
			wantCapture: true,
			wantValue:   1,
		},
		{
			name:    "wildcard does not cross delimiters",
			pattern: "F(.., ..)",
			text:    "F(a)",
			wantOK:  false,
		},
		{
			name:    "wildcard matches a signed constant",
			pattern: "CMP(REG(eax), CONST(..))",
			text:    "CMP(REG(eax), CONST(-1))",
			wantOK:  true,
		},
		{
			name:    "wildcard inside a lifted stack access",
			pattern: "X86_MOV(REG(eax), MEM(REG(rbp), NONE(), CONST(0), CONST(..)))",
			text:    "X86_MOV(REG(eax), MEM(REG(rbp), NONE(), CONST(0), CONST(-8)))",
			wantOK:  true,
		},
		{
			name:    "regex metacharacters are literal",
			pattern: "A.B+[..]",
			text:    "AxBB[c]",
			wantOK:  false,
		},
		{
			name:    "regex metacharacters match themselves",
			pattern: "A.B+[..]",
			text:    "A.B+[c]",
			wantOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Compile(tt.pattern)
			require.NoError(t, err)

			res, ok, err := m.Find(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.pattern, res.Pattern)
			assert.Equal(t, tt.wantCapture, res.HasCapture)
			assert.Equal(t, tt.wantValue, res.Value)
		})
	}
}

func TestMatcher_Find_CaptureParseError(t *testing.T) {
	m := MustCompile("HLIL_VAR(??)")

	_, ok, err := m.Find("HLIL_VAR(var_10)")
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCaptureParse)

	var cpe *CaptureParseError
	require.ErrorAs(t, err, &cpe)
	assert.Equal(t, "var_10", cpe.Token)
}

func TestMatcher_Find_NegativeCaptureIsParseError(t *testing.T) {
	_, ok, err := MustCompile("CONST(??)").Find("X86_ADD(REG(rsp), CONST(-16))")
	require.ErrorIs(t, err, ErrCaptureParse)
	assert.False(t, ok)

	var cpe *CaptureParseError
	require.ErrorAs(t, err, &cpe)
	assert.Equal(t, "-16", cpe.Token)
}

func TestMatcher_Captures(t *testing.T) {
	assert.Equal(t, 0, MustCompile("A(..)").Captures())
	assert.Equal(t, 2, MustCompile("A(??, ??)").Captures())
	assert.Equal(t, "A(..)", MustCompile("A(..)").Pattern())
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { MustCompile("A((") })
}
