package markers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/irscan/internal/config"
	"github.com/coral-mesh/irscan/internal/template"
)

const sampleDoc = `
markers:
  zeta anchor:
    second:
      - "X86_CALL(CONST_PTR(??))"
    first:
      - "X86_JMP(CONST_PTR(??))"
      - "X86_CALL(CONST_PTR(??))"
  alpha anchor: {}
  beta anchor:
chains:
  second:
    nested: "X86_CALL(CONST_PTR(??))"
`

func TestParse_PreservesOrder(t *testing.T) {
	set, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	require.Len(t, set.Markers, 3)
	assert.Equal(t, "zeta anchor", set.Markers[0].Name)
	assert.Equal(t, "alpha anchor", set.Markers[1].Name)
	assert.Equal(t, "beta anchor", set.Markers[2].Name)

	targets := set.Markers[0].Targets
	require.Len(t, targets, 2)
	assert.Equal(t, "second", targets[0].Name)
	assert.Equal(t, "first", targets[1].Name)
	assert.Equal(t, []string{"X86_JMP(CONST_PTR(??))", "X86_CALL(CONST_PTR(??))"}, targets[1].Patterns)

	assert.True(t, set.Markers[1].LocateOnly())
	assert.True(t, set.Markers[2].LocateOnly())

	chained, ok := set.ChainFor("second")
	require.True(t, ok)
	assert.Equal(t, []template.Target{{Name: "nested", Patterns: []string{"X86_CALL(CONST_PTR(??))"}}}, chained)

	_, ok = set.ChainFor("first")
	assert.False(t, ok)
	assert.Equal(t, 4, set.PatternCount())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		errMsg string
	}{
		{
			name:   "duplicate marker",
			doc:    "markers:\n  a: {}\n  a: {}\n",
			errMsg: `duplicate marker "a"`,
		},
		{
			name:   "duplicate target",
			doc:    "markers:\n  a:\n    t: [\"X\"]\n    t: [\"Y\"]\n",
			errMsg: `duplicate target "t"`,
		},
		{
			name:   "unknown key",
			doc:    "anchors: {}\n",
			errMsg: `unknown key "anchors"`,
		},
		{
			name:   "markers not a mapping",
			doc:    "markers: [a, b]\n",
			errMsg: "markers must be a mapping",
		},
		{
			name:   "nested pattern list",
			doc:    "markers:\n  a:\n    t:\n      - [X]\n",
			errMsg: "patterns must be strings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	set, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, set.Markers)
}

func TestSaveLoad_RoundTripKeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.yaml")
	orig := Default()
	orig.Chains = []Chain{{
		Target:  "CL_DownloadUpdate",
		Targets: []template.Target{{Name: "inner", Patterns: []string{`X86_CALL(CONST_PTR(??))`}}},
	}}

	require.NoError(t, Save(path, orig))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, orig, loaded)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		set    *Set
		errMsg string
	}{
		{
			name: "default set",
			set:  Default(),
		},
		{
			name:   "no markers",
			set:    &Set{},
			errMsg: "at least one marker is required",
		},
		{
			name:   "empty marker text",
			set:    &Set{Markers: []Marker{{Name: ""}}},
			errMsg: "marker text is required",
		},
		{
			name: "target without patterns",
			set: &Set{Markers: []Marker{{
				Name:    "m",
				Targets: []template.Target{{Name: "t"}},
			}}},
			errMsg: "at least one pattern is required",
		},
		{
			name: "unbalanced pattern",
			set: &Set{Markers: []Marker{{
				Name:    "m",
				Targets: []template.Target{{Name: "t", Patterns: []string{"OP(??"}}},
			}}},
			errMsg: "unclosed",
		},
		{
			name: "duplicate target across markers",
			set: &Set{Markers: []Marker{
				{Name: "m1", Targets: []template.Target{{Name: "t", Patterns: []string{"A(??)"}}}},
				{Name: "m2", Targets: []template.Target{{Name: "t", Patterns: []string{"B(??)"}}}},
			}},
			errMsg: `target "t" is already declared`,
		},
		{
			name: "chain on undeclared target",
			set: &Set{
				Markers: []Marker{{Name: "m"}},
				Chains: []Chain{{
					Target:  "ghost",
					Targets: []template.Target{{Name: "t", Patterns: []string{"A(??)"}}},
				}},
			},
			errMsg: `undeclared target "ghost"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs *config.MultiValidationError
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDefault(t *testing.T) {
	set := Default()

	require.Len(t, set.Markers, 2)
	assert.Equal(t, UpdateCheckMarker, set.Markers[0].Name)
	assert.Equal(t, SearchPathsMarker, set.Markers[1].Name)
	assert.True(t, set.Markers[1].LocateOnly())

	targets := set.Markers[0].Targets
	require.Len(t, targets, 2)
	assert.Equal(t, "CL_GetDownloadQueueSize", targets[0].Name)
	assert.Equal(t, "CL_DownloadUpdate", targets[1].Name)
	assert.Len(t, targets[1].Patterns, 2)

	m, ok := set.Marker(UpdateCheckMarker)
	require.True(t, ok)
	assert.Equal(t, set.Markers[0], m)
}

func TestDefault_MatchesDecompiledShapes(t *testing.T) {
	set := Default()
	targets := set.Markers[0].Targets
	cache := template.NewCache()
	require.NoError(t, cache.Prepare(targets))

	body := "HLIL_VAR_INIT(HLIL_VAR(rax), HLIL_CONST(0))\n" +
		"HLIL_IF(HLIL_CMP_E(HLIL_CALL(HLIL_CONST_PTR(4198400), ()), HLIL_CONST(0)))\n" +
		"HLIL_ASSIGN(HLIL_VAR(var_18), HLIL_CALL(HLIL_CONST_PTR(4202496), ()))"

	matches, err := template.ExtractAll(body, targets, cache)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, uint64(4198400), matches[0].Address)
	assert.Equal(t, 1, matches[1].PatternIndex)
	assert.Equal(t, uint64(4202496), matches[1].Address)
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"markers"`)
	assert.Contains(t, string(data), `"chains"`)
	assert.Contains(t, string(data), "irscan marker set")
}
