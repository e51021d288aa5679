package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const steamText = `HLIL_VAR_INIT(HLIL_VAR(var_10), HLIL_CONST(0))
HLIL_IF(HLIL_CMP_E(HLIL_CALL(HLIL_CONST_PTR(4198400), ()), HLIL_CONST(0)))
HLIL_ASSIGN(HLIL_VAR(rax), HLIL_CALL(HLIL_CONST_PTR(4198656), ()))
HLIL_RET(())`

func TestFindFirst_FirstMatchWins(t *testing.T) {
	target := Target{
		Name: "CL_DownloadUpdate",
		Patterns: []string{
			"HLIL_ASSIGN(HLIL_VAR(..), HLIL_CALL(HLIL_CONST_PTR(??), ()))",
			"HLIL_CALL(HLIL_CONST_PTR(??), ())",
		},
	}

	m, ok, err := FindFirst(steamText, target, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, m.PatternIndex)
	assert.Equal(t, target.Patterns[0], m.Pattern)
	assert.Equal(t, uint64(4198656), m.Address)

	// Swapping the alternatives attributes the match to the new first one.
	target.Patterns[0], target.Patterns[1] = target.Patterns[1], target.Patterns[0]
	m, ok, err = FindFirst(steamText, target, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, m.PatternIndex)
	assert.Equal(t, uint64(4198400), m.Address)
}

func TestFindFirst_FallsThroughToLaterAlternative(t *testing.T) {
	target := Target{
		Name: "CL_DownloadUpdate",
		Patterns: []string{
			"HLIL_IF(HLIL_AND(HLIL_CMP_NE(HLIL_VAR(..), HLIL_CONST(0)), HLIL_CMP_E(HLIL_CALL(HLIL_CONST_PTR(??), ()), HLIL_CONST(0))))",
			"HLIL_ASSIGN(HLIL_VAR(..), HLIL_CALL(HLIL_CONST_PTR(??), ()))",
		},
	}

	m, ok, err := FindFirst(steamText, target, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, m.PatternIndex)
	assert.Equal(t, uint64(4198656), m.Address)
}

func TestExtractAll(t *testing.T) {
	targets := []Target{
		{Name: "CL_GetDownloadQueueSize", Patterns: []string{"HLIL_IF(HLIL_CMP_E(HLIL_CALL(HLIL_CONST_PTR(??), ()), HLIL_CONST(0)))"}},
		{Name: "Missing", Patterns: []string{"HLIL_WHILE(..)", "HLIL_GOTO(??)"}},
		{Name: "CL_DownloadUpdate", Patterns: []string{"HLIL_ASSIGN(HLIL_VAR(..), HLIL_CALL(HLIL_CONST_PTR(??), ()))"}},
	}

	cache := NewCache()
	matches, err := ExtractAll(steamText, targets, cache)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "CL_GetDownloadQueueSize", matches[0].Target)
	assert.Equal(t, uint64(4198400), matches[0].Address)
	assert.True(t, matches[0].HasCapture)
	assert.Equal(t, "CL_DownloadUpdate", matches[1].Target)
	assert.Equal(t, uint64(4198656), matches[1].Address)

	// Every alternative was compiled exactly once.
	assert.Equal(t, 4, cache.Len())
	_, err = ExtractAll(steamText, targets, cache)
	require.NoError(t, err)
	assert.Equal(t, 4, cache.Len())
}

func TestExtractAll_CaptureParseErrorAborts(t *testing.T) {
	targets := []Target{
		{Name: "Bad", Patterns: []string{"HLIL_VAR(??)"}},
		{Name: "Good", Patterns: []string{"HLIL_CONST_PTR(??)"}},
	}

	matches, err := ExtractAll(steamText, targets, nil)
	require.Error(t, err)
	assert.Empty(t, matches)
	assert.ErrorIs(t, err, ErrCaptureParse)

	var cpe *CaptureParseError
	require.ErrorAs(t, err, &cpe)
	assert.Equal(t, "Bad", cpe.Target)
	assert.Equal(t, "var_10", cpe.Token)
}

func TestCache_Prepare(t *testing.T) {
	cache := NewCache()
	err := cache.Prepare([]Target{
		{Name: "ok", Patterns: []string{"A(??)"}},
		{Name: "broken", Patterns: []string{"A(??"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompile)
	assert.Contains(t, err.Error(), "target broken")
}
