package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/irscan/internal/image/imagetest"
	"github.com/coral-mesh/irscan/internal/ir"
	"github.com/coral-mesh/irscan/internal/testutil"
)

func newFake() *imagetest.Fake {
	img := imagetest.New("libclient.so")
	img.AddFunction("update_check", 0x1000, 0x1100, ir.NewNode("X86_RET"))
	img.AddFunction("download", 0x2000, 0x2080, ir.NewNode("X86_RET"))
	return img
}

func TestResolve_FirstOccurrence(t *testing.T) {
	img := newFake()
	img.AddText("CheckUpdating", 0x2010, 0x1040)

	r := New(img, Options{}, testutil.NewTestLogger(t))
	loc, err := r.Resolve("CheckUpdating")
	require.NoError(t, err)

	assert.Equal(t, uint64(0x1040), loc.Occurrence, "lowest address wins")
	assert.Equal(t, "update_check", loc.Function.Name)
	assert.Equal(t, 2, loc.Occurrences)
}

func TestResolve_NoOccurrence(t *testing.T) {
	r := New(newFake(), Options{}, testutil.NewTestLogger(t))

	_, err := r.Resolve("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMarkerNotFound))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Marker)
	assert.Contains(t, err.Error(), "no occurrence")
}

func TestResolve_OutsideFunction(t *testing.T) {
	img := newFake()
	img.AddText("orphan", 0x9000)

	r := New(img, Options{}, testutil.NewTestLogger(t))
	_, err := r.Resolve("orphan")
	require.ErrorIs(t, err, ErrMarkerNotFound)
	assert.Contains(t, err.Error(), "first occurrence at 0x9000 is outside every function")
}

func TestResolve_TryAllOccurrences(t *testing.T) {
	img := newFake()
	img.AddText("shared", 0x500, 0x2040)

	r := New(img, Options{}, testutil.NewTestLogger(t))
	_, err := r.Resolve("shared")
	require.ErrorIs(t, err, ErrMarkerNotFound, "only the first occurrence is used by default")

	r = New(img, Options{TryAllOccurrences: true}, testutil.NewTestLogger(t))
	loc, err := r.Resolve("shared")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x2040), loc.Occurrence)
	assert.Equal(t, "download", loc.Function.Name)

	img.AddText("nowhere", 0x500, 0x600)
	_, err = r.Resolve("nowhere")
	require.ErrorIs(t, err, ErrMarkerNotFound)
	assert.Contains(t, err.Error(), "none of 2 occurrences")
}

func TestResolve_SearchError(t *testing.T) {
	img := newFake()
	require.NoError(t, img.Close())

	r := New(img, Options{}, testutil.NewTestLogger(t))
	_, err := r.Resolve("anything")
	require.ErrorIs(t, err, ErrMarkerNotFound)
	assert.Contains(t, err.Error(), "text search failed")
}

func TestAt(t *testing.T) {
	r := New(newFake(), Options{}, testutil.NewTestLogger(t))

	fn, err := r.At(0x2000)
	require.NoError(t, err)
	assert.Equal(t, "download", fn.Name)

	_, err = r.At(0x2004)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedAddress))

	var ua *UnresolvedAddressError
	require.ErrorAs(t, err, &ua)
	assert.Equal(t, uint64(0x2004), ua.Address)
	assert.Equal(t, "0x2004 does not start a function", err.Error())
}
