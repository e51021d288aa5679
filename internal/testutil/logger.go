package testutil

import (
	"testing"

	"github.com/rs/zerolog"
)

// NewTestLogger returns a logger that writes through t.Log at warn level
// and above, so failures come with the warnings that preceded them while
// passing tests stay quiet under -v.
func NewTestLogger(t testing.TB) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()
}
