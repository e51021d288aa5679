// Package errors provides cleanup helpers that log instead of dropping errors.
package errors

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
)

// DeferClose closes closer and logs a failure at warn level with msg.
// Opened binary images are closed this way in defer statements.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// DeferRemove removes a temporary file with logging.
// A file that is already gone is not an error.
func DeferRemove(logger zerolog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Str("path", path).Msg("failed to remove temporary file")
	}
}
