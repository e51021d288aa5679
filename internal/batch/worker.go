package batch

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/coral-mesh/irscan/internal/chain"
	"github.com/coral-mesh/irscan/internal/errors"
	"github.com/coral-mesh/irscan/internal/image"
)

// WorkerCount returns requested when positive, otherwise the number of
// logical CPUs minus one. The result is never below one.
func WorkerCount(requested int) int {
	if requested > 0 {
		return requested
	}
	n, err := cpu.Counts(true)
	if err != nil || n <= 1 {
		return 1
	}
	return n - 1
}

// Analyze opens binary, runs the driver over it and releases the image.
// Failures of the binary itself are recorded in the outcome; the error is
// only set when ctx ended the run.
func Analyze(ctx context.Context, open image.Opener, driver *chain.Driver, binary string, logger zerolog.Logger) (*chain.Outcome, error) {
	img, err := open(binary)
	if err != nil {
		out := &chain.Outcome{Binary: binary}
		out.Fail(binary, chain.KindImage, err)
		logger.Warn().Err(err).Str("binary", binary).Msg("Failed to open binary")
		return out, nil
	}
	defer errors.DeferClose(logger, img, "failed to close image")

	out, err := driver.Run(ctx, img)
	if err != nil && ctx.Err() != nil {
		return out, ctx.Err()
	}
	// Any other error is already recorded in the outcome.
	return out, nil
}
