package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/irscan/internal/chain"
	"github.com/coral-mesh/irscan/internal/constants"
	"github.com/coral-mesh/irscan/internal/image"
	"github.com/coral-mesh/irscan/internal/retry"
)

// Executor analyzes one binary. An error means the worker itself failed
// and no outcome is available; failures inside the binary are part of the
// returned outcome.
type Executor interface {
	Execute(ctx context.Context, binary string) (*chain.Outcome, error)
}

// InProcess runs the driver inside the calling process.
type InProcess struct {
	Open   image.Opener
	Driver *chain.Driver
	Logger zerolog.Logger
}

// Execute implements Executor.
func (e *InProcess) Execute(ctx context.Context, binary string) (*chain.Outcome, error) {
	return Analyze(ctx, e.Open, e.Driver, binary, e.Logger)
}

// DefaultSpawnRetry retries process creation failures that clear up on
// their own.
var DefaultSpawnRetry = retry.Config{
	MaxRetries:     4,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     time.Second,
	Jitter:         0.2,
}

// Process runs each binary in a child process executing the hidden worker
// command of Executable.
type Process struct {
	// Executable is the irscan binary, usually os.Executable().
	Executable string
	// MarkersFile is the marker set handed to every worker.
	MarkersFile string
	// Args are extra worker flags, such as the log level.
	Args []string
	// Timeout kills a worker that runs longer. Zero waits forever.
	Timeout time.Duration
	// Retry controls how spawn failures are retried.
	Retry  retry.Config
	Logger zerolog.Logger
}

// Execute implements Executor.
func (p *Process) Execute(ctx context.Context, binary string) (*chain.Outcome, error) {
	runCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	args := append([]string{constants.WorkerCommand, "--binary", binary, "--markers", p.MarkersFile}, p.Args...)
	logger := p.Logger.With().Str("binary", binary).Logger()
	relay := &logRelay{logger: logger}

	var stdout bytes.Buffer
	var cmd *exec.Cmd
	cfg := p.Retry
	if cfg.MaxRetries == 0 {
		cfg = DefaultSpawnRetry
	}
	err := retry.Do(runCtx, cfg, func() error {
		//nolint:gosec // G204: the worker is this executable.
		cmd = exec.CommandContext(runCtx, p.Executable, args...)
		stdout.Reset()
		cmd.Stdout = &stdout
		cmd.Stderr = relay
		return cmd.Start()
	}, isTransientSpawnError)
	if err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	logger.Debug().Int("pid", cmd.Process.Pid).Msg("Worker started")

	startTime := time.Now()
	waitErr := cmd.Wait()
	relay.Flush()

	if waitErr != nil {
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("worker timed out after %s", p.Timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("worker failed: %w", waitErr)
	}

	var out chain.Outcome
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode worker outcome: %w", err)
	}

	logger.Debug().
		Dur("duration", time.Since(startTime)).
		Int("stdout_bytes", stdout.Len()).
		Msg("Worker finished")

	return &out, nil
}

func isTransientSpawnError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.ETXTBSY)
}

// logRelay re-logs the JSON lines a worker writes to stderr.
type logRelay struct {
	logger zerolog.Logger
	buf    []byte
}

func (w *logRelay) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.line(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush relays a trailing line without newline.
func (w *logRelay) Flush() {
	if len(w.buf) > 0 {
		w.line(w.buf)
		w.buf = nil
	}
}

func (w *logRelay) line(raw []byte) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		w.logger.Warn().Str("source", "worker").Msg(string(raw))
		return
	}

	level, _ := fields[zerolog.LevelFieldName].(string)
	msg, _ := fields[zerolog.MessageFieldName].(string)
	delete(fields, zerolog.LevelFieldName)
	delete(fields, zerolog.MessageFieldName)
	delete(fields, zerolog.TimestampFieldName)
	delete(fields, "binary")

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	w.logger.WithLevel(lvl).Fields(fields).Str("source", "worker").Msg(msg)
}
