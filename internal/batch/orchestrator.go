package batch

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/coral-mesh/irscan/internal/chain"
	"github.com/coral-mesh/irscan/pkg/version"
)

// Orchestrator dispatches candidates to a bounded number of workers.
type Orchestrator struct {
	exec     Executor
	workers  int
	reporter chain.Reporter
	logger   zerolog.Logger
}

// New creates an orchestrator running at most workers executions at once.
// Outcomes are replayed into reporter as they complete; a nil reporter
// discards them.
func New(exec Executor, workers int, reporter chain.Reporter, logger zerolog.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	if reporter == nil {
		reporter = chain.NopReporter{}
	}
	return &Orchestrator{
		exec:     exec,
		workers:  workers,
		reporter: reporter,
		logger:   logger.With().Str("component", "batch").Logger(),
	}
}

// Result is the outcome of a batch run.
type Result struct {
	RunID    string
	Outcomes []*chain.Outcome
	Duration time.Duration
}

// Failed returns the outcomes that recorded at least one failure.
func (r *Result) Failed() []*chain.Outcome {
	var out []*chain.Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Err combines every recorded failure, each prefixed with its binary.
func (r *Result) Err() error {
	var err error
	for _, o := range r.Outcomes {
		for _, f := range o.Failures {
			err = multierr.Append(err, fmt.Errorf("%s: %w", o.Binary, f))
		}
	}
	return err
}

// Run analyzes every candidate and waits for all of them. A failing binary
// never stops the others. The outcomes are sorted by binary path.
func (o *Orchestrator) Run(ctx context.Context, candidates []Candidate) (*Result, error) {
	res := &Result{RunID: uuid.New().String()}
	logger := o.logger.With().Str("run_id", res.RunID).Logger()
	start := time.Now()

	logger.Info().
		Int("binaries", len(candidates)).
		Int("workers", o.workers).
		Str("version", version.Short()).
		Msg("Starting scan")

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.workers)

	for _, c := range candidates {
		c := c
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			out, err := o.exec.Execute(ctx, c.Path)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				out = &chain.Outcome{Binary: c.Path}
				out.Fail(c.Path, chain.KindWorker, err)
			}
			if out.Binary == "" {
				out.Binary = c.Path
			}

			mu.Lock()
			defer mu.Unlock()
			res.Outcomes = append(res.Outcomes, out)
			chain.Replay(out, o.reporter)

			logger.Debug().
				Str("binary", c.Path).
				Bool("ok", out.OK()).
				Int("targets", len(out.Targets)).
				Msg("Binary done")
			return nil
		})
	}

	err := g.Wait()

	slices.SortFunc(res.Outcomes, func(a, b *chain.Outcome) int {
		return strings.Compare(a.Binary, b.Binary)
	})
	res.Duration = time.Since(start)

	logger.Info().
		Int("binaries", len(res.Outcomes)).
		Int("failed", len(res.Failed())).
		Dur("duration", res.Duration).
		Msg("Scan finished")

	return res, err
}
