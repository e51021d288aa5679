// Package chain drives marker resolution and template matching over one
// binary, following captured addresses into further functions.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/irscan/internal/image"
	"github.com/coral-mesh/irscan/internal/ir"
	"github.com/coral-mesh/irscan/internal/markers"
	"github.com/coral-mesh/irscan/internal/resolver"
	"github.com/coral-mesh/irscan/internal/template"
)

// Driver runs a marker set against images. A Driver holds no per-image
// state and can be reused.
type Driver struct {
	set      *markers.Set
	opts     resolver.Options
	reporter Reporter
	logger   zerolog.Logger
}

// NewDriver creates a driver for set. A nil reporter discards events.
func NewDriver(set *markers.Set, opts resolver.Options, reporter Reporter, logger zerolog.Logger) *Driver {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Driver{
		set:      set,
		opts:     opts,
		reporter: reporter,
		logger:   logger.With().Str("component", "chain").Logger(),
	}
}

// run is the state of one Run call.
type run struct {
	img     image.Image
	binary  string
	res     *resolver.Resolver
	cache   *template.Cache
	outcome *Outcome
	visited map[visit]bool
	logger  zerolog.Logger
}

// visit is a chain expansion: a target's chained templates run against the
// function it resolved to.
type visit struct {
	target string
	start  uint64
}

// Run processes every marker of the set against img in order.
//
// A missing marker or an unresolved address is recorded and processing
// continues. A template that does not compile, a capture that does not
// parse, or an image failure stops processing; the returned outcome holds
// what was found up to that point and the error is also returned.
func (d *Driver) Run(ctx context.Context, img image.Image) (*Outcome, error) {
	info := img.Info()
	r := &run{
		img:    img,
		binary: info.Path,
		res:    resolver.New(img, d.opts, d.logger),
		cache:  template.NewCache(),
		outcome: &Outcome{
			Binary: info.Path,
			SHA256: info.SHA256,
			Format: string(info.Format),
			Arch:   string(info.Arch),
		},
		visited: make(map[visit]bool),
		logger:  d.logger.With().Str("binary", info.Path).Logger(),
	}

	for _, t := range d.set.AllTargets() {
		if err := r.cache.Prepare([]template.Target{t}); err != nil {
			d.fail(r, t.Name, KindPatternCompile, err)
			return r.outcome, err
		}
	}

	for _, m := range d.set.Markers {
		if err := ctx.Err(); err != nil {
			return r.outcome, err
		}
		if err := d.runMarker(ctx, r, m); err != nil {
			return r.outcome, err
		}
	}

	r.logger.Debug().
		Int("markers", len(r.outcome.Markers)).
		Int("targets", len(r.outcome.Targets)).
		Int("failures", len(r.outcome.Failures)).
		Msg("Binary processed")

	return r.outcome, nil
}

func (d *Driver) runMarker(ctx context.Context, r *run, m markers.Marker) error {
	loc, err := r.res.Resolve(m.Name)
	if err != nil {
		d.fail(r, m.Name, KindMarkerNotFound, err)
		return nil
	}

	result := MarkerResult{
		Marker:     m.Name,
		Function:   loc.Function.Name,
		Address:    loc.Function.Start,
		Occurrence: loc.Occurrence,
	}

	if m.LocateOnly() {
		r.outcome.Markers = append(r.outcome.Markers, result)
		d.reporter.Located(r.binary, result)
		return nil
	}

	text, err := d.canonical(r, loc.Function)
	if err != nil {
		d.fail(r, m.Name, KindImage, err)
		return err
	}
	result.Fingerprint = fmt.Sprintf("%016x", ir.Fingerprint(text))
	r.outcome.Markers = append(r.outcome.Markers, result)
	d.reporter.Located(r.binary, result)

	r.logger.Debug().
		Str("marker", m.Name).
		Str("function", loc.Function.String()).
		Str("fingerprint", result.Fingerprint).
		Msg("Marker located")

	return d.match(ctx, r, m.Name, loc.Function, text, m.Targets, 0)
}

// match runs targets against fn and follows every resolved capture into
// its chained targets.
func (d *Driver) match(ctx context.Context, r *run, marker string, fn *ir.Function, text string, targets []template.Target, depth int) error {
	matches, err := template.ExtractAll(text, targets, r.cache)
	if err != nil {
		name := fn.Name
		var cpe *template.CaptureParseError
		if errors.As(err, &cpe) {
			name = cpe.Target
		}
		d.fail(r, name, KindCaptureParse, err)
		return err
	}

	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}

		tr := TargetResult{
			Target:       m.Target,
			Marker:       marker,
			Parent:       fn.Name,
			Depth:        depth,
			Pattern:      m.Pattern,
			PatternIndex: m.PatternIndex,
			Address:      m.Address,
			HasCapture:   m.HasCapture,
		}
		d.reporter.Matched(r.binary, tr)

		if !m.HasCapture {
			r.outcome.Targets = append(r.outcome.Targets, tr)
			continue
		}

		target, err := r.res.At(m.Address)
		if err != nil {
			r.outcome.Targets = append(r.outcome.Targets, tr)
			d.fail(r, m.Target, KindUnresolvedAddress, err)
			continue
		}

		tr.Resolved = true
		tr.Function = target.Name
		r.outcome.Targets = append(r.outcome.Targets, tr)
		d.reporter.Resolved(r.binary, tr)

		chained, ok := d.set.ChainFor(m.Target)
		if !ok {
			continue
		}
		key := visit{target: m.Target, start: target.Start}
		if r.visited[key] {
			r.logger.Debug().
				Str("target", m.Target).
				Str("function", target.String()).
				Msg("Chain already followed")
			continue
		}
		r.visited[key] = true

		sub, err := d.canonical(r, target)
		if err != nil {
			d.fail(r, m.Target, KindImage, err)
			return err
		}
		if err := d.match(ctx, r, marker, target, sub, chained, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) canonical(r *run, fn *ir.Function) (string, error) {
	instrs, err := r.img.Instructions(fn)
	if err != nil {
		return "", fmt.Errorf("lift %s: %w", fn, err)
	}
	return ir.CanonicalInstructions(instrs), nil
}

func (d *Driver) fail(r *run, name string, kind FailureKind, err error) {
	f := r.outcome.Fail(name, kind, err)
	d.reporter.Failed(r.binary, f)
	r.logger.Warn().
		Str("name", name).
		Str("kind", string(kind)).
		Err(err).
		Msg("Failure recorded")
}
