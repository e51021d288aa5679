// Package resolver maps anchor strings and captured addresses to functions
// of a loaded image.
package resolver

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/irscan/internal/image"
	"github.com/coral-mesh/irscan/internal/ir"
)

var (
	// ErrMarkerNotFound marks an anchor without a usable occurrence.
	ErrMarkerNotFound = errors.New("marker not found")

	// ErrUnresolvedAddress marks a captured address that starts no function.
	ErrUnresolvedAddress = errors.New("address does not start a function")
)

// NotFoundError describes why a marker could not be resolved.
type NotFoundError struct {
	Marker string
	Reason string
	Err    error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("marker %q: %s: %v", e.Marker, e.Reason, e.Err)
	}
	return fmt.Sprintf("marker %q: %s", e.Marker, e.Reason)
}

// Is reports ErrMarkerNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrMarkerNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// UnresolvedAddressError is returned when a captured address is not the
// start of any known function.
type UnresolvedAddressError struct {
	Address uint64
}

func (e *UnresolvedAddressError) Error() string {
	return fmt.Sprintf("0x%x does not start a function", e.Address)
}

// Is reports ErrUnresolvedAddress.
func (e *UnresolvedAddressError) Is(target error) bool {
	return target == ErrUnresolvedAddress
}

// Options tunes marker resolution.
type Options struct {
	// TryAllOccurrences walks later occurrences when the first one lies
	// outside every function. Off, only the first occurrence is used.
	TryAllOccurrences bool
}

// Location is a resolved marker.
type Location struct {
	Marker string
	// Occurrence is the address of the occurrence that was used.
	Occurrence uint64
	// Occurrences is the number of occurrences found.
	Occurrences int
	Function    *ir.Function
}

// Resolver answers marker and address lookups against one image.
type Resolver struct {
	img    image.Image
	opts   Options
	logger zerolog.Logger
}

// New creates a resolver for img.
func New(img image.Image, opts Options, logger zerolog.Logger) *Resolver {
	return &Resolver{
		img:    img,
		opts:   opts,
		logger: logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve finds the function enclosing the first occurrence of marker.
func (r *Resolver) Resolve(marker string) (*Location, error) {
	addrs, err := r.img.FindText(marker)
	if err != nil {
		return nil, &NotFoundError{Marker: marker, Reason: "text search failed", Err: err}
	}
	if len(addrs) == 0 {
		return nil, &NotFoundError{Marker: marker, Reason: "no occurrence in binary"}
	}

	candidates := addrs[:1]
	if r.opts.TryAllOccurrences {
		candidates = addrs
	}

	for _, addr := range candidates {
		fn, ok := r.img.FunctionContaining(addr)
		if !ok {
			r.logger.Debug().
				Str("marker", marker).
				Str("occurrence", fmt.Sprintf("0x%x", addr)).
				Msg("Occurrence has no enclosing function")
			continue
		}
		return &Location{
			Marker:      marker,
			Occurrence:  addr,
			Occurrences: len(addrs),
			Function:    fn,
		}, nil
	}

	reason := fmt.Sprintf("first occurrence at 0x%x is outside every function", addrs[0])
	if r.opts.TryAllOccurrences && len(addrs) > 1 {
		reason = fmt.Sprintf("none of %d occurrences is inside a function", len(addrs))
	}
	return nil, &NotFoundError{Marker: marker, Reason: reason}
}

// At returns the function starting exactly at addr.
func (r *Resolver) At(addr uint64) (*ir.Function, error) {
	fn, ok := r.img.FunctionAt(addr)
	if !ok {
		return nil, &UnresolvedAddressError{Address: addr}
	}
	return fn, nil
}
