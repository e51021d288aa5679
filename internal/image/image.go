// Package image loads compiled binaries and serves the queries the matching
// pipeline needs: text search, function lookup by address, and lifted
// instruction sequences.
//
// An Image is owned by the single worker processing its binary and is not
// shared. Release it with Close once every marker has been processed.
package image

import (
	"errors"

	"github.com/coral-mesh/irscan/internal/ir"
)

// Format is the container format of a binary.
type Format string

const (
	// FormatELF is an ELF shared object or executable.
	FormatELF Format = "elf"
	// FormatPE is a PE/COFF DLL or executable.
	FormatPE Format = "pe"
)

// Arch is the instruction set of a binary.
type Arch string

const (
	ArchAMD64 Arch = "amd64"
	Arch386   Arch = "386"
	ArchARM64 Arch = "arm64"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither ELF nor PE.
	ErrUnsupportedFormat = errors.New("unsupported binary format")

	// ErrUnsupportedArch is returned for machine types without a lifter.
	ErrUnsupportedArch = errors.New("unsupported architecture")

	// ErrClosed is returned by every query on a closed image.
	ErrClosed = errors.New("image is closed")

	// ErrUnknownFunction is returned when a function does not belong to the image.
	ErrUnknownFunction = errors.New("function does not belong to this image")
)

// Info identifies a loaded binary.
type Info struct {
	Path      string `json:"path"`
	Format    Format `json:"format"`
	Arch      Arch   `json:"arch"`
	Entry     uint64 `json:"entry"`
	SHA256    string `json:"sha256"`
	Functions int    `json:"functions"`
}

// Image is a loaded binary.
type Image interface {
	// Info returns the identity of the binary.
	Info() Info

	// FindText returns every address at which text occurs, in ascending
	// order. Data occurrences referenced by code are reported as the
	// referencing instruction addresses.
	FindText(text string) ([]uint64, error)

	// FunctionContaining returns the function whose range covers addr.
	FunctionContaining(addr uint64) (*ir.Function, bool)

	// FunctionAt returns the function starting exactly at addr.
	FunctionAt(addr uint64) (*ir.Function, bool)

	// Instructions returns the top-level lifted instructions of fn in
	// address order.
	Instructions(fn *ir.Function) ([]*ir.Node, error)

	// Close releases the image. Later queries fail with ErrClosed.
	Close() error
}

// Opener opens the binary at path.
type Opener func(path string) (Image, error)
