// Package imagetest provides an in-memory image for tests of the matching
// pipeline.
package imagetest

import (
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/coral-mesh/irscan/internal/image"
	"github.com/coral-mesh/irscan/internal/ir"
)

// Fake is an in-memory image.Image. Functions and text occurrences are
// declared up front; every query is answered from them.
type Fake struct {
	mu     sync.Mutex
	info   image.Info
	funcs  []*ir.Function
	instrs map[uint64][]*ir.Node
	texts  map[string][]uint64
	closed bool
	closes int
}

var _ image.Image = (*Fake)(nil)

// New returns an empty fake for path.
func New(path string) *Fake {
	return &Fake{
		info: image.Info{
			Path:   path,
			Format: image.FormatELF,
			Arch:   image.ArchAMD64,
			SHA256: fmt.Sprintf("%064x", len(path)),
		},
		instrs: make(map[uint64][]*ir.Node),
		texts:  make(map[string][]uint64),
	}
}

// AddFunction declares a function covering [start, end) with the given
// top-level instructions.
func (f *Fake) AddFunction(name string, start, end uint64, instrs ...*ir.Node) *ir.Function {
	f.mu.Lock()
	defer f.mu.Unlock()

	fn := &ir.Function{Start: start, End: end, Name: name}
	f.funcs = append(f.funcs, fn)
	slices.SortFunc(f.funcs, func(a, b *ir.Function) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	f.instrs[start] = instrs
	f.info.Functions = len(f.funcs)
	return fn
}

// AddText declares occurrences of text.
func (f *Fake) AddText(text string, addrs ...uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts[text] = append(f.texts[text], addrs...)
}

// Closes returns how many times Close was called.
func (f *Fake) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *Fake) Info() image.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info
}

func (f *Fake) FindText(text string) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, image.ErrClosed
	}
	out := slices.Clone(f.texts[text])
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (f *Fake) FunctionContaining(addr uint64) (*ir.Function, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, false
	}
	for i := len(f.funcs) - 1; i >= 0; i-- {
		if f.funcs[i].Contains(addr) {
			return f.funcs[i], true
		}
	}
	return nil, false
}

func (f *Fake) FunctionAt(addr uint64) (*ir.Function, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, false
	}
	for _, fn := range f.funcs {
		if fn.Start == addr {
			return fn, true
		}
	}
	return nil, false
}

func (f *Fake) Instructions(fn *ir.Function) ([]*ir.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, image.ErrClosed
	}
	instrs, ok := f.instrs[fn.Start]
	if !ok {
		return nil, image.ErrUnknownFunction
	}
	return instrs, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closes++
	return nil
}

// Registry serves fakes by path.
type Registry map[string]*Fake

// Open implements image.Opener.
func (r Registry) Open(path string) (image.Image, error) {
	f, ok := r[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	return f, nil
}
