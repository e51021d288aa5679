package image

import (
	"bytes"
	"crypto/sha256"
	"debug/elf"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/irscan/internal/ir"
)

// Native is the in-process image provider. It parses ELF and PE files and
// lifts their machine code itself.
type Native struct {
	cfg    *Config
	logger zerolog.Logger
	info   Info

	mu       sync.RWMutex
	closed   bool
	sections []*section
	funcs    []*ir.Function // Sorted by start address.
	byStart  map[uint64]*ir.Function
	refs     map[uint64][]uint64 // Data address -> referencing instructions, built on first search.
	cache    *liftCache
}

// Compile-time check.
var _ Image = (*Native)(nil)

// Open loads the binary at path.
func Open(path string, cfg *Config) (*Native, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat binary: %w", err)
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	if cfg.MaxFileSize > 0 && st.Size() > cfg.MaxFileSize {
		return nil, fmt.Errorf("%s exceeds maximum size of %d bytes", path, cfg.MaxFileSize)
	}

	// #nosec G304 -- candidate binaries come from the operator's search paths.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read binary: %w", err)
	}

	var ld *loaded
	switch {
	case bytes.HasPrefix(data, []byte(elf.ELFMAG)):
		ld, err = loadELF(data)
	case bytes.HasPrefix(data, []byte("MZ")):
		ld, err = loadPE(data)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return newNative(path, computeHash(data), ld, cfg)
}

func newNative(path, hash string, ld *loaded, cfg *Config) (*Native, error) {
	if _, err := newLifter(ld.arch, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	sort.Slice(ld.sections, func(i, j int) bool {
		return ld.sections[i].addr < ld.sections[j].addr
	})

	n := &Native{
		cfg:      cfg,
		logger:   cfg.Logger.With().Str("component", "image").Str("binary", path).Logger(),
		sections: ld.sections,
		byStart:  make(map[uint64]*ir.Function),
		cache:    newLiftCache(cfg.LiftCacheSize),
	}

	n.funcs = n.discoverFunctions(ld)
	for _, fn := range n.funcs {
		n.byStart[fn.Start] = fn
	}

	n.info = Info{
		Path:      path,
		Format:    ld.format,
		Arch:      ld.arch,
		Entry:     ld.entry,
		SHA256:    hash,
		Functions: len(n.funcs),
	}

	n.logger.Debug().
		Str("format", string(ld.format)).
		Str("arch", string(ld.arch)).
		Int("sections", len(n.sections)).
		Int("symbols", len(ld.symbols)).
		Int("functions", len(n.funcs)).
		Msg("Loaded binary")

	return n, nil
}

// computeHash computes the SHA256 hash of the file contents.
func computeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Info returns the identity of the binary.
func (n *Native) Info() Info {
	return n.info
}

// FunctionContaining returns the function whose range covers addr.
func (n *Native) FunctionContaining(addr uint64) (*ir.Function, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return nil, false
	}

	// Largest start <= addr.
	idx := sort.Search(len(n.funcs), func(i int) bool {
		return n.funcs[i].Start > addr
	})
	if idx == 0 {
		return nil, false
	}
	fn := n.funcs[idx-1]
	if !fn.Contains(addr) {
		return nil, false
	}
	return fn, true
}

// FunctionAt returns the function starting exactly at addr.
func (n *Native) FunctionAt(addr uint64) (*ir.Function, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return nil, false
	}
	fn, ok := n.byStart[addr]
	return fn, ok
}

// Functions returns every discovered function in address order.
func (n *Native) Functions() []*ir.Function {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*ir.Function(nil), n.funcs...)
}

// Instructions returns the lifted top-level instructions of fn.
func (n *Native) Instructions(fn *ir.Function) ([]*ir.Node, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return nil, ErrClosed
	}
	if fn == nil || n.byStart[fn.Start] != fn {
		return nil, ErrUnknownFunction
	}

	if instrs, ok := n.cache.Get(fn.Start); ok {
		return instrs, nil
	}

	instrs, _, err := n.lift(fn)
	if err != nil {
		return nil, err
	}
	n.cache.Put(fn.Start, instrs)
	return instrs, nil
}

// lift decodes fn's byte range with a fresh lifter.
func (n *Native) lift(fn *ir.Function) ([]*ir.Node, []insn, error) {
	code := n.bytes(fn.Start, fn.End)
	if code == nil {
		return nil, nil, fmt.Errorf("function %s is not mapped", fn)
	}
	l, err := newLifter(n.info.Arch, n.mapped)
	if err != nil {
		return nil, nil, err
	}
	nodes, insns := liftRange(l, code, fn.Start)
	return nodes, insns, nil
}

// bytes returns the mapped bytes in [start, end), clamped to the section
// holding start.
func (n *Native) bytes(start, end uint64) []byte {
	s := n.sectionAt(start)
	if s == nil {
		return nil
	}
	if end > s.end() || end < start {
		end = s.end()
	}
	return s.data[start-s.addr : end-s.addr]
}

func (n *Native) sectionAt(addr uint64) *section {
	idx := sort.Search(len(n.sections), func(i int) bool {
		return n.sections[i].addr > addr
	})
	if idx == 0 {
		return nil
	}
	s := n.sections[idx-1]
	if !s.contains(addr) {
		return nil
	}
	return s
}

// mapped reports whether addr lies in a loaded section.
func (n *Native) mapped(addr uint64) bool {
	return n.sectionAt(addr) != nil
}

// Close releases the loaded sections and caches.
func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	n.sections = nil
	n.refs = nil
	n.cache.Reset()
	return nil
}
