package image

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
)

// section is one allocated section mapped at its virtual address.
type section struct {
	name string
	addr uint64
	data []byte
	exec bool
}

func (s *section) end() uint64 {
	return s.addr + uint64(len(s.data))
}

func (s *section) contains(addr uint64) bool {
	return addr >= s.addr && addr < s.end()
}

// symbol is a function symbol. Size zero means unknown.
type symbol struct {
	name string
	addr uint64
	size uint64
}

// loaded is the format-independent view of a parsed binary.
type loaded struct {
	format   Format
	arch     Arch
	entry    uint64
	sections []*section
	symbols  []symbol
}

func loadELF(data []byte) (*loaded, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse ELF: %w", err)
	}
	defer func() { _ = f.Close() }()

	ld := &loaded{format: FormatELF, entry: f.Entry}
	switch f.Machine {
	case elf.EM_X86_64:
		ld.arch = ArchAMD64
	case elf.EM_386:
		ld.arch = Arch386
	case elf.EM_AARCH64:
		ld.arch = ArchARM64
	default:
		return nil, fmt.Errorf("%w: ELF machine %s", ErrUnsupportedArch, f.Machine)
	}

	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Type == elf.SHT_NOBITS || s.Size == 0 {
			continue
		}
		d, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("read section %s: %w", s.Name, err)
		}
		ld.sections = append(ld.sections, &section{
			name: s.Name,
			addr: s.Addr,
			data: d,
			exec: s.Flags&elf.SHF_EXECINSTR != 0,
		})
	}

	// The static table comes first so its names win over dynamic aliases.
	for _, read := range []func() ([]elf.Symbol, error){f.Symbols, f.DynamicSymbols} {
		syms, err := read()
		if err != nil {
			if errors.Is(err, elf.ErrNoSymbols) {
				continue
			}
			return nil, fmt.Errorf("read ELF symbols: %w", err)
		}
		for _, sym := range syms {
			if elf.ST_TYPE(sym.Info) != elf.STT_FUNC || sym.Value == 0 || sym.Section == elf.SHN_UNDEF {
				continue
			}
			ld.symbols = append(ld.symbols, symbol{name: sym.Name, addr: sym.Value, size: sym.Size})
		}
	}

	return ld, nil
}
