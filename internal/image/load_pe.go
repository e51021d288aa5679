package image

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
)

const (
	// COFF symbol type for functions (DT_FUNCTION << 4).
	coffTypeFunction = 0x20

	exportDirSize     = 40
	runtimeFuncSize64 = 12
	runtimeFuncSizeA  = 8
)

func loadPE(data []byte) (*loaded, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse PE: %w", err)
	}
	defer func() { _ = f.Close() }()

	ld := &loaded{format: FormatPE}
	switch f.Machine {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		ld.arch = ArchAMD64
	case pe.IMAGE_FILE_MACHINE_I386:
		ld.arch = Arch386
	case pe.IMAGE_FILE_MACHINE_ARM64:
		ld.arch = ArchARM64
	default:
		return nil, fmt.Errorf("%w: PE machine %#x", ErrUnsupportedArch, f.Machine)
	}

	var (
		imageBase uint64
		dirs      []pe.DataDirectory
	)
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		imageBase = uint64(oh.ImageBase)
		ld.entry = imageBase + uint64(oh.AddressOfEntryPoint)
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	case *pe.OptionalHeader64:
		imageBase = oh.ImageBase
		ld.entry = imageBase + uint64(oh.AddressOfEntryPoint)
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	default:
		return nil, fmt.Errorf("parse PE: missing optional header")
	}

	for _, s := range f.Sections {
		d, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("read section %s: %w", s.Name, err)
		}
		if s.VirtualSize > 0 && int(s.VirtualSize) < len(d) {
			d = d[:s.VirtualSize]
		}
		if len(d) == 0 {
			continue
		}
		ld.sections = append(ld.sections, &section{
			name: s.Name,
			addr: imageBase + uint64(s.VirtualAddress),
			data: d,
			exec: s.Characteristics&(pe.IMAGE_SCN_CNT_CODE|pe.IMAGE_SCN_MEM_EXECUTE) != 0,
		})
	}

	for _, sym := range f.Symbols {
		if sym.Type != coffTypeFunction || sym.SectionNumber <= 0 || int(sym.SectionNumber) > len(f.Sections) {
			continue
		}
		sec := f.Sections[sym.SectionNumber-1]
		ld.symbols = append(ld.symbols, symbol{
			name: sym.Name,
			addr: imageBase + uint64(sec.VirtualAddress) + uint64(sym.Value),
		})
	}

	if len(dirs) > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
		ld.symbols = append(ld.symbols, peExports(ld, imageBase, dirs[pe.IMAGE_DIRECTORY_ENTRY_EXPORT])...)
	}
	if len(dirs) > pe.IMAGE_DIRECTORY_ENTRY_EXCEPTION {
		ld.symbols = append(ld.symbols, peRuntimeFunctions(ld, imageBase, dirs[pe.IMAGE_DIRECTORY_ENTRY_EXCEPTION])...)
	}

	return ld, nil
}

// peExports returns named exports that point at code. Forwarders point back
// into the export directory and are skipped.
func peExports(ld *loaded, imageBase uint64, dir pe.DataDirectory) []symbol {
	if dir.VirtualAddress == 0 || dir.Size < exportDirSize {
		return nil
	}
	hdr := ld.read(imageBase+uint64(dir.VirtualAddress), exportDirSize)
	if hdr == nil {
		return nil
	}

	numFuncs := binary.LittleEndian.Uint32(hdr[20:])
	numNames := binary.LittleEndian.Uint32(hdr[24:])
	funcsRVA := binary.LittleEndian.Uint32(hdr[28:])
	namesRVA := binary.LittleEndian.Uint32(hdr[32:])
	ordsRVA := binary.LittleEndian.Uint32(hdr[36:])

	funcs := ld.read(imageBase+uint64(funcsRVA), int(numFuncs)*4)
	names := ld.read(imageBase+uint64(namesRVA), int(numNames)*4)
	ords := ld.read(imageBase+uint64(ordsRVA), int(numNames)*2)
	if funcs == nil || names == nil || ords == nil {
		return nil
	}

	var out []symbol
	for i := uint32(0); i < numNames; i++ {
		ord := uint32(binary.LittleEndian.Uint16(ords[i*2:]))
		if ord >= numFuncs {
			continue
		}
		rva := binary.LittleEndian.Uint32(funcs[ord*4:])
		if rva >= dir.VirtualAddress && rva < dir.VirtualAddress+dir.Size {
			continue
		}
		addr := imageBase + uint64(rva)
		if !ld.isCode(addr) {
			continue
		}
		nameRVA := binary.LittleEndian.Uint32(names[i*4:])
		out = append(out, symbol{name: ld.cString(imageBase + uint64(nameRVA)), addr: addr})
	}
	return out
}

// peRuntimeFunctions returns the function starts recorded in the exception
// directory. On x64 the entries carry the end address as well.
func peRuntimeFunctions(ld *loaded, imageBase uint64, dir pe.DataDirectory) []symbol {
	if dir.VirtualAddress == 0 || dir.Size == 0 {
		return nil
	}

	entrySize := runtimeFuncSize64
	switch ld.arch {
	case ArchAMD64:
	case ArchARM64:
		entrySize = runtimeFuncSizeA
	default:
		return nil
	}

	table := ld.read(imageBase+uint64(dir.VirtualAddress), int(dir.Size))
	if table == nil {
		return nil
	}

	var out []symbol
	for off := 0; off+entrySize <= len(table); off += entrySize {
		begin := binary.LittleEndian.Uint32(table[off:])
		if begin == 0 {
			continue
		}
		sym := symbol{addr: imageBase + uint64(begin)}
		if entrySize == runtimeFuncSize64 {
			end := binary.LittleEndian.Uint32(table[off+4:])
			if end > begin {
				sym.size = uint64(end - begin)
			}
		}
		out = append(out, sym)
	}
	return out
}

// read returns n bytes mapped at addr, or nil when they are not all mapped.
func (ld *loaded) read(addr uint64, n int) []byte {
	if n < 0 {
		return nil
	}
	for _, s := range ld.sections {
		if !s.contains(addr) {
			continue
		}
		off := addr - s.addr
		if off+uint64(n) > uint64(len(s.data)) {
			return nil
		}
		return s.data[off : off+uint64(n)]
	}
	return nil
}

// cString reads a NUL-terminated string at addr.
func (ld *loaded) cString(addr uint64) string {
	for _, s := range ld.sections {
		if !s.contains(addr) {
			continue
		}
		rest := s.data[addr-s.addr:]
		if i := bytes.IndexByte(rest, 0); i >= 0 {
			rest = rest[:i]
		}
		return string(rest)
	}
	return ""
}

func (ld *loaded) isCode(addr uint64) bool {
	for _, s := range ld.sections {
		if s.exec && s.contains(addr) {
			return true
		}
	}
	return false
}
