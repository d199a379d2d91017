// Package elfobj loads ELF32/ELF64 images, little- or big-endian, via the
// standard library's debug/elf and debug/dwarf packages -- the same
// approach the teacher repository's own elf_shim.go takes (wrapping
// *elf.File and calling ef.DWARF() directly) rather than a third-party ELF
// parser.
package elfobj

import (
	"bytes"
	"debug/elf"

	"github.com/ExPixel/godisasm/curated"
	"github.com/ExPixel/godisasm/logger"
	"github.com/ExPixel/godisasm/objfile"
	"github.com/ExPixel/godisasm/symbol"
)

// debugSections is scanned to decide whether DWARF parsing should be
// attempted at all.
var debugSections = []string{
	".debug_abbrev", ".debug_addr", ".debug_info", ".debug_line",
	".debug_line_str", ".debug_str", ".debug_str_offsets", ".debug_types",
	".debug_loc", ".debug_loclists", ".debug_ranges", ".debug_rnglists",
}

// Load parses the ELF image in data (the full file content, or a single
// archive member's content).
func Load(path string, data []byte) (*objfile.LoadedObject, error) {
	ef, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, curated.Errorf(curated.UnknownMagic, path)
	}
	defer ef.Close()

	out := &objfile.LoadedObject{Path: path}
	out.Arch = archProfile(ef)

	sections := make([]objfile.Section, 0, len(ef.Sections))
	hasDebug := false
	for _, s := range ef.Sections {
		sections = append(sections, objfile.Section{
			Name:       s.Name,
			VAddrLo:    s.Addr,
			VAddrHi:    s.Addr + s.Size,
			FileOffset: s.Offset,
		})
		for _, d := range debugSections {
			if s.Name == d {
				hasDebug = true
			}
		}
	}
	out.Sections = objfile.NewSectionTable(sections)

	syms, err := gatherSymbols(ef, out.Sections)
	if err != nil {
		return nil, err
	}
	out.Symbols = syms

	if hasDebug {
		dw, err := ef.DWARF()
		if err != nil {
			logger.Logf("elfobj", "dwarf: %v", err)
		} else {
			out.DWARF = dw
		}
	}

	return out, nil
}

func archProfile(ef *elf.File) objfile.ArchProfile {
	var a objfile.ArchProfile

	switch ef.Class {
	case elf.ELFCLASS32:
		a.Bits = objfile.Bits32
	case elf.ELFCLASS64:
		a.Bits = objfile.Bits64
	}

	switch ef.Data {
	case elf.ELFDATA2LSB:
		a.Endian = objfile.EndianLittle
	case elf.ELFDATA2MSB:
		a.Endian = objfile.EndianBig
	}

	switch ef.Machine {
	case elf.EM_386:
		a.Arch = objfile.ArchX86
	case elf.EM_X86_64:
		a.Arch = objfile.ArchX86_64
	case elf.EM_ARM:
		a.Arch = objfile.ArchArm
	case elf.EM_AARCH64:
		a.Arch = objfile.ArchAArch64
	default:
		a.Arch = objfile.ArchUnknown
	}

	return a
}

// gatherSymbols keeps function symbols with non-zero size, computing
// file_offset from the owning section's (sh_addr, sh_offset). Entries
// without a retrievable name are skipped with a debug-level log, not an
// error.
func gatherSymbols(ef *elf.File, sections *objfile.SectionTable) ([]symbol.Symbol, error) {
	syms, err := ef.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, curated.Errorf(curated.InconsistentSect, "elf", err)
	}

	out := make([]symbol.Symbol, 0, len(syms))
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		if s.Size == 0 {
			continue
		}
		if s.Name == "" {
			logger.Log("elfobj", "skipping unnamed function symbol")
			continue
		}

		off, ok := sections.AddrToOffset(s.Value)
		if !ok {
			logger.Logf("elfobj", "symbol %s has no owning section", s.Name)
			continue
		}

		out = append(out, symbol.New(s.Name, s.Value, off, s.Size, symbol.Elf))
	}

	return out, nil
}
