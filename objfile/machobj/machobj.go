// Package machobj loads thin and fat Mach-O images via the standard
// library's debug/macho. Mach symbol tables don't record sizes, so sizes
// are inferred from the next symbol's address; sizes cannot be inferred for
// symbols with no successor, and those are dropped.
package machobj

import (
	"bytes"
	"debug/macho"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ExPixel/godisasm/curated"
	"github.com/ExPixel/godisasm/logger"
	"github.com/ExPixel/godisasm/objfile"
	"github.com/ExPixel/godisasm/symbol"
)

// machTypeFunc is the N_FUN stab type: a function name/address entry in the
// symbol table.
const machTypeFunc = 0x24

// Load parses the Mach-O image in data. Fat binaries always select the
// first contained slice -- this is an explicit, documented open question
// (see DESIGN.md), not necessarily the slice matching the host
// architecture.
func Load(path string, data []byte) (*objfile.LoadedObject, error) {
	if isFatMagic(data) {
		fat, err := macho.NewFatFile(bytes.NewReader(data))
		if err != nil {
			return nil, curated.Errorf(curated.UnknownMagic, path)
		}
		defer fat.Close()

		if len(fat.Arches) == 0 {
			return nil, curated.Errorf(curated.UnknownMagic, path)
		}

		return loadFromFile(path, fat.Arches[0].File, data)
	}

	mf, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, curated.Errorf(curated.UnknownMagic, path)
	}
	defer mf.Close()

	return loadFromFile(path, mf, data)
}

func isFatMagic(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	magic := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	return magic == macho.MagicFat || magic == 0xbebafeca
}

func loadFromFile(path string, mf *macho.File, raw []byte) (*objfile.LoadedObject, error) {
	out := &objfile.LoadedObject{Path: path}
	out.Arch = archProfile(mf)

	sections := make([]objfile.Section, 0, len(mf.Sections))
	hasDebug := false
	for _, s := range mf.Sections {
		sections = append(sections, objfile.Section{
			Name:       s.Name,
			VAddrLo:    s.Addr,
			VAddrHi:    s.Addr + s.Size,
			FileOffset: uint64(s.Offset),
		})
		if strings.HasPrefix(s.Name, "__debug_") || strings.HasPrefix(s.Name, ".debug_") {
			hasDebug = true
		}
	}
	out.Sections = objfile.NewSectionTable(sections)

	syms, err := gatherSymbols(mf, out.Sections)
	if err != nil {
		return nil, err
	}
	out.Symbols = syms

	if dsymData, found := findDsymSlice(path); found {
		if dmf, err := macho.NewFile(bytes.NewReader(dsymData)); err == nil {
			defer dmf.Close()
			if dw, err := dmf.DWARF(); err == nil {
				out.DWARF = dw
				return out, nil
			}
		}
	}

	if dw, err := mf.DWARF(); err == nil {
		out.DWARF = dw
	} else if hasDebug {
		logger.Logf("machobj", "dwarf: %v", err)
	}

	return out, nil
}

func archProfile(mf *macho.File) objfile.ArchProfile {
	var a objfile.ArchProfile

	switch mf.Magic {
	case macho.Magic32:
		a.Bits = objfile.Bits32
	case macho.Magic64:
		a.Bits = objfile.Bits64
	}

	a.Endian = objfile.EndianLittle // debug/macho normalizes byte order for us

	switch mf.Cpu {
	case macho.Cpu386:
		a.Arch = objfile.ArchX86
	case macho.CpuAmd64:
		a.Arch = objfile.ArchX86_64
	case macho.CpuArm:
		a.Arch = objfile.ArchArm
	case macho.CpuArm64:
		a.Arch = objfile.ArchAArch64
	default:
		a.Arch = objfile.ArchUnknown
	}

	return a
}

// gatherSymbols records the address of every stab symbol, then infers each
// function symbol's size as next_address - this_address over the sorted,
// deduplicated set of all recorded addresses. Symbols with no successor are
// dropped.
func gatherSymbols(mf *macho.File, sections *objfile.SectionTable) ([]symbol.Symbol, error) {
	if mf.Symtab == nil {
		return nil, nil
	}

	var addrs []uint64
	type funcCandidate struct {
		name string
		addr uint64
	}
	var funcs []funcCandidate

	for _, s := range mf.Symtab.Syms {
		if s.Sect == 0 {
			continue
		}
		if s.Type&0xe0 == 0 { // N_STAB bits clear: not a stab entry
			continue
		}
		addrs = append(addrs, s.Value)
		if s.Type == machTypeFunc && s.Name != "" {
			funcs = append(funcs, funcCandidate{name: s.Name, addr: s.Value})
		}
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	addrs = dedupUint64(addrs)

	out := make([]symbol.Symbol, 0, len(funcs))
	for _, f := range funcs {
		size, ok := nextAddressDelta(addrs, f.addr)
		if !ok {
			logger.Logf("machobj", "symbol %s has no successor, dropping", f.name)
			continue
		}

		off, ok := sections.AddrToOffset(f.addr)
		if !ok {
			continue
		}

		out = append(out, symbol.New(f.name, f.addr, off, size, symbol.Mach))
	}

	return out, nil
}

func dedupUint64(in []uint64) []uint64 {
	out := in[:0]
	var last uint64
	first := true
	for _, v := range in {
		if first || v != last {
			out = append(out, v)
			last = v
			first = false
		}
	}
	return out
}

func nextAddressDelta(sortedAddrs []uint64, addr uint64) (uint64, bool) {
	i := sort.Search(len(sortedAddrs), func(i int) bool { return sortedAddrs[i] > addr })
	if i >= len(sortedAddrs) {
		return 0, false
	}
	return sortedAddrs[i] - addr, true
}

// findDsymSlice looks for <dir>/<basename>.dSYM/Contents/Resources/DWARF/<basename>
// next to the executable, trying the dSYM bundle before falling back to
// in-file DWARF, per the debug-info location policy.
func findDsymSlice(execPath string) ([]byte, bool) {
	dir := filepath.Dir(execPath)
	base := filepath.Base(execPath)

	candidate := filepath.Join(dir, fmt.Sprintf("%s.dSYM", base), "Contents", "Resources", "DWARF", base)
	data, err := os.ReadFile(candidate)
	if err != nil {
		return nil, false
	}
	return data, true
}
