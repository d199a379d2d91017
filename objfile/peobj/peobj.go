// Package peobj loads PE/COFF images via the standard library's debug/pe.
// PE symbol tables don't record sizes either, so the same next-address
// inference policy used for Mach-O applies here. debug/pe doesn't expose the
// CodeView debug directory, so peobj walks the raw Debug data directory
// itself to recover the sidecar PDB path.
package peobj

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ExPixel/godisasm/curated"
	"github.com/ExPixel/godisasm/logger"
	"github.com/ExPixel/godisasm/objfile"
	"github.com/ExPixel/godisasm/symbol"
)

// imageDebugTypeCodeview is IMAGE_DEBUG_TYPE_CODEVIEW.
const imageDebugTypeCodeview = 2

// rsds70Signature marks a CodeView entry in the newer PDB70 format, the only
// one emitted by any linker still in use.
var rsds70Signature = []byte("RSDS")

// Load parses the PE image in data. Sidecar PDB search order: the CodeView
// path verbatim if it exists, then that path's basename next to the
// executable, then <executable-stem>.pdb next to the executable.
func Load(path string, data []byte) (*objfile.LoadedObject, error) {
	pf, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, curated.Errorf(curated.UnknownMagic, path)
	}
	defer pf.Close()

	out := &objfile.LoadedObject{Path: path}
	out.Arch = archProfile(pf)

	sections := make([]objfile.Section, 0, len(pf.Sections))
	for _, s := range pf.Sections {
		sections = append(sections, objfile.Section{
			Name:       s.Name,
			VAddrLo:    uint64(s.VirtualAddress),
			VAddrHi:    uint64(s.VirtualAddress) + uint64(s.VirtualSize),
			FileOffset: uint64(s.Offset),
		})
	}
	out.Sections = objfile.NewSectionTable(sections)

	out.Symbols = gatherSymbols(pf, out.Sections)

	if cvPath, ok := codeViewPath(pf, data); ok {
		if resolved, ok := resolvePDBSidecar(path, cvPath); ok {
			out.PDBPath = resolved
		} else {
			logger.Logf("peobj", "could not locate PDB sidecar named by CodeView entry: %s", cvPath)
		}
	}

	return out, nil
}

func archProfile(pf *pe.File) objfile.ArchProfile {
	var a objfile.ArchProfile

	switch pf.Machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		a.Arch, a.Bits = objfile.ArchX86, objfile.Bits32
	case pe.IMAGE_FILE_MACHINE_AMD64:
		a.Arch, a.Bits = objfile.ArchX86_64, objfile.Bits64
	case pe.IMAGE_FILE_MACHINE_ARMNT, pe.IMAGE_FILE_MACHINE_ARM:
		a.Arch, a.Bits = objfile.ArchArm, objfile.Bits32
	case pe.IMAGE_FILE_MACHINE_ARM64:
		a.Arch, a.Bits = objfile.ArchAArch64, objfile.Bits64
	default:
		a.Arch = objfile.ArchUnknown
	}

	a.Endian = objfile.EndianLittle // PE is always little-endian

	return a
}

// gatherSymbols keeps function symbols (COFF storage class 2, "external",
// with a valid section number naming a code section), inferring size from
// the next recorded address the same way machobj does. COFF doesn't mark
// function-ness directly, so any externally-visible defined symbol in a
// code section is treated as a candidate. Symbols whose value is zero (at
// the very start of their section) are kept like any other.
func gatherSymbols(pf *pe.File, sections *objfile.SectionTable) []symbol.Symbol {
	const classExternal = 2

	var addrs []uint64
	type candidate struct {
		name string
		addr uint64
	}
	var funcs []candidate

	for _, s := range pf.Symbols {
		if s.StorageClass != classExternal {
			continue
		}
		if s.SectionNumber <= 0 || int(s.SectionNumber) > len(pf.Sections) {
			continue
		}
		sect := pf.Sections[s.SectionNumber-1]
		if sect.Characteristics&0x20 == 0 { // IMAGE_SCN_CNT_CODE
			continue
		}

		addr := uint64(sect.VirtualAddress) + uint64(s.Value)
		addrs = append(addrs, addr)
		if s.Name != "" {
			funcs = append(funcs, candidate{name: s.Name, addr: addr})
		}
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	addrs = dedupUint64(addrs)

	out := make([]symbol.Symbol, 0, len(funcs))
	for _, f := range funcs {
		size, ok := nextAddressDelta(addrs, f.addr)
		if !ok {
			logger.Logf("peobj", "symbol %s has no successor, dropping", f.name)
			continue
		}

		off, ok := sections.AddrToOffset(f.addr)
		if !ok {
			continue
		}

		out = append(out, symbol.New(f.name, f.addr, off, size, symbol.Pe))
	}

	return out
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

// codeViewPath reads the IMAGE_DIRECTORY_ENTRY_DEBUG data directory by hand:
// debug/pe parses everything up to section headers but leaves debug
// directory entries, and the CodeView record they point to, unparsed.
func codeViewPath(pf *pe.File, raw []byte) (string, bool) {
	var dataDirs []pe.DataDirectory
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dataDirs = oh.DataDirectory[:]
	case *pe.OptionalHeader64:
		dataDirs = oh.DataDirectory[:]
	default:
		return "", false
	}

	if len(dataDirs) <= pe.IMAGE_DIRECTORY_ENTRY_DEBUG {
		return "", false
	}
	dir := dataDirs[pe.IMAGE_DIRECTORY_ENTRY_DEBUG]
	if dir.Size == 0 {
		return "", false
	}

	off, ok := rvaToFileOffset(pf, dir.VirtualAddress)
	if !ok || int(off)+int(dir.Size) > len(raw) {
		return "", false
	}

	const entrySize = 28
	entries := raw[off : off+dir.Size]
	for i := 0; i+entrySize <= len(entries); i += entrySize {
		e := entries[i : i+entrySize]
		typ := binary.LittleEndian.Uint32(e[12:16])
		if typ != imageDebugTypeCodeview {
			continue
		}
		dataSize := binary.LittleEndian.Uint32(e[16:20])
		ptrToRaw := binary.LittleEndian.Uint32(e[24:28])
		if int(ptrToRaw)+int(dataSize) > len(raw) {
			continue
		}
		cv := raw[ptrToRaw : ptrToRaw+dataSize]
		if path, ok := parseCodeViewPDBPath(cv); ok {
			return path, true
		}
	}

	return "", false
}

// parseCodeViewPDBPath parses a PDB70 ("RSDS") CodeView record: 4-byte
// signature, 16-byte GUID, 4-byte age, then a NUL-terminated path.
func parseCodeViewPDBPath(cv []byte) (string, bool) {
	if len(cv) < 24 || !bytes.Equal(cv[:4], rsds70Signature) {
		return "", false
	}
	rest := cv[24:]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		rest = rest[:i]
	}
	if len(rest) == 0 {
		return "", false
	}
	return string(rest), true
}

func rvaToFileOffset(pf *pe.File, rva uint32) (uint32, bool) {
	for _, s := range pf.Sections {
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+s.VirtualSize {
			return s.Offset + (rva - s.VirtualAddress), true
		}
	}
	return 0, false
}

// resolvePDBSidecar tries, in order: cvPath verbatim, cvPath's basename next
// to the executable, then <executable-stem>.pdb next to the executable.
func resolvePDBSidecar(execPath, cvPath string) (string, bool) {
	if fileExists(cvPath) {
		return cvPath, true
	}

	dir := filepath.Dir(execPath)

	beside := filepath.Join(dir, filepath.Base(cvPath))
	if fileExists(beside) {
		return beside, true
	}

	stem := strings.TrimSuffix(filepath.Base(execPath), filepath.Ext(execPath))
	guessed := filepath.Join(dir, stem+".pdb")
	if fileExists(guessed) {
		return guessed, true
	}

	return "", false
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
