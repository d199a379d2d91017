package objfile

import (
	"bytes"
	"debug/dwarf"

	"github.com/ExPixel/godisasm/symbol"
)

// Kind identifies the object container format.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindElf
	KindMach
	KindPe
	KindArchive
)

var (
	archiveMagic = []byte("!<arch>\n")
)

// Detect inspects the leading bytes of data to decide which loader should
// handle it. Unknown magic is reported as KindUnknown; the caller treats
// that as a fatal FormatError.
func Detect(data []byte) Kind {
	switch {
	case len(data) >= 4 && data[0] == 0x7f && data[1] == 'E' && data[2] == 'L' && data[3] == 'F':
		return KindElf

	case len(data) >= 4 && isMachMagic(data[:4]):
		return KindMach

	case len(data) >= 2 && data[0] == 'M' && data[1] == 'Z':
		return KindPe

	case len(data) >= len(archiveMagic) && bytes.Equal(data[:len(archiveMagic)], archiveMagic):
		return KindArchive

	default:
		return KindUnknown
	}
}

func isMachMagic(b []byte) bool {
	magic := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	switch magic {
	case 0xfeedface, // 32-bit, native endian
		0xcefaedfe, // 32-bit, swapped
		0xfeedfacf, // 64-bit, native endian
		0xcffaedfe, // 64-bit, swapped
		0xcafebabe, // fat, native endian
		0xbebafeca: // fat, swapped
		return true
	default:
		return false
	}
}

// LoadedObject is what every per-format loader produces: architecture
// description, address-sorted sections, native symbols, and (if present)
// parsed DWARF data ready for dwarfconsumer to walk.
type LoadedObject struct {
	Path      string
	Arch      ArchProfile
	Sections  *SectionTable
	Symbols   []symbol.Symbol
	DWARF     *dwarf.Data
	ImageBase uint64

	// PDBPath is the resolved sidecar PDB path, set by the PE loader when
	// its CodeView debug directory entry names one and the search below
	// finds it. Empty if none applies.
	PDBPath string
}
