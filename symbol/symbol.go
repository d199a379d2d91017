// Package symbol holds the Symbol value type shared by every object loader,
// the DWARF and PDB consumers, and the symbol index.
package symbol

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Source is the provenance of a Symbol.
type Source uint8

const (
	Elf Source = iota
	Mach
	Pe
	Archive
	Dwarf
	Pdb
)

// Priority orders debug-info sources (Dwarf, Pdb) ahead of object-table
// sources (Elf, Mach, Pe, Archive). Lower numbers win ties.
func (s Source) Priority() uint8 {
	switch s {
	case Dwarf, Pdb:
		return 1
	default:
		return 2
	}
}

func (s Source) String() string {
	switch s {
	case Elf:
		return "elf"
	case Mach:
		return "mach"
	case Pe:
		return "pe"
	case Archive:
		return "archive"
	case Dwarf:
		return "dwarf"
	case Pdb:
		return "pdb"
	default:
		return "unknown"
	}
}

// ParseSource recognises the six singleton source tokens, case-insensitive.
func ParseSource(s string) (Source, bool) {
	switch strings.ToLower(s) {
	case "elf":
		return Elf, true
	case "mach":
		return Mach, true
	case "pe":
		return Pe, true
	case "archive":
		return Archive, true
	case "dwarf":
		return Dwarf, true
	case "pdb":
		return Pdb, true
	default:
		return 0, false
	}
}

// Symbol is a named, addressed, sized entity recovered from an object file,
// from DWARF, or from a PDB.
type Symbol struct {
	name         string
	addr         uint64
	fileOffset   uint64
	size         uint64
	source       Source
}

// New demangles name (Rust v0/legacy first, then C++ Itanium, falling back to
// the verbatim name if neither recognises it) before constructing the
// Symbol. Use this for names taken directly from a linkage/mangled-name
// field.
func New(name string, addr, fileOffset, size uint64, source Source) Symbol {
	return Symbol{
		name:       demangleName(name),
		addr:       addr,
		fileOffset: fileOffset,
		size:       size,
		source:     source,
	}
}

// NewUnmangled constructs a Symbol whose name is used verbatim, skipping
// demangling entirely. DWARF qualified names (already joined with "::") and
// PDB procedure names use this constructor.
func NewUnmangled(name string, addr, fileOffset, size uint64, source Source) Symbol {
	return Symbol{
		name:       name,
		addr:       addr,
		fileOffset: fileOffset,
		size:       size,
		source:     source,
	}
}

func demangleName(name string) string {
	if s, err := demangle.ToString(name); err == nil {
		return s
	}
	return name
}

// Name is the (demangled, or verbatim-fallback) qualified name.
func (s Symbol) Name() string { return s.name }

// Address is the symbol's virtual address.
func (s Symbol) Address() uint64 { return s.addr }

// EndAddress is one byte beyond the end of the symbol.
func (s Symbol) EndAddress() uint64 { return s.addr + s.size }

// FileOffset is the symbol's starting byte position in its binary.
func (s Symbol) FileOffset() uint64 { return s.fileOffset }

// EndOffset is one byte beyond the symbol's file range.
func (s Symbol) EndOffset() uint64 { return s.fileOffset + s.size }

// Size is the symbol's length in bytes.
func (s Symbol) Size() uint64 { return s.size }

// Source is the symbol's provenance.
func (s Symbol) Source() Source { return s.source }

// Contains reports whether addr falls within [Address, EndAddress).
func (s Symbol) Contains(addr uint64) bool {
	return addr >= s.addr && addr < s.EndAddress()
}

// WithAddress returns a copy of s with its address replaced.
func (s Symbol) WithAddress(addr uint64) Symbol {
	s.addr = addr
	return s
}

// WithSize returns a copy of s with its size replaced.
func (s Symbol) WithSize(size uint64) Symbol {
	s.size = size
	return s
}

// WithSource returns a copy of s with its source replaced. Used by the
// archive loader, which retags every symbol recovered from a member object
// as Archive regardless of that member's own container format.
func (s Symbol) WithSource(source Source) Symbol {
	s.source = source
	return s
}
