package objfile

import "sort"

// Section is a contiguous region of an object with a name, a file offset,
// and a load address range. A Section whose load address is zero (never
// mapped at runtime) is excluded from the address->offset table but may
// still back a debug section.
type Section struct {
	Name       string
	VAddrLo    uint64
	VAddrHi    uint64
	FileOffset uint64
}

// Contains reports whether addr falls within [VAddrLo, VAddrHi).
func (s Section) Contains(addr uint64) bool {
	return addr >= s.VAddrLo && addr < s.VAddrHi
}

// SectionTable is a flat list of Sections sorted by VAddrLo, enabling
// O(log n) address->offset lookup.
type SectionTable struct {
	sections []Section
}

// NewSectionTable sorts sections by VAddrLo and returns a table over them.
// Sections with VAddrLo == 0 (never loaded) are kept in the table for
// lookup-by-name purposes but never match AddrToOffset.
func NewSectionTable(sections []Section) *SectionTable {
	sorted := make([]Section, len(sections))
	copy(sorted, sections)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].VAddrLo < sorted[j].VAddrLo
	})
	return &SectionTable{sections: sorted}
}

// All returns every section in vaddr order.
func (t *SectionTable) All() []Section {
	return t.sections
}

// AddrToOffset maps a runtime virtual address to a file offset using the
// owning section's (VAddrLo, FileOffset): file_offset + (addr - VAddrLo).
// The second return value is false if no loaded section contains addr.
func (t *SectionTable) AddrToOffset(addr uint64) (uint64, bool) {
	// binary search for the last section whose VAddrLo <= addr
	i := sort.Search(len(t.sections), func(i int) bool {
		return t.sections[i].VAddrLo > addr
	})
	for i > 0 {
		i--
		s := t.sections[i]
		if s.VAddrLo == 0 {
			continue
		}
		if s.Contains(addr) {
			return s.FileOffset + (addr - s.VAddrLo), true
		}
		if s.VAddrLo <= addr {
			// sections don't overlap; once we've passed a non-containing
			// section whose start is <= addr there's nothing earlier to try
			break
		}
	}
	return 0, false
}

// ByName finds the first section with the given name.
func (t *SectionTable) ByName(name string) (Section, bool) {
	for _, s := range t.sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}
