package disasm

// Measure holds the column widths an external formatter needs to align a
// Listing, computed in a single pass.
type Measure struct {
	MaxAddress     uint64
	MaxMnemonicLen int
	MaxOperandsLen int
	MaxCommentsLen int
	MaxBytesCount  int
}

// MeasureListing walks every Line once, tracking the maximum address, the longest
// mnemonic/operand/comment strings, and the widest raw-byte count.
func MeasureListing(listing Listing) Measure {
	var m Measure
	for _, line := range listing.Lines {
		if line.Address > m.MaxAddress {
			m.MaxAddress = line.Address
		}
		if n := len(line.Mnemonic); n > m.MaxMnemonicLen {
			m.MaxMnemonicLen = n
		}
		if n := len(line.Operands); n > m.MaxOperandsLen {
			m.MaxOperandsLen = n
		}
		if n := len(line.Comment); n > m.MaxCommentsLen {
			m.MaxCommentsLen = n
		}
		if n := len(line.Bytes); n > m.MaxBytesCount {
			m.MaxBytesCount = n
		}
	}
	return m
}

// MaxAddressWidthHex is the number of hex digits needed to print MaxAddress,
// i.e. ceil(bit_width / 4), with a minimum of 1.
func (m Measure) MaxAddressWidthHex() int {
	if m.MaxAddress == 0 {
		return 1
	}
	bits := bitLen64(m.MaxAddress)
	width := (bits + 3) / 4
	if width == 0 {
		width = 1
	}
	return width
}

// MaxBytesWidthHex is the display width of the widest raw-bytes column when
// each byte prints as two hex digits separated by spacing spaces.
func (m Measure) MaxBytesWidthHex(spacing int) int {
	if m.MaxBytesCount == 0 {
		return 0
	}
	return m.MaxBytesCount*2 + (m.MaxBytesCount-1)*spacing
}

// bitLen64 is the number of bits needed to represent v, i.e. the position of
// its highest set bit plus one. v == 0 is handled by callers.
func bitLen64(v uint64) int {
	n := 0
	for v != 0 {
		v >>= 1
		n++
	}
	return n
}
