package disasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMeasureListingTracksColumnWidths(t *testing.T) {
	listing := Listing{Lines: []Line{
		{Address: 0x1000, Mnemonic: "mov", Operands: "eax, ebx", Comment: "", Bytes: []byte{0x89, 0xd8}},
		{Address: 0x401018, Mnemonic: "call", Operands: "pow::my_pow+0x18", Comment: "0x1018", Bytes: []byte{0xe8, 0x0f, 0x00, 0x00, 0x00}},
	}}

	m := MeasureListing(listing)
	require.Equal(t, uint64(0x401018), m.MaxAddress)
	require.Equal(t, len("call"), m.MaxMnemonicLen)
	require.Equal(t, len("pow::my_pow+0x18"), m.MaxOperandsLen)
	require.Equal(t, len("0x1018"), m.MaxCommentsLen)
	require.Equal(t, 5, m.MaxBytesCount)
}

func TestMaxAddressWidthHex(t *testing.T) {
	require.Equal(t, 1, Measure{MaxAddress: 0}.MaxAddressWidthHex())
	require.Equal(t, 4, Measure{MaxAddress: 0x1000}.MaxAddressWidthHex())
	require.Equal(t, 6, Measure{MaxAddress: 0x401018}.MaxAddressWidthHex())
}

func TestMaxBytesWidthHex(t *testing.T) {
	m := Measure{MaxBytesCount: 5}
	require.Equal(t, 5*2+4*1, m.MaxBytesWidthHex(1))
	require.Equal(t, 0, Measure{}.MaxBytesWidthHex(1))
}
