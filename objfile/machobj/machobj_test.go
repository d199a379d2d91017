package machobj_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ExPixel/godisasm/objfile"
	"github.com/ExPixel/godisasm/objfile/machobj"
)

// buildThinMachO64 builds a minimal 64-bit, native-endian, thin Mach-O
// executable: one __TEXT,__text section holding code, and two N_FUN symbols
// so that the first symbol's size can be inferred from the second's
// address (the second, having no successor, is expected to be dropped).
func buildThinMachO64(t *testing.T, codeAddr uint64, code []byte, sym1, sym2 string, sym2Addr uint64) []byte {
	t.Helper()
	le := binary.LittleEndian

	const nCmds = 2
	const segCmdSize = 72 + 80 // Segment64 header (72) + one Section64 (80)
	const symtabCmdSize = 24

	headerSize := 32
	loadCmdsOff := headerSize
	textOff := loadCmdsOff + segCmdSize + symtabCmdSize
	symtabOff := textOff + len(code)

	strtab := []byte{0}
	sym1NameOff := len(strtab)
	strtab = append(strtab, []byte(sym1+"\x00")...)
	sym2NameOff := len(strtab)
	strtab = append(strtab, []byte(sym2+"\x00")...)

	const nlistSize = 16
	strOff := symtabOff + 2*nlistSize

	var buf bytes.Buffer
	w32 := func(v uint32) { binary.Write(&buf, le, v) }
	w64 := func(v uint64) { binary.Write(&buf, le, v) }

	// mach_header_64
	w32(0xfeedfacf) // Magic64
	w32(0x01000007) // CpuAmd64
	w32(0)          // subcpu
	w32(2)          // Type = MH_EXECUTE
	w32(nCmds)
	w32(uint32(segCmdSize + symtabCmdSize))
	w32(0) // flags
	w32(0) // reserved

	require.Equal(t, headerSize, buf.Len())

	// LC_SEGMENT_64
	w32(0x19) // LoadCmdSegment64
	w32(uint32(segCmdSize))
	buf.Write(append([]byte("__TEXT"), make([]byte, 16-len("__TEXT"))...))
	w64(codeAddr)        // vmaddr
	w64(uint64(len(code))) // vmsize
	w64(uint64(textOff))  // fileoff
	w64(uint64(len(code))) // filesize
	w32(7)                // maxprot
	w32(7)                // initprot
	w32(1)                // nsects
	w32(0)                // flags

	// Section64
	buf.Write(append([]byte("__text"), make([]byte, 16-len("__text"))...))
	buf.Write(append([]byte("__TEXT"), make([]byte, 16-len("__TEXT"))...))
	w64(codeAddr)
	w64(uint64(len(code)))
	w32(uint32(textOff))
	w32(0) // align
	w32(0) // reloff
	w32(0) // nreloc
	w32(0x80000400) // flags: S_ATTR_SOME_INSTRUCTIONS | S_ATTR_PURE_INSTRUCTIONS-ish
	w32(0)
	w32(0)
	w32(0)

	// LC_SYMTAB
	w32(0x2) // LoadCmdSymtab
	w32(symtabCmdSize)
	w32(uint32(symtabOff))
	w32(2) // nsyms
	w32(uint32(strOff))
	w32(uint32(len(strtab)))

	require.Equal(t, textOff, buf.Len())
	buf.Write(code)

	require.Equal(t, symtabOff, buf.Len())

	writeNlist := func(nameOff uint32, typ uint8, sect uint8, value uint64) {
		w32(nameOff)
		buf.WriteByte(typ)
		buf.WriteByte(sect)
		var desc uint16
		binary.Write(&buf, le, desc)
		w64(value)
	}
	writeNlist(uint32(sym1NameOff), 0x24, 1, codeAddr)
	writeNlist(uint32(sym2NameOff), 0x24, 1, sym2Addr)

	require.Equal(t, strOff, buf.Len())
	buf.Write(strtab)

	return buf.Bytes()
}

func TestLoadMachOInfersSizeFromNextSymbol(t *testing.T) {
	code := make([]byte, 0x40)
	data := buildThinMachO64(t, 0x1000, code, "_my_func", "_next_func", 0x1020)

	require.Equal(t, objfile.KindMach, objfile.Detect(data))

	loaded, err := machobj.Load("a.out", data)
	require.NoError(t, err)
	require.Equal(t, objfile.ArchX86_64, loaded.Arch.Arch)
	require.Equal(t, objfile.Bits64, loaded.Arch.Bits)

	// only "_my_func" survives: it has a successor ("_next_func") to infer
	// its size from; "_next_func" itself has no successor and is dropped.
	require.Len(t, loaded.Symbols, 1)
	sym := loaded.Symbols[0]
	require.Equal(t, uint64(0x1000), sym.Address())
	require.Equal(t, uint64(0x20), sym.Size())
	require.Equal(t, uint64(0x1020), sym.EndAddress())
}
