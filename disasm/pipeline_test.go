package disasm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ExPixel/godisasm/disasm"
	"github.com/ExPixel/godisasm/objfile"
	"github.com/ExPixel/godisasm/symbol"
	"github.com/ExPixel/godisasm/symbolindex"
)

// buildMyPowCode lays out the 32-byte body of pow::my_pow described in the
// end-to-end scenarios: a call at 0x1004 targeting 0x1018 (inside the
// symbol, landing exactly on another decoded line) and a call at 0x1010
// targeting 0x40A0 (a different, already-known symbol).
func buildMyPowCode() []byte {
	rel := func(addr, target uint64) []byte {
		r := int32(int64(target) - int64(addr) - 5)
		return []byte{0xe8, byte(r), byte(r >> 8), byte(r >> 16), byte(r >> 24)}
	}

	nops := func(n int) []byte {
		b := make([]byte, n)
		for i := range b {
			b[i] = 0x90
		}
		return b
	}

	var code []byte
	code = append(code, nops(4)...)                 // 0x1000-0x1003
	code = append(code, rel(0x1004, 0x1018)...)      // 0x1004-0x1008, call -> 0x1018
	code = append(code, nops(7)...)                  // 0x1009-0x100f
	code = append(code, rel(0x1010, 0x40a0)...)      // 0x1010-0x1014, call -> 0x40a0
	code = append(code, nops(3)...)                  // 0x1015-0x1017
	code = append(code, nops(8)...)                  // 0x1018-0x101f
	return code
}

func TestRunDecodesWholeSymbolRange(t *testing.T) {
	code := buildMyPowCode()
	require.Len(t, code, 0x20)

	sym := symbol.NewUnmangled("pow::my_pow", 0x1000, 0, 0x20, symbol.Dwarf)
	req := disasm.Request{
		Arch:     objfile.ArchX86_64,
		Code:     code,
		BaseAddr: 0x1000,
		Symbol:   sym,
	}

	listing, err := disasm.Run(req, symbolindex.New(nil))
	require.NoError(t, err)
	require.NotEmpty(t, listing.Lines)
	require.Equal(t, uint64(0x1000), listing.Lines[0].Address)
	require.Equal(t, uint64(0x1020), listing.EndAddress())
}

func TestRunSymbolicatesInternalJump(t *testing.T) {
	code := buildMyPowCode()
	sym := symbol.NewUnmangled("pow::my_pow", 0x1000, 0, 0x20, symbol.Dwarf)
	req := disasm.Request{
		Arch:     objfile.ArchX86_64,
		Code:     code,
		BaseAddr: 0x1000,
		Symbol:   sym,
	}

	listing, err := disasm.Run(req, symbolindex.New(nil))
	require.NoError(t, err)

	line, ok := findLine(listing, 0x1004)
	require.True(t, ok)
	require.True(t, line.Symbolicated)
	require.Equal(t, "pow::my_pow+0x18", line.Operands)
	require.Equal(t, "0x1018", line.Comment)

	target, ok := findLine(listing, 0x1018)
	require.True(t, ok)
	require.Equal(t, disasm.JumpInternal, line.Jump.Kind)
	require.Equal(t, target.Address, uint64(0x1018))
}

func TestRunSymbolicatesExternalJumpViaIndex(t *testing.T) {
	code := buildMyPowCode()
	sym := symbol.NewUnmangled("pow::my_pow", 0x1000, 0, 0x20, symbol.Dwarf)
	other := symbol.NewUnmangled("std::io::print", 0x40a0, 0x2000, 0x10, symbol.Dwarf)

	req := disasm.Request{
		Arch:     objfile.ArchX86_64,
		Code:     code,
		BaseAddr: 0x1000,
		Symbol:   sym,
	}

	listing, err := disasm.Run(req, symbolindex.New([]symbol.Symbol{other}))
	require.NoError(t, err)

	line, ok := findLine(listing, 0x1010)
	require.True(t, ok)
	require.True(t, line.Symbolicated)
	require.Equal(t, "std::io::print", line.Operands)
	require.Equal(t, "0x40a0", line.Comment)
	require.Equal(t, disasm.JumpExternal, line.Jump.Kind)
}

func TestRunRejectsUnknownArch(t *testing.T) {
	_, err := disasm.Run(disasm.Request{Arch: objfile.ArchUnknown, Code: []byte{0x90}}, symbolindex.New(nil))
	require.Error(t, err)
}

func findLine(listing disasm.Listing, addr uint64) (disasm.Line, bool) {
	for _, line := range listing.Lines {
		if line.Address == addr {
			return line, true
		}
	}
	return disasm.Line{}, false
}
