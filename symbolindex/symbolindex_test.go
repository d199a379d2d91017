package symbolindex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ExPixel/godisasm/symbol"
	"github.com/ExPixel/godisasm/symbolindex"
)

func TestNewSortsByAddressThenEndAddress(t *testing.T) {
	syms := []symbol.Symbol{
		symbol.NewUnmangled("c", 0x2000, 0, 0x10, symbol.Elf),
		symbol.NewUnmangled("a", 0x1000, 0, 0x8, symbol.Elf),
		symbol.NewUnmangled("b", 0x1000, 0, 0x20, symbol.Elf),
	}
	idx := symbolindex.New(syms)
	require.Equal(t, 3, idx.Len())

	// "a" ends before "b", so it sorts first and wins the backward scan.
	sym, _, ok := idx.Symbolicate(0x1000)
	require.True(t, ok)
	require.Equal(t, "a", sym.Name())
}

func TestSymbolicateReturnsSymbolAndOffset(t *testing.T) {
	syms := []symbol.Symbol{
		symbol.NewUnmangled("my_pow", 0x1000, 0, 0x20, symbol.Elf),
		symbol.NewUnmangled("other", 0x2000, 0, 0x10, symbol.Elf),
	}
	idx := symbolindex.New(syms)

	sym, offset, ok := idx.Symbolicate(0x1008)
	require.True(t, ok)
	require.Equal(t, "my_pow", sym.Name())
	require.Equal(t, uint64(8), offset)
}

func TestSymbolicateMissesAddressOutsideAnyRange(t *testing.T) {
	syms := []symbol.Symbol{
		symbol.NewUnmangled("my_pow", 0x1000, 0, 0x20, symbol.Elf),
	}
	idx := symbolindex.New(syms)

	_, _, ok := idx.Symbolicate(0xdeadbeef)
	require.False(t, ok)

	_, _, ok = idx.Symbolicate(0x1020) // exclusive end
	require.False(t, ok)
}

func TestSymbolicatePrefersHighestPriorityAmongDuplicates(t *testing.T) {
	// Same function recovered from both the ELF symbol table and DWARF at
	// the identical address range; DWARF has higher priority and must win.
	syms := []symbol.Symbol{
		symbol.NewUnmangled("my_pow", 0x1000, 0, 0x20, symbol.Elf),
		symbol.NewUnmangled("my_pow", 0x1000, 0, 0x20, symbol.Dwarf),
	}
	idx := symbolindex.New(syms)

	sym, _, ok := idx.Symbolicate(0x1000)
	require.True(t, ok)
	require.Equal(t, symbol.Dwarf, sym.Source())
}

func TestFuzzyFindMatchesAcrossTokens(t *testing.T) {
	syms := []symbol.Symbol{
		symbol.NewUnmangled("mymodule::my_pow", 0x1000, 0, 0x20, symbol.Dwarf),
		symbol.NewUnmangled("mymodule::my_powder", 0x2000, 0, 0x10, symbol.Dwarf),
	}
	idx := symbolindex.New(syms)

	sym, ok := idx.FuzzyFind("my_pow")
	require.True(t, ok)
	require.Equal(t, "mymodule::my_pow", sym.Name())
}

func TestFuzzyFindBreaksTiesBySourcePriority(t *testing.T) {
	syms := []symbol.Symbol{
		symbol.NewUnmangled("my_pow", 0x1000, 0, 0x20, symbol.Elf),
		symbol.NewUnmangled("my_pow", 0x1000, 0, 0x20, symbol.Dwarf),
	}
	idx := symbolindex.New(syms)

	sym, ok := idx.FuzzyFind("my_pow")
	require.True(t, ok)
	require.Equal(t, symbol.Dwarf, sym.Source())
}

func TestFuzzyFindReportsNoMatch(t *testing.T) {
	syms := []symbol.Symbol{
		symbol.NewUnmangled("my_pow", 0x1000, 0, 0x20, symbol.Elf),
	}
	idx := symbolindex.New(syms)

	_, ok := idx.FuzzyFind("completely_unrelated_name")
	require.False(t, ok)
}

func TestFuzzyListReturnsEveryMatch(t *testing.T) {
	// Tokenizer.Distance matches whole tokens, not substrings, so these
	// fixtures share the exact token "my_pow" inside a qualified name rather
	// than merely sharing a prefix.
	syms := []symbol.Symbol{
		symbol.NewUnmangled("a::my_pow", 0x1000, 0, 0x20, symbol.Elf),
		symbol.NewUnmangled("b::my_pow", 0x2000, 0, 0x10, symbol.Elf),
		symbol.NewUnmangled("unrelated", 0x3000, 0, 0x10, symbol.Elf),
	}
	idx := symbolindex.New(syms)

	matches := idx.FuzzyList("my_pow")
	require.Len(t, matches, 2)
}
