// Package symbolindex aggregates Symbols recovered from every source into a
// single sorted index, supplying reverse (address) lookup and fuzzy-name
// lookup.
package symbolindex

import (
	"math"
	"sort"

	"github.com/ExPixel/godisasm/symbol"
	"github.com/ExPixel/godisasm/tokenizer"
)

// DefaultAutoThreshold is the symbol count below which the "auto" symbol
// source policy augments debug-info symbols with object-table symbols. See
// DESIGN.md's Open Question decisions.
const DefaultAutoThreshold = 128 * 1024

// Index owns a vector of Symbols sorted by (address ASC, end_address ASC,
// source priority).
// Sorting is the only mutation after initial load: every lookup is read-only.
type Index struct {
	symbols []symbol.Symbol
}

// New sorts syms by (address, end_address, source priority) and returns the
// resulting index.
// syms is not mutated in place; a new backing slice is allocated.
func New(syms []symbol.Symbol) *Index {
	sorted := make([]symbol.Symbol, len(syms))
	copy(sorted, syms)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Address() != sorted[j].Address() {
			return sorted[i].Address() < sorted[j].Address()
		}
		if sorted[i].EndAddress() != sorted[j].EndAddress() {
			return sorted[i].EndAddress() < sorted[j].EndAddress()
		}
		return sorted[i].Source().Priority() < sorted[j].Source().Priority()
	})
	return &Index{symbols: sorted}
}

// Len is the number of symbols held by the index.
func (idx *Index) Len() int { return len(idx.symbols) }

// Symbolicate returns the highest-priority symbol whose address range
// contains addr, and addr's offset from that symbol's start. ok is false if
// no symbol covers addr.
func (idx *Index) Symbolicate(addr uint64) (sym symbol.Symbol, offset uint64, ok bool) {
	i, found := idx.search(addr)
	if !found {
		return symbol.Symbol{}, 0, false
	}

	// Duplicates of the same function recovered from different sources sort
	// adjacently (same address); scan backward to the first of them, which
	// is the highest-priority one because New breaks ties on identical
	// ranges by source priority.
	for i > 0 && idx.symbols[i-1].Contains(addr) {
		i--
	}

	sym = idx.symbols[i]
	return sym, addr - sym.Address(), true
}

// search binary-searches for any symbol whose [Address, EndAddress) range
// contains addr.
func (idx *Index) search(addr uint64) (int, bool) {
	lo, hi := 0, len(idx.symbols)
	for lo < hi {
		mid := (lo + hi) / 2
		sym := idx.symbols[mid]
		switch {
		case addr < sym.Address():
			hi = mid
		case addr >= sym.EndAddress():
			lo = mid + 1
		default:
			return mid, true
		}
	}
	return 0, false
}

// Match pairs a Symbol with its tokenizer.Distance from a fuzzy query.
type Match struct {
	Symbol   symbol.Symbol
	Distance int
}

// FuzzyList tokenizes name once and scores every symbol in the index against
// it, returning every symbol that matched (distance != tokenizer.NoMatch) in
// index order. Unlike FuzzyFind, there is no running best-so-far bound here:
// every candidate is scored independently since the caller wants the full
// match set, not just the winner.
func (idx *Index) FuzzyList(name string) []Match {
	queryTokens := tokenizer.Tokenize(name, false)

	var matches []Match
	for _, sym := range idx.symbols {
		symTokens := tokenizer.Tokenize(sym.Name(), false)
		dist := tokenizer.Distance(queryTokens, symTokens, math.MaxInt)
		if dist == tokenizer.NoMatch {
			continue
		}
		matches = append(matches, Match{Symbol: sym, Distance: dist})
	}
	return matches
}

// FuzzyFind returns the symbol whose tokenized name has the smallest
// tokenizer.Distance from the tokenized query, tokenizing name once up
// front and passing the running minimum as an early-exit bound to every
// candidate. Ties break by (source priority, address, file offset, name).
func (idx *Index) FuzzyFind(name string) (symbol.Symbol, bool) {
	queryTokens := tokenizer.Tokenize(name, false)

	var best symbol.Symbol
	bestDist := math.MaxInt
	found := false

	for _, sym := range idx.symbols {
		symTokens := tokenizer.Tokenize(sym.Name(), false)
		dist := tokenizer.Distance(queryTokens, symTokens, bestDist)
		if dist == tokenizer.NoMatch {
			continue
		}

		if !found || isBetterMatch(dist, sym, bestDist, best) {
			best = sym
			bestDist = dist
			found = true
		}
	}

	return best, found
}

// isBetterMatch orders two candidates by (distance, source priority,
// address, file offset, name), matching the tiebreak spec.md §4.5 specifies
// for fuzzy lookup.
func isBetterMatch(dist int, sym symbol.Symbol, bestDist int, best symbol.Symbol) bool {
	if dist != bestDist {
		return dist < bestDist
	}
	if sym.Source().Priority() != best.Source().Priority() {
		return sym.Source().Priority() < best.Source().Priority()
	}
	if sym.Address() != best.Address() {
		return sym.Address() < best.Address()
	}
	if sym.FileOffset() != best.FileOffset() {
		return sym.FileOffset() < best.FileOffset()
	}
	return sym.Name() < best.Name()
}
