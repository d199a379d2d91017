// Package dwarfconsumer walks a parsed debug/dwarf tree to recover function
// symbols with fully-qualified names, and answers address->(file, line)
// queries against the line-number program.
package dwarfconsumer

import (
	"debug/dwarf"
	"io"
	"runtime"
	"sort"
	"sync"

	"github.com/ExPixel/godisasm/curated"
	"github.com/ExPixel/godisasm/logger"
	"github.com/ExPixel/godisasm/symbol"
)

// trackedTags are the DIE kinds that contribute a name component to nested
// subprograms' qualified names (module::namespace::Type::function).
var trackedTags = map[dwarf.Tag]bool{
	dwarf.TagModule:           true,
	dwarf.TagNamespace:        true,
	dwarf.TagStructType:       true,
	dwarf.TagClassType:        true,
	dwarf.TagUnionType:        true,
	dwarf.TagInterfaceType:    true,
	dwarf.TagInheritance:      true,
	dwarf.TagEnumerationType:  true,
}

// Consumer wraps a parsed DWARF tree with the lazy per-unit line-table cache
// Addr2Line needs.
type Consumer struct {
	dw *dwarf.Data

	mu     sync.Mutex
	tables map[dwarf.Offset]lineTable
}

// New wraps dw. dw must be non-nil.
func New(dw *dwarf.Data) *Consumer {
	return &Consumer{dw: dw, tables: make(map[dwarf.Offset]lineTable)}
}

// AddrToOffsetFunc maps a virtual address to its file offset, or reports
// false if no loaded section covers it. dwarfconsumer doesn't know about
// object sections directly; the caller supplies this from its SectionTable.
type AddrToOffsetFunc func(addr uint64) (uint64, bool)

// LoadSymbols walks every compilation unit's subprogram DIEs, in a bounded
// pool of goroutines (one per unit, capped at GOMAXPROCS), and returns a
// qualified-name symbol.Symbol for each subprogram with both a PC range and
// a name. A unit that fails to decode is logged and skipped rather than
// aborting the whole walk.
func (c *Consumer) LoadSymbols(addrToOffset AddrToOffsetFunc) ([]symbol.Symbol, error) {
	unitOffsets, err := c.scanCompilationUnits()
	if err != nil {
		return nil, curated.Errorf(curated.DwarfUnitDecode, err)
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(unitOffsets) {
		workers = len(unitOffsets)
	}
	if workers == 0 {
		return nil, nil
	}

	jobs := make(chan dwarf.Offset)
	results := make(chan []symbol.Symbol)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for off := range jobs {
				syms, err := c.loadSymbolsFromUnit(off, addrToOffset)
				if err != nil {
					logger.Logf("dwarfconsumer", "%v", curated.Errorf(curated.DwarfUnitDecode, err))
					continue
				}
				results <- syms
			}
		}()
	}

	go func() {
		for _, off := range unitOffsets {
			jobs <- off
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []symbol.Symbol
	for syms := range results {
		all = append(all, syms...)
	}

	return all, nil
}

// scanCompilationUnits does one fast serial pass over the info section,
// recording each compilation/partial unit's entry offset and skipping its
// children, so the per-unit walk in LoadSymbols can seek directly to each
// one's start.
func (c *Consumer) scanCompilationUnits() ([]dwarf.Offset, error) {
	r := c.dw.Reader()
	var offsets []dwarf.Offset
	for {
		e, err := r.Next()
		if err != nil {
			return nil, err
		}
		if e == nil {
			break
		}
		if e.Tag == dwarf.TagCompileUnit || e.Tag == dwarf.TagPartialUnit {
			offsets = append(offsets, e.Offset)
			r.SkipChildren()
		}
	}
	return offsets, nil
}

type nameFrame struct {
	pushed bool
}

// loadSymbolsFromUnit walks exactly one compilation unit's subtree using a
// Reader seeked to its start, tracking nested scope names as a stack so
// that a subprogram nested under namespaces/types gets a fully-qualified
// name like "mymodule::MyType::method".
func (c *Consumer) loadSymbolsFromUnit(cuOffset dwarf.Offset, addrToOffset AddrToOffsetFunc) ([]symbol.Symbol, error) {
	r := c.dw.Reader()
	r.Seek(cuOffset)

	cu, err := r.Next()
	if err != nil {
		return nil, err
	}
	if cu == nil {
		return nil, nil
	}

	var symbols []symbol.Symbol
	var nameChain []string
	var frames []nameFrame

	depth := 0
	if cu.Children {
		depth++
	}

	for depth > 0 {
		e, err := r.Next()
		if err != nil {
			return symbols, err
		}
		if e == nil {
			break
		}

		if e.Tag == 0 {
			depth--
			if len(frames) > 0 {
				top := frames[len(frames)-1]
				frames = frames[:len(frames)-1]
				if top.pushed {
					nameChain = nameChain[:len(nameChain)-1]
				}
			}
			continue
		}

		pushed := false
		if e.Tag == dwarf.TagSubprogram {
			if sym, ok := c.symbolFromSubprogram(e, nameChain, addrToOffset); ok {
				symbols = append(symbols, sym)
			}
		} else if trackedTags[e.Tag] {
			if name, ok := e.Val(dwarf.AttrName).(string); ok {
				nameChain = append(nameChain, name)
				pushed = true
			}
		}

		if e.Children {
			depth++
			frames = append(frames, nameFrame{pushed: pushed})
		}
	}

	return symbols, nil
}

func (c *Consumer) symbolFromSubprogram(e *dwarf.Entry, nameChain []string, addrToOffset AddrToOffsetFunc) (symbol.Symbol, bool) {
	ranges, err := c.dw.Ranges(e)
	if err != nil || len(ranges) == 0 {
		return symbol.Symbol{}, false
	}
	start, end := ranges[0][0], ranges[0][1]
	if end <= start {
		return symbol.Symbol{}, false
	}

	off, ok := addrToOffset(start)
	if !ok {
		return symbol.Symbol{}, false
	}
	size := end - start

	if linkage, ok := e.Val(dwarf.AttrLinkageName).(string); ok && linkage != "" {
		return symbol.New(linkage, start, off, size, symbol.Dwarf), true
	}

	name, ok := e.Val(dwarf.AttrName).(string)
	if !ok || name == "" {
		return symbol.Symbol{}, false
	}

	qualified := joinNameChain(append(append([]string{}, nameChain...), name))
	return symbol.NewUnmangled(qualified, start, off, size, symbol.Dwarf), true
}

func joinNameChain(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "::" + p
	}
	return out
}

// LineRow is one (file, line) row of a compilation unit's line-number
// program, associated with the address it was hit at.
type LineRow struct {
	File string
	Line int
}

// Addr2Line resolves addr to every line-table row recorded at that exact
// address, in document order. DWARF line programs can legitimately record
// more than one row per address (an inlined call site followed by its
// first inlined statement is the common case), so unlike a conventional
// addr2line that reports a single winner, every row at the hit address is
// returned - the caller decides how many it wants to show.
func (c *Consumer) Addr2Line(addr uint64) ([]LineRow, bool) {
	r := c.dw.Reader()
	cu, err := r.SeekPC(addr)
	if err != nil || cu == nil {
		return nil, false
	}

	table, err := c.lineTableFor(cu)
	if err != nil {
		return nil, false
	}

	rows := table.find(addr)
	if len(rows) == 0 {
		return nil, false
	}

	out := make([]LineRow, len(rows))
	for i, r := range rows {
		out[i] = LineRow{File: r.file, Line: r.line}
	}
	return out, true
}

// lineRow is one decoded, not-yet-collapsed-away entry of a compilation
// unit's line-number program.
type lineRow struct {
	addr uint64
	file string
	line int
}

// lineTable is a compilation unit's line-number program flattened into a
// single address-sorted slice, built once per unit and cached. Building it
// applies the same sequence/collapse policy the underlying DWARF data uses:
// a run of rows belonging to one sequence is kept only while the sequence's
// start address is non-zero and it has accumulated at least one row, and
// consecutive rows at the same address collapse to the last one (DWARF's
// "last row wins at a PC" rule) - so lookups only ever widen across
// non-consecutive rows that happen to share an address.
type lineTable struct {
	rows []lineRow
}

// find returns every row in t sharing addr, in their original relative
// order, via a binary search to the first hit followed by a widening scan
// left and right across ties.
func (t lineTable) find(addr uint64) []lineRow {
	n := len(t.rows)
	i := sort.Search(n, func(i int) bool { return t.rows[i].addr >= addr })
	if i >= n || t.rows[i].addr != addr {
		return nil
	}

	lo, hi := i, i+1
	for lo > 0 && t.rows[lo-1].addr == addr {
		lo--
	}
	for hi < n && t.rows[hi].addr == addr {
		hi++
	}
	return t.rows[lo:hi]
}

func (c *Consumer) lineTableFor(cu *dwarf.Entry) (lineTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.tables[cu.Offset]; ok {
		return t, nil
	}

	lr, err := c.dw.LineReader(cu)
	if err != nil {
		return lineTable{}, err
	}

	t := buildLineTable(lr)
	c.tables[cu.Offset] = t
	return t, nil
}

// buildLineTable decodes every sequence of lr into a single address-sorted
// row slice. A sequence is buffered as it's read; on its closing
// end_sequence row, the buffer is appended to the table if the sequence
// started at a non-zero address and accumulated at least one row (a
// zero-start sequence is an artifact, not real code), and discarded
// otherwise. Within a sequence, a row whose address matches the
// immediately preceding row overwrites that row's file/line rather than
// appending a new one.
func buildLineTable(lr *dwarf.LineReader) lineTable {
	var rows []lineRow
	var buffer []lineRow
	var seqStart, seqPrev uint64

	var entry dwarf.LineEntry
	for {
		err := lr.Next(&entry)
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		if entry.EndSequence {
			if seqStart != 0 && len(buffer) > 0 {
				rows = append(rows, buffer...)
			}
			buffer = nil
			continue
		}

		file := ""
		if entry.File != nil {
			file = entry.File.Name
		}

		if len(buffer) > 0 && seqPrev == entry.Address {
			buffer[len(buffer)-1].file = file
			buffer[len(buffer)-1].line = entry.Line
			continue
		}

		if len(buffer) == 0 {
			seqStart = entry.Address
		}
		seqPrev = entry.Address
		buffer = append(buffer, lineRow{addr: entry.Address, file: file, line: entry.Line})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].addr < rows[j].addr })
	return lineTable{rows: rows}
}
