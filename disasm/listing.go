// Package disasm glues the symbol index, the per-architecture decoders, and
// the jump analyzer into a single Listing for one symbol's byte range.
package disasm

// JumpKind classifies what a DisasmLine's control-transfer verdict is.
type JumpKind uint8

const (
	// JumpNone means the instruction does not transfer control in a way the
	// analyzer resolves (includes non-branches and indirect branches).
	JumpNone JumpKind = iota

	// JumpInternal means the instruction branches to another line of the
	// same Listing, identified by line index.
	JumpInternal

	// JumpExternal means the instruction branches to an absolute address
	// not (yet, or ever) resolved to a line index of this Listing.
	JumpExternal
)

// Jump is the JumpAnalyzer's verdict for one instruction. Target and
// LineIndex are mutually meaningful depending on Kind: External populates
// Target, Internal populates LineIndex, None populates neither.
type Jump struct {
	Kind      JumpKind
	Target    uint64
	LineIndex int
}

// Line is one decoded instruction, possibly annotated with source text and
// symbolication.
type Line struct {
	Address  uint64
	Mnemonic string
	Operands string
	Comment  string
	Bytes    []byte

	// SourceLines holds zero or more source lines attached via addr2line +
	// SourceResolver when source mode is on. Empty when source mode is off
	// or no line info covers Address.
	SourceLines []string

	Jump         Jump
	Symbolicated bool
}

// EndAddress is one byte past the end of the instruction's encoding.
func (l Line) EndAddress() uint64 {
	return l.Address + uint64(len(l.Bytes))
}

// Listing is an ordered, immutable-once-built sequence of Lines covering one
// symbol's address range.
type Listing struct {
	Lines []Line
}

// EndAddress is the address one byte past the last instruction, or 0 for an
// empty listing.
func (d Listing) EndAddress() uint64 {
	if len(d.Lines) == 0 {
		return 0
	}
	last := d.Lines[len(d.Lines)-1]
	return last.EndAddress()
}

// lineIndexAt returns the index of the Line starting exactly at addr, if
// any. Used by the symbolication pass to downgrade External jumps that land
// on another decoded instruction's start to Internal.
func (d Listing) lineIndexAt(addr uint64) (int, bool) {
	for i, line := range d.Lines {
		if line.Address == addr {
			return i, true
		}
	}
	return 0, false
}
