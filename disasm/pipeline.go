package disasm

import (
	"fmt"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"github.com/ExPixel/godisasm/curated"
	"github.com/ExPixel/godisasm/objfile"
	"github.com/ExPixel/godisasm/symbol"
)

// maxInstructionLen bounds the chunk handed to each decoder per step; every
// architecture this pipeline supports encodes instructions no longer than
// 15 bytes (x86's own worst case).
const maxInstructionLen = 15

// AddrToLine resolves an instruction address to zero or more source lines,
// supplied by the DWARF consumer. cmd/godisasm adapts
// dwarfconsumer.Consumer.Addr2Line into this function type.
type AddrToLine func(addr uint64) []SourceLine

// SourceLine is one (path, line number) pair an instruction maps to.
type SourceLine struct {
	Path string
	Line int
}

// SourceLoader resolves a (path, line) pair to its text. Implemented by
// sourceresolver.Resolver.
type SourceLoader interface {
	Resolve(path string, line int) (text string, ok bool, err error)
}

// Symbolicator resolves an address to the symbol containing it, along with
// the byte offset into that symbol. Implemented by symbolindex.Index.
type Symbolicator interface {
	Symbolicate(addr uint64) (sym symbol.Symbol, offset uint64, ok bool)
}

// Request configures one pipeline run: the bytes and base address of the
// target symbol, its architecture, and the optional source-attachment
// collaborators.
type Request struct {
	Arch       objfile.Arch
	Code       []byte
	BaseAddr   uint64
	Symbol     symbol.Symbol
	AddrToLine AddrToLine
	Source     SourceLoader
}

// Run decodes req.Code into a Listing and then runs the symbolication pass
// described in the jump-rewriting algorithm: External jumps landing inside
// the current symbol are rewritten to "<name>+0xN" and, if they land exactly
// on another decoded line, downgraded to Internal; External jumps landing
// elsewhere are looked up in index and rewritten to "<name>" or
// "<name>+0xN" on a hit, left untouched on a miss.
func Run(req Request, index Symbolicator) (Listing, error) {
	if req.Arch == objfile.ArchUnknown {
		return Listing{}, curated.Errorf(curated.UnknownArch)
	}

	listing, err := decode(req)
	if err != nil {
		return Listing{}, err
	}

	symbolicate(&listing, req.Symbol, index)

	return listing, nil
}

func decode(req Request) (Listing, error) {
	var listing Listing

	addr := req.BaseAddr
	code := req.Code

	for len(code) > 0 {
		n, mnemonic, operands, err := decodeOne(req.Arch, addr, code)
		if err != nil {
			return Listing{}, curated.Errorf(curated.InstructionDecode, addr, err)
		}
		if n <= 0 || n > len(code) {
			return Listing{}, curated.Errorf(curated.InstructionDecode, addr, fmt.Errorf("decoder reported invalid length %d", n))
		}

		raw := code[:n]
		line := Line{
			Address:  addr,
			Mnemonic: mnemonic,
			Operands: operands,
			Bytes:    append([]byte(nil), raw...),
			Jump:     analyzeJump(req.Arch, addr, raw),
		}

		if req.AddrToLine != nil && req.Source != nil {
			line.SourceLines = collectSourceLines(req.AddrToLine(addr), req.Source)
		}

		listing.Lines = append(listing.Lines, line)

		code = code[n:]
		addr += uint64(n)
	}

	return listing, nil
}

func collectSourceLines(locs []SourceLine, loader SourceLoader) []string {
	var out []string
	for _, loc := range locs {
		text, ok, err := loader.Resolve(loc.Path, loc.Line)
		if err != nil || !ok {
			continue
		}
		out = append(out, text)
	}
	return out
}

// decodeOne dispatches to the architecture-appropriate decoder, returning
// the number of bytes consumed and the mnemonic/operand text split the way
// each decoder package's own Stringer renders it.
func decodeOne(arch objfile.Arch, addr uint64, code []byte) (int, string, string, error) {
	chunk := code
	if len(chunk) > maxInstructionLen {
		chunk = chunk[:maxInstructionLen]
	}

	switch arch {
	case objfile.ArchX86, objfile.ArchX86_64:
		mode := 32
		if arch == objfile.ArchX86_64 {
			mode = 64
		}
		inst, err := x86asm.Decode(chunk, mode)
		if err != nil {
			return 0, "", "", err
		}
		text := x86asm.IntelSyntax(inst, addr, nil)
		mnemonic, operands := splitMnemonic(text)
		return inst.Len, mnemonic, operands, nil

	case objfile.ArchArm:
		// ModeARM (non-Thumb) instructions are always exactly 4 bytes wide.
		inst, err := armasm.Decode(chunk, armasm.ModeARM)
		if err != nil {
			return 0, "", "", err
		}
		mnemonic, operands := splitMnemonic(inst.String())
		return 4, mnemonic, operands, nil

	case objfile.ArchAArch64:
		// AArch64 instructions are always exactly 4 bytes wide.
		inst, err := arm64asm.Decode(chunk)
		if err != nil {
			return 0, "", "", err
		}
		mnemonic, operands := splitMnemonic(inst.String())
		return 4, mnemonic, operands, nil

	default:
		return 0, "", "", curated.Errorf(curated.UnknownArch)
	}
}

// splitMnemonic divides a decoder's single-line formatted instruction text
// into its leading mnemonic and the remaining operand text.
func splitMnemonic(text string) (mnemonic, operands string) {
	for i, r := range text {
		if r == ' ' {
			return text[:i], text[i+1:]
		}
	}
	return text, ""
}

func symbolicate(listing *Listing, sym symbol.Symbol, index Symbolicator) {
	for i := range listing.Lines {
		line := &listing.Lines[i]
		if line.Jump.Kind != JumpExternal {
			continue
		}

		target := line.Jump.Target
		comment := fmt.Sprintf("0x%x", target)

		if sym.Contains(target) {
			offset := target - sym.Address()
			line.Operands = symbolicatedOperand(sym.Name(), offset)
			line.Comment = comment
			line.Symbolicated = true
			if idx, ok := listing.lineIndexAt(target); ok {
				line.Jump = Jump{Kind: JumpInternal, LineIndex: idx}
			}
			continue
		}

		if index == nil {
			continue
		}
		hit, offset, ok := index.Symbolicate(target)
		if !ok {
			continue
		}
		line.Operands = symbolicatedOperand(hit.Name(), offset)
		line.Comment = comment
		line.Symbolicated = true
	}
}

func symbolicatedOperand(name string, offset uint64) string {
	if offset == 0 {
		return name
	}
	return fmt.Sprintf("%s+0x%x", name, offset)
}
