package disasm

import (
	"strconv"
	"strings"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"github.com/ExPixel/godisasm/objfile"
)

// analyzeJump classifies a decoded instruction as call/branch/return and, if
// its sole operand is an immediate, resolves the absolute branch target.
// Indirect branches (register/memory operands) are deliberately left
// unresolved - doing otherwise needs data-flow analysis this pipeline does
// not attempt.
//
// The dispatch is a sum type over architecture, one arm per decoder, mirroring
// the architecture-specific detail payload each decoder package exposes.
// x86's classification is grounded directly on a concrete instruction-group
// constant set; ARM/AArch64 support is not present upstream (only x86 jump
// analysis was ever wired there) and is added here as a natural extension of
// the same per-architecture sum type, using each decoder's own mnemonic
// classification since golang.org/x/arch does not expose a capstone-style
// instruction-group set.
func analyzeJump(arch objfile.Arch, addr uint64, raw []byte) Jump {
	switch arch {
	case objfile.ArchX86, objfile.ArchX86_64:
		return analyzeJumpX86(addr, raw, arch == objfile.ArchX86_64)
	case objfile.ArchArm:
		return analyzeJumpArm(addr, raw)
	case objfile.ArchAArch64:
		return analyzeJumpArm64(addr, raw)
	default:
		return Jump{Kind: JumpNone}
	}
}

func x86Mode(is64 bool) int {
	if is64 {
		return 64
	}
	return 32
}

// x86 terminator/branch opcodes, enumerated explicitly rather than derived
// from a group bitmask (x86asm has none): unconditional jump, the full
// conditional-jump family, and loop-family branches. Call and return are
// not in this map; analyzeJumpX86 recognises them separately.
var x86JumpOps = map[x86asm.Op]bool{
	x86asm.JMP:    true,
	x86asm.JA:     true,
	x86asm.JAE:    true,
	x86asm.JB:     true,
	x86asm.JBE:    true,
	x86asm.JCXZ:   true,
	x86asm.JE:     true,
	x86asm.JECXZ:  true,
	x86asm.JG:     true,
	x86asm.JGE:    true,
	x86asm.JL:     true,
	x86asm.JLE:    true,
	x86asm.JNE:    true,
	x86asm.JNO:    true,
	x86asm.JNP:    true,
	x86asm.JNS:    true,
	x86asm.JO:     true,
	x86asm.JP:     true,
	x86asm.JRCXZ:  true,
	x86asm.JS:     true,
	x86asm.LOOP:   true,
	x86asm.LOOPE:  true,
	x86asm.LOOPNE: true,
}

func analyzeJumpX86(addr uint64, raw []byte, is64 bool) Jump {
	inst, err := x86asm.Decode(raw, x86Mode(is64))
	if err != nil {
		return Jump{Kind: JumpNone}
	}

	isCall := inst.Op == x86asm.CALL
	isRet := inst.Op == x86asm.RET
	isBranch := x86JumpOps[inst.Op]
	if isRet {
		return Jump{Kind: JumpNone}
	}
	if !isCall && !isBranch {
		return Jump{Kind: JumpNone}
	}

	rel, ok := soleRel(inst)
	if !ok {
		return Jump{Kind: JumpNone}
	}
	// x86asm.Rel is a signed distance from the end of the instruction, not
	// an absolute address; IntelSyntax/GNUSyntax perform this same addition
	// when handed a pc.
	target := addr + uint64(inst.Len) + uint64(int64(rel))
	return Jump{Kind: JumpExternal, Target: target}
}

// soleRel reports whether inst has exactly one operand and it is a
// pc-relative displacement (x86asm.Rel: a signed distance from the end of
// the instruction).
func soleRel(inst x86asm.Inst) (int64, bool) {
	var count int
	var rel x86asm.Rel
	var found bool
	for _, arg := range inst.Args {
		if arg == nil {
			continue
		}
		count++
		if r, ok := arg.(x86asm.Rel); ok {
			rel = r
			found = true
		}
	}
	if count != 1 || !found {
		return 0, false
	}
	return int64(rel), true
}

func analyzeJumpArm(addr uint64, raw []byte) Jump {
	inst, err := armasm.Decode(raw, armasm.ModeARM)
	if err != nil {
		return Jump{Kind: JumpNone}
	}
	if !isArmBranchOp(inst.Op) {
		return Jump{Kind: JumpNone}
	}
	if rel, ok := soleImmediateOffset(inst.String()); ok {
		return Jump{Kind: JumpExternal, Target: addr + rel}
	}
	return Jump{Kind: JumpNone}
}

func isArmBranchOp(op armasm.Op) bool {
	switch op {
	case armasm.B, armasm.BL, armasm.BLX, armasm.BX:
		return true
	default:
		return false
	}
}

func analyzeJumpArm64(addr uint64, raw []byte) Jump {
	inst, err := arm64asm.Decode(raw)
	if err != nil {
		return Jump{Kind: JumpNone}
	}
	if !isArm64BranchOp(inst.Op) {
		return Jump{Kind: JumpNone}
	}
	if rel, ok := soleImmediateOffset(inst.String()); ok {
		return Jump{Kind: JumpExternal, Target: addr + rel}
	}
	return Jump{Kind: JumpNone}
}

func isArm64BranchOp(op arm64asm.Op) bool {
	switch op {
	case arm64asm.B, arm64asm.BL:
		return true
	default:
		return false
	}
}

// soleImmediateOffset extracts the single trailing hex/decimal literal
// operand (the form both armasm and arm64asm print a branch's PC-relative
// field in, e.g. "B 0x18" or "BL -0x40") from a decoded instruction's
// formatted text, returning it as a value ready to add to the instruction's
// own address. Neither decoder package is handed the instruction's runtime
// address at Decode time, so this value is the raw encoded displacement, not
// an already-resolved target - callers add it to the instruction address
// themselves, mirroring x86's Rel convention. Indirect branches (register
// operands, e.g. "BX R14" or "BLR X0") have no such literal and correctly
// report no match.
func soleImmediateOffset(text string) (uint64, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return 0, false
	}
	operand := strings.TrimPrefix(fields[1], "#")
	neg := strings.HasPrefix(operand, "-")
	operand = strings.TrimPrefix(operand, "-")
	if !strings.HasPrefix(operand, "0x") {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(operand, "0x"), 16, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		return uint64(-int64(v)), true
	}
	return v, true
}
