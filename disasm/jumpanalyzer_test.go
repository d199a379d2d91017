package disasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ExPixel/godisasm/objfile"
)

// callRel32 builds a near-CALL instruction (opcode 0xE8) whose rel32 operand
// resolves to target when executed from addr (5-byte instruction: target =
// addr + 5 + rel32).
func callRel32(addr, target uint64) []byte {
	rel := int32(int64(target) - int64(addr) - 5)
	return []byte{0xe8, byte(rel), byte(rel >> 8), byte(rel >> 16), byte(rel >> 24)}
}

func TestAnalyzeJumpX86ResolvesCallTarget(t *testing.T) {
	raw := callRel32(0x1004, 0x1018)
	jump := analyzeJump(objfile.ArchX86_64, 0x1004, raw)
	require.Equal(t, JumpExternal, jump.Kind)
	require.Equal(t, uint64(0x1018), jump.Target)
}

func TestAnalyzeJumpX86TreatsRetAsNone(t *testing.T) {
	jump := analyzeJump(objfile.ArchX86_64, 0x1000, []byte{0xc3})
	require.Equal(t, JumpNone, jump.Kind)
}

func TestAnalyzeJumpX86TreatsNopAsNone(t *testing.T) {
	jump := analyzeJump(objfile.ArchX86_64, 0x1000, []byte{0x90})
	require.Equal(t, JumpNone, jump.Kind)
}

func TestAnalyzeJumpX86TreatsIndirectCallAsNone(t *testing.T) {
	// call rax: FF D0
	jump := analyzeJump(objfile.ArchX86_64, 0x1000, []byte{0xff, 0xd0})
	require.Equal(t, JumpNone, jump.Kind)
}

func TestAnalyzeJumpUnknownArchIsNone(t *testing.T) {
	jump := analyzeJump(objfile.ArchUnknown, 0x1000, []byte{0x90})
	require.Equal(t, JumpNone, jump.Kind)
}
