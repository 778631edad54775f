package vcpu

import (
	"golang.org/x/arch/x86/x86asm"
)

// regWidth is an operand width in bits.
type regWidth int

const (
	width8  regWidth = 8
	width16 regWidth = 16
	width32 regWidth = 32
	width64 regWidth = 64
)

// regEntry is one row of the register-index table: the REDESIGN FLAG in
// spec.md §9 asks that "enum register -> index" be a pure table, not a
// computation on field offsets (the original computes it by pointer
// arithmetic against a fake PCONTEXT). high8 marks the AH/BH/CH/DH
// aliases, the only high-byte registers this core resolves.
type regEntry struct {
	index RegIndex
	width regWidth
	high8 bool
}

var gprTable = map[x86asm.Reg]regEntry{
	// 8-bit low byte.
	x86asm.AL:   {RegRAX, width8, false},
	x86asm.CL:   {RegRCX, width8, false},
	x86asm.DL:   {RegRDX, width8, false},
	x86asm.BL:   {RegRBX, width8, false},
	x86asm.SPB:  {RegRSP, width8, false},
	x86asm.BPB:  {RegRBP, width8, false},
	x86asm.SIB:  {RegRSI, width8, false},
	x86asm.DIB:  {RegRDI, width8, false},
	x86asm.R8B:  {RegR8, width8, false},
	x86asm.R9B:  {RegR9, width8, false},
	x86asm.R10B: {RegR10, width8, false},
	x86asm.R11B: {RegR11, width8, false},
	x86asm.R12B: {RegR12, width8, false},
	x86asm.R13B: {RegR13, width8, false},
	x86asm.R14B: {RegR14, width8, false},
	x86asm.R15B: {RegR15, width8, false},

	// 8-bit high byte: the only high-byte aliases this core supports (§4.1).
	x86asm.AH: {RegRAX, width8, true},
	x86asm.CH: {RegRCX, width8, true},
	x86asm.DH: {RegRDX, width8, true},
	x86asm.BH: {RegRBX, width8, true},

	// 16-bit.
	x86asm.AX:   {RegRAX, width16, false},
	x86asm.CX:   {RegRCX, width16, false},
	x86asm.DX:   {RegRDX, width16, false},
	x86asm.BX:   {RegRBX, width16, false},
	x86asm.SP:   {RegRSP, width16, false},
	x86asm.BP:   {RegRBP, width16, false},
	x86asm.SI:   {RegRSI, width16, false},
	x86asm.DI:   {RegRDI, width16, false},
	x86asm.R8W:  {RegR8, width16, false},
	x86asm.R9W:  {RegR9, width16, false},
	x86asm.R10W: {RegR10, width16, false},
	x86asm.R11W: {RegR11, width16, false},
	x86asm.R12W: {RegR12, width16, false},
	x86asm.R13W: {RegR13, width16, false},
	x86asm.R14W: {RegR14, width16, false},
	x86asm.R15W: {RegR15, width16, false},

	// 32-bit.
	x86asm.EAX:  {RegRAX, width32, false},
	x86asm.ECX:  {RegRCX, width32, false},
	x86asm.EDX:  {RegRDX, width32, false},
	x86asm.EBX:  {RegRBX, width32, false},
	x86asm.ESP:  {RegRSP, width32, false},
	x86asm.EBP:  {RegRBP, width32, false},
	x86asm.ESI:  {RegRSI, width32, false},
	x86asm.EDI:  {RegRDI, width32, false},
	x86asm.R8L:  {RegR8, width32, false},
	x86asm.R9L:  {RegR9, width32, false},
	x86asm.R10L: {RegR10, width32, false},
	x86asm.R11L: {RegR11, width32, false},
	x86asm.R12L: {RegR12, width32, false},
	x86asm.R13L: {RegR13, width32, false},
	x86asm.R14L: {RegR14, width32, false},
	x86asm.R15L: {RegR15, width32, false},

	// 64-bit.
	x86asm.RAX: {RegRAX, width64, false},
	x86asm.RCX: {RegRCX, width64, false},
	x86asm.RDX: {RegRDX, width64, false},
	x86asm.RBX: {RegRBX, width64, false},
	x86asm.RSP: {RegRSP, width64, false},
	x86asm.RBP: {RegRBP, width64, false},
	x86asm.RSI: {RegRSI, width64, false},
	x86asm.RDI: {RegRDI, width64, false},
	x86asm.R8:  {RegR8, width64, false},
	x86asm.R9:  {RegR9, width64, false},
	x86asm.R10: {RegR10, width64, false},
	x86asm.R11: {RegR11, width64, false},
	x86asm.R12: {RegR12, width64, false},
	x86asm.R13: {RegR13, width64, false},
	x86asm.R14: {RegR14, width64, false},
	x86asm.R15: {RegR15, width64, false},

	x86asm.RIP: {RegRIP, width64, false},
}

// crTable and drTable resolve the control/debug registers C6 handles.
// They are separate from gprTable because CR/DR operands never carry a
// GPR index or width-rule of their own (they address C7's store, not a
// Context slot), but the same "pure table" discipline applies.
var crTable = map[x86asm.Reg]bool{
	x86asm.CR0: true,
	x86asm.CR3: true,
	x86asm.CR4: true,
	x86asm.CR8: true,
}

var drTable = map[x86asm.Reg]bool{
	x86asm.DR7: true,
}

// RegisterIndex returns the canonical GPR index for r, or RegInvalid if r
// is not one of the GPR8/16/32/64 aliases or RIP this core resolves.
func RegisterIndex(r x86asm.Reg) RegIndex {
	if e, ok := gprTable[r]; ok {
		return e.index
	}
	if r == x86asm.RIP {
		return RegRIP
	}
	return RegInvalid
}

// ReadOperand returns the width-masked value of register r per §4.1: full
// 64 bits for GPR64, low 32/16/8 for the narrower classes, and bits
// [15:8] of the parent for AH/BH/CH/DH.
func ReadOperand(ctx *Context, r x86asm.Reg) (uint64, bool) {
	e, ok := gprTable[r]
	if !ok {
		return 0, false
	}
	full := ctx.Read(e.index)
	switch e.width {
	case width64:
		return full, true
	case width32:
		return full & 0xFFFFFFFF, true
	case width16:
		return full & 0xFFFF, true
	default: // width8
		if e.high8 {
			return (full >> 8) & 0xFF, true
		}
		return full & 0xFF, true
	}
}

// WritePartial applies a store to register r following the §3-ii width
// rules: a 32-bit write zero-extends into the 64-bit parent; 16-bit and
// 8-bit writes (including the AH/BH/CH/DH high-byte slice) leave the rest
// of the parent untouched.
func WritePartial(ctx *Context, r x86asm.Reg, value uint64) bool {
	e, ok := gprTable[r]
	if !ok {
		return false
	}
	switch e.width {
	case width64:
		ctx.Write(e.index, value)
	case width32:
		ctx.Write(e.index, value&0xFFFFFFFF)
	case width16:
		orig := ctx.Read(e.index)
		ctx.Write(e.index, (orig&^uint64(0xFFFF))|(value&0xFFFF))
	default: // width8
		orig := ctx.Read(e.index)
		if e.high8 {
			ctx.Write(e.index, (orig&^uint64(0xFF00))|((value&0xFF)<<8))
		} else {
			ctx.Write(e.index, (orig&^uint64(0xFF))|(value&0xFF))
		}
	}
	return true
}

// OperandWidth returns the operand width in bits of r, or 0 if r is not a
// register this core resolves.
func OperandWidth(r x86asm.Reg) int {
	e, ok := gprTable[r]
	if !ok {
		return 0
	}
	return int(e.width)
}
