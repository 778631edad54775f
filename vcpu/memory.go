package vcpu

import (
	"fmt"
	"unsafe"

	"github.com/usermode-kace/vcpu/vcpu/vcpuerrors"
	"github.com/usermode-kace/vcpu/vcpu/vcpulog"
	"golang.org/x/arch/x86/x86asm"
)

// AccessKind distinguishes a read fault from a write fault, mirroring the
// original's separate MemoryRead::Parse / MemoryWrite::Parse entry
// points and the external interface in spec.md §6.
type AccessKind int

const (
	AccessRead AccessKind = iota
	AccessWrite
)

type opKind int

const (
	opOther opKind = iota
	opReg
	opMem
	opImm
)

func kindOf(a x86asm.Arg) opKind {
	switch a.(type) {
	case x86asm.Reg:
		return opReg
	case x86asm.Mem:
		return opMem
	case x86asm.Imm:
		return opImm
	default:
		return opOther
	}
}

func widthFromBytes(n int) (regWidth, bool) {
	switch n {
	case 1:
		return width8, true
	case 2:
		return width16, true
	case 4:
		return width32, true
	case 8:
		return width64, true
	default:
		return 0, false
	}
}

func loadWidth(hostAddr uint64, w regWidth) uint64 {
	p := unsafe.Pointer(uintptr(hostAddr))
	switch w {
	case width8:
		return uint64(*(*uint8)(p))
	case width16:
		return uint64(*(*uint16)(p))
	case width32:
		return uint64(*(*uint32)(p))
	default:
		return *(*uint64)(p)
	}
}

func loadSignExtended(hostAddr uint64, w regWidth) uint64 {
	p := unsafe.Pointer(uintptr(hostAddr))
	switch w {
	case width8:
		return uint64(int64(int8(*(*uint8)(p))))
	case width16:
		return uint64(int64(int16(*(*uint16)(p))))
	case width32:
		return uint64(int64(int32(*(*uint32)(p))))
	default:
		return *(*uint64)(p)
	}
}

func storeWidth(hostAddr uint64, w regWidth, value uint64) {
	p := unsafe.Pointer(uintptr(hostAddr))
	switch w {
	case width8:
		*(*uint8)(p) = uint8(value)
	case width16:
		*(*uint16)(p) = uint16(value)
	case width32:
		*(*uint32)(p) = uint32(value)
	default:
		*(*uint64)(p) = value
	}
}

func operandShape(inst x86asm.Inst) string {
	return fmt.Sprintf("%v,%v", kindOf(inst.Args[0]), kindOf(inst.Args[1]))
}

func (k opKind) String() string {
	switch k {
	case opReg:
		return "reg"
	case opMem:
		return "mem"
	case opImm:
		return "imm"
	default:
		return "other"
	}
}

// EmulateMemoryAccess is the C5 entry point (§4.5, §6): decode the
// instruction at ctx.RIP, translate faultAddr through C4, then dispatch
// on mnemonic and operand shape. Returns (true, nil) iff the instruction
// was emulated and RIP advanced; any error return leaves ctx and host
// memory untouched (§7 class 2/3, P2).
func (v *VCPU) EmulateMemoryAccess(faultAddr uint64, ctx *Context, kind AccessKind) (bool, error) {
	inst, err := decodeAt(ctx)
	if err != nil {
		return false, err
	}

	hostAddr, err := v.translate(faultAddr)
	if err != nil {
		return false, err
	}

	switch kind {
	case AccessRead:
		v.logger.Debug(vcpulog.ModuleMemory, "emulating read", "guest", faultAddr, "host", hostAddr, "op", inst.Op.String())
		err = v.emulateRead(ctx, inst, hostAddr)
	default:
		v.logger.Debug(vcpulog.ModuleMemory, "emulating write", "guest", faultAddr, "host", hostAddr, "op", inst.Op.String())
		err = v.emulateWrite(ctx, inst, hostAddr)
	}
	if err != nil {
		return false, err
	}

	ctx.RIP += uint64(inst.Len)
	return true, nil
}

func (v *VCPU) emulateRead(ctx *Context, inst x86asm.Inst, addr uint64) error {
	switch inst.Op {
	case x86asm.MOV:
		dst, ok := inst.Args[0].(x86asm.Reg)
		if !ok {
			return vcpuerrors.NewFatal("MOV", operandShape(inst))
		}
		w := regWidth(OperandWidth(dst))
		WritePartial(ctx, dst, loadWidth(addr, w))
		return nil

	case x86asm.OR, x86asm.XOR, x86asm.AND, x86asm.ADD, x86asm.SUB:
		dst, ok := inst.Args[0].(x86asm.Reg)
		if !ok {
			return vcpuerrors.NewFatal(inst.Op.String(), operandShape(inst))
		}
		w := regWidth(OperandWidth(dst))
		regVal, _ := ReadOperand(ctx, dst)
		memVal := loadWidth(addr, w)
		var result uint64
		switch inst.Op {
		case x86asm.OR:
			result = regVal | memVal
		case x86asm.XOR:
			result = regVal ^ memVal
		case x86asm.AND:
			result = regVal & memVal
		case x86asm.ADD:
			result = regVal + memVal
		case x86asm.SUB:
			result = regVal - memVal
		}
		WritePartial(ctx, dst, result)
		return nil

	case x86asm.CMP:
		return v.emulateCmpOrTest(ctx, inst, addr, cmpSourcePtr, cmpDestPtr)

	case x86asm.TEST:
		return v.emulateCmpOrTest(ctx, inst, addr, testSourcePtr, testDestPtr)

	case x86asm.MOVZX:
		dst, ok := inst.Args[0].(x86asm.Reg)
		if !ok {
			return vcpuerrors.NewFatal("MOVZX", operandShape(inst))
		}
		srcWidth, ok := widthFromBytes(inst.MemBytes)
		if !ok {
			return vcpuerrors.NewFatal("MOVZX", operandShape(inst))
		}
		WritePartial(ctx, dst, loadWidth(addr, srcWidth))
		return nil

	case x86asm.MOVSXD:
		dst, ok := inst.Args[0].(x86asm.Reg)
		if !ok {
			return vcpuerrors.NewFatal("MOVSXD", operandShape(inst))
		}
		srcWidth, ok := widthFromBytes(inst.MemBytes)
		if !ok {
			return vcpuerrors.NewFatal("MOVSXD", operandShape(inst))
		}
		WritePartial(ctx, dst, loadSignExtended(addr, srcWidth))
		return nil

	default:
		return vcpuerrors.NewFatal(inst.Op.String(), operandShape(inst))
	}
}

// cmpOrTestFn is the shape shared by cmpSourcePtr/cmpDestPtr and
// testSourcePtr/testDestPtr (C2).
type cmpOrTestFn func(eflags, ptrVal, operand uint64, w regWidth) uint64

// emulateCmpOrTest handles all four operand orderings spec.md §4.5 calls
// for in CMP/TEST: [mem],reg / reg,[mem] / imm,[mem] / [mem],imm. The
// immediate orderings both resolve to sourcePtr, matching the original's
// EmulateCMPImm/EmulateTestImm, which always treats the memory operand
// as the left/source side regardless of which operand slot the
// immediate occupies (see DESIGN.md).
func (v *VCPU) emulateCmpOrTest(ctx *Context, inst x86asm.Inst, addr uint64, sourcePtr, destPtr cmpOrTestFn) error {
	a0, a1 := kindOf(inst.Args[0]), kindOf(inst.Args[1])

	switch {
	case a0 == opMem && a1 == opReg:
		reg := inst.Args[1].(x86asm.Reg)
		w := regWidth(OperandWidth(reg))
		regVal, _ := ReadOperand(ctx, reg)
		ctx.EFlags = sourcePtr(ctx.EFlags, loadWidth(addr, w), regVal, w)
		return nil

	case a0 == opReg && a1 == opMem:
		reg := inst.Args[0].(x86asm.Reg)
		w := regWidth(OperandWidth(reg))
		regVal, _ := ReadOperand(ctx, reg)
		ctx.EFlags = destPtr(ctx.EFlags, loadWidth(addr, w), regVal, w)
		return nil

	case a0 == opImm && a1 == opMem:
		w, ok := widthFromBytes(inst.MemBytes)
		if !ok {
			return vcpuerrors.NewFatal(inst.Op.String(), operandShape(inst))
		}
		imm := uint64(inst.Args[0].(x86asm.Imm))
		ctx.EFlags = sourcePtr(ctx.EFlags, loadWidth(addr, w), imm, w)
		return nil

	case a0 == opMem && a1 == opImm:
		w, ok := widthFromBytes(inst.MemBytes)
		if !ok {
			return vcpuerrors.NewFatal(inst.Op.String(), operandShape(inst))
		}
		imm := uint64(inst.Args[1].(x86asm.Imm))
		ctx.EFlags = sourcePtr(ctx.EFlags, loadWidth(addr, w), imm, w)
		return nil

	default:
		return vcpuerrors.NewFatal(inst.Op.String(), operandShape(inst))
	}
}

// emulateWrite handles the write-side shapes (§4.5): only MOV [addr], reg
// is implemented. OR/XOR/AND/ADD/SUB/MOVZX on a memory destination are
// explicitly unsupported — fatal, not silently dropped — per the decision
// recorded in DESIGN.md for spec.md §9's open question.
func (v *VCPU) emulateWrite(ctx *Context, inst x86asm.Inst, addr uint64) error {
	switch inst.Op {
	case x86asm.MOV:
		src, ok := inst.Args[1].(x86asm.Reg)
		if !ok {
			return vcpuerrors.NewFatal("MOV", operandShape(inst))
		}
		w := regWidth(OperandWidth(src))
		val, _ := ReadOperand(ctx, src)
		storeWidth(addr, w, val)
		return nil

	default:
		return vcpuerrors.NewFatal(inst.Op.String(), operandShape(inst))
	}
}
