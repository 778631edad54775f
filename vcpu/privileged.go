package vcpu

import (
	"github.com/usermode-kace/vcpu/vcpu/vcpuerrors"
	"github.com/usermode-kace/vcpu/vcpu/vcpulog"
	"golang.org/x/arch/x86/x86asm"
)

// crIndexOf maps an x86asm control-register operand to the CRIndex the
// ControlRegisters store uses.
func crIndexOf(r x86asm.Reg) (CRIndex, bool) {
	switch r {
	case x86asm.CR0:
		return CR0Index, true
	case x86asm.CR3:
		return CR3Index, true
	case x86asm.CR4:
		return CR4Index, true
	case x86asm.CR8:
		return CR8Index, true
	default:
		return 0, false
	}
}

// EmulatePrivileged is the C6 entry point (§4.6, §6): decode the
// instruction at ctx.RIP and emulate CLI/STI, MOV to/from a control or
// debug register, or RDMSR/WRMSR. Returns (true, nil) iff the instruction
// was emulated and RIP advanced.
func (v *VCPU) EmulatePrivileged(ctx *Context) (bool, error) {
	inst, err := decodeAt(ctx)
	if err != nil {
		return false, err
	}

	if err := v.dispatchPrivileged(ctx, inst); err != nil {
		return false, err
	}

	ctx.RIP += uint64(inst.Len)
	return true, nil
}

func (v *VCPU) dispatchPrivileged(ctx *Context, inst x86asm.Inst) error {
	switch inst.Op {
	case x86asm.CLI, x86asm.STI:
		// Interrupt-flag manipulation has no guest-visible effect in usermode
		// emulation (§4.6): logged and skipped.
		v.logger.Debug(vcpulog.ModulePrivileged, "skipping interrupt-flag instruction", "op", inst.Op.String())
		return nil

	case x86asm.MOV:
		return v.emulatePrivilegedMov(ctx, inst)

	case x86asm.RDMSR:
		return v.emulateRDMSR(ctx)

	case x86asm.WRMSR:
		return v.emulateWRMSR(ctx)

	default:
		return vcpuerrors.NewFatal(inst.Op.String(), operandShape(inst))
	}
}

// emulatePrivilegedMov handles MOV reg, CRn / MOV CRn, reg and MOV reg, DR7
// / MOV DR7, reg. Which operand slot holds the privileged register is
// determined generically from crTable/drTable (§9 REDESIGN FLAG) rather
// than by assuming a fixed CR0/CR3/CR4/CR8 branch order, so the same code
// handles every control/debug register this core tracks.
func (v *VCPU) emulatePrivilegedMov(ctx *Context, inst x86asm.Inst) error {
	dst, dstOK := inst.Args[0].(x86asm.Reg)
	src, srcOK := inst.Args[1].(x86asm.Reg)
	if !dstOK || !srcOK {
		return vcpuerrors.NewFatal("MOV", operandShape(inst))
	}

	switch {
	case crTable[dst]:
		which, _ := crIndexOf(dst)
		gpr, ok := ReadOperand(ctx, src)
		if !ok {
			return vcpuerrors.NewFatal("MOV", operandShape(inst))
		}
		v.cr.set(which, gpr)
		return nil

	case crTable[src]:
		which, _ := crIndexOf(src)
		WritePartial(ctx, dst, v.cr.get(which))
		return nil

	case drTable[dst]:
		gpr, ok := ReadOperand(ctx, src)
		if !ok {
			return vcpuerrors.NewFatal("MOV", operandShape(inst))
		}
		ctx.Dr7 = gpr
		return nil

	case drTable[src]:
		WritePartial(ctx, dst, ctx.Dr7)
		return nil

	default:
		return vcpuerrors.NewFatal("MOV", operandShape(inst))
	}
}

// emulateRDMSR reads the MSR indexed by ECX into EDX:EAX (§4.7): the high
// 32 bits land in RDX, the low 32 bits in RAX, both zero-extended per the
// normal 32-bit write rule.
func (v *VCPU) emulateRDMSR(ctx *Context) error {
	index := uint32(ctx.Read(RegRCX))
	entry, ok := v.msr.read(index)
	if !ok {
		v.logger.Warn(vcpulog.ModuleMSR, "RDMSR of unseeded index", "index", index)
		return vcpuerrors.ErrMSRNotFound
	}
	ctx.Write(RegRDX, (entry.value>>32)&0xFFFFFFFF)
	ctx.Write(RegRAX, entry.value&0xFFFFFFFF)
	return nil
}

// emulateWRMSR writes EDX:EAX into the MSR indexed by ECX (§4.7). Both
// halves are masked to 32 bits before combining so a Context whose RDX/RAX
// slots carry stale upper bits above EDX/EAX cannot corrupt the write.
func (v *VCPU) emulateWRMSR(ctx *Context) error {
	index := uint32(ctx.Read(RegRCX))
	value := (ctx.Read(RegRDX)&0xFFFFFFFF)<<32 | (ctx.Read(RegRAX) & 0xFFFFFFFF)
	if !v.msr.write(index, value) {
		v.logger.Warn(vcpulog.ModuleMSR, "WRMSR of unseeded index", "index", index)
		return vcpuerrors.ErrMSRNotFound
	}
	return nil
}
