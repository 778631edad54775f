package vcpu

import (
	"unsafe"

	"github.com/usermode-kace/vcpu/vcpu/vcpuerrors"
	"golang.org/x/arch/x86/x86asm"
)

// maxInstrLen is the longest possible x86-64 instruction encoding.
const maxInstrLen = 15

// decodeMode fixes the decoder to long-mode, 64-bit addressing per §4.3 —
// every call site uses this mode, there is no 16/32-bit fallback.
const decodeMode = 64

// codeAtRIP returns a read-only view of the bytes at ctx.RIP. RIP always
// points at the faulting instruction's own code, which is — unlike the
// data the instruction is trying to access — already validly mapped in
// the host process: the fault is in the operand, not the fetch. This
// mirrors the original's ZydisDecoderDecodeBuffer(&decoder,
// (PVOID)context->Rip, ...) call, which reads straight off context->Rip
// rather than going through the address translator.
func codeAtRIP(ctx *Context) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ctx.RIP))), maxInstrLen)
}

// decodeAt decodes exactly one instruction at ctx.RIP (C3). Failure to
// decode is a recoverable failure per §7, not fatal.
func decodeAt(ctx *Context) (x86asm.Inst, error) {
	inst, err := x86asm.Decode(codeAtRIP(ctx), decodeMode)
	if err != nil {
		return x86asm.Inst{}, vcpuerrors.ErrDecodeFailed
	}
	return inst, nil
}
