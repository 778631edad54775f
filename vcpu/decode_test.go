package vcpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"

	"github.com/usermode-kace/vcpu/vcpu/vcpuerrors"
	"github.com/usermode-kace/vcpu/vcpu/vcpusim"
)

func TestDecodeAt_DecodesMovAndLength(t *testing.T) {
	ctx := &Context{RIP: vcpusim.NewCodeBuffer([]byte{0x48, 0x8B, 0x1E}).Addr()}
	inst, err := decodeAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, x86asm.MOV, inst.Op)
	assert.Equal(t, 3, inst.Len)
}

func TestDecodeAt_InvalidEncodingIsRecoverable(t *testing.T) {
	// 0xFF /7 (reg field 7 of the INC/DEC/CALL/JMP/PUSH group) is undefined.
	ctx := &Context{RIP: vcpusim.NewCodeBuffer([]byte{0xFF, 0xF8}).Addr()}
	_, err := decodeAt(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, vcpuerrors.ErrDecodeFailed)
}
