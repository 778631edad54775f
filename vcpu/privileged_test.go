package vcpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usermode-kace/vcpu/vcpu/vcpuerrors"
)

// scenario 6: WRMSR then RDMSR round-trips through MSR_LSTAR.
func TestPrivileged_WrmsrRdmsrRoundTrip(t *testing.T) {
	v := New(Config{})

	ctx := &Context{RIP: codeAddr([]byte{0x0F, 0x30})} // WRMSR
	ctx.GPR[RegRCX] = 0xC0000082
	ctx.GPR[RegRDX] = 0xFEEDFACE
	ctx.GPR[RegRAX] = 0xDEADBEEF
	ok, err := v.EmulatePrivileged(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ctx.RIP = codeAddr([]byte{0x0F, 0x32}) // RDMSR
	ok, err = v.EmulatePrivileged(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0xFEEDFACE), ctx.GPR[RegRDX])
	assert.Equal(t, uint64(0xDEADBEEF), ctx.GPR[RegRAX])
}

// scenario 7: RDMSR of an unseeded index fails recoverably, context untouched.
func TestPrivileged_RdmsrMiss(t *testing.T) {
	v := New(Config{})

	ctx := &Context{RIP: codeAddr([]byte{0x0F, 0x32})} // RDMSR
	ctx.GPR[RegRCX] = 0xDEADBEEF
	ctx.GPR[RegRDX] = 0x1111111111111111
	ctx.GPR[RegRAX] = 0x2222222222222222
	before := ctx.Clone()

	ok, err := v.EmulatePrivileged(ctx)
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, vcpuerrors.ErrMSRNotFound)
	assert.Equal(t, before, ctx)
}

// scenario 8: MOV CR3, RAX updates the virtual CR3 slot.
func TestPrivileged_MovToCR3(t *testing.T) {
	v := New(Config{})

	ctx := &Context{RIP: codeAddr([]byte{0x0F, 0x22, 0xD8})} // MOV CR3, RAX
	ctx.GPR[RegRAX] = 0x123000
	ok, err := v.EmulatePrivileged(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0x123000), v.cr.get(CR3Index))
}

// MOV RAX, CR3 reads the same slot back through the register file.
func TestPrivileged_MovFromCR3(t *testing.T) {
	v := New(Config{})
	v.cr.set(CR3Index, 0x445566)

	ctx := &Context{RIP: codeAddr([]byte{0x0F, 0x20, 0xD8})} // MOV RAX, CR3
	ok, err := v.EmulatePrivileged(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0x445566), ctx.GPR[RegRAX])
}

// CLI/STI are accepted and skipped, never touching EFLAGS (§1 Non-goals).
func TestPrivileged_CliStiAreNoops(t *testing.T) {
	v := New(Config{})

	ctx := &Context{RIP: codeAddr([]byte{0xFA}), EFlags: 0x202} // CLI
	ok, err := v.EmulatePrivileged(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0x202), ctx.EFlags)

	ctx = &Context{RIP: codeAddr([]byte{0xFB}), EFlags: 0x202} // STI
	ok, err = v.EmulatePrivileged(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0x202), ctx.EFlags)
}

func TestPrivileged_DefaultCRResetValues(t *testing.T) {
	v := New(Config{})

	assert.Equal(t, uint64(0x80050033), v.cr.get(CR0Index))
	assert.Equal(t, uint64(0x001AD002), v.cr.get(CR3Index))
	assert.Equal(t, uint64(0x00370678), v.cr.get(CR4Index))
	assert.Equal(t, uint64(0), v.cr.get(CR8Index))
}
