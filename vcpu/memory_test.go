package vcpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usermode-kace/vcpu/vcpu/vcpuerrors"
	"github.com/usermode-kace/vcpu/vcpu/vcpusim"
)

func newTestVCPU(tracker MemoryTracker) *VCPU {
	return New(Config{Tracker: tracker})
}

func codeAddr(code []byte) uint64 {
	return vcpusim.NewCodeBuffer(code).Addr()
}

// scenario 1: MOV RBX, [G], 64-bit read.
func TestMemoryAccess_MovRead64(t *testing.T) {
	tracker, _, g := vcpusim.KUSDFixture(KUSDMin)
	v := newTestVCPU(tracker)

	rip := codeAddr([]byte{0x48, 0x8B, 0x1E}) // MOV RBX, [RSI]
	ctx := &Context{RIP: rip}
	ok, err := v.EmulateMemoryAccess(g, ctx, AccessRead)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0x8877665544332211), ctx.GPR[RegRBX])
	assert.Equal(t, rip+3, ctx.RIP)
}

// scenario 2: MOV AL, [G] preserves the rest of RAX.
func TestMemoryAccess_MovRead8Low(t *testing.T) {
	tracker, _, g := vcpusim.KUSDFixture(KUSDMin)
	v := newTestVCPU(tracker)

	ctx := &Context{RIP: codeAddr([]byte{0x8A, 0x06})} // MOV AL, [RSI]
	ctx.GPR[RegRAX] = 0xDEADBEEFCAFEBABE
	ok, err := v.EmulateMemoryAccess(g, ctx, AccessRead)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0xDEADBEEFCAFEBA11), ctx.GPR[RegRAX])
}

// scenario 3: MOV AH, [G] writes bits [15:8] only.
func TestMemoryAccess_MovRead8High(t *testing.T) {
	tracker, _, g := vcpusim.KUSDFixture(KUSDMin)
	v := newTestVCPU(tracker)

	ctx := &Context{RIP: codeAddr([]byte{0x8A, 0x26})} // MOV AH, [RSI]
	ctx.GPR[RegRAX] = 0xDEADBEEFCAFEBABE
	ok, err := v.EmulateMemoryAccess(g, ctx, AccessRead)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0xDEADBEEFCAFE11BE), ctx.GPR[RegRAX])
}

// scenario 4: MOV [G], ECX stores exactly the four low bytes of ECX and
// must not disturb the host bytes beyond them.
func TestMemoryAccess_MovWrite32(t *testing.T) {
	tracker, mem, g := vcpusim.KUSDFixture(KUSDMin)
	v := newTestVCPU(tracker)

	ctx := &Context{RIP: codeAddr([]byte{0x89, 0x0E})} // MOV [RSI], ECX
	ctx.GPR[RegRCX] = 0x0000000099AABBCC
	ok, err := v.EmulateMemoryAccess(g, ctx, AccessWrite)
	require.NoError(t, err)
	assert.True(t, ok)

	got := mem.Bytes()[0x20 : 0x20+8]
	want := []byte{0xCC, 0xBB, 0xAA, 0x99, 0x55, 0x66, 0x77, 0x88}
	assert.Equal(t, want, got)
}

// scenario 5: CMP DWORD PTR [G], EAX with a matching low-32 value sets ZF
// and clears CF/OF/SF.
func TestMemoryAccess_CmpSetsZF(t *testing.T) {
	tracker, _, g := vcpusim.KUSDFixture(KUSDMin)
	v := newTestVCPU(tracker)

	ctx := &Context{RIP: codeAddr([]byte{0x39, 0x06})} // CMP [RSI], EAX
	ctx.GPR[RegRAX] = 0x0000000044332211
	ok, err := v.EmulateMemoryAccess(g, ctx, AccessRead)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NotZero(t, ctx.EFlags&flagZF)
	assert.Zero(t, ctx.EFlags&(flagCF|flagOF|flagSF))
}

// §7: a translation failure must not mutate the context.
func TestMemoryAccess_UnresolvedAddressLeavesContextUntouched(t *testing.T) {
	tracker := vcpusim.NewTracker()
	v := newTestVCPU(tracker)

	ctx := &Context{RIP: codeAddr([]byte{0x48, 0x8B, 0x1E})}
	ctx.GPR[RegRBX] = 0x4242424242424242
	before := ctx.Clone()

	ok, err := v.EmulateMemoryAccess(0x1000, ctx, AccessRead)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, ctx)
}

// write-side OR on a memory destination is an explicit Fatal, not a
// silent no-op or a panic.
func TestMemoryAccess_UnsupportedWriteIsFatal(t *testing.T) {
	tracker, _, g := vcpusim.KUSDFixture(KUSDMin)
	v := newTestVCPU(tracker)

	ctx := &Context{RIP: codeAddr([]byte{0x09, 0x0E})} // OR [RSI], ECX
	_, err := v.EmulateMemoryAccess(g, ctx, AccessWrite)
	require.Error(t, err)
	assert.True(t, vcpuerrors.IsFatal(err))
}
