package vcpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubFlags_EqualOperandsSetZF(t *testing.T) {
	got := subFlags(0, 0x44332211, 0x44332211, width32)
	assert.NotZero(t, got&flagZF)
	assert.Zero(t, got&(flagCF|flagOF|flagSF))
}

func TestSubFlags_BorrowSetsCF(t *testing.T) {
	got := subFlags(0, 0x00, 0x01, width8)
	assert.NotZero(t, got&flagCF)
	assert.NotZero(t, got&flagSF)
	assert.Zero(t, got&flagZF)
}

func TestSubFlags_SignedOverflow(t *testing.T) {
	// 0x7F - 0xFF at width8: 127 - (-1) overflows a signed 8-bit result.
	got := subFlags(0, 0x7F, 0xFF, width8)
	assert.NotZero(t, got&flagOF)
}

func TestAndFlags_ClearsCarryAndOverflow(t *testing.T) {
	got := andFlags(flagCF|flagOF, 0xFF, 0x00, width8)
	assert.Zero(t, got&(flagCF|flagOF))
	assert.NotZero(t, got&flagZF)
}

func TestAndFlags_LeavesAFUntouched(t *testing.T) {
	got := andFlags(flagAF, 0xFF, 0xFF, width8)
	assert.NotZero(t, got&flagAF)
}

func TestTestSourcePtr_OrsResumeFlag(t *testing.T) {
	got := testSourcePtr(0, 0xFF, 0x0F, width8)
	assert.NotZero(t, got&flagRF)
}

func TestCmpSourceAndDestPtr_Orientation(t *testing.T) {
	// cmpSourcePtr(eflags, ptr, operand): ptr - operand.
	sp := cmpSourcePtr(0, 1, 2, width8)
	assert.NotZero(t, sp&flagCF) // 1-2 borrows

	// cmpDestPtr(eflags, ptr, operand): operand - ptr, the mirror image.
	dp := cmpDestPtr(0, 1, 2, width8)
	assert.Zero(t, dp&flagCF) // 2-1 does not borrow
}
