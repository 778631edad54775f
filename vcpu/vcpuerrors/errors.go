// Package vcpuerrors carries the coded error catalog for the vcpu
// emulation core, in the same "<Code>|<Name>: <description>" shape the
// teacher's jamerrors package uses, plus a Fatal type distinguishing §7's
// fatal outcome class (an implementation gap) from ordinary recoverable
// failures.
package vcpuerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Decode errors.
var (
	ErrDecodeFailed = errors.New("D1|DecodeFailed: failed to decode an instruction at RIP.")
)

// Address translation errors.
var (
	ErrUnresolvedAddress = errors.New("X1|UnresolvedAddress: guest address has no provider, mapping, or sentinel match.")
	ErrSentinelAddress   = errors.New("X2|SentinelAddress: guest address is the 0xFFFFFFFFFFFFFFFF sentinel.")
)

// MSR errors.
var (
	ErrMSRNotFound = errors.New("M1|MSRNotFound: MSR index is not present in the seeded table.")
)

// GetErrorCode extracts the error code ("D1", "X2", ...) from a coded error.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorName extracts the error name ("DecodeFailed", ...) from a coded error.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	if len(parts) < 2 {
		return errStr
	}
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// Fatal signals an implementation gap: an instruction shape the emulator
// does not yet handle, or an impossible operand class (§7 class 3). The
// source reference behavior tripped a debugger breakpoint; here it is a
// distinct, inspectable error so tests can assert coverage gaps with
// errors.As instead of the process aborting.
type Fatal struct {
	Mnemonic string
	Operands string
}

func (f *Fatal) Error() string {
	if f.Operands == "" {
		return fmt.Sprintf("F1|UnhandledInstructionShape: no emulation for mnemonic %q", f.Mnemonic)
	}
	return fmt.Sprintf("F1|UnhandledInstructionShape: no emulation for mnemonic %q with operand shape %q", f.Mnemonic, f.Operands)
}

// NewFatal builds a Fatal identifying the unhandled mnemonic and operand shape.
func NewFatal(mnemonic, operands string) error {
	return &Fatal{Mnemonic: mnemonic, Operands: operands}
}

// IsFatal reports whether err is (or wraps) a *Fatal.
func IsFatal(err error) bool {
	var f *Fatal
	return errors.As(err, &f)
}
