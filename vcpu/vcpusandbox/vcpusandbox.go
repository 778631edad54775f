// Package vcpusandbox single-steps the same instruction bytes through a
// real Unicorn-Engine CPU and reports the resulting register/flag state,
// so a test can assert the vcpu package's software emulation agrees with
// an independent hardware-accurate emulator. Grounded on the teacher's own
// Unicorn cross-check harness (pvm/recompiler/recompiler_sandbox.go):
// same uc.NewUnicorn(uc.ARCH_X86, uc.MODE_64) setup, MemMap/MemProtect
// before execution, RegRead/RegWrite for state transfer.
//
//go:build unicorn

package vcpusandbox

import (
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// codeBase/dataBase are arbitrary guest addresses inside a mapped region;
// Unicorn has no notion of the real process's address space, so a single
// step never needs more than one code page and one data page.
const (
	codeBase = uint64(0x400000)
	dataBase = uint64(0x600000)
	pageSize = uint64(0x1000)
)

// regList is the full set of GPRs the oracle transfers in and out, indexed
// the same way vcpu.Context.GPR is (RAX..R15).
var regList = []int{
	uc.X86_REG_RAX, uc.X86_REG_RCX, uc.X86_REG_RDX, uc.X86_REG_RBX,
	uc.X86_REG_RSP, uc.X86_REG_RBP, uc.X86_REG_RSI, uc.X86_REG_RDI,
	uc.X86_REG_R8, uc.X86_REG_R9, uc.X86_REG_R10, uc.X86_REG_R11,
	uc.X86_REG_R12, uc.X86_REG_R13, uc.X86_REG_R14, uc.X86_REG_R15,
}

// State is the subset of architectural state the oracle exchanges with a
// caller: the 16 GPRs in RegIndex order, RIP, and EFLAGS.
type State struct {
	GPR    [16]uint64
	RIP    uint64
	EFlags uint64
}

// Step loads gpr/eflags into a fresh Unicorn CPU, writes data at dataBase,
// writes code at codeBase, executes exactly one instruction at codeBase,
// and returns the post-state plus the final bytes at dataBase. pre.RIP is
// not used; the returned RIP is the offset from codeBase, not an address.
func Step(code []byte, data []byte, pre State) (State, []byte, error) {
	mu, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_64)
	if err != nil {
		return State{}, nil, fmt.Errorf("NewUnicorn: %w", err)
	}
	defer mu.Close()

	if err := mu.MemMap(codeBase, pageSize); err != nil {
		return State{}, nil, fmt.Errorf("MemMap code: %w", err)
	}
	if err := mu.MemProtect(codeBase, pageSize, uc.PROT_ALL); err != nil {
		return State{}, nil, fmt.Errorf("MemProtect code: %w", err)
	}
	if err := mu.MemMap(dataBase, pageSize); err != nil {
		return State{}, nil, fmt.Errorf("MemMap data: %w", err)
	}
	if err := mu.MemProtect(dataBase, pageSize, uc.PROT_ALL); err != nil {
		return State{}, nil, fmt.Errorf("MemProtect data: %w", err)
	}

	if err := mu.MemWrite(codeBase, code); err != nil {
		return State{}, nil, fmt.Errorf("MemWrite code: %w", err)
	}
	if err := mu.MemWrite(dataBase, data); err != nil {
		return State{}, nil, fmt.Errorf("MemWrite data: %w", err)
	}

	for i, reg := range regList {
		if err := mu.RegWrite(reg, pre.GPR[i]); err != nil {
			return State{}, nil, fmt.Errorf("RegWrite %d: %w", reg, err)
		}
	}
	if err := mu.RegWrite(uc.X86_REG_EFLAGS, pre.EFlags); err != nil {
		return State{}, nil, fmt.Errorf("RegWrite EFLAGS: %w", err)
	}

	if err := mu.Start(codeBase, codeBase+uint64(len(code))); err != nil {
		return State{}, nil, fmt.Errorf("Start: %w", err)
	}

	var post State
	for i, reg := range regList {
		v, err := mu.RegRead(reg)
		if err != nil {
			return State{}, nil, fmt.Errorf("RegRead %d: %w", reg, err)
		}
		post.GPR[i] = v
	}
	rip, err := mu.RegRead(uc.X86_REG_RIP)
	if err != nil {
		return State{}, nil, fmt.Errorf("RegRead RIP: %w", err)
	}
	post.RIP = rip - codeBase
	eflags, err := mu.RegRead(uc.X86_REG_EFLAGS)
	if err != nil {
		return State{}, nil, fmt.Errorf("RegRead EFLAGS: %w", err)
	}
	post.EFlags = eflags

	postData, err := mu.MemRead(dataBase, uint64(len(data)))
	if err != nil {
		return State{}, nil, fmt.Errorf("MemRead data: %w", err)
	}
	return post, postData, nil
}
