package vcpu

// MemoryTracker maps guest virtual addresses to host-visible memory. The
// core owns a default implementation (see store.go's addressMap) seeded
// by the Initializer, but a harness may supply its own implementation —
// e.g. one backed by the process's real page tables — through New.
type MemoryTracker interface {
	// AddMapping registers a contiguous guest->host translation.
	AddMapping(guestBase, length, hostBase uint64)
	// GetHost looks up guestAddr within a registered range.
	GetHost(guestAddr uint64) (hostAddr uint64, ok bool)
}

// Provider supplies synthetic, host-backed data for well-known guest
// globals (e.g. exported kernel data) that have no natural host mapping.
// A Provider's answer takes precedence over MemoryTracker's (§4.4 step 1).
// This is an external collaborator — symbol/export resolution is out of
// scope for the core (§1).
type Provider interface {
	FindDataImpl(guestAddr uint64) (hostAddr uint64, ok bool)
}

// Environment is the diagnostic callback invoked when an address cannot
// be resolved by either a Provider or the MemoryTracker (§4.4 step 4).
// It is an external collaborator; the core never decides what a
// "pointer diagnostic" means, only that one fires.
type Environment interface {
	CheckPtr(guestAddr uint64)
}

// noopEnvironment is installed when New is called without one, so the
// core never nil-derefs a missing collaborator.
type noopEnvironment struct{}

func (noopEnvironment) CheckPtr(uint64) {}

// noopProvider never resolves anything, deferring entirely to the
// MemoryTracker.
type noopProvider struct{}

func (noopProvider) FindDataImpl(uint64) (uint64, bool) { return 0, false }
