package vcpu

import (
	"github.com/usermode-kace/vcpu/vcpu/vcpulog"
)

// Fixed guest/host constants for the user-shared-data mapping the
// Initializer seeds unconditionally (§3, §6). KUSDMin/KUSDUsermode are
// platform-defined; the core treats them as opaque 64-bit values and
// never interprets their bits. They are package vars, not consts, so a
// harness targeting a different platform layout can override them
// before calling New.
var (
	KUSDMin      uint64 = 0xFFFFF78000000000
	KUSDUsermode uint64 = 0x000000007FFE0000
)

// PML4GuestBase/PML4Length are the guest window for the top-level paging
// structure (§3); the host base is the process's own top-level paging
// array and must be supplied by the harness via Config.PML4HostBase — the
// core has no page tables of its own to point at.
const (
	PML4GuestBase uint64 = 0xFFFFCFE7F3F9F000
	PML4Length    uint64 = 512 * 8
)

const kusdLength = 0x1000

// Config configures a VCPU at construction time (§4.8, §6). Tracker,
// Provider, and Environment are external collaborators; nil values fall
// back to the core's own default MemoryTracker and no-op
// Provider/Environment respectively, so a harness that only cares about
// the fixed mappings can pass an empty Config.
type Config struct {
	Tracker      MemoryTracker
	Provider     Provider
	Environment  Environment
	Logger       vcpulog.Logger
	PML4HostBase uint64
}

// VCPU is the emulation core (§2): a process-wide instance wired to its
// collaborators, exposing EmulatePrivileged and EmulateMemoryAccess.
type VCPU struct {
	tracker     MemoryTracker
	provider    Provider
	environment Environment
	logger      vcpulog.Logger

	cr  *ControlRegisters
	msr *MSRTable
}

// New builds and initializes a VCPU (C8): configures the decoder mode
// (fixed at each decode call site, see decode.go), seeds the fixed
// virtual-to-host mappings, and seeds the MSR table. Re-initialization is
// not idempotent — call New once per VCPU, per §4.8.
func New(cfg Config) *VCPU {
	v := &VCPU{
		tracker:     cfg.Tracker,
		provider:    cfg.Provider,
		environment: cfg.Environment,
		logger:      cfg.Logger,
		cr:          newControlRegisters(),
		msr:         newMSRTable(),
	}
	if v.tracker == nil {
		v.tracker = newAddressMap()
	}
	if v.provider == nil {
		v.provider = noopProvider{}
	}
	if v.environment == nil {
		v.environment = noopEnvironment{}
	}
	if v.logger == nil {
		v.logger = vcpulog.Default()
	}

	v.tracker.AddMapping(KUSDMin, kusdLength, KUSDUsermode)
	if cfg.PML4HostBase != 0 {
		v.tracker.AddMapping(PML4GuestBase, PML4Length, cfg.PML4HostBase)
	}

	seedMSRTable(v.msr)
	return v
}

// seedMSRTable installs the conformance-test fixture entries from §3.
// The set of keys is invariant after this call (§3-iii).
func seedMSRTable(t *MSRTable) {
	t.seed(0x1D9, 0, "DBGCTL_MSR")
	t.seed(0x1DB, 0, "MSR_LASTBRANCH_FROM_IP")
	t.seed(0x680, 0, "LastBranchFromIP_MSR")
	t.seed(0x1C9, 0, "MSR_LASTBRANCH_TOS")
	t.seed(0x000, 0xFFF, "MSR_0_P5_IP_ADDR")
	t.seed(0xC0000082, 0x10000, "MSR_LSTAR")
}
