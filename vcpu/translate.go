package vcpu

import (
	"github.com/usermode-kace/vcpu/vcpu/vcpuerrors"
	"github.com/usermode-kace/vcpu/vcpu/vcpulog"
)

// sentinelAddress is the well-known "no address" marker (§4.4 step 3):
// when neither the Provider nor the MemoryTracker resolves it, translating
// it fails without logging or invoking Environment.CheckPtr.
const sentinelAddress = 0xFFFFFFFFFFFFFFFF

// translate resolves a guest address to a host address per §4.4: a
// registered Provider takes precedence over the general MemoryTracker
// map; the sentinel address fails silently; anything else notifies
// Environment and fails with ErrUnresolvedAddress.
func (v *VCPU) translate(guestAddr uint64) (uint64, error) {
	if host, ok := v.provider.FindDataImpl(guestAddr); ok {
		return host, nil
	}
	if host, ok := v.tracker.GetHost(guestAddr); ok {
		return host, nil
	}
	if guestAddr == sentinelAddress {
		return 0, vcpuerrors.ErrSentinelAddress
	}
	v.environment.CheckPtr(guestAddr)
	v.logger.Info(vcpulog.ModuleTranslate, "no usermode mapping for guest address", "addr", guestAddr)
	return 0, vcpuerrors.ErrUnresolvedAddress
}
