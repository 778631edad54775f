// Package vcpusim provides in-process test doubles for the vcpu package's
// three external collaborators (MemoryTracker, Provider, Environment) plus
// the §8 conformance fixture, in the spirit of the teacher's own
// MockHostEnv (pvm/mockenv.go): a hand-written struct satisfying a narrow
// interface, backed by plain Go memory instead of a real OS mapping.
package vcpusim

import (
	"sync"
	"unsafe"
)

// HostMemory is a fixed-size byte buffer usable as the host side of a
// MemoryTracker mapping. Tests read Bytes() after a call to assert on the
// exact bytes written, and Addr() to wire it into a Tracker or
// vcpu.Config.PML4HostBase.
type HostMemory struct {
	buf []byte
}

// NewHostMemory allocates a zeroed buffer of the given size.
func NewHostMemory(size int) *HostMemory {
	return &HostMemory{buf: make([]byte, size)}
}

// Addr returns the host address of the buffer's first byte.
func (h *HostMemory) Addr() uint64 {
	return uint64(uintptr(unsafe.Pointer(&h.buf[0])))
}

// Bytes exposes the underlying buffer for pre-seeding or post-call assertions.
func (h *HostMemory) Bytes() []byte { return h.buf }

// CodeBuffer holds a short instruction encoding for decodeAt to read. The
// buffer is padded with NOP (0x90) out to at least 16 bytes so decode's
// fixed 15-byte read never walks past the allocation, mirroring the fact
// that RIP in a real fault always points into a fully mapped code page.
type CodeBuffer struct {
	buf []byte
}

// NewCodeBuffer copies code into a padded buffer.
func NewCodeBuffer(code []byte) *CodeBuffer {
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = 0x90
	}
	copy(buf, code)
	return &CodeBuffer{buf: buf}
}

// Addr returns the host address of the buffer's first byte, suitable for
// assignment directly to Context.RIP.
func (c *CodeBuffer) Addr() uint64 {
	return uint64(uintptr(unsafe.Pointer(&c.buf[0])))
}

// Tracker is a minimal MemoryTracker: a mutex-guarded slice of mappings,
// scanned linearly on lookup. It is a test-scoped twin of the vcpu
// package's own default tracker, kept separate so tests never reach into
// vcpu's unexported state to seed fixtures.
type Tracker struct {
	mu       sync.Mutex
	mappings []trackerMapping
}

type trackerMapping struct {
	guestBase, length, hostBase uint64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker { return &Tracker{} }

func (t *Tracker) AddMapping(guestBase, length, hostBase uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mappings = append(t.mappings, trackerMapping{guestBase, length, hostBase})
}

func (t *Tracker) GetHost(guestAddr uint64) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.mappings {
		if guestAddr >= m.guestBase && guestAddr < m.guestBase+m.length {
			return m.hostBase + (guestAddr - m.guestBase), true
		}
	}
	return 0, false
}

// StaticProvider answers FindDataImpl from a fixed guest->host table,
// standing in for the symbol/export resolver the real harness supplies.
type StaticProvider struct {
	mu      sync.Mutex
	entries map[uint64]uint64
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{entries: make(map[uint64]uint64)}
}

func (p *StaticProvider) Register(guestAddr, hostAddr uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[guestAddr] = hostAddr
}

func (p *StaticProvider) FindDataImpl(guestAddr uint64) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.entries[guestAddr]
	return v, ok
}

// Watcher is an Environment spy recording every guest address the core
// could not resolve, so tests can assert CheckPtr fired without needing a
// real diagnostic subsystem.
type Watcher struct {
	mu      sync.Mutex
	Checked []uint64
}

func NewWatcher() *Watcher { return &Watcher{} }

func (w *Watcher) CheckPtr(guestAddr uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Checked = append(w.Checked, guestAddr)
}

// KUSDFixture backs a user-shared-data-shaped mapping with a HostMemory
// buffer seeded with the §8 scenario bytes (11 22 33 44 55 66 77 88 at
// guestBase+0x20), and returns a Tracker pre-registered with that mapping
// plus the guest address G the scenarios read and write. The caller
// supplies guestBase (typically vcpu.KUSDMin) so this package never needs
// to import vcpu itself.
func KUSDFixture(guestBase uint64) (*Tracker, *HostMemory, uint64) {
	mem := NewHostMemory(0x1000)
	copy(mem.Bytes()[0x20:], []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88})
	tr := NewTracker()
	tr.AddMapping(guestBase, 0x1000, mem.Addr())
	return tr, mem, guestBase + 0x20
}
