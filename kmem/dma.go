package kmem

import (
	"sync"

	"riscvkernel/kconfig"
	"riscvkernel/kdefs"
	"riscvkernel/klog"
)

// DMARegion_t describes a physically contiguous multi-page region handed
// to a device driver.
type DMARegion_t struct {
	Base  PhysAddr
	Pages int
	Owner string
}

// DMARegistry_t tracks all outstanding DMA regions so a device driver
// can be audited and frame accounting can walk every owner of physical
// memory.
type DMARegistry_t struct {
	mu      sync.Mutex
	pmm     *PMM_t
	regions map[PhysAddr]DMARegion_t
}

// NewDMARegistry constructs a registry backed by pmm.
func NewDMARegistry(pmm *PMM_t) *DMARegistry_t {
	return &DMARegistry_t{pmm: pmm, regions: make(map[PhysAddr]DMARegion_t)}
}

// Alloc reserves n physically contiguous pages for owner (e.g. "virtio-blk"),
// recording the region so it can be released or enumerated later.
func (r *DMARegistry_t) Alloc(n int, owner string) (DMARegion_t, kdefs.Err_t) {
	base, ok := r.pmm.AllocContiguous(n)
	if !ok {
		return DMARegion_t{}, kdefs.ENOMEM
	}
	reg := DMARegion_t{Base: base, Pages: n, Owner: owner}
	r.mu.Lock()
	r.regions[base] = reg
	r.mu.Unlock()
	return reg, 0
}

// Free releases a previously allocated region. It is fatal to free a
// region that was never allocated (mirrors the PMM's fatal double-free).
func (r *DMARegistry_t) Free(base PhysAddr) {
	r.mu.Lock()
	reg, ok := r.regions[base]
	if ok {
		delete(r.regions, base)
	}
	outstanding := len(r.regions)
	r.mu.Unlock()
	if !ok {
		klog.Panic("free of unknown dma region %#x (%d regions outstanding)",
			uint64(base), outstanding)
	}
	for i := 0; i < reg.Pages; i++ {
		r.pmm.FreeFrame(base + PhysAddr(i)*kconfig.PageSize)
	}
}

// Regions returns a snapshot of all outstanding DMA regions, for
// frame-accounting audits.
func (r *DMARegistry_t) Regions() []DMARegion_t {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DMARegion_t, 0, len(r.regions))
	for _, v := range r.regions {
		out = append(out, v)
	}
	return out
}
