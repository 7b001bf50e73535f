// Package kmem implements the physical frame allocator (PMM) and the
// page-backed kernel heap. Single hart: no per-CPU free lists, no
// refcounted COW sharing (fork copies eagerly).
package kmem

import (
	"sync"

	"riscvkernel/kconfig"
	"riscvkernel/kdefs"
	"riscvkernel/klog"
)

// PhysAddr is a physical address.
type PhysAddr uint64

// PMM_t is a bitmap frame allocator over a fixed RAM window. One bit
// per 4 KiB frame; scans are low-to-high so allocation order is
// deterministic and reproducible across boots.
type PMM_t struct {
	mu    sync.Mutex
	base  PhysAddr
	bits  []uint64 // one bit per frame, 1 == free
	total int
	free  int
}

// NewPMM constructs a PMM managing nframes frames starting at base.
func NewPMM(base PhysAddr, nframes int) *PMM_t {
	words := (nframes + 63) / 64
	p := &PMM_t{base: base, bits: make([]uint64, words), total: nframes, free: nframes}
	for i := range p.bits {
		p.bits[i] = ^uint64(0)
	}
	// clear any trailing bits past nframes in the last word
	if rem := nframes % 64; rem != 0 {
		p.bits[words-1] = (uint64(1) << uint(rem)) - 1
	}
	return p
}

func (p *PMM_t) frameAddr(idx int) PhysAddr {
	return p.base + PhysAddr(idx)*kconfig.PageSize
}

func (p *PMM_t) idxOf(addr PhysAddr) int {
	return int((addr - p.base) / kconfig.PageSize)
}

// AllocFrame returns a free frame's physical address, or ok=false if
// the pool is exhausted. The frame is zeroed by the caller on first
// use.
func (p *PMM_t) AllocFrame() (PhysAddr, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for w := range p.bits {
		if p.bits[w] == 0 {
			continue
		}
		bit := trailingOne(p.bits[w])
		idx := w*64 + bit
		if idx >= p.total {
			continue
		}
		p.bits[w] &^= 1 << uint(bit)
		p.free--
		return p.frameAddr(idx), true
	}
	return 0, false
}

// AllocContiguous first-fit scans for n consecutive free frames, used
// only by the DMA allocator.
func (p *PMM_t) AllocContiguous(n int) (PhysAddr, bool) {
	if n <= 0 {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	run := 0
	start := -1
	for idx := 0; idx < p.total; idx++ {
		if p.bitFree(idx) {
			if run == 0 {
				start = idx
			}
			run++
			if run == n {
				for i := start; i < start+n; i++ {
					p.clearBit(i)
				}
				p.free -= n
				return p.frameAddr(start), true
			}
		} else {
			run = 0
		}
	}
	return 0, false
}

// FreeFrame clears the bit for addr. Double-free is fatal: callers
// must not free a frame twice.
func (p *PMM_t) FreeFrame(addr PhysAddr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.idxOf(addr)
	if p.bitFree(idx) {
		klog.Panic("double free of frame %#x (bit %d already set in bitmap word %#x)",
			uint64(addr), idx, p.bits[idx/64])
	}
	p.setBit(idx)
	p.free++
}

// FreeCount reports the number of free frames, for frame-accounting
// checks.
func (p *PMM_t) FreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free
}

// Total reports the total number of managed frames.
func (p *PMM_t) Total() int { return p.total }

func (p *PMM_t) bitFree(idx int) bool {
	return p.bits[idx/64]&(1<<uint(idx%64)) != 0
}

func (p *PMM_t) setBit(idx int)   { p.bits[idx/64] |= 1 << uint(idx%64) }
func (p *PMM_t) clearBit(idx int) { p.bits[idx/64] &^= 1 << uint(idx%64) }

func trailingOne(w uint64) int {
	for i := 0; i < 64; i++ {
		if w&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}


// ErrExhausted is the kdefs.Err_t kind (ENOMEM) that corresponds to a
// failed frame allocation.
var ErrExhausted = kdefs.ENOMEM
