package kmem

import (
	"riscvkernel/kconfig"
	"riscvkernel/kdefs"
	"riscvkernel/klog"
)

// heapMagic marks the header of every kernel heap allocation; a
// mismatch on free means the header was overwritten.
const heapMagic = 0xDEADBEEF

// heapHeader prefixes every kmalloc'd region.
type heapHeader struct {
	magic    uint32
	sizePgs  int
}

const headerSize = 16 // rounded up from the real field sizes

// KHeap_t is a page-granular allocator with no fragmentation
// mitigation, backed by a PMM. Internal fragmentation is accepted in
// exchange for simplicity.
type KHeap_t struct {
	pmm *PMM_t
	// mem is a simulated flat view of physical memory; in a real boot
	// this would be the direct map. The simulator (cmd/ksim) backs this
	// with an actual byte slice.
	mem MemView
}

// MemView abstracts access to the bytes backing a physical address
// range, so kmem does not need unsafe pointer arithmetic against real
// RAM: on hardware it is the direct map, in tests a plain byte slice.
type MemView interface {
	Read(addr PhysAddr, n int) []byte
	Write(addr PhysAddr, b []byte)
}

// NewKHeap constructs a kernel heap over pmm using mem as the backing
// store.
func NewKHeap(pmm *PMM_t, mem MemView) *KHeap_t {
	return &KHeap_t{pmm: pmm, mem: mem}
}

func pagesFor(size int) int {
	n := (size + headerSize + kconfig.PageSize - 1) / kconfig.PageSize
	if n < 1 {
		n = 1
	}
	return n
}

// Kmalloc rounds size up to whole pages, allocates them from the PMM, and
// writes a magic header. It returns the physical address of the usable
// region (just past the header) or ENOMEM.
func (h *KHeap_t) Kmalloc(size int) (PhysAddr, kdefs.Err_t) {
	npg := pagesFor(size)
	base, ok := h.pmm.AllocContiguous(npg)
	if !ok {
		return 0, kdefs.ENOMEM
	}
	hdr := heapHeader{magic: heapMagic, sizePgs: npg}
	h.mem.Write(base, encodeHeader(hdr))
	return base + headerSize, 0
}

// Kfree reads the header preceding ptr, verifies its magic (a mismatch
// is fatal corruption), and frees the underlying pages.
func (h *KHeap_t) Kfree(ptr PhysAddr) {
	base := ptr - headerSize
	hdr := decodeHeader(h.mem.Read(base, headerSize))
	if hdr.magic != heapMagic {
		klog.Panic("kfree %#x: heap corruption: magic %#x want %#x, size %d pages",
			uint64(base), hdr.magic, uint32(heapMagic), hdr.sizePgs)
	}
	for i := 0; i < hdr.sizePgs; i++ {
		h.pmm.FreeFrame(base + PhysAddr(i)*kconfig.PageSize)
	}
}

func encodeHeader(h heapHeader) []byte {
	b := make([]byte, headerSize)
	putU32(b[0:], h.magic)
	putU32(b[4:], uint32(h.sizePgs))
	return b
}

func decodeHeader(b []byte) heapHeader {
	return heapHeader{magic: getU32(b[0:]), sizePgs: int(getU32(b[4:]))}
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
