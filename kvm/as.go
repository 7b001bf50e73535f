package kvm

import (
	"sync"

	"riscvkernel/kconfig"
	"riscvkernel/kdefs"
	"riscvkernel/kmem"
	"riscvkernel/kriscv"
)

// Mem is the byte-addressable view of physical memory that the address-
// space manager reads/writes page-table nodes through. kmem.KHeap_t's
// MemView interface plays the identical role for the kernel heap, so AS_t
// reuses it rather than inventing a second abstraction.
type Mem = kmem.MemView

// PMM is the subset of kmem.PMM_t the address-space manager needs to
// allocate/free page-table node frames.
type PMM interface {
	AllocFrame() (kmem.PhysAddr, bool)
	FreeFrame(kmem.PhysAddr)
}

// AS_t is one process's (or the kernel's) address space: an Sv39 page-
// table root plus its VMA map. The mutex serializes modifications to
// the VMA map and page table.
type AS_t struct {
	sync.Mutex

	Root kmem.PhysAddr
	VMAs VMAMap_t

	mem Mem
	pmm PMM
}

// NewAS allocates a fresh root page-table node and returns an empty
// address space over it.
func NewAS(mem Mem, pmm PMM) (*AS_t, kdefs.Err_t) {
	root, ok := pmm.AllocFrame()
	if !ok {
		return nil, kdefs.ENOMEM
	}
	zeroPage(mem, root)
	return &AS_t{Root: root, mem: mem, pmm: pmm}, 0
}

// BuildProcessRoot creates a fresh user half for a new process, with
// the upper (kernel) half's top-level PTEs copied by reference from
// kernelRoot so kernel code remains visible after SwitchTo. The kernel
// template never changes after boot, so a shallow top-level-entry copy
// never needs to be kept in sync afterward.
func BuildProcessRoot(mem Mem, pmm PMM, kernelRoot kmem.PhysAddr) (*AS_t, kdefs.Err_t) {
	as, err := NewAS(mem, pmm)
	if err != 0 {
		return nil, err
	}
	kRootPTEs := readNode(mem, kernelRoot)
	myPTEs := readNode(mem, as.Root)
	for i := 256; i < 512; i++ { // upper half: VPN2 >= 256
		myPTEs[i] = kRootPTEs[i]
	}
	writeNode(mem, as.Root, myPTEs)
	return as, 0
}

// Map creates a leaf mapping from vaddr to paddr with the given flags,
// allocating intermediate page-table nodes as needed. Fails with ENOMEM
// if frames are exhausted.
func (as *AS_t) Map(vaddr uint64, paddr kmem.PhysAddr, flags Flag) kdefs.Err_t {
	as.Lock()
	defer as.Unlock()
	node, idx, ok := as.walk(vaddr, true)
	if !ok {
		return kdefs.ENOMEM
	}
	pte := kriscv.MkPTE(uint64(paddr)>>kconfig.PageShift, flagsToPTE(flags)|kriscv.PTE_V|kriscv.PTE_A|kriscv.PTE_D)
	setPTE(as.mem, node, idx, pte)
	return 0
}

// Unmap clears the leaf mapping at vaddr and flushes the local TLB for
// that page. Intermediate nodes are not collapsed.
func (as *AS_t) Unmap(vaddr uint64) {
	as.Lock()
	defer as.Unlock()
	node, idx, ok := as.walk(vaddr, false)
	if ok {
		setPTE(as.mem, node, idx, 0)
	}
	TLBFlushPage(vaddr)
}

// TranslateVirtToPhys returns the physical address mapped at vaddr, or
// ok=false if unmapped or invalid.
func (as *AS_t) TranslateVirtToPhys(vaddr uint64) (kmem.PhysAddr, bool) {
	as.Lock()
	defer as.Unlock()
	node, idx, ok := as.walk(vaddr, false)
	if !ok {
		return 0, false
	}
	pte := getPTE(as.mem, node, idx)
	if pte&kriscv.PTE_V == 0 {
		return 0, false
	}
	off := vaddr & (kconfig.PageSize - 1)
	return kmem.PhysAddr(pte.PPN()<<kconfig.PageShift) + kmem.PhysAddr(off), true
}

// walk descends the three-level Sv39 tree for vaddr, optionally
// allocating missing intermediate nodes, and returns the node holding the
// leaf PTE plus its index within that node.
func (as *AS_t) walk(vaddr uint64, alloc bool) (node kmem.PhysAddr, idx uint64, ok bool) {
	node = as.Root
	for level := kriscv.VpnLevels - 1; level > 0; level-- {
		i := kriscv.Vpn(vaddr, level)
		pte := getPTE(as.mem, node, i)
		switch {
		case pte&kriscv.PTE_V == 0:
			if !alloc {
				return 0, 0, false
			}
			next, got := as.pmm.AllocFrame()
			if !got {
				return 0, 0, false
			}
			zeroPage(as.mem, next)
			setPTE(as.mem, node, i, kriscv.MkPTE(uint64(next)>>kconfig.PageShift, kriscv.PTE_V))
			node = next
		case pte.IsLeaf():
			// a superpage occupies this slot; not used by this core.
			return 0, 0, false
		default:
			node = kmem.PhysAddr(pte.PPN() << kconfig.PageShift)
		}
	}
	return node, kriscv.Vpn(vaddr, 0), true
}

// SwitchTo writes satp for this address space and flushes the TLB. It
// must be the last thing ksched.schedule does after the low-level
// context switch returns, so satp always matches the current process.
func (as *AS_t) SwitchTo() {
	WriteSatp(as.Root)
	TLBFlushAll()
}

// Uvmfree releases all user mappings and frees the root page-table
// tree: walk every VMA, unmap its pages, then clear the VMA map.
func (as *AS_t) Uvmfree() {
	as.Lock()
	defer as.Unlock()
	for _, vma := range as.VMAs.All() {
		for va := vma.Start; va < vma.End; va += kconfig.PageSize {
			node, idx, ok := as.walk(va, false)
			if !ok {
				continue
			}
			pte := getPTE(as.mem, node, idx)
			if pte&kriscv.PTE_V != 0 {
				as.pmm.FreeFrame(kmem.PhysAddr(pte.PPN() << kconfig.PageShift))
				setPTE(as.mem, node, idx, 0)
			}
		}
	}
	as.VMAs.Clear()
	freeTableTree(as.mem, as.pmm, as.Root, kriscv.VpnLevels)
}

// freeTableTree frees every node of a page-table tree, but never follows
// into the shared kernel upper half (entries tagged PTE_G are untouched,
// since that subtree belongs to the kernel template, not this process).
func freeTableTree(mem Mem, pmm PMM, node kmem.PhysAddr, level int) {
	if level == 0 {
		return
	}
	ptes := readNode(mem, node)
	for _, pte := range ptes {
		if pte&kriscv.PTE_V == 0 || pte&kriscv.PTE_G != 0 {
			continue
		}
		if level > 1 && !pte.IsLeaf() {
			child := kmem.PhysAddr(pte.PPN() << kconfig.PageShift)
			freeTableTree(mem, pmm, child, level-1)
		}
	}
	pmm.FreeFrame(node)
}

func zeroPage(mem Mem, addr kmem.PhysAddr) {
	mem.Write(addr, make([]byte, kconfig.PageSize))
}

func readNode(mem Mem, addr kmem.PhysAddr) [512]kriscv.Pte_t {
	raw := mem.Read(addr, kconfig.PageSize)
	var out [512]kriscv.Pte_t
	for i := 0; i < 512; i++ {
		out[i] = kriscv.Pte_t(getU64(raw[i*8:]))
	}
	return out
}

func writeNode(mem Mem, addr kmem.PhysAddr, ptes [512]kriscv.Pte_t) {
	raw := make([]byte, kconfig.PageSize)
	for i, p := range ptes {
		putU64(raw[i*8:], uint64(p))
	}
	mem.Write(addr, raw)
}

// getPTE/setPTE read-modify-write a single 8-byte PTE slot within node,
// avoiding a full-node read/write pair at every step of walk.
func getPTE(mem Mem, node kmem.PhysAddr, idx uint64) kriscv.Pte_t {
	raw := mem.Read(node+kmem.PhysAddr(idx*8), 8)
	return kriscv.Pte_t(getU64(raw))
}

func setPTE(mem Mem, node kmem.PhysAddr, idx uint64, pte kriscv.Pte_t) {
	raw := make([]byte, 8)
	putU64(raw, uint64(pte))
	mem.Write(node+kmem.PhysAddr(idx*8), raw)
}
