package ksyscall

import (
	"riscvkernel/kconfig"
	"riscvkernel/kdefs"
	"riscvkernel/kproc"
	"riscvkernel/kvm"
)

func pageRoundUp(v uint64) uint64   { return (v + kconfig.PageSize - 1) &^ (kconfig.PageSize - 1) }
func pageRoundDown(v uint64) uint64 { return v &^ (kconfig.PageSize - 1) }

// mapAnon allocates and maps npages fresh zeroed frames starting at
// va, each as its own single-page VMA. Per-page VMAs keep insertion and
// later removal (munmap, sbrk shrink) simple at the cost of a longer
// VMA list than a coalescing allocator would keep.
func mapAnon(env *Env, p *kproc.Proc_t, va uint64, npages uint64) kdefs.Err_t {
	zero := make([]byte, kconfig.PageSize)
	for i := uint64(0); i < npages; i++ {
		pageVA := va + i*kconfig.PageSize
		if err := p.AS.VMAs.Insert(pageVA, pageVA+kconfig.PageSize, kvm.READ|kvm.WRITE|kvm.USER); err != 0 {
			return err
		}
		frame, ok := env.PMM.AllocFrame()
		if !ok {
			return kdefs.ENOMEM
		}
		env.Mem.Write(frame, zero)
		if err := p.AS.Map(pageVA, frame, kvm.READ|kvm.WRITE|kvm.USER); err != 0 {
			return err
		}
	}
	return 0
}

// unmapAnon unmaps and frees npages starting at va, removing each
// page's VMA.
func unmapAnon(env *Env, p *kproc.Proc_t, va uint64, npages uint64) {
	for i := uint64(0); i < npages; i++ {
		pageVA := va + i*kconfig.PageSize
		if pa, ok := p.AS.TranslateVirtToPhys(pageVA); ok {
			env.PMM.FreeFrame(pa)
		}
		p.AS.Unmap(pageVA)
		if vma, ok := p.AS.VMAs.Find(pageVA); ok {
			p.AS.VMAs.Remove(vma)
		}
	}
}

func sysMmap(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	length := p.Tf.Arg(1)
	if length == 0 {
		return 0, kdefs.EINVAL
	}
	if p.MmapNext == 0 {
		p.MmapNext = kconfig.MmapBase
	}
	base := p.MmapNext
	npages := pageRoundUp(length) / kconfig.PageSize
	if err := mapAnon(env, p, base, npages); err != 0 {
		return 0, err
	}
	p.MmapNext = base + npages*kconfig.PageSize
	return base, 0
}

func sysMunmap(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	addr := p.Tf.Arg(0)
	length := p.Tf.Arg(1)
	if addr%kconfig.PageSize != 0 || length == 0 {
		return 0, kdefs.EINVAL
	}
	npages := pageRoundUp(length) / kconfig.PageSize
	unmapAnon(env, p, addr, npages)
	return 0, 0
}

// sysSbrk implements the classic sbrk(2): returns the previous program
// break and moves HeapEnd by increment, mapping newly exposed pages (or
// unmapping and freeing them on a negative increment).
func sysSbrk(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	inc := int64(p.Tf.Arg(0))
	old := p.HeapEnd
	if inc == 0 {
		return old, 0
	}
	newBrk := uint64(int64(old) + inc)
	if newBrk < p.HeapStart {
		return 0, kdefs.EINVAL
	}
	oldPageEnd := pageRoundUp(old)
	newPageEnd := pageRoundUp(newBrk)
	switch {
	case newPageEnd > oldPageEnd:
		n := (newPageEnd - oldPageEnd) / kconfig.PageSize
		if err := mapAnon(env, p, oldPageEnd, n); err != 0 {
			return 0, err
		}
	case newPageEnd < oldPageEnd:
		n := (oldPageEnd - newPageEnd) / kconfig.PageSize
		unmapAnon(env, p, newPageEnd, n)
	}
	p.HeapEnd = newBrk
	return old, 0
}
