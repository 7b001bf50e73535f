package kproc

import (
	"riscvkernel/kconfig"
	"riscvkernel/kdefs"
	"riscvkernel/kelf"
	"riscvkernel/kfs"
	"riscvkernel/kipc"
	"riscvkernel/kmem"
	"riscvkernel/ksched"
	"riscvkernel/ksignal"
	"riscvkernel/kvm"
)

// FrameAllocator is the subset of kmem.PMM_t the lifecycle operations
// need: single-frame alloc/free for page-table nodes and the user
// stack, plus AllocContiguous for loading an ELF image's union range in
// one physically contiguous block.
type FrameAllocator interface {
	AllocFrame() (kmem.PhysAddr, bool)
	FreeFrame(kmem.PhysAddr)
	AllocContiguous(n int) (kmem.PhysAddr, bool)
}

func pageRoundUp(v uint64) uint64 {
	return (v + kconfig.PageSize - 1) &^ (kconfig.PageSize - 1)
}

func pageRoundDown(v uint64) uint64 {
	return v &^ (kconfig.PageSize - 1)
}

func segFlags(s kelf.Segment) kvm.Flag {
	var f kvm.Flag = kvm.USER
	if s.Readable {
		f |= kvm.READ
	}
	if s.Writable {
		f |= kvm.WRITE
	}
	if s.Execable {
		f |= kvm.EXEC
	}
	return f
}

// CreateFromELF builds a fresh READY process from the ELF executable
// at path: load the image, map it with per-segment permissions, map a
// user stack, and initialize the trap frame at the entry point.
func CreateFromELF(table *Table_t, mem kvm.Mem, pmm FrameAllocator, kernelRoot kmem.PhysAddr, fsRoot kfs.Node, path string) (*Proc_t, kdefs.Err_t) {
	node, err := kfs.Resolve(fsRoot, path)
	if err != 0 {
		return nil, err
	}
	if node.Kind() != kfs.KindFile {
		return nil, kdefs.EISDIR
	}
	raw := make([]byte, node.Size())
	if _, err := node.Read(raw, 0); err != 0 {
		return nil, err
	}
	img, err := kelf.Parse(raw)
	if err != 0 {
		return nil, err
	}

	lo, hi := img.VirtRange()
	lo = pageRoundDown(lo)
	hi = pageRoundUp(hi)
	npages := (hi - lo) / kconfig.PageSize

	base, ok := pmm.AllocContiguous(int(npages))
	if !ok {
		return nil, kdefs.ENOMEM
	}
	zero := make([]byte, kconfig.PageSize)
	for i := uint64(0); i < npages; i++ {
		mem.Write(base+kmem.PhysAddr(i*kconfig.PageSize), zero)
	}
	for _, seg := range img.Segments {
		dst := base + kmem.PhysAddr(seg.Vaddr-lo)
		if len(seg.FileData) > 0 {
			mem.Write(dst, seg.FileData)
		}
	}

	as, err := kvm.BuildProcessRoot(mem, pmm, kernelRoot)
	if err != 0 {
		pmm.FreeFrame(base)
		return nil, err
	}
	for _, seg := range img.Segments {
		segLo := pageRoundDown(seg.Vaddr)
		segHi := pageRoundUp(seg.Vaddr + seg.Memsz)
		flags := segFlags(seg)
		if err := as.VMAs.Insert(segLo, segHi, flags); err != 0 {
			return nil, err
		}
		for va := segLo; va < segHi; va += kconfig.PageSize {
			pa := base + kmem.PhysAddr(va-lo)
			if err := as.Map(va, pa, flags); err != 0 {
				return nil, err
			}
		}
	}

	stackTop := uint64(kconfig.UserStackTop)
	stackLo := stackTop - kconfig.DefaultStackPages*kconfig.PageSize
	if err := as.VMAs.Insert(stackLo, stackTop, kvm.READ|kvm.WRITE|kvm.USER); err != 0 {
		return nil, err
	}
	for va := stackLo; va < stackTop; va += kconfig.PageSize {
		frame, ok := pmm.AllocFrame()
		if !ok {
			return nil, kdefs.ENOMEM
		}
		mem.Write(frame, zero)
		if err := as.Map(va, frame, kvm.READ|kvm.WRITE|kvm.USER); err != 0 {
			return nil, err
		}
	}

	p, err := table.Alloc()
	if err != 0 {
		return nil, err
	}
	p.AS = as
	p.HeapStart = hi
	p.HeapEnd = hi
	p.Cwd = MkRootCwd(fsRoot)
	p.Tf = &Trapframe_t{Sepc: img.Entry, Sstatus: 0}
	p.Tf.SetSp(stackTop)
	p.SetState(ksched.READY)
	return p, 0
}

// Fork is the eager-copy fork: a new PID, a new page-table root,
// bytewise-copied user frames, a duplicated fd table, and a trap frame
// edited so the child observes a 0 return value while the parent
// observes the child's PID.
func Fork(table *Table_t, mem kvm.Mem, pmm FrameAllocator, kernelRoot kmem.PhysAddr, parent *Proc_t) (*Proc_t, kdefs.Err_t) {
	child, err := table.Alloc()
	if err != 0 {
		return nil, err
	}
	as, err := kvm.BuildProcessRoot(mem, pmm, kernelRoot)
	if err != 0 {
		table.Release(child.Pid)
		return nil, err
	}
	for _, vma := range parent.AS.VMAs.All() {
		if err := as.VMAs.Insert(vma.Start, vma.End, vma.Flags); err != 0 {
			table.Release(child.Pid)
			return nil, err
		}
		for va := vma.Start; va < vma.End; va += kconfig.PageSize {
			srcPA, ok := parent.AS.TranslateVirtToPhys(va)
			if !ok {
				continue
			}
			dstPA, ok := pmm.AllocFrame()
			if !ok {
				table.Release(child.Pid)
				return nil, kdefs.ENOMEM
			}
			buf := mem.Read(srcPA, kconfig.PageSize)
			mem.Write(dstPA, buf)
			if err := as.Map(va, dstPA, vma.Flags); err != 0 {
				table.Release(child.Pid)
				return nil, err
			}
		}
	}

	child.AS = as
	child.Parent = parent.Pid
	child.HeapStart = parent.HeapStart
	child.HeapEnd = parent.HeapEnd
	child.Cwd = &Cwd_t{Root: parent.Cwd.Root, Path: parent.Cwd.Path}

	tf := *parent.Tf
	child.Tf = &tf
	child.Tf.SetA0(0)
	parent.Tf.SetA0(uint64(child.Pid))

	for i, fd := range parent.Fds {
		if fd != nil {
			child.Fds[i] = Copyfd(fd)
		}
	}

	child.SetState(ksched.READY)
	return child, 0
}

// Exec replaces the calling process's image. The old image is torn
// down only after the new one has been fully parsed and its frames
// allocated, so a failure leaves the caller's process unchanged (never
// observable as a half-replaced image).
func Exec(mem kvm.Mem, pmm FrameAllocator, kernelRoot kmem.PhysAddr, fsRoot kfs.Node, p *Proc_t, path string) kdefs.Err_t {
	// path is assumed already copied into a kernel buffer by the caller
	// (ksyscall), since exec frees the very user pages path might live
	// in.
	node, err := kfs.Resolve(fsRoot, path)
	if err != 0 {
		return err
	}
	raw := make([]byte, node.Size())
	if _, err := node.Read(raw, 0); err != 0 {
		return err
	}
	img, err := kelf.Parse(raw)
	if err != 0 {
		return err
	}
	lo, hi := img.VirtRange()
	lo = pageRoundDown(lo)
	hi = pageRoundUp(hi)
	npages := (hi - lo) / kconfig.PageSize
	base, ok := pmm.AllocContiguous(int(npages))
	if !ok {
		return kdefs.ENOMEM
	}
	zero := make([]byte, kconfig.PageSize)
	for i := uint64(0); i < npages; i++ {
		mem.Write(base+kmem.PhysAddr(i*kconfig.PageSize), zero)
	}
	for _, seg := range img.Segments {
		if len(seg.FileData) > 0 {
			mem.Write(base+kmem.PhysAddr(seg.Vaddr-lo), seg.FileData)
		}
	}
	newAS, err := kvm.BuildProcessRoot(mem, pmm, kernelRoot)
	if err != 0 {
		pmm.FreeFrame(base)
		return err
	}
	for _, seg := range img.Segments {
		segLo := pageRoundDown(seg.Vaddr)
		segHi := pageRoundUp(seg.Vaddr + seg.Memsz)
		flags := segFlags(seg)
		if err := newAS.VMAs.Insert(segLo, segHi, flags); err != 0 {
			return err
		}
		for va := segLo; va < segHi; va += kconfig.PageSize {
			pa := base + kmem.PhysAddr(va-lo)
			if err := newAS.Map(va, pa, flags); err != 0 {
				return err
			}
		}
	}
	stackTop := uint64(kconfig.UserStackTop)
	stackLo := stackTop - kconfig.DefaultStackPages*kconfig.PageSize
	if err := newAS.VMAs.Insert(stackLo, stackTop, kvm.READ|kvm.WRITE|kvm.USER); err != 0 {
		return err
	}
	for va := stackLo; va < stackTop; va += kconfig.PageSize {
		frame, ok := pmm.AllocFrame()
		if !ok {
			return kdefs.ENOMEM
		}
		mem.Write(frame, zero)
		if err := newAS.Map(va, frame, kvm.READ|kvm.WRITE|kvm.USER); err != 0 {
			return err
		}
	}

	// Point of no return: the new image is fully built, so tearing down
	// the old one can no longer fail partway through in a way that
	// leaves neither image usable.
	oldAS := p.AS
	oldAS.Uvmfree()

	p.AS = newAS
	p.HeapStart = hi
	p.HeapEnd = hi
	p.Tf = &Trapframe_t{Sepc: img.Entry}
	p.Tf.SetSp(stackTop)
	return 0
}

// Exit terminates p: mark ZOMBIE, store the exit
// code, close every open fd, then send SIGCHLD to the parent only after
// the process-table lock is released. The caller must not hold table.mu
// across this call; Exit itself takes no table lock, since closing fds
// and waking the parent's wait queue need no process-table-wide
// serialization.
func Exit(table *Table_t, sched *ksched.Scheduler_t, p *Proc_t, code int) {
	p.SetState(ksched.ZOMBIE)
	p.ExitCode = code
	for i, fd := range p.Fds {
		if fd != nil {
			fd.ClosePanic(sched)
			p.Fds[i] = nil
		}
	}
	if parent, ok := table.Find(p.Parent); ok {
		kipc.WakeAll(&parent.ChildWait, sched)
		parent.Raise(ksignal.SIGCHLD)
	}
}

// Reap is the waitpid core: scan children for a ZOMBIE, or block on
// the parent's child-exit wait queue if a matching child exists but has
// not yet exited.
func Reap(table *Table_t, sched *ksched.Scheduler_t, parent *Proc_t, pmm FrameAllocator) (kdefs.Pid_t, int, kdefs.Err_t) {
	for {
		children := table.Children(parent.Pid)
		if len(children) == 0 {
			return 0, 0, kdefs.ECHILD
		}
		for _, c := range children {
			if c.State() == ksched.ZOMBIE {
				c.AS.Uvmfree()
				pid := c.Pid
				code := c.ExitCode
				table.Release(pid)
				return pid, code, 0
			}
		}
		tok := ksched.SaveAndDisable()
		kipc.Sleep(&parent.ChildWait, parent, sched)
		tok.Restore()
	}
}
