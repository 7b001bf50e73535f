package ksyscall

import (
	"riscvkernel/kfs"
	"riscvkernel/kmem"
	"riscvkernel/kproc"
	"riscvkernel/ksched"
	"riscvkernel/kvm"
)

// Env bundles the kernel-wide state a syscall handler needs beyond the
// calling process itself: the process table (fork/waitpid), the
// scheduler (yield/sleep/wake), the physical-memory view and allocator
// (mmap/sbrk/fork/exec), the kernel page-table root template (fresh
// address spaces), and the filesystem root (path resolution). ktrap
// holds one Env per hart and passes it to Dispatch on every ECALL.
type Env struct {
	Table      *kproc.Table_t
	Sched      *ksched.Scheduler_t
	Mem        kvm.Mem
	PMM        kproc.FrameAllocator
	KernelRoot kmem.PhysAddr
	FSRoot     kfs.Node
}
