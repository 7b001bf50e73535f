// Package kproc implements the process control block and its
// lifecycle: PID allocation, creation from an ELF image, fork, exec,
// exit, and reap.
package kproc

import (
	"sync"

	"riscvkernel/kconfig"
	"riscvkernel/kdefs"
	"riscvkernel/kipc"
	"riscvkernel/ksched"
	"riscvkernel/ksignal"
	"riscvkernel/kvm"
)

// Proc_t is one process control block.
type Proc_t struct {
	sync.Mutex

	Pid    kdefs.Pid_t
	Parent kdefs.Pid_t
	state  ksched.State

	AS *kvm.AS_t // page-table root + VMA list

	HeapStart uint64
	HeapEnd   uint64

	// MmapNext is the bump pointer for the next anonymous mmap region;
	// zero means "not yet initialized" (lazily set to kconfig.MmapBase on
	// first use, since most processes never call mmap).
	MmapNext uint64

	Tf *Trapframe_t

	Cwd *Cwd_t
	Fds [kconfig.FdTableSize]*Fd_t

	Sig ksignal.State_t

	CTerm    int
	ExitCode int
	Errno    kdefs.Err_t

	Acct Accnt_t

	// ChildWait is the wait queue a parent blocks on in Reap until some
	// child transitions to ZOMBIE; the exit path wakes it directly
	// rather than through a signal, since SIGCHLD's default disposition
	// is ignore.
	ChildWait kipc.WaitQueue_t
}

// SchedID, State, SetState implement ksched.Runnable.
func (p *Proc_t) SchedID() int            { return int(p.Pid) }
func (p *Proc_t) State() ksched.State     { return p.state }
func (p *Proc_t) SetState(s ksched.State) { p.state = s }

// Raise implements kipc.SignalSender: a blocked write observing a
// broken pipe raises SIGPIPE against the writing process itself.
func (p *Proc_t) Raise(signo int) {
	p.Sig.Raise(signo)
}
