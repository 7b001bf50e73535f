package ksyscall

import (
	"riscvkernel/kdefs"
	"riscvkernel/kproc"
	"riscvkernel/kvm"
)

// errReturn is the -1 a0 value every failing syscall returns, with the
// actual kind stashed in the caller's per-process errno slot.
const errReturn = ^uint64(0)

// handler is the shape every syscall implementation takes: the shared
// kernel environment, the calling process, and a SUM token already
// scoped to that process's address space for any user-memory access.
type handler func(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t)

var table = map[uint64]handler{
	SysExit:     sysExit,
	SysWrite:    sysWrite,
	SysRead:     sysRead,
	SysOpen:     sysOpen,
	SysClose:    sysClose,
	SysLseek:    sysLseek,
	SysStat:     sysStat,
	SysMkdir:    sysMkdir,
	SysRmdir:    sysRmdir,
	SysUnlink:   sysUnlink,
	SysGetdents: sysGetdents,
	SysChdir:    sysChdir,
	SysGetcwd:   sysGetcwd,
	SysGetpid:   sysGetpid,
	SysGetppid:  sysGetppid,
	SysFork:     sysFork,
	SysExecve:   sysExecve,
	SysWaitpid:  sysWaitpid,
	SysKill:     sysKill,
	SysSignal:   sysSignal,
	SysSigaction: sysSigaction,
	SysPipe:     sysPipe,
	SysMmap:     sysMmap,
	SysMunmap:   sysMunmap,
	SysSbrk:     sysSbrk,
	SysYield:    sysYield,
	SysSleep:    sysSleep,
	SysGettime:  sysGettime,
}

// Dispatch routes the syscall named in p.Tf's a7 register to its
// handler, writing the result (or -1 plus p.Errno) into a0. This is the
// single entry point ktrap's ECALL path calls into.
func Dispatch(env *Env, p *kproc.Proc_t) {
	sum := kvm.NewSUMToken(p.AS, sumSetter)
	num := p.Tf.Syscall()
	h, ok := table[num]
	if !ok {
		p.Errno = kdefs.EINVAL
		p.Tf.SetA0(errReturn)
		return
	}
	ret, err := h(env, p, sum)
	if err != 0 {
		p.Errno = err
		p.Tf.SetA0(errReturn)
		return
	}
	p.Tf.SetA0(ret)
}

// sumSetter is installed by ktrap.New (InstallSUMHook); it flips
// sstatus.SUM on real hardware. Until a trap core is built it is a
// no-op, which is what tests calling Dispatch directly run with.
var sumSetter func(bool) = func(bool) {}

// InstallSUMHook lets ktrap wire the real sstatus.SUM accessor.
func InstallSUMHook(set func(bool)) {
	if set != nil {
		sumSetter = set
	}
}
