package ksyscall

import (
	"riscvkernel/kdefs"
	"riscvkernel/kipc"
	"riscvkernel/kproc"
	"riscvkernel/ksched"
	"riscvkernel/ksignal"
	"riscvkernel/kvm"
)

func sysGetpid(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	return uint64(p.Pid), 0
}

func sysGetppid(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	return uint64(p.Parent), 0
}

func sysFork(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	child, err := kproc.Fork(env.Table, env.Mem, env.PMM, env.KernelRoot, p)
	if err != 0 {
		return 0, err
	}
	env.Sched.Enqueue(child)
	return uint64(child.Pid), 0
}

func sysExecve(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	path, err := copyInCString(p, sum, p.Tf.Arg(0), maxPathLen)
	if err != 0 {
		return 0, err
	}
	full := p.Cwd.Fullpath(path)

	var argv []string
	if argvUva := p.Tf.Arg(1); argvUva != 0 {
		for i := 0; i < maxArgs; i++ {
			var ptrBuf [8]byte
			if err := sum.CopyIn(argvUva+uint64(i)*8, ptrBuf[:]); err != 0 {
				return 0, err
			}
			strPtr := getU64(ptrBuf[:])
			if strPtr == 0 {
				break
			}
			s, err := copyInCString(p, sum, strPtr, maxPathLen)
			if err != 0 {
				return 0, err
			}
			argv = append(argv, s)
		}
	}

	if err := kproc.Exec(env.Mem, env.PMM, env.KernelRoot, env.FSRoot, p, full); err != 0 {
		return 0, err
	}

	// p.AS and p.Tf are now the freshly built image; a new SUM token must
	// be scoped to the new address space, since the one Dispatch handed
	// us still points at the address space Exec just freed.
	newSum := kvm.NewSUMToken(p.AS, sumSetter)
	sp := pushArgv(newSum, p, argv)
	p.Tf.SetSp(sp)
	p.Tf.Regs[10] = uint64(len(argv))
	p.Tf.Regs[11] = sp + 8*uint64(len(argv)+1)
	return 0, 0
}

// pushArgv writes argv's strings and a NUL-terminated pointer array
// onto the top of the freshly built stack, returning the new stack
// pointer, so the exec'd image finds argv where its startup code
// expects it.
func pushArgv(sum *kvm.SUMToken, p *kproc.Proc_t, argv []string) uint64 {
	sp := p.Tf.Sp()
	strAddrs := make([]uint64, len(argv))
	for i, s := range argv {
		b := append([]byte(s), 0)
		sp -= uint64(len(b))
		sp &^= 0x7
		sum.CopyOut(sp, b)
		strAddrs[i] = sp
	}
	sp -= uint64((len(argv) + 1) * 8)
	sp &^= 0xf
	for i, addr := range strAddrs {
		var b [8]byte
		putU64(b[:], addr)
		sum.CopyOut(sp+uint64(i)*8, b[:])
	}
	var zero [8]byte
	sum.CopyOut(sp+uint64(len(argv))*8, zero[:])
	return sp
}

func sysExit(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	kproc.Exit(env.Table, env.Sched, p, int(int32(p.Tf.Arg(0))))
	env.Sched.Schedule()
	return 0, 0
}

// reapFiltered mirrors kproc.Reap, restricted to a specific target pid
// when want > 0 (any live child otherwise), matching waitpid(2)'s pid
// argument: a specific child, or -1/0 for "any".
func reapFiltered(env *Env, parent *kproc.Proc_t, want kdefs.Pid_t) (kdefs.Pid_t, int, kdefs.Err_t) {
	for {
		children := env.Table.Children(parent.Pid)
		if len(children) == 0 {
			return 0, 0, kdefs.ECHILD
		}
		found := false
		for _, c := range children {
			if want > 0 && c.Pid != want {
				continue
			}
			found = true
			if c.State() == ksched.ZOMBIE {
				c.AS.Uvmfree()
				pid := c.Pid
				code := c.ExitCode
				env.Table.Release(pid)
				return pid, code, 0
			}
		}
		if !found {
			return 0, 0, kdefs.ECHILD
		}
		tok := ksched.SaveAndDisable()
		kipc.Sleep(&parent.ChildWait, parent, env.Sched)
		tok.Restore()
	}
}

func sysWaitpid(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	want := kdefs.Pid_t(int64(p.Tf.Arg(0)))
	pid, code, err := reapFiltered(env, p, want)
	if err != 0 {
		return 0, err
	}
	if statusUva := p.Tf.Arg(1); statusUva != 0 {
		var b [4]byte
		putU32(b[:], uint32(code)<<8)
		if err := sum.CopyOut(statusUva, b[:]); err != 0 {
			return 0, err
		}
	}
	return uint64(pid), 0
}

func sysKill(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	target := kdefs.Pid_t(int64(p.Tf.Arg(0)))
	signo := int(p.Tf.Arg(1))
	return 0, kproc.Kill(env.Table, env.Sched, target, signo)
}

// sysSignal installs a handler (SIG_DFL/SIG_IGN/address) for signo,
// the simpler of the two installation syscalls. sysSigaction takes the
// same two arguments and installs the handler through this function; it
// reads no mask.
func sysSignal(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	signo := int(p.Tf.Arg(0))
	addr := p.Tf.Arg(1)
	var h ksignal.Handler_t
	switch addr {
	case 0:
		h = ksignal.Handler_t{Kind: ksignal.HDefault}
	case ^uint64(0):
		h = ksignal.Handler_t{Kind: ksignal.HIgnore}
	default:
		h = ksignal.Handler_t{Kind: ksignal.HUser, Addr: addr}
	}
	if !p.Sig.SetHandler(signo, h) {
		return 0, kdefs.EINVAL
	}
	return 0, 0
}

func sysSigaction(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	return sysSignal(env, p, sum)
}

func sysYield(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	env.Sched.Yield()
	return 0, 0
}

func sysSleep(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	ticks := p.Tf.Arg(0)
	if ticks == 0 {
		return 0, 0
	}
	var wq kipc.WaitQueue_t
	env.Sched.After(ticks, func() { kipc.WakeAll(&wq, env.Sched) })
	tok := ksched.SaveAndDisable()
	kipc.Sleep(&wq, p, env.Sched)
	tok.Restore()
	return 0, 0
}

func sysGettime(env *Env, p *kproc.Proc_t, sum *kvm.SUMToken) (uint64, kdefs.Err_t) {
	return env.Sched.Ticks(), 0
}
