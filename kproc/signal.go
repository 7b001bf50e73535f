package kproc

import (
	"riscvkernel/kdefs"
	"riscvkernel/kipc"
	"riscvkernel/ksched"
	"riscvkernel/ksignal"
)

// Kill sends signo to target: set the pending bit, then wake target if
// it is SLEEPING (unless signo is SIGCONT) or if it is STOPPED and
// signo is SIGCONT. CannotBlockOrCatch signals still wake a sleeper;
// they only block installation of a custom handler, not delivery.
func Kill(table *Table_t, sched *ksched.Scheduler_t, target kdefs.Pid_t, signo int) kdefs.Err_t {
	p, ok := table.Find(target)
	if !ok {
		return kdefs.ESRCH
	}
	p.Raise(signo)
	switch p.State() {
	case ksched.SLEEPING:
		if signo != ksignal.SIGCONT {
			kipc.WakeProcess(p, sched)
		}
	case ksched.STOPPED:
		if signo == ksignal.SIGCONT {
			p.SetState(ksched.READY)
			sched.Enqueue(p)
		}
	}
	return 0
}
