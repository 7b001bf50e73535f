package ktrap

import (
	"riscvkernel/kproc"
	"riscvkernel/ksched"
	"riscvkernel/ksignal"
)

// ReturnToUser is the trap-exit sequence: clear the
// SUM bit unconditionally, deliver at most one pending signal and act
// on its DeliverAction, restore the scratch register, and hand control
// back to the trap-return path. p's trap frame is mutated in place by a
// user-handler dispatch exactly as ksignal.Deliver specifies.
func (c *Core_t) ReturnToUser(p *kproc.Proc_t) {
	if c.Hooks.ClearSUM != nil {
		c.Hooks.ClearSUM()
	}

	frame := p.Tf.ToSignal()
	result := p.Sig.Deliver(&frame)
	p.Tf.FromSignal(frame)

	if result.Delivered {
		switch result.Action {
		case ksignal.ActionTerminate:
			kproc.Exit(c.Env.Table, c.Sched, p, ksignal.ExitCodeFor(result.Signo))
			c.Sched.Schedule()
		case ksignal.ActionStop:
			p.SetState(ksched.STOPPED)
			if parent, ok := c.Env.Table.Find(p.Parent); ok {
				parent.Raise(ksignal.SIGCHLD)
			}
			c.Sched.Schedule()
		case ksignal.ActionContinue:
			// Already READY/RUNNING by the time Deliver observed it
			// pending; nothing further to do.
		}
	}

	if c.Hooks.RestoreScratch != nil {
		c.Hooks.RestoreScratch()
	}
}
