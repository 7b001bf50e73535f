// Package ktrap is the trap core: the single place that decides, for
// every trap into supervisor mode, whether the cause is a timer tick,
// an external interrupt, a syscall ECALL, or a fault, and dispatches
// accordingly. It sits above ksched, ksignal, and ksyscall, wiring
// them together the way kvm/csr.go and ksched/irq.go
// already wire hardware-only operations behind installable hooks:
// this core has no real assembly of its own, since the only hardware
// primitives it touches (scause/sepc/sstatus, the scratch register,
// the SUM bit) are each a function-pointer hook a simulator or bare-
// metal init installs.
package ktrap

import (
	"fmt"
	"strings"

	"riscvkernel/klog"
	"riscvkernel/kproc"
	"riscvkernel/kriscv"
	"riscvkernel/ksched"
	"riscvkernel/ksignal"
	"riscvkernel/ksyscall"
)

// PlatformIRQ claims and completes external interrupts routed through
// the platform-level interrupt controller (a PLIC, on real hardware).
// Its concrete wiring is entirely platform/simulator-specific and out
// of this core's scope; ktrap only needs to claim, dispatch, and
// complete.
type PlatformIRQ interface {
	Claim() (id int, ok bool)
	Dispatch(id int)
	Complete(id int)
}

// Hooks bundles the hardware-only primitives ReturnToUser's trap-exit
// sequence needs: clearing the SUM bit unconditionally before
// returning to user mode, and the scratch-
// register save/restore pair trap entry/exit use to recover the
// interrupted hart's kernel stack pointer. All three are no-ops by
// default so tests can drive Core_t without a real or simulated CPU.
type Hooks struct {
	ClearSUM       func()
	SaveScratch    func(v uint64)
	RestoreScratch func() uint64
}

// Core_t is the per-hart trap core.
type Core_t struct {
	Env   *ksyscall.Env
	Sched *ksched.Scheduler_t
	IRQ   PlatformIRQ
	Hooks Hooks
}

// New constructs a trap core over env/sched and installs setSUM as the
// SUM-bit hook ksyscall's syscall handlers use while copying to or from
// user memory (kvm.SUMToken.Access).
func New(env *ksyscall.Env, sched *ksched.Scheduler_t, irq PlatformIRQ, hooks Hooks, setSUM func(bool)) *Core_t {
	ksyscall.InstallSUMHook(setSUM)
	return &Core_t{Env: env, Sched: sched, IRQ: irq, Hooks: hooks}
}

// Trap is the single entry point real trap-entry assembly (or cmd/
// ksim's simulated hart loop) calls with the scause, sepc, and sstatus
// CSRs already read and the interrupted process's trap frame already
// saved. It dispatches the trap and then runs the trap-exit sequence
// for whichever process the scheduler leaves current, not necessarily
// the one that trapped, since a timer interrupt may have switched away
// from it.
func (c *Core_t) Trap(scause, sepc, sstatus uint64) {
	c.HandleTrap(scause, sepc, sstatus)
	if p := c.currentProc(); p != nil {
		c.ReturnToUser(p)
	}
}

// HandleTrap classifies scause and routes to the interrupt or exception
// path. sstatus carries the originating privilege in its SPP bit: an
// exception whose previous privilege was S-mode means the kernel itself
// faulted, which is never recoverable.
func (c *Core_t) HandleTrap(scause, sepc, sstatus uint64) {
	if kriscv.IsInterrupt(scause) {
		c.handleInterrupt(kriscv.Code(scause))
		return
	}
	if sstatus&kriscv.SstatusSPP != 0 {
		c.kernelFault(kriscv.Code(scause), sepc)
		return
	}
	c.handleException(kriscv.Code(scause), sepc)
}

// kernelFault halts on an exception taken from S-mode. There is no
// process to terminate: the fault is in kernel code, so the only safe
// action is a full register dump and panic.
func (c *Core_t) kernelFault(code, sepc uint64) {
	klog.Panic("trap from S-mode: %s\n%s",
		kriscv.CauseName(code), c.registerDump(c.currentProc(), code, sepc))
}

func (c *Core_t) handleInterrupt(code uint64) {
	switch code {
	case kriscv.IntSupervisorTimer:
		c.Sched.OnTick()
	case kriscv.IntSupervisorExternal:
		if c.IRQ == nil {
			return
		}
		id, ok := c.IRQ.Claim()
		if !ok {
			return
		}
		c.IRQ.Dispatch(id)
		c.IRQ.Complete(id)
	}
}

func (c *Core_t) handleException(code, sepc uint64) {
	cur := c.currentProc()
	if cur == nil {
		return
	}
	if code == kriscv.ExcEcallFromU {
		// ecall is a 4-byte instruction; the syscall return address is
		// the instruction after it.
		cur.Tf.Sepc = sepc + 4
		ksyscall.Dispatch(c.Env, cur)
		return
	}

	// Every other cause here is a fault: the trapped instruction did not
	// complete, so resuming (a caught signal's handler returns to the
	// faulting pc) must resume at sepc itself, not past it.
	cur.Tf.Sepc = sepc
	klog.Warn("pid %d fault:\n%s", cur.Pid, c.registerDump(cur, code, sepc))
	switch code {
	case kriscv.ExcIllegalInstr:
		c.faultTerminate(cur, ksignal.SIGILL)
	case kriscv.ExcBreakpoint:
		c.faultTerminate(cur, ksignal.SIGTRAP)
	case kriscv.ExcInstrMisaligned, kriscv.ExcLoadMisaligned, kriscv.ExcStoreMisaligned:
		c.faultTerminate(cur, ksignal.SIGBUS)
	case kriscv.ExcInstrFault, kriscv.ExcLoadFault, kriscv.ExcStoreFault,
		kriscv.ExcInstrPageFault, kriscv.ExcLoadPageFault, kriscv.ExcStorePageFault:
		c.faultTerminate(cur, ksignal.SIGSEGV)
	default:
		c.faultTerminate(cur, ksignal.SIGILL)
	}
}

// faultTerminate raises signo against the faulting process. Nothing
// else happens synchronously here: the actual termination (or handler
// dispatch, if the process has installed one) happens through the
// ordinary signal-delivery path the very next time this same process
// reaches ReturnToUser, which for a fault is immediately afterward in
// Trap.
func (c *Core_t) faultTerminate(p *kproc.Proc_t, signo int) {
	p.Raise(signo)
}

// registerDump renders the faulting register state: the cause, the
// faulting pc with a best-effort disassembly of the instruction word
// there, and the trapped process's saved integer file when one is
// current.
func (c *Core_t) registerDump(p *kproc.Proc_t, code, sepc uint64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scause=%d (%s) sepc=%#x\n", code, kriscv.CauseName(code), sepc)
	fmt.Fprintf(&b, "%s\n", kriscv.DescribeFault(sepc, c.instrAt(p, sepc)))
	if p != nil && p.Tf != nil {
		for i := 0; i < 32; i += 4 {
			fmt.Fprintf(&b, "x%-2d=%#018x x%-2d=%#018x x%-2d=%#018x x%-2d=%#018x\n",
				i, p.Tf.Regs[i], i+1, p.Tf.Regs[i+1],
				i+2, p.Tf.Regs[i+2], i+3, p.Tf.Regs[i+3])
		}
		fmt.Fprintf(&b, "sepc=%#x sstatus=%#x\n", p.Tf.Sepc, p.Tf.Sstatus)
	}
	return b.String()
}

// instrAt reads the 32-bit instruction word at va through p's address
// space, or zero when the word is unmapped (the dump still shows the
// pc).
func (c *Core_t) instrAt(p *kproc.Proc_t, va uint64) uint32 {
	if p == nil || p.AS == nil || c.Env == nil {
		return 0
	}
	pa, ok := p.AS.TranslateVirtToPhys(va)
	if !ok {
		return 0
	}
	b := c.Env.Mem.Read(pa, 4)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (c *Core_t) currentProc() *kproc.Proc_t {
	r := c.Sched.Current()
	if r == nil {
		return nil
	}
	p, ok := r.(*kproc.Proc_t)
	if !ok {
		return nil
	}
	return p
}
