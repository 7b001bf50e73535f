package ktrap

import (
	"testing"

	"riscvkernel/kconfig"
	"riscvkernel/kfs"
	"riscvkernel/kmem"
	"riscvkernel/kproc"
	"riscvkernel/kriscv"
	"riscvkernel/ksched"
	"riscvkernel/ksignal"
	"riscvkernel/ksyscall"
	"riscvkernel/kvm"
)

type flatMem struct{ b []byte }

func newFlatMem(n int) *flatMem { return &flatMem{b: make([]byte, n)} }

func (m *flatMem) Read(addr kmem.PhysAddr, n int) []byte {
	out := make([]byte, n)
	copy(out, m.b[addr:])
	return out
}

func (m *flatMem) Write(addr kmem.PhysAddr, b []byte) {
	copy(m.b[addr:], b)
}

// harness bundles everything a trap-core test needs: physical memory, an
// allocator, a process table, a scheduler, and one runnable process with
// a trap frame, mirroring kproc's own test harness (kproc/lifecycle_test.go)
// since ktrap sits directly on top of kproc/ksched/ksyscall.
type harness struct {
	mem   *flatMem
	pmm   *kmem.PMM_t
	table *kproc.Table_t
	sched *ksched.Scheduler_t
	env   *ksyscall.Env
	core  *Core_t
	proc  *kproc.Proc_t
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := newFlatMem(8192 * kconfig.PageSize)
	pmm := kmem.NewPMM(0, 8192)
	kernelRoot, ok := pmm.AllocFrame()
	if !ok {
		t.Fatal("alloc kernel root failed")
	}
	table := kproc.NewTable()
	sched := ksched.NewScheduler(ksched.NewReadyQueue(8), nil, nil)
	fsRoot := kfs.NewMemFS()

	p, err := table.Alloc()
	if err != 0 {
		t.Fatalf("alloc: %v", err)
	}
	as, err := kvm.BuildProcessRoot(mem, pmm, kernelRoot)
	if err != 0 {
		t.Fatalf("build root: %v", err)
	}
	frame, ok := pmm.AllocFrame()
	if !ok {
		t.Fatal("alloc frame failed")
	}
	if err := as.VMAs.Insert(0x1000, 0x2000, kvm.READ|kvm.WRITE|kvm.USER); err != 0 {
		t.Fatalf("insert vma: %v", err)
	}
	if err := as.Map(0x1000, frame, kvm.READ|kvm.WRITE|kvm.USER); err != 0 {
		t.Fatalf("map: %v", err)
	}
	p.AS = as
	p.Tf = &kproc.Trapframe_t{}
	p.Cwd = kproc.MkRootCwd(fsRoot)
	p.SetState(ksched.READY)
	sched.Enqueue(p)
	sched.Schedule() // makes p the scheduler's current process

	env := &ksyscall.Env{
		Table:      table,
		Sched:      sched,
		Mem:        mem,
		PMM:        pmm,
		KernelRoot: kernelRoot,
		FSRoot:     fsRoot,
	}
	core := New(env, sched, nil, Hooks{}, func(bool) {})

	return &harness{mem: mem, pmm: pmm, table: table, sched: sched, env: env, core: core, proc: p}
}

func TestEcallDispatchesGetpid(t *testing.T) {
	h := newHarness(t)
	h.proc.Tf.Regs[17] = ksyscall.SysGetpid // a7
	h.core.Trap(kriscv.ExcEcallFromU, 0x1000, 0)

	if got := h.proc.Tf.A0(); got != uint64(h.proc.Pid) {
		t.Fatalf("a0 = %d, want pid %d", got, h.proc.Pid)
	}
	if h.proc.Tf.Sepc != 0x1004 {
		t.Fatalf("sepc = %#x, want %#x (instruction after ecall)", h.proc.Tf.Sepc, 0x1004)
	}
}

func TestIllegalInstructionTerminatesWithSignalExitCode(t *testing.T) {
	h := newHarness(t)
	h.core.Trap(kriscv.ExcIllegalInstr, 0x2000, 0)

	if h.proc.State() != ksched.ZOMBIE {
		t.Fatalf("expected ZOMBIE after default-disposition SIGILL, got %v", h.proc.State())
	}
	want := ksignal.ExitCodeFor(ksignal.SIGILL)
	if h.proc.ExitCode != want {
		t.Fatalf("exit code = %d, want %d", h.proc.ExitCode, want)
	}
}

func TestTimerInterruptTicksScheduler(t *testing.T) {
	h := newHarness(t)
	before := h.sched.Ticks()
	h.core.Trap(kriscv.IntSupervisorTimer|kriscv.CauseInterruptBit, 0x3000, 0)
	if h.sched.Ticks() != before+1 {
		t.Fatalf("ticks = %d, want %d", h.sched.Ticks(), before+1)
	}
}

func TestSegfaultOnBadLoadDefaultTerminates(t *testing.T) {
	h := newHarness(t)
	h.core.Trap(kriscv.ExcLoadPageFault, 0x4000, 0)
	if h.proc.State() != ksched.ZOMBIE {
		t.Fatalf("expected ZOMBIE after SIGSEGV, got %v", h.proc.State())
	}
	if h.proc.ExitCode != ksignal.ExitCodeFor(ksignal.SIGSEGV) {
		t.Fatalf("exit code = %d, want %d", h.proc.ExitCode, ksignal.ExitCodeFor(ksignal.SIGSEGV))
	}
}

func TestUserHandlerInterceptsFaultSignal(t *testing.T) {
	h := newHarness(t)
	if !h.proc.Sig.SetHandler(ksignal.SIGILL, ksignal.Handler_t{Kind: ksignal.HUser, Addr: 0x9000}) {
		t.Fatal("SetHandler rejected SIGILL")
	}
	origSepc := uint64(0x2000)
	h.core.Trap(kriscv.ExcIllegalInstr, origSepc, 0)

	if h.proc.State() == ksched.ZOMBIE {
		t.Fatal("a caught signal must not terminate the process")
	}
	if h.proc.Tf.Sepc != 0x9000 {
		t.Fatalf("sepc = %#x, want handler address 0x9000", h.proc.Tf.Sepc)
	}
	if h.proc.Tf.A0() != uint64(ksignal.SIGILL) {
		t.Fatalf("a0 = %d, want signo %d", h.proc.Tf.A0(), ksignal.SIGILL)
	}
}

func TestKillWithSigkillCannotBeCaughtAndTerminates(t *testing.T) {
	h := newHarness(t)
	// SIGKILL's handler installation is rejected outright.
	if h.proc.Sig.SetHandler(ksignal.SIGKILL, ksignal.Handler_t{Kind: ksignal.HIgnore}) {
		t.Fatal("expected SetHandler to reject SIGKILL")
	}
	if err := kproc.Kill(h.table, h.sched, h.proc.Pid, ksignal.SIGKILL); err != 0 {
		t.Fatalf("kill: %v", err)
	}
	h.core.ReturnToUser(h.proc)
	if h.proc.State() != ksched.ZOMBIE {
		t.Fatalf("expected ZOMBIE after SIGKILL delivery, got %v", h.proc.State())
	}
}

func TestExceptionFromSModePanics(t *testing.T) {
	h := newHarness(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on an exception taken from S-mode")
		}
	}()
	h.core.Trap(kriscv.ExcLoadPageFault, 0x2000, kriscv.SstatusSPP)
}
