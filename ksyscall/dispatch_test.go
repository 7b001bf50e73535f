package ksyscall

import (
	"testing"

	"riscvkernel/kconfig"
	"riscvkernel/kdefs"
	"riscvkernel/kfs"
	"riscvkernel/kmem"
	"riscvkernel/kproc"
	"riscvkernel/ksched"
	"riscvkernel/ksignal"
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

// userBase is where every test process gets its user buffer region:
// four RW pages, enough for paths, argv arrays, and I/O buffers.
const userBase = 0x1000

type harness struct {
	env *Env
	p   *kproc.Proc_t
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := newFlatMem(8192 * kconfig.PageSize)
	pmm := kmem.NewPMM(0, 8192)
	kernelRoot, ok := pmm.AllocFrame()
	if !ok {
		t.Fatal("alloc kernel root failed")
	}
	env := &Env{
		Table:      kproc.NewTable(),
		Sched:      ksched.NewScheduler(ksched.NewReadyQueue(16), nil, nil),
		Mem:        mem,
		PMM:        pmm,
		KernelRoot: kernelRoot,
		FSRoot:     kfs.NewMemFS(),
	}
	return &harness{env: env, p: spawn(t, env)}
}

func spawn(t *testing.T, env *Env) *kproc.Proc_t {
	t.Helper()
	p, err := env.Table.Alloc()
	if err != 0 {
		t.Fatalf("alloc: %v", err)
	}
	as, err := kvm.BuildProcessRoot(env.Mem, env.PMM, env.KernelRoot)
	if err != 0 {
		t.Fatalf("build root: %v", err)
	}
	end := uint64(userBase + 4*kconfig.PageSize)
	if err := as.VMAs.Insert(userBase, end, kvm.READ|kvm.WRITE|kvm.USER); err != 0 {
		t.Fatalf("insert vma: %v", err)
	}
	for va := uint64(userBase); va < end; va += kconfig.PageSize {
		frame, ok := env.PMM.AllocFrame()
		if !ok {
			t.Fatal("alloc frame failed")
		}
		if err := as.Map(va, frame, kvm.READ|kvm.WRITE|kvm.USER); err != 0 {
			t.Fatalf("map: %v", err)
		}
	}
	p.AS = as
	p.Tf = &kproc.Trapframe_t{}
	p.Cwd = kproc.MkRootCwd(env.FSRoot)
	p.SetState(ksched.RUNNING)
	return p
}

// poke writes b into p's user memory at va through its page table.
func (h *harness) poke(t *testing.T, p *kproc.Proc_t, va uint64, b []byte) {
	t.Helper()
	for len(b) > 0 {
		pa, ok := p.AS.TranslateVirtToPhys(va)
		if !ok {
			t.Fatalf("poke: %#x unmapped", va)
		}
		n := kconfig.PageSize - int(va%kconfig.PageSize)
		if n > len(b) {
			n = len(b)
		}
		h.env.Mem.Write(pa, b[:n])
		b = b[n:]
		va += uint64(n)
	}
}

// peek reads n bytes of p's user memory at va.
func (h *harness) peek(t *testing.T, p *kproc.Proc_t, va uint64, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	for n > 0 {
		pa, ok := p.AS.TranslateVirtToPhys(va)
		if !ok {
			t.Fatalf("peek: %#x unmapped", va)
		}
		chunk := kconfig.PageSize - int(va%kconfig.PageSize)
		if chunk > n {
			chunk = n
		}
		out = append(out, h.env.Mem.Read(pa, chunk)...)
		n -= chunk
		va += uint64(chunk)
	}
	return out
}

// call loads the syscall number and arguments into p's trap frame and
// dispatches, returning the a0 result.
func (h *harness) call(p *kproc.Proc_t, num uint64, args ...uint64) uint64 {
	p.Tf.Regs[17] = num
	for i := range args {
		p.Tf.Regs[10+i] = args[i]
	}
	Dispatch(h.env, p)
	return p.Tf.A0()
}

func TestOpenWriteLseekReadClose(t *testing.T) {
	h := newHarness(t)
	h.poke(t, h.p, userBase, []byte("/notes\x00"))
	fd := h.call(h.p, SysOpen, userBase, O_CREAT|O_RDWR)
	if fd == errReturn {
		t.Fatalf("open: %v", h.p.Errno)
	}

	h.poke(t, h.p, userBase+0x100, []byte("hello"))
	if n := h.call(h.p, SysWrite, fd, userBase+0x100, 5); n != 5 {
		t.Fatalf("write = %d (%v), want 5", n, h.p.Errno)
	}
	if off := h.call(h.p, SysLseek, fd, 0, SeekSet); off != 0 {
		t.Fatalf("lseek = %d, want 0", off)
	}
	if n := h.call(h.p, SysRead, fd, userBase+0x200, 5); n != 5 {
		t.Fatalf("read = %d (%v), want 5", n, h.p.Errno)
	}
	if got := h.peek(t, h.p, userBase+0x200, 5); string(got) != "hello" {
		t.Fatalf("read back %q, want %q", got, "hello")
	}
	if r := h.call(h.p, SysClose, fd); r != 0 {
		t.Fatalf("close: %v", h.p.Errno)
	}
	if r := h.call(h.p, SysRead, fd, userBase+0x200, 1); r != errReturn || h.p.Errno != kdefs.EBADF {
		t.Fatalf("read on closed fd = %d errno %v, want EBADF", r, h.p.Errno)
	}
}

// TestPipeWriteReadEOF drives the pipe syscalls through the dispatcher:
// write "hello", read it back exactly, then observe EOF after the write
// end closes.
func TestPipeWriteReadEOF(t *testing.T) {
	h := newHarness(t)
	if r := h.call(h.p, SysPipe, userBase); r != 0 {
		t.Fatalf("pipe: %v", h.p.Errno)
	}
	fds := h.peek(t, h.p, userBase, 8)
	leU32 := func(b []byte) uint64 {
		return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24
	}
	rfd := leU32(fds[0:4])
	wfd := leU32(fds[4:8])

	h.poke(t, h.p, userBase+0x100, []byte("hello"))
	if n := h.call(h.p, SysWrite, wfd, userBase+0x100, 5); n != 5 {
		t.Fatalf("pipe write = %d (%v), want 5", n, h.p.Errno)
	}
	if n := h.call(h.p, SysRead, rfd, userBase+0x200, 5); n != 5 {
		t.Fatalf("pipe read = %d (%v), want 5", n, h.p.Errno)
	}
	if got := h.peek(t, h.p, userBase+0x200, 5); string(got) != "hello" {
		t.Fatalf("pipe carried %q, want %q", got, "hello")
	}
	if r := h.call(h.p, SysClose, wfd); r != 0 {
		t.Fatalf("close write end: %v", h.p.Errno)
	}
	if n := h.call(h.p, SysRead, rfd, userBase+0x200, 5); n != 0 {
		t.Fatalf("read after writer close = %d, want 0 (EOF)", n)
	}
}

// TestForkExitWaitpid drives the fork/exit/waitpid triple through the
// dispatcher: the child observes a 0 return, the parent observes the
// child's pid, and waitpid reports status (code << 8).
func TestForkExitWaitpid(t *testing.T) {
	h := newHarness(t)
	h.poke(t, h.p, userBase, []byte("/f\x00"))
	fd := h.call(h.p, SysOpen, userBase, O_CREAT|O_RDWR)
	if fd == errReturn {
		t.Fatalf("open: %v", h.p.Errno)
	}

	childPid := h.call(h.p, SysFork)
	if childPid == errReturn {
		t.Fatalf("fork: %v", h.p.Errno)
	}
	child, ok := h.env.Table.Find(kdefs.Pid_t(childPid))
	if !ok {
		t.Fatalf("child %d not in table", childPid)
	}
	if child.Tf.A0() != 0 {
		t.Fatalf("child a0 = %d, want 0", child.Tf.A0())
	}
	if child.Fds[fd] == nil {
		t.Fatal("fork did not duplicate the open fd")
	}

	// make the child the scheduler's current process before it exits,
	// the way a real exit always runs from the CPU, so the zombie is
	// not sitting in the ready queue.
	h.env.Sched.Schedule()
	h.call(child, SysExit, 7)
	if child.State() != ksched.ZOMBIE {
		t.Fatalf("child state = %v, want ZOMBIE", child.State())
	}

	statusUva := uint64(userBase + 0x300)
	got := h.call(h.p, SysWaitpid, childPid, statusUva)
	if got != childPid {
		t.Fatalf("waitpid = %d (%v), want %d", got, h.p.Errno, childPid)
	}
	status := h.peek(t, h.p, statusUva, 4)
	word := uint32(status[0]) | uint32(status[1])<<8 | uint32(status[2])<<16 | uint32(status[3])<<24
	if word != 7<<8 {
		t.Fatalf("status = %#x, want %#x", word, 7<<8)
	}
	if _, ok := h.env.Table.Find(kdefs.Pid_t(childPid)); ok {
		t.Fatal("child slot should be released after waitpid")
	}
}

// TestSigkillHandlerRejectedAndDelivered: installing a handler for
// signal 9 fails, and a subsequent kill(pid, 9) leaves the target with
// a deliverable SIGKILL regardless of its blocked mask.
func TestSigkillHandlerRejectedAndDelivered(t *testing.T) {
	h := newHarness(t)
	if r := h.call(h.p, SysSignal, uint64(ksignal.SIGKILL), 0x9000); r != errReturn || h.p.Errno != kdefs.EINVAL {
		t.Fatalf("signal(9) = %d errno %v, want -1 EINVAL", r, h.p.Errno)
	}

	target := spawn(t, h.env)
	target.Sig.Blocked = 1 << ksignal.SIGKILL
	if r := h.call(h.p, SysKill, uint64(target.Pid), uint64(ksignal.SIGKILL)); r != 0 {
		t.Fatalf("kill: %v", h.p.Errno)
	}
	frame := target.Tf.ToSignal()
	res := target.Sig.Deliver(&frame)
	if !res.Delivered || res.Signo != ksignal.SIGKILL || res.Action != ksignal.ActionTerminate {
		t.Fatalf("expected SIGKILL deliverable despite blocked mask, got %+v", res)
	}
}

// TestExecveBadMagicLeavesCallerIntact: exec of a file whose first four
// bytes are zero fails with the ELF-magic kind and the caller's image
// is untouched.
func TestExecveBadMagicLeavesCallerIntact(t *testing.T) {
	h := newHarness(t)
	bad, err := h.env.FSRoot.Create("bad")
	if err != 0 {
		t.Fatalf("create: %v", err)
	}
	if _, err := bad.Write([]byte{0, 0, 0, 0}, 0); err != 0 {
		t.Fatalf("write: %v", err)
	}

	h.poke(t, h.p, userBase, []byte("/bad\x00"))
	oldAS := h.p.AS
	h.p.Tf.Sepc = 0x4242
	r := h.call(h.p, SysExecve, userBase, 0, 0)
	if r != errReturn || h.p.Errno != kdefs.EELFMAGIC {
		t.Fatalf("execve = %d errno %v, want -1 EELFMAGIC", r, h.p.Errno)
	}
	if h.p.AS != oldAS {
		t.Fatal("failed exec must not replace the address space")
	}
	if h.p.Tf.Sepc != 0x4242 {
		t.Fatalf("sepc = %#x, want unchanged %#x", h.p.Tf.Sepc, 0x4242)
	}
}

func TestMkdirStatChdirGetcwd(t *testing.T) {
	h := newHarness(t)
	h.poke(t, h.p, userBase, []byte("/srv\x00"))
	if r := h.call(h.p, SysMkdir, userBase); r != 0 {
		t.Fatalf("mkdir: %v", h.p.Errno)
	}

	statUva := uint64(userBase + 0x100)
	if r := h.call(h.p, SysStat, userBase, statUva); r != 0 {
		t.Fatalf("stat: %v", h.p.Errno)
	}
	st := h.peek(t, h.p, statUva, 8)
	mode := uint32(st[0]) | uint32(st[1])<<8 | uint32(st[2])<<16 | uint32(st[3])<<24
	if mode&kdefs.S_IFDIR == 0 {
		t.Fatalf("stat mode = %#x, want directory bit", mode)
	}

	if r := h.call(h.p, SysChdir, userBase); r != 0 {
		t.Fatalf("chdir: %v", h.p.Errno)
	}
	if h.p.Cwd.Path != "/srv" {
		t.Fatalf("cwd = %q, want %q", h.p.Cwd.Path, "/srv")
	}

	cwdUva := uint64(userBase + 0x200)
	n := h.call(h.p, SysGetcwd, cwdUva, 64)
	if n == errReturn {
		t.Fatalf("getcwd: %v", h.p.Errno)
	}
	if got := h.peek(t, h.p, cwdUva, int(n)); string(got) != "/srv\x00" {
		t.Fatalf("getcwd buffer = %q, want %q", got, "/srv\x00")
	}
}

func TestMmapMunmap(t *testing.T) {
	h := newHarness(t)
	addr := h.call(h.p, SysMmap, 0, 2*kconfig.PageSize)
	if addr == errReturn {
		t.Fatalf("mmap: %v", h.p.Errno)
	}
	if addr != kconfig.MmapBase {
		t.Fatalf("mmap base = %#x, want %#x", addr, uint64(kconfig.MmapBase))
	}
	if _, ok := h.p.AS.TranslateVirtToPhys(addr); !ok {
		t.Fatal("mmap'd page not mapped")
	}
	if r := h.call(h.p, SysMunmap, addr, 2*kconfig.PageSize); r != 0 {
		t.Fatalf("munmap: %v", h.p.Errno)
	}
	if _, ok := h.p.AS.TranslateVirtToPhys(addr); ok {
		t.Fatal("munmap'd page still mapped")
	}
}

func TestSbrkGrowShrink(t *testing.T) {
	h := newHarness(t)
	h.p.HeapStart = 0x100000
	h.p.HeapEnd = 0x100000

	old := h.call(h.p, SysSbrk, 16)
	if old != 0x100000 {
		t.Fatalf("sbrk(16) = %#x, want %#x", old, uint64(0x100000))
	}
	if h.p.HeapEnd != 0x100010 {
		t.Fatalf("heap end = %#x, want %#x", h.p.HeapEnd, uint64(0x100010))
	}
	if _, ok := h.p.AS.TranslateVirtToPhys(0x100000); !ok {
		t.Fatal("grown heap page not mapped")
	}

	if r := h.call(h.p, SysSbrk, ^uint64(15)); r == errReturn { // -16
		t.Fatalf("sbrk(-16): %v", h.p.Errno)
	}
	if h.p.HeapEnd != 0x100000 {
		t.Fatalf("heap end after shrink = %#x, want %#x", h.p.HeapEnd, uint64(0x100000))
	}
	if _, ok := h.p.AS.TranslateVirtToPhys(0x100000); ok {
		t.Fatal("shrunk heap page still mapped")
	}
}

func TestUnvalidatedPointerFaults(t *testing.T) {
	h := newHarness(t)
	h.poke(t, h.p, userBase, []byte("/x\x00"))
	fd := h.call(h.p, SysOpen, userBase, O_CREAT|O_RDWR)
	if fd == errReturn {
		t.Fatalf("open: %v", h.p.Errno)
	}
	// no VMA covers the buffer address, so the write must fail before
	// any bytes move.
	if r := h.call(h.p, SysWrite, fd, 0x900000, 4); r != errReturn || h.p.Errno != kdefs.EFAULT {
		t.Fatalf("write with bad buffer = %d errno %v, want -1 EFAULT", r, h.p.Errno)
	}
}
