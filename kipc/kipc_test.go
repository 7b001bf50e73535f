package kipc

import (
	"testing"

	"riscvkernel/kdefs"
	"riscvkernel/ksched"
	"riscvkernel/ksignal"
)

type testProc struct {
	id    int
	state ksched.State
}

func (p *testProc) SchedID() int         { return p.id }
func (p *testProc) State() ksched.State  { return p.state }
func (p *testProc) SetState(s ksched.State) { p.state = s }

func newTestSched() *ksched.Scheduler_t {
	return ksched.NewScheduler(ksched.NewReadyQueue(8), nil, nil)
}

// TestPipeHello writes "hello" then reads it back exactly, then
// observes EOF once the write end closes.
func TestPipeHello(t *testing.T) {
	p := NewPipe()
	sched := newTestSched()
	writer := &testProc{id: 1, state: ksched.RUNNING}
	reader := &testProc{id: 2, state: ksched.RUNNING}

	n, err := p.Write(writer, sched, noopSender{}, []byte("hello"))
	if err != 0 || n != 5 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}

	buf := make([]byte, 5)
	n, err = p.Read(reader, sched, buf)
	if err != 0 || n != 5 || string(buf) != "hello" {
		t.Fatalf("read: n=%d err=%v buf=%q", n, err, buf)
	}

	p.CloseWrite(sched)
	n, err = p.Read(reader, sched, buf)
	if err != 0 || n != 0 {
		t.Fatalf("expected EOF, got n=%d err=%v", n, err)
	}
}

type noopSender struct{}

func (noopSender) Raise(int) {}

type recordingSender struct{ last int }

func (r *recordingSender) Raise(signo int) { r.last = signo }

func TestPipeBrokenWriteSignalsSIGPIPE(t *testing.T) {
	p := NewPipe()
	sched := newTestSched()
	writer := &testProc{id: 1, state: ksched.RUNNING}
	p.CloseRead(sched)

	sender := &recordingSender{}
	_, err := p.Write(writer, sched, sender, []byte("x"))
	if err != kdefs.EPIPE {
		t.Fatalf("expected EPIPE, got %v", err)
	}
	if sender.last != ksignal.SIGPIPE {
		t.Fatalf("expected SIGPIPE raised, got %d", sender.last)
	}
}

func TestMutexMutualExclusion(t *testing.T) {
	var m Mutex_t
	sched := newTestSched()
	if !m.TryLock() {
		t.Fatal("expected first trylock to succeed")
	}
	if m.TryLock() {
		t.Fatal("expected second trylock to fail while held")
	}
	m.Unlock(sched)
	if !m.TryLock() {
		t.Fatal("expected trylock to succeed after unlock")
	}
}

func TestSemaphoreCounting(t *testing.T) {
	s := NewSema(1)
	sched := newTestSched()
	if !s.TryP() {
		t.Fatal("expected initial P to succeed")
	}
	if s.TryP() {
		t.Fatal("expected second P to fail at count 0")
	}
	s.V(sched)
	if !s.TryP() {
		t.Fatal("expected P to succeed after V")
	}
}
