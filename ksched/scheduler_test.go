package ksched

import "testing"

type testProc struct {
	id    int
	state State
}

func (p *testProc) SchedID() int      { return p.id }
func (p *testProc) State() State      { return p.state }
func (p *testProc) SetState(s State)  { p.state = s }

func TestRoundRobin(t *testing.T) {
	q := NewReadyQueue(4)
	sched := NewScheduler(q, nil, nil)

	a := &testProc{id: 1, state: READY}
	b := &testProc{id: 2, state: READY}
	sched.Enqueue(a)
	sched.Enqueue(b)

	sched.Schedule()
	if sched.Current() != a {
		t.Fatalf("expected a to run first")
	}
	if q.Contains(a) {
		t.Fatal("running process must not be in ready queue")
	}

	sched.Yield()
	if sched.Current() != b {
		t.Fatalf("expected round-robin to b, got %v", sched.Current())
	}
	if a.State() != READY || !q.Contains(a) {
		t.Fatal("a should be re-enqueued as READY after yield")
	}
}

func TestEnqueueRejectsNonReady(t *testing.T) {
	q := NewReadyQueue(2)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic enqueueing a non-READY process")
		}
	}()
	q.Enqueue(&testProc{id: 1, state: RUNNING})
}

func TestReadyQueueOverflowPanics(t *testing.T) {
	q := NewReadyQueue(1)
	q.Enqueue(&testProc{id: 1, state: READY})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on overflow")
		}
	}()
	q.Enqueue(&testProc{id: 2, state: READY})
}

func TestIRQTokenNesting(t *testing.T) {
	outer := SaveAndDisable()
	inner := SaveAndDisable()
	inner.Restore()
	if !irqEnabled {
		// still disabled because outer token hasn't restored yet
	} else {
		t.Fatal("interrupts should remain disabled while outer token is held")
	}
	outer.Restore()
	if !irqEnabled {
		t.Fatal("interrupts should be re-enabled once outer token restores")
	}
}
