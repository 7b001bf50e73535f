// Package kipc implements the wait-queue primitive and everything
// built on it: pipes, mutex, semaphore, condvar, rwlock. Suspension is
// legal only at an explicit wait-queue sleep, voluntary yield, or the
// scheduler's own switch; there is no implicit blocking primitive
// anywhere.
package kipc

import (
	"sync"

	"riscvkernel/ksched"
)

// Sleeper is the subset of a PCB a wait queue needs: enough to park it
// and later hand it back to the scheduler. It embeds ksched.Runnable so
// any process usable with the scheduler is usable with a wait queue.
type Sleeper = ksched.Runnable

// WaitQueue_t is a FIFO of parked processes. Invariant: a process may
// appear in at most one wait queue at a time, and only when its state
// is SLEEPING.
type WaitQueue_t struct {
	q []Sleeper
}

// Sched is the minimal scheduler surface a wait queue needs to yield the
// caller and to hand a woken process back to the ready queue.
type Sched interface {
	Enqueue(ksched.Runnable)
	Yield()
}

// Sleep atomically (the caller must already hold an IRQToken) appends
// self to wq and transitions it to SLEEPING, then yields the CPU. Sleep
// returns once some other path has called WakeOne/WakeAll and
// rescheduled this process. Sleep also records which queue self parked
// on, so kill can find and remove a sleeping target without the sender
// needing a reference to this specific queue.
func Sleep(wq *WaitQueue_t, self Sleeper, sched Sched) {
	self.SetState(ksched.SLEEPING)
	wq.q = append(wq.q, self)
	parkMu.Lock()
	parked[self.SchedID()] = wq
	parkMu.Unlock()
	sched.Yield()
	parkMu.Lock()
	delete(parked, self.SchedID())
	parkMu.Unlock()
}

// parked maps a sleeping process's SchedID to the wait queue it is
// currently parked on, so WakeProcess can locate and remove it from
// whichever queue that turns out to be.
var (
	parkMu sync.Mutex
	parked = map[int]*WaitQueue_t{}
)

// Remove detaches self from wq if present, without transitioning its
// state. The caller (WakeProcess) is responsible for that.
func (wq *WaitQueue_t) Remove(self Sleeper) bool {
	for i, e := range wq.q {
		if e == self {
			wq.q = append(wq.q[:i], wq.q[i+1:]...)
			return true
		}
	}
	return false
}

// WakeProcess wakes self if it is currently parked on any wait queue,
// regardless of which one. Used by signal delivery, which must be able
// to wake a SLEEPING target without knowing which pipe, mutex,
// semaphore, condvar, or rwlock it is blocked on.
func WakeProcess(self Sleeper, sched Sched) bool {
	parkMu.Lock()
	wq, ok := parked[self.SchedID()]
	parkMu.Unlock()
	if !ok {
		return false
	}
	if !wq.Remove(self) {
		return false
	}
	self.SetState(ksched.READY)
	sched.Enqueue(self)
	return true
}

// WakeOne dequeues the head of wq, if any, and transitions it to READY,
// enqueuing it on the scheduler's ready queue.
func WakeOne(wq *WaitQueue_t, sched Sched) (Sleeper, bool) {
	if len(wq.q) == 0 {
		return nil, false
	}
	p := wq.q[0]
	wq.q = wq.q[1:]
	p.SetState(ksched.READY)
	sched.Enqueue(p)
	return p, true
}

// WakeAll drains wq, waking every parked process.
func WakeAll(wq *WaitQueue_t, sched Sched) {
	for {
		if _, ok := WakeOne(wq, sched); !ok {
			return
		}
	}
}

// Len reports how many processes are currently parked.
func (wq *WaitQueue_t) Len() int { return len(wq.q) }

// Contains reports whether p is parked on wq.
func (wq *WaitQueue_t) Contains(p Sleeper) bool {
	for _, e := range wq.q {
		if e == p {
			return true
		}
	}
	return false
}
