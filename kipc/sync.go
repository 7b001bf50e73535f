package kipc

import "riscvkernel/ksched"

// Mutex_t is a lock byte plus a wait queue.
type Mutex_t struct {
	locked bool
	wq     WaitQueue_t
}

// Lock blocks self on the wait queue while the mutex is held, re-testing
// on every wake (spurious-wake safe).
func (m *Mutex_t) Lock(self Sleeper, sched Sched) {
	for {
		tok := ksched.SaveAndDisable()
		if !m.locked {
			m.locked = true
			tok.Restore()
			return
		}
		Sleep(&m.wq, self, sched)
		tok.Restore()
	}
}

// TryLock attempts to acquire the mutex without blocking.
func (m *Mutex_t) TryLock() bool {
	tok := ksched.SaveAndDisable()
	defer tok.Restore()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// Unlock clears the lock and wakes one waiter, if any.
func (m *Mutex_t) Unlock(sched Sched) {
	tok := ksched.SaveAndDisable()
	defer tok.Restore()
	m.locked = false
	WakeOne(&m.wq, sched)
}

// Sema_t is a signed count plus a wait queue.
type Sema_t struct {
	count int
	wq    WaitQueue_t
}

// NewSema constructs a semaphore with the given initial count.
func NewSema(initial int) *Sema_t { return &Sema_t{count: initial} }

// P (wait/acquire) sleeps while count <= 0, then decrements.
func (s *Sema_t) P(self Sleeper, sched Sched) {
	for {
		tok := ksched.SaveAndDisable()
		if s.count > 0 {
			s.count--
			tok.Restore()
			return
		}
		Sleep(&s.wq, self, sched)
		tok.Restore()
	}
}

// TryP attempts a non-blocking acquire; callers translate a false
// return to EBUSY.
func (s *Sema_t) TryP() bool {
	tok := ksched.SaveAndDisable()
	defer tok.Restore()
	if s.count <= 0 {
		return false
	}
	s.count--
	return true
}

// V (signal/release) increments count and wakes one waiter.
func (s *Sema_t) V(sched Sched) {
	tok := ksched.SaveAndDisable()
	defer tok.Restore()
	s.count++
	WakeOne(&s.wq, sched)
}

// CondVar_t is a wait queue associated with a caller-supplied mutex.
type CondVar_t struct {
	wq WaitQueue_t
}

// Wait is the atomicity anchor of the condvar: unlock mtx, enqueue on
// the condvar's queue, and yield, with interrupts disabled between
// unlock and enqueue so no wakeup can be lost. On wake, re-acquire mtx
// before returning.
func (c *CondVar_t) Wait(self Sleeper, sched Sched, mtx *Mutex_t) {
	tok := ksched.SaveAndDisable()
	mtx.Unlock(sched)
	Sleep(&c.wq, self, sched)
	tok.Restore()
	mtx.Lock(self, sched)
}

// Signal wakes one waiter.
func (c *CondVar_t) Signal(sched Sched) { WakeOne(&c.wq, sched) }

// Broadcast wakes all waiters.
func (c *CondVar_t) Broadcast(sched Sched) { WakeAll(&c.wq, sched) }

// RWLock_t is a reader-count/writer-flag lock with writers preferred:
// new readers block while writersWaiting > 0 to avoid writer
// starvation, and on write-unlock readers are woken first for
// fairness.
type RWLock_t struct {
	readers        int
	writer         bool
	writersWaiting int
	readq          WaitQueue_t
	writeq         WaitQueue_t
}

// RLock blocks while a writer holds the lock or writers are waiting.
func (l *RWLock_t) RLock(self Sleeper, sched Sched) {
	for {
		tok := ksched.SaveAndDisable()
		if !l.writer && l.writersWaiting == 0 {
			l.readers++
			tok.Restore()
			return
		}
		Sleep(&l.readq, self, sched)
		tok.Restore()
	}
}

// RUnlock releases one reader; the last reader to leave wakes a waiting
// writer, if any.
func (l *RWLock_t) RUnlock(sched Sched) {
	tok := ksched.SaveAndDisable()
	defer tok.Restore()
	l.readers--
	if l.readers == 0 {
		WakeOne(&l.writeq, sched)
	}
}

// Lock acquires exclusive access, marking intent via writersWaiting so
// new readers stop arriving while a writer is pending.
func (l *RWLock_t) Lock(self Sleeper, sched Sched) {
	tok := ksched.SaveAndDisable()
	l.writersWaiting++
	tok.Restore()

	for {
		tok := ksched.SaveAndDisable()
		if !l.writer && l.readers == 0 {
			l.writersWaiting--
			l.writer = true
			tok.Restore()
			return
		}
		Sleep(&l.writeq, self, sched)
		tok.Restore()
	}
}

// Unlock releases exclusive access. Readers are woken preferentially
// for fairness; if none are waiting, a pending writer is woken
// instead.
func (l *RWLock_t) Unlock(sched Sched) {
	tok := ksched.SaveAndDisable()
	defer tok.Restore()
	l.writer = false
	if l.readq.Len() > 0 {
		WakeAll(&l.readq, sched)
		return
	}
	WakeOne(&l.writeq, sched)
}
