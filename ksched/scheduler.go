package ksched

import "riscvkernel/kconfig"

// ContextSwitcher performs the low-level callee-saved register switch
// from cur to next: save cur's callee-saved registers, load next's, and
// when it returns the new process is running. On real hardware this is
// hand-written assembly; a nil hook is skipped, and cmd/ksim and the
// tests all pass nil.
type ContextSwitcher func(cur, next Runnable)

// AddressSpaceSwitcher installs next's page-table root and flushes the
// TLB. It must run after ContextSwitcher returns and on next's own
// kernel stack, which is why Scheduler_t calls it as a separate step
// rather than folding it into ContextSwitcher.
type AddressSpaceSwitcher func(next Runnable)

// Scheduler_t is the single-hart round-robin scheduler.
type Scheduler_t struct {
	Ready *ReadyQueue_t

	cur      Runnable
	slice    int
	ctxSwitch ContextSwitcher
	asSwitch  AddressSpaceSwitcher

	ticks  uint64
	timers []deadline
}

// NewScheduler constructs a scheduler over queue, using ctxSwitch and
// asSwitch as the low-level switch hooks.
func NewScheduler(queue *ReadyQueue_t, ctxSwitch ContextSwitcher, asSwitch AddressSpaceSwitcher) *Scheduler_t {
	return &Scheduler_t{Ready: queue, ctxSwitch: ctxSwitch, asSwitch: asSwitch}
}

// Current returns the process presently RUNNING on this hart, or nil if
// idle.
func (s *Scheduler_t) Current() Runnable { return s.cur }

// Enqueue appends p (which must already be READY) to the ready queue.
func (s *Scheduler_t) Enqueue(p Runnable) {
	tok := SaveAndDisable()
	defer tok.Restore()
	s.Ready.Enqueue(p)
}

// OnTick advances the current process's time-slice accounting and
// triggers a reschedule when the slice expires or the current process
// is no longer RUNNING.
func (s *Scheduler_t) OnTick() {
	tok := SaveAndDisable()
	defer tok.Restore()
	s.ticks++
	s.fireDueTimers()
	if s.cur == nil {
		return
	}
	s.slice--
	if s.slice <= 0 || s.cur.State() != RUNNING {
		s.scheduleLocked()
	}
}

// Yield forces the current process's time slice to zero and reschedules
// immediately, regardless of remaining ticks.
func (s *Scheduler_t) Yield() {
	tok := SaveAndDisable()
	defer tok.Restore()
	s.slice = 0
	s.scheduleLocked()
}

// Schedule is the externally callable entry point (e.g. invoked right
// after a wait-queue sleep transitions the caller to SLEEPING).
func (s *Scheduler_t) Schedule() {
	tok := SaveAndDisable()
	defer tok.Restore()
	s.scheduleLocked()
}

// scheduleLocked picks the next process and performs the switch. The
// caller must already hold an IRQToken.
func (s *Scheduler_t) scheduleLocked() {
	cur := s.cur
	next, ok := s.Ready.PickNext()
	if !ok {
		// idle path: nothing runnable. If the current process is still
		// RUNNING, let it continue; otherwise there is truly nothing to
		// run until the next interrupt.
		if cur != nil && cur.State() == RUNNING {
			s.slice = kconfig.TimeSliceTicks
		}
		return
	}
	if cur != nil && cur == next {
		s.slice = kconfig.TimeSliceTicks
		return
	}
	if cur != nil && cur.State() == RUNNING {
		cur.SetState(READY)
		s.Ready.Enqueue(cur)
	}
	next.SetState(RUNNING)
	s.cur = next
	s.slice = kconfig.TimeSliceTicks

	if s.ctxSwitch != nil {
		s.ctxSwitch(cur, next)
	}
	// Step 6: must happen on the new kernel stack, after the low-level
	// switch returns, because swapping the page table out from under the
	// old stack before switching stacks would unmap the very memory the
	// switch code is executing from.
	if s.asSwitch != nil {
		s.asSwitch(next)
	}
}
