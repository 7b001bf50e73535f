package ksched

// deadline is one pending timed wake, registered by a caller (sys_sleep)
// that wants to be woken after a number of ticks have elapsed rather
// than by an explicit WakeOne/WakeAll against a specific wait queue.
type deadline struct {
	at   uint64
	wake func()
}

// Ticks returns the number of timer ticks OnTick has observed since
// this scheduler was created.
func (s *Scheduler_t) Ticks() uint64 { return s.ticks }

// After arranges for wake to be called once at least delta further
// ticks have elapsed, piggybacking on the same OnTick path the
// round-robin slice accounting already uses rather than adding a
// second clock source.
func (s *Scheduler_t) After(delta uint64, wake func()) {
	tok := SaveAndDisable()
	defer tok.Restore()
	s.timers = append(s.timers, deadline{at: s.ticks + delta, wake: wake})
}

// fireDueTimers calls and removes every timer whose deadline has
// arrived. Called with interrupts already disabled, from OnTick.
func (s *Scheduler_t) fireDueTimers() {
	if len(s.timers) == 0 {
		return
	}
	live := s.timers[:0]
	for _, d := range s.timers {
		if s.ticks >= d.at {
			d.wake()
		} else {
			live = append(live, d)
		}
	}
	s.timers = live
}
