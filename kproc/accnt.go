package kproc

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// Accnt_t holds per-process CPU-time counters (user and system
// nanoseconds); each Proc_t carries one as Acct. Nothing in this module
// calls Utadd, Systadd or Add: neither the scheduler tick, the syscall
// path nor cmd/ksim feeds the counters, so they stay zero.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

// Add merges another accounting record into this one. Reap does not
// call it, so a reaped child's usage is not folded into its parent.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	a.Userns += atomic.LoadInt64(&n.Userns)
	a.Sysns += atomic.LoadInt64(&n.Sysns)
	a.Unlock()
}

// ToRusage encodes the accounting data as a struct-rusage-shaped byte
// slice (two timeval pairs: user, then system) so a getrusage-style
// syscall can copy it straight to user memory.
func (a *Accnt_t) ToRusage() []byte {
	a.Lock()
	u, s := a.Userns, a.Sysns
	a.Unlock()

	ret := make([]byte, 4*8)
	totv := func(nano int64) (int64, int64) {
		return nano / 1e9, (nano % 1e9) / 1000
	}
	off := 0
	put := func(v int64) {
		binary.LittleEndian.PutUint64(ret[off:], uint64(v))
		off += 8
	}
	sec, usec := totv(u)
	put(sec)
	put(usec)
	sec, usec = totv(s)
	put(sec)
	put(usec)
	return ret
}
