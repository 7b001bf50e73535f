package kproc

import (
	"sync"

	"riscvkernel/kconfig"
	"riscvkernel/kdefs"
	"riscvkernel/ksched"
)

// Table_t is the fixed-size process table. Slots cycle through the PCB
// lifecycle states; a slot whose Proc_t.state is UNUSED is free for
// allocation.
type Table_t struct {
	mu     sync.Mutex
	procs  [kconfig.MaxProcs]*Proc_t
	nextID kdefs.Pid_t
}

// NewTable returns an empty process table. PID 0 is never assigned;
// allocation starts at 1.
func NewTable() *Table_t {
	return &Table_t{nextID: 1}
}

// Alloc reserves a free slot and returns a new EMBRYO Proc_t with a
// freshly assigned PID. Returns ENOMEM if the table is full: a full
// table is an ordinary resource limit, unlike ready-queue overflow
// which signals a scheduler invariant violation.
func (t *Table_t) Alloc() (*Proc_t, kdefs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, slot := range t.procs {
		if slot != nil && slot.state != ksched.UNUSED {
			continue
		}
		p := &Proc_t{Pid: t.nextID}
		p.SetState(ksched.EMBRYO)
		t.nextID++
		t.procs[i] = p
		return p, 0
	}
	return nil, kdefs.ENOMEM
}

// Find returns the Proc_t for pid, if it is live (not UNUSED).
func (t *Table_t) Find(pid kdefs.Pid_t) (*Proc_t, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.procs {
		if p != nil && p.Pid == pid && p.state != ksched.UNUSED {
			return p, true
		}
	}
	return nil, false
}

// Children returns every live process whose Parent is ppid.
func (t *Table_t) Children(ppid kdefs.Pid_t) []*Proc_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Proc_t
	for _, p := range t.procs {
		if p != nil && p.Parent == ppid && p.state != ksched.UNUSED {
			out = append(out, p)
		}
	}
	return out
}

// Release marks pid's slot UNUSED, the final reap step.
func (t *Table_t) Release(pid kdefs.Pid_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.procs {
		if p != nil && p.Pid == pid {
			p.SetState(ksched.UNUSED)
			return
		}
	}
}
