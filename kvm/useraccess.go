package kvm

import (
	"riscvkernel/kconfig"
	"riscvkernel/kdefs"
)

// SUMToken models the supervisor-user-memory access bit as an
// explicit, scoped capability rather than a raw pointer dereference: it
// holds the address space being accessed, validates every range against
// the VMA map first, and enables the SUM bit only for the duration of
// the access.
type SUMToken struct {
	as  *AS_t
	set func(bool)
}

// NewSUMToken returns a token bound to as; set is the hook that flips the
// sstatus.SUM bit on real hardware (installed by the trap core at entry;
// see ktrap).
func NewSUMToken(as *AS_t, set func(bool)) *SUMToken {
	return &SUMToken{as: as, set: set}
}

// Access validates [uva, uva+len) against the VMA map for the required
// flags, enables SUM for the duration of fn, and clears it again
// afterward even if fn panics. Only syscall paths go through here;
// interrupt handlers never touch user memory.
func (t *SUMToken) Access(uva, length uint64, required Flag, fn func() kdefs.Err_t) kdefs.Err_t {
	if !t.as.VMAs.ValidateUserRange(uva, length, required) {
		return kdefs.EFAULT
	}
	t.set(true)
	defer t.set(false)
	return fn()
}

// CopyIn copies length bytes from user address uva into dst, validating
// the range for READ first.
func (t *SUMToken) CopyIn(uva uint64, dst []byte) kdefs.Err_t {
	return t.Access(uva, uint64(len(dst)), READ|USER, func() kdefs.Err_t {
		cur := uva
		remaining := dst
		for len(remaining) > 0 {
			paddr, ok := t.as.TranslateVirtToPhys(cur)
			if !ok {
				return kdefs.EFAULT
			}
			n := bytesToPageBoundary(cur, len(remaining))
			copy(remaining[:n], t.as.mem.Read(paddr, n))
			remaining = remaining[n:]
			cur += uint64(n)
		}
		return 0
	})
}

// CopyOut copies src into user address uva, validating the range for
// WRITE first.
func (t *SUMToken) CopyOut(uva uint64, src []byte) kdefs.Err_t {
	return t.Access(uva, uint64(len(src)), WRITE|USER, func() kdefs.Err_t {
		cur := uva
		remaining := src
		for len(remaining) > 0 {
			paddr, ok := t.as.TranslateVirtToPhys(cur)
			if !ok {
				return kdefs.EFAULT
			}
			n := bytesToPageBoundary(cur, len(remaining))
			t.as.mem.Write(paddr, remaining[:n])
			remaining = remaining[n:]
			cur += uint64(n)
		}
		return 0
	})
}

// bytesToPageBoundary returns how many of the remaining bytes starting
// at va can be copied before crossing into the next (separately
// translated) page.
func bytesToPageBoundary(va uint64, remaining int) int {
	n := kconfig.PageSize - int(va%kconfig.PageSize)
	if n > remaining {
		n = remaining
	}
	return n
}
