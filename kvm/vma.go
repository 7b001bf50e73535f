// Package kvm implements the Sv39 address-space manager and the per-
// process VMA map. There is no demand paging, no copy-on-write, and no
// multi-CPU TLB shootdown: one hart, and fork copies eagerly.
package kvm

import (
	"sort"

	"riscvkernel/kdefs"
	"riscvkernel/kriscv"
)

// Flag is a subset of {READ, WRITE, EXEC, USER, SHARED}.
type Flag uint8

const (
	READ Flag = 1 << iota
	WRITE
	EXEC
	USER
	SHARED
)

// Has reports whether f contains all bits of want.
func (f Flag) Has(want Flag) bool { return f&want == want }

// VMA_t is one (start, end, flags) region of a process's address space.
type VMA_t struct {
	Start uint64
	End   uint64
	Flags Flag
}

func (v *VMA_t) covers(addr, n uint64) bool {
	return addr >= v.Start && addr+n <= v.End && addr+n >= addr
}

// VMAMap_t is a process's ordered, non-overlapping list of VMAs.
type VMAMap_t struct {
	regions []*VMA_t
}

// Insert adds a new region, rejecting any overlap with an existing one
// and keeping the list ordered by start address.
func (m *VMAMap_t) Insert(start, end uint64, flags Flag) kdefs.Err_t {
	if end <= start {
		return kdefs.EINVAL
	}
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].Start >= start })
	if i > 0 && m.regions[i-1].End > start {
		return kdefs.EINVAL
	}
	if i < len(m.regions) && end > m.regions[i].Start {
		return kdefs.EINVAL
	}
	vma := &VMA_t{Start: start, End: end, Flags: flags}
	m.regions = append(m.regions, nil)
	copy(m.regions[i+1:], m.regions[i:])
	m.regions[i] = vma
	return 0
}

// Find returns the VMA containing addr, if any. Linear scan; the list
// is short.
func (m *VMAMap_t) Find(addr uint64) (*VMA_t, bool) {
	for _, v := range m.regions {
		if addr >= v.Start && addr < v.End {
			return v, true
		}
	}
	return nil, false
}

// Remove detaches vma from the map. The caller is responsible for
// unmapping the underlying pages.
func (m *VMAMap_t) Remove(vma *VMA_t) {
	for i, v := range m.regions {
		if v == vma {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			return
		}
	}
}

// All returns the ordered region list, for exec/exit teardown.
func (m *VMAMap_t) All() []*VMA_t { return m.regions }

// Clear empties the map (used by exec/exit when tearing down an address
// space).
func (m *VMAMap_t) Clear() { m.regions = nil }

// ValidateUserRange returns true iff [ptr, ptr+len) is covered by one
// or more contiguous VMAs whose flags all include required. It is the
// gate every syscall touching user memory must pass through first.
func (m *VMAMap_t) ValidateUserRange(ptr, length uint64, required Flag) bool {
	if length == 0 {
		return true
	}
	cur := ptr
	end := ptr + length
	if end < ptr {
		return false // overflow
	}
	for cur < end {
		v, ok := m.Find(cur)
		if !ok || !v.Flags.Has(required) {
			return false
		}
		cur = v.End
	}
	return true
}

// flagsToPTE converts VMA flags to the Sv39 leaf bits the page-table
// walk should install.
func flagsToPTE(f Flag) kriscv.Pte_t {
	var p kriscv.Pte_t
	if f.Has(READ) {
		p |= kriscv.PTE_R
	}
	if f.Has(WRITE) {
		p |= kriscv.PTE_W
	}
	if f.Has(EXEC) {
		p |= kriscv.PTE_X
	}
	if f.Has(USER) {
		p |= kriscv.PTE_U
	}
	return p
}
