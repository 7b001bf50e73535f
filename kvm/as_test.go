package kvm

import (
	"testing"

	"riscvkernel/kmem"
)

type flatMem struct{ b []byte }

func newFlatMem(n int) *flatMem { return &flatMem{b: make([]byte, n)} }

func (m *flatMem) Read(addr kmem.PhysAddr, n int) []byte {
	out := make([]byte, n)
	copy(out, m.b[addr:])
	return out
}

func (m *flatMem) Write(addr kmem.PhysAddr, b []byte) {
	copy(m.b[addr:], b)
}

func setup(t *testing.T) (*AS_t, *kmem.PMM_t) {
	t.Helper()
	pmm := kmem.NewPMM(0, 4096)
	mem := newFlatMem(4096 * kconfigPageSize)
	as, err := NewAS(mem, pmm)
	if err != 0 {
		t.Fatalf("NewAS: %v", err)
	}
	return as, pmm
}

const kconfigPageSize = 4096

func TestMapTranslateUnmap(t *testing.T) {
	as, pmm := setup(t)
	phys, ok := pmm.AllocFrame()
	if !ok {
		t.Fatal("alloc failed")
	}
	va := uint64(0x1000)
	if err := as.Map(va, phys, READ|WRITE|USER); err != 0 {
		t.Fatalf("map failed: %v", err)
	}
	got, ok := as.TranslateVirtToPhys(va)
	if !ok || got != phys {
		t.Fatalf("translate = %x,%v want %x,true", got, ok, phys)
	}
	as.Unmap(va)
	if _, ok := as.TranslateVirtToPhys(va); ok {
		t.Fatal("expected unmapped after Unmap")
	}
}

func TestVMAValidateUserRange(t *testing.T) {
	var m VMAMap_t
	if err := m.Insert(0x1000, 0x3000, READ|USER); err != 0 {
		t.Fatalf("insert: %v", err)
	}
	if !m.ValidateUserRange(0x1000, 0x2000, READ) {
		t.Fatal("expected range to validate")
	}
	if m.ValidateUserRange(0x1000, 0x2000, WRITE) {
		t.Fatal("expected write to fail: region is read-only")
	}
	if m.ValidateUserRange(0x2800, 0x1000, READ) {
		t.Fatal("expected out-of-range access to fail")
	}
}

func TestVMAInsertRejectsOverlap(t *testing.T) {
	var m VMAMap_t
	if err := m.Insert(0x1000, 0x2000, READ); err != 0 {
		t.Fatalf("insert: %v", err)
	}
	if err := m.Insert(0x1800, 0x2800, READ); err == 0 {
		t.Fatal("expected overlap to be rejected")
	}
	if err := m.Insert(0x2000, 0x3000, READ); err != 0 {
		t.Fatalf("adjacent insert should succeed: %v", err)
	}
}
