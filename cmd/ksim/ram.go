package main

import "riscvkernel/kmem"

// hostRAM is the simulator's stand-in for physical memory: one flat
// byte slice indexed by physical address, satisfying kmem.MemView the
// same way ktrap's test harness's flatMem does, but sized for a real
// simulated boot rather than a handful of test frames.
type hostRAM struct {
	b []byte
}

func newHostRAM(bytes int) *hostRAM {
	return &hostRAM{b: make([]byte, bytes)}
}

func (r *hostRAM) Read(addr kmem.PhysAddr, n int) []byte {
	out := make([]byte, n)
	copy(out, r.b[addr:])
	return out
}

func (r *hostRAM) Write(addr kmem.PhysAddr, b []byte) {
	copy(r.b[addr:], b)
}
