package ksched

import "sync"

// irqEnabled models whether interrupts are currently enabled on this
// (single) hart. Real hardware would read/write the sstatus.SIE bit;
// a platform installs the actual CSR accessor via InstallIRQHooks, the
// same indirection kvm/csr.go uses for satp/TLB. Neither ktrap nor
// cmd/ksim installs one, so the in-memory flag below is what they use.
var (
	irqMu      sync.Mutex
	irqEnabled = true
	irqGetSet  func(enable bool) (prev bool) = defaultIRQGetSet
)

func defaultIRQGetSet(enable bool) bool {
	irqMu.Lock()
	defer irqMu.Unlock()
	prev := irqEnabled
	irqEnabled = enable
	return prev
}

// InstallIRQHooks lets the trap core or simulator wire the real sstatus.SIE
// accessor. getSet must atomically set the bit to `enable` and return its
// previous value.
func InstallIRQHooks(getSet func(enable bool) (prev bool)) {
	if getSet != nil {
		irqGetSet = getSet
	}
}

// IRQToken is a scoped "interrupts off" capability: its release
// restores the previous enable state, so nesting composes. Any critical
// section touching the ready queue, a wait queue, the process table,
// the pending-signal mask, or the frame bitmap must hold one.
type IRQToken struct {
	prev bool
}

// SaveAndDisable disables interrupts and returns a token that restores
// the previous enable state when Restore is called. Nesting composes:
// an inner SaveAndDisable/Restore pair leaves the outer disable in
// effect.
func SaveAndDisable() IRQToken {
	return IRQToken{prev: irqGetSet(false)}
}

// Restore writes back the enable state captured at SaveAndDisable time.
func (t IRQToken) Restore() {
	irqGetSet(t.prev)
}
