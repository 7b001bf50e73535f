package kproc

import "riscvkernel/ksignal"

// Trapframe_t is the saved user register file, laid out at the top of
// a process's kernel stack on trap entry: the x1-x31 integer file plus
// the two CSRs the trap core must save/restore. It is the single
// snapshot that fork copies and exec rewrites.
type Trapframe_t struct {
	Regs    [32]uint64 // x0 (always 0) through x31; x10 is a0, x1 is ra
	Sepc    uint64
	Sstatus uint64
}

// register indices named for readability at call sites.
const (
	regRA = 1
	regSP = 2
	regA0 = 10
	regA7 = 17
)

func (tf *Trapframe_t) Ra() uint64     { return tf.Regs[regRA] }
func (tf *Trapframe_t) SetRa(v uint64) { tf.Regs[regRA] = v }
func (tf *Trapframe_t) Sp() uint64     { return tf.Regs[regSP] }
func (tf *Trapframe_t) SetSp(v uint64) { tf.Regs[regSP] = v }
func (tf *Trapframe_t) A0() uint64     { return tf.Regs[regA0] }
func (tf *Trapframe_t) SetA0(v uint64) { tf.Regs[regA0] = v }

// Arg returns the i-th syscall argument register (a0..a5).
func (tf *Trapframe_t) Arg(i int) uint64 { return tf.Regs[regA0+i] }

// Syscall returns the syscall number carried in a7.
func (tf *Trapframe_t) Syscall() uint64 { return tf.Regs[regA7] }

// ToSignal and FromSignal bridge to ksignal.TrapFrame, the minimal
// view ksignal.Deliver needs. Deliver is a pure function over that
// narrow struct; the full Trapframe_t stays in kproc so ksignal never
// depends on the rest of the register file.
func (tf *Trapframe_t) ToSignal() ksignal.TrapFrame {
	return ksignal.TrapFrame{Sepc: tf.Sepc, Ra: tf.Ra(), A0: tf.A0()}
}

func (tf *Trapframe_t) FromSignal(s ksignal.TrapFrame) {
	tf.Sepc = s.Sepc
	tf.SetRa(s.Ra)
	tf.SetA0(s.A0)
}
