package kriscv

import (
	"fmt"

	"golang.org/x/arch/riscv64/riscv64asm"
)

// DescribeFault renders a best-effort disassembly of the instruction word
// at the faulting program counter for panic and signal-exit diagnostics.
// instr is the raw 16 or 32-bit instruction word read from the faulting
// address; decoding failures are reported rather than treated as fatal,
// since the fault itself is already being handled.
func DescribeFault(pc uint64, instr uint32) string {
	buf := []byte{
		byte(instr), byte(instr >> 8), byte(instr >> 16), byte(instr >> 24),
	}
	inst, err := riscv64asm.Decode(buf)
	if err != nil {
		return fmt.Sprintf("pc=%#x instr=%#08x (undecodable: %v)", pc, instr, err)
	}
	return fmt.Sprintf("pc=%#x instr=%#08x %s", pc, instr, inst.String())
}
