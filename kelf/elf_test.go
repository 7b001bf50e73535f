package kelf

import (
	"encoding/binary"
	"testing"

	"riscvkernel/kdefs"
)

// buildMinimalRISCV64 hand-assembles a minimal valid ELF64 RISC-V
// executable with one PT_LOAD segment, mirroring the shape a real
// riscv64-linux-gnu-ld -static output would have for Parse's purposes.
func buildMinimalRISCV64(entry uint64, data []byte) []byte {
	const ehsize = 64
	const phentsize = 56

	buf := make([]byte, ehsize+phentsize+len(data))
	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // little-endian
	buf[6] = 1 // EI_VERSION
	le := binary.LittleEndian
	le.PutUint16(buf[16:], 2)   // e_type = ET_EXEC
	le.PutUint16(buf[18:], 243) // e_machine = EM_RISCV
	le.PutUint32(buf[20:], 1)   // e_version
	le.PutUint64(buf[24:], entry)
	le.PutUint64(buf[32:], ehsize) // e_phoff
	le.PutUint16(buf[52:], ehsize)
	le.PutUint16(buf[54:], phentsize)
	le.PutUint16(buf[56:], 1) // e_phnum

	ph := buf[ehsize:]
	le.PutUint32(ph[0:], 1)                    // p_type = PT_LOAD
	le.PutUint32(ph[4:], 5)                    // p_flags = R|X
	le.PutUint64(ph[8:], ehsize+phentsize)      // p_offset
	le.PutUint64(ph[16:], entry)                // p_vaddr
	le.PutUint64(ph[24:], entry)                // p_paddr
	le.PutUint64(ph[32:], uint64(len(data)))    // p_filesz
	le.PutUint64(ph[40:], uint64(len(data)))    // p_memsz
	le.PutUint64(ph[48:], 0x1000)               // p_align

	copy(buf[ehsize+phentsize:], data)
	return buf
}

func TestParseValidImage(t *testing.T) {
	raw := buildMinimalRISCV64(0x1000, []byte{1, 2, 3, 4})
	img, err := Parse(raw)
	if err != 0 {
		t.Fatalf("parse: %v", err)
	}
	if img.Entry != 0x1000 {
		t.Fatalf("entry = %x, want 0x1000", img.Entry)
	}
	if len(img.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(img.Segments))
	}
	lo, hi := img.VirtRange()
	if lo != 0x1000 || hi != 0x1004 {
		t.Fatalf("virt range = [%x,%x)", lo, hi)
	}
}

// TestParseRejectsBadMagic: a file whose first 4 bytes are all zero is
// rejected with the ELF-magic kind, not a generic error.
func TestParseRejectsBadMagic(t *testing.T) {
	raw := make([]byte, 64)
	_, err := Parse(raw)
	if err != kdefs.EELFMAGIC {
		t.Fatalf("expected EELFMAGIC, got %v", err)
	}
}

func TestParseRejectsWrongMachine(t *testing.T) {
	raw := buildMinimalRISCV64(0x1000, []byte{0})
	// corrupt e_machine to x86-64 (62)
	binary.LittleEndian.PutUint16(raw[18:], 62)
	_, err := Parse(raw)
	if err != kdefs.EELFARCH {
		t.Fatalf("expected EELFARCH, got %v", err)
	}
}
