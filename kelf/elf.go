// Package kelf parses ELF64 RISC-V executables for process creation,
// built on the standard library's debug/elf rather than a bespoke
// parser.
package kelf

import (
	"bytes"
	"debug/elf"
	"io"

	"riscvkernel/kdefs"
)

// Segment describes one loadable program header, already translated
// into the units kproc needs to map it.
type Segment struct {
	Vaddr    uint64
	Filesz   uint64
	Memsz    uint64
	FileData []byte // the segment's file-backed bytes (length == Filesz)
	Readable bool
	Writable bool
	Execable bool
}

// Image is a parsed, ready-to-load ELF64 RISC-V executable.
type Image struct {
	Entry    uint64
	Segments []Segment
}

// Parse validates the ELF header (magic, RISC-V machine, executable
// type) and extracts loadable segments, failing with a specific ELF
// error kind for each malformation.
func Parse(raw []byte) (*Image, kdefs.Err_t) {
	if len(raw) < 4 || !bytes.Equal(raw[:4], []byte{0x7f, 'E', 'L', 'F'}) {
		return nil, kdefs.EELFMAGIC
	}
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, kdefs.EELFMAGIC
	}
	if f.Machine != elf.EM_RISCV || f.Class != elf.ELFCLASS64 {
		return nil, kdefs.EELFARCH
	}
	if f.Type != elf.ET_EXEC {
		return nil, kdefs.EELFTYPE
	}
	if len(f.Progs) == 0 {
		return nil, kdefs.EELFPHDR
	}

	img := &Image{Entry: f.Entry}
	haveLoad := false
	for _, ph := range f.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}
		haveLoad = true
		data := make([]byte, ph.Filesz)
		sr := io.NewSectionReader(bytes.NewReader(raw), int64(ph.Off), int64(ph.Filesz))
		if _, rerr := io.ReadFull(sr, data); rerr != nil {
			return nil, kdefs.EELFPHDR
		}
		img.Segments = append(img.Segments, Segment{
			Vaddr:    ph.Vaddr,
			Filesz:   ph.Filesz,
			Memsz:    ph.Memsz,
			FileData: data,
			Readable: ph.Flags&elf.PF_R != 0,
			Writable: ph.Flags&elf.PF_W != 0,
			Execable: ph.Flags&elf.PF_X != 0,
		})
	}
	if !haveLoad {
		return nil, kdefs.EELFPHDR
	}
	return img, 0
}

// VirtRange returns the union virtual range [lo, hi) covering every
// loadable segment, which kproc.CreateFromELF allocates as one
// physically contiguous region before copying each segment's bytes into
// its offset within it.
func (img *Image) VirtRange() (lo, hi uint64) {
	lo = ^uint64(0)
	for _, s := range img.Segments {
		if s.Vaddr < lo {
			lo = s.Vaddr
		}
		end := s.Vaddr + s.Memsz
		if end > hi {
			hi = end
		}
	}
	return lo, hi
}
