package kfs

import "riscvkernel/kdefs"

// SectorSize is the fixed sector width the block-device contract
// commits to.
const SectorSize = 512

// BlockDevice is the synchronous sector-read/sector-write contract a
// block driver presents: the core assumes requests complete when the
// call returns. kfs itself never depends on a concrete BlockDevice
// (NewMemFS needs none); cmd/kimage lays its images out in SectorSize
// sectors, and an on-disk kfs implementation would read/write through
// it.
type BlockDevice interface {
	ReadSector(lba uint64, buf []byte) kdefs.Err_t
	WriteSector(lba uint64, buf []byte) kdefs.Err_t
	NumSectors() uint64
}

// MemBlockDevice is an in-memory BlockDevice backing cmd/ksim's
// simulated block device and tests that want a block device without a
// real disk.
type MemBlockDevice struct {
	sectors [][SectorSize]byte
}

// NewMemBlockDevice allocates an all-zero device of n sectors.
func NewMemBlockDevice(n uint64) *MemBlockDevice {
	return &MemBlockDevice{sectors: make([][SectorSize]byte, n)}
}

func (d *MemBlockDevice) NumSectors() uint64 { return uint64(len(d.sectors)) }

func (d *MemBlockDevice) ReadSector(lba uint64, buf []byte) kdefs.Err_t {
	if lba >= uint64(len(d.sectors)) || len(buf) < SectorSize {
		return kdefs.EINVAL
	}
	copy(buf, d.sectors[lba][:])
	return 0
}

func (d *MemBlockDevice) WriteSector(lba uint64, buf []byte) kdefs.Err_t {
	if lba >= uint64(len(d.sectors)) || len(buf) < SectorSize {
		return kdefs.EINVAL
	}
	copy(d.sectors[lba][:], buf)
	return 0
}
