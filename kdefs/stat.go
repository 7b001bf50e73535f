package kdefs

import "unsafe"

// Stat_t is the minimal stat layout this core exposes to syscalls: a mode
// word and a size word. A richer stat(2)-like layout is left to a
// userland layer on top; the kernel commits only to these two fields.
type Stat_t struct {
	mode uint32
	size uint32
}

// File mode bits used in Stat_t.mode.
const (
	S_IFREG uint32 = 1 << 16
	S_IFDIR uint32 = 1 << 17
)

// Wmode sets the mode field.
func (s *Stat_t) Wmode(m uint32) { s.mode = m }

// Wsize sets the size field.
func (s *Stat_t) Wsize(sz uint32) { s.size = sz }

// Mode returns the mode field.
func (s *Stat_t) Mode() uint32 { return s.mode }

// Size returns the size field.
func (s *Stat_t) Size() uint32 { return s.size }

// Bytes exposes the raw wire layout of the structure, so syscalls can
// copy it to user memory without a field-by-field encoder.
func (s *Stat_t) Bytes() []byte {
	const sz = unsafe.Sizeof(*s)
	sl := (*[sz]byte)(unsafe.Pointer(s))
	return sl[:]
}
