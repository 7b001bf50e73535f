package kfs

// DirEntSize is the fixed on-wire record size getdents copies per
// entry: a 60-byte null-padded name followed by a 4-byte kind tag.
const DirEntSize = 64

// EncodeDirEnt packs one directory entry into the fixed DirEntSize
// record the getdents syscall copies into the caller's buffer. Names
// longer than 60 bytes are truncated to 60, and a name of exactly 60
// bytes fills the field with no NUL after it; callers needing longer names are
// out of scope for this core's minimal getdents contract.
func EncodeDirEnt(e DirEnt) []byte {
	rec := make([]byte, DirEntSize)
	copy(rec[:DirEntSize-4], e.Name)
	var kind uint32
	if e.Kind == KindDir {
		kind = 1
	}
	rec[DirEntSize-4] = byte(kind)
	rec[DirEntSize-3] = byte(kind >> 8)
	rec[DirEntSize-2] = byte(kind >> 16)
	rec[DirEntSize-1] = byte(kind >> 24)
	return rec
}
