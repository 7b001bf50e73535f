// Command kimage builds a scratch disk image for the VFS demo: a flat,
// sparse file addressed in kfs.SectorSize sectors, containing a small
// fixed-layout directory of the files under a host source tree. It is
// not an ext2 image, just enough of a BlockDevice-shaped artifact to
// exercise kfs.BlockDevice end to end outside the in-memory reference
// filesystem.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"riscvkernel/kfs"
)

// entryHeaderSize is the fixed-width directory-entry layout: a 56-byte
// name field, plus an 8-byte start-sector and 8-byte length (packed
// fields at known offsets, no variable-length encoding).
const (
	nameFieldSize   = 56
	entryHeaderSize = nameFieldSize + 8 + 8
	maxEntries      = kfs.SectorSize / entryHeaderSize
)

func main() {
	src := flag.String("src", "", "host directory to image")
	out := flag.String("out", "disk.img", "output image path")
	sectors := flag.Uint64("sectors", 16384, "total sectors in the image")
	flag.Parse()

	if *src == "" {
		fmt.Fprintln(os.Stderr, "kimage: -src is required")
		os.Exit(2)
	}

	files, err := collect(*src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kimage: %v\n", err)
		os.Exit(1)
	}
	if len(files) > maxEntries {
		fmt.Fprintf(os.Stderr, "kimage: %d files exceeds the %d-entry directory sector\n", len(files), maxEntries)
		os.Exit(1)
	}

	if err := writeImage(*out, *sectors, files); err != nil {
		fmt.Fprintf(os.Stderr, "kimage: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("kimage: wrote %d files into %s (%d sectors)\n", len(files), *out, *sectors)
}

type fileEntry struct {
	name string
	data []byte
}

func collect(root string) ([]fileEntry, error) {
	var files []fileEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if len(rel) >= nameFieldSize {
			return fmt.Errorf("path %q exceeds %d-byte name field", rel, nameFieldSize)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, fileEntry{name: rel, data: data})
		return nil
	})
	return files, err
}

// writeImage lays out sector 0 as the directory (fixed-width entries),
// then each file's content starting at the next sector boundary,
// writing through a BlockDevice-shaped sector writer so the on-disk
// layout matches exactly what kfs.BlockDevice.ReadSector/WriteSector
// would see from a real block driver. Every all-zero sector is skipped
// with Pwrite never touching it and the file pre-truncated to full
// size, so the resulting image stays sparse on filesystems that
// support holes.
func writeImage(path string, totalSectors uint64, files []fileEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	size := int64(totalSectors) * kfs.SectorSize
	if err := unix.Ftruncate(int(f.Fd()), size); err != nil {
		return err
	}

	dir := make([]byte, kfs.SectorSize)
	nextSector := uint64(1)
	for i, fe := range files {
		nsectors := (uint64(len(fe.data)) + kfs.SectorSize - 1) / kfs.SectorSize
		if nextSector+nsectors > totalSectors {
			return fmt.Errorf("image of %d sectors too small for %q", totalSectors, fe.name)
		}
		putEntry(dir, i, fe.name, nextSector, uint64(len(fe.data)))
		if err := pwriteSparse(f, fe.data, nextSector); err != nil {
			return err
		}
		nextSector += nsectors
	}
	return pwriteSparse(f, dir, 0)
}

func putEntry(dir []byte, idx int, name string, startSector, length uint64) {
	off := idx * entryHeaderSize
	copy(dir[off:off+nameFieldSize], name)
	binary.LittleEndian.PutUint64(dir[off+nameFieldSize:], startSector)
	binary.LittleEndian.PutUint64(dir[off+nameFieldSize+8:], length)
}

// pwriteSparse writes data sector-by-sector starting at startSector,
// skipping sectors that are entirely zero so the underlying file keeps
// its holes instead of materializing zero pages on disk.
func pwriteSparse(f *os.File, data []byte, startSector uint64) error {
	for off := 0; off < len(data); off += kfs.SectorSize {
		end := off + kfs.SectorSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		if isZero(chunk) {
			continue
		}
		sector := startSector + uint64(off/kfs.SectorSize)
		if _, err := unix.Pwrite(int(f.Fd()), chunk, int64(sector)*kfs.SectorSize); err != nil {
			return err
		}
	}
	return nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
