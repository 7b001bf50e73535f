// Package kconfig holds build-time kernel constants. There is no argv at
// the point these are consulted, so they are plain Go constants rather
// than a parsed configuration file.
package kconfig

// TimeSliceTicks is the number of timer ticks a process runs before
// ksched forces a reschedule.
const TimeSliceTicks = 10

// TicksPerSecond is the platform timer frequency used to compute the
// next timer deadline.
const TicksPerSecond = 10

// PageShift / PageSize describe the 4 KiB frame used throughout.
const (
	PageShift = 12
	PageSize  = 1 << PageShift
)

// PhysPages is the number of 4 KiB frames the PMM bitmap manages in this
// build (a fixed RAM window).
const PhysPages = 1 << 16

// MaxProcs bounds the process table (PCB array) size.
const MaxProcs = 256

// ReadyQueueCap bounds the scheduler's ready-queue ring buffer; overflow
// is a fatal invariant violation.
const ReadyQueueCap = MaxProcs

// NSIG is the number of signal handler slots per process.
const NSIG = 32

// Sv39 user/kernel address-space layout.
const (
	// UserMin is the lowest valid user virtual address; page 0 is never
	// mapped so that a null pointer always faults.
	UserMin = PageSize
	// UserMax is the boundary between user and kernel halves of the
	// Sv39 address space (bit 38 sign-extension boundary).
	UserMax = 1 << 38
	// UserStackTop is where a fresh process's stack begins, growing
	// down from this address.
	UserStackTop = UserMax - PageSize
	// DefaultStackPages is the number of pages mapped for a new
	// process's initial stack.
	DefaultStackPages = 4
)

// MmapBase is the fixed virtual address anonymous mmap regions grow up
// from, chosen well above any ELF image's loaded range and far below
// UserStackTop so neither can collide with it.
const MmapBase = 0x40000000

// FdTableSize bounds the per-process file-descriptor table.
const FdTableSize = 64

// PipeBufSize is the ring-buffer capacity of a pipe.
const PipeBufSize = PageSize
