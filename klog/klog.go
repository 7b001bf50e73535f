// Package klog is the kernel's panic/boot diagnostic logger, a thin
// wrapper over the standard log package. The trap path cannot carry a
// userland logging dependency tree, so this stays minimal.
package klog

import (
	"fmt"
	"log"
	"os"
)

var std = log.New(os.Stdout, "", log.Ltime|log.Lmicroseconds)

// Boot logs a one-line boot-sequence message.
func Boot(format string, args ...interface{}) {
	std.Printf("[boot] "+format, args...)
}

// Warn logs a recoverable anomaly (e.g. a faulting user process).
func Warn(format string, args ...interface{}) {
	std.Printf("[warn] "+format, args...)
}

// Panic logs a full register-dump style fatal message and halts. Used
// for unrecoverable corruption: heap magic mismatch, double-free, trap
// from S-mode, page fault while handling a trap, invariant exhaustion.
func Panic(format string, args ...interface{}) {
	std.Printf("[panic] "+format, args...)
	panic("kernel panic: " + fmt.Sprintf(format, args...))
}
