package nalloc

import (
	"os"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// std is the single process-wide Allocator backing the package-level
// functions below, matching spec.md's four-symbol binary-compatible
// surface (allocate/reallocate/release/dump). A program that wants its
// own Allocator (for testing, or to run more than one in the same
// process) should construct one directly with New instead.
var std = New(logrus.StandardLogger())

// Allocate mirrors the host platform's malloc.
func Allocate(size uint64) unsafe.Pointer { return std.Allocate(size) }

// Reallocate mirrors the host platform's realloc.
func Reallocate(ptr unsafe.Pointer, size uint64) unsafe.Pointer { return std.Reallocate(ptr, size) }

// Release mirrors the host platform's free.
func Release(ptr unsafe.Pointer) { std.Release(ptr) }

// Dump writes the standard instance's diagnostic report to standard
// output, per spec.md §6.
func Dump() {
	if err := std.Dump(os.Stdout); err != nil {
		std.log.Debugf("nalloc: dump failed: %v", err)
	}
}
