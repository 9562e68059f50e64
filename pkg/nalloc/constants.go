// Package nalloc is the allocator front end: it owns the process-wide
// context (two size-class arenas, the large-chunk list, the global
// mutex, and the total_memory counter) and implements the three public
// operations plus the diagnostic dumper.
//
// Configuration is compile-time only, per spec: no environment variables,
// no flags, no on-disk state.
package nalloc

import "github.com/ngrange/nalloc/pkg/chunkhdr"

const (
	// Align is the payload alignment every returned pointer satisfies.
	Align = chunkhdr.Align

	// MaxTiny is the largest in-heap chunk size (including metadata) that
	// routes to the TINY arena; anything larger routes to SMALL.
	MaxTiny uint64 = 128

	// MinLarge is the smallest mapped chunk size (the request rounded up to
	// Align plus one header) that routes to a dedicated page mapping (the
	// LARGE class) instead of an arena.
	MinLarge uint64 = 4096
)
