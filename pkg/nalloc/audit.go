package nalloc

import (
	"fmt"

	"github.com/ngrange/nalloc/pkg/arena"
	"github.com/ngrange/nalloc/pkg/chunkhdr"
	"github.com/ngrange/nalloc/pkg/pageheap"
)

// Violation describes one failed invariant, tagged with the testable
// property it corresponds to (P1-P9).
type Violation struct {
	Property string
	Detail   string
}

func (v Violation) Error() string { return fmt.Sprintf("%s: %s", v.Property, v.Detail) }

// Audit walks every heap and every live mapping and reports every
// invariant violation found. A nil result means every invariant held.
// Audit is the mechanism the test suite drives after every sequence of
// public operations; it is not on any hot path.
func (a *Allocator) Audit() []Violation {
	a.mu.Lock()
	defer a.mu.Unlock()

	var violations []Violation
	var liveHeapTotal uint64
	for _, ar := range [...]*arena.Arena{a.tiny, a.small} {
		ar.ForEachHeap(func(h *pageheap.Heap) {
			violations = append(violations, auditHeap(h)...)
			liveHeapTotal += h.Size()
		})
	}

	var liveMappingTotal uint64
	a.large.forEach(func(base uintptr, c chunkhdr.Chunk) {
		h := c.Header()
		liveMappingTotal += h.Size()

		if !h.Flags().Has(chunkhdr.Allocated) {
			violations = append(violations, Violation{"P5", "large mapping is not Allocated"})
		}
		if base%chunkhdr.Align != 0 {
			violations = append(violations, Violation{"P6", "large mapping base is not ALIGN-aligned"})
		}
		if usable := h.Size() - chunkhdr.MetadataSize(true); h.UserSize() > usable {
			violations = append(violations, Violation{"P7", "large chunk user_size exceeds usable size"})
		}
	})

	if want := liveHeapTotal + liveMappingTotal; a.totalMemory != want {
		violations = append(violations, Violation{"P8", fmt.Sprintf("total_memory=%d, want %d", a.totalMemory, want)})
	}
	return violations
}

// RoundTripClean reports the P9 invariant: after every outstanding
// pointer has been released, each arena holds at most one heap and the
// large-chunk list is empty.
func (a *Allocator) RoundTripClean() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tiny.Len() <= 1 && a.small.Len() <= 1 && a.large.empty()
}

// auditHeap checks P1-P7 (minus the large-chunk-specific checks) for
// every chunk inside one heap.
func auditHeap(h *pageheap.Heap) []Violation {
	var violations []Violation
	var sum uint64
	var sawFirst, sawLast bool
	var nonFreeListed, onFreeList int

	var prev chunkhdr.Chunk
	havePrev := false

	h.ForEachChunk(func(c chunkhdr.Chunk) {
		hdr := c.Header()
		sum += hdr.Size()

		if hdr.Flags().Has(chunkhdr.First) {
			sawFirst = true
		}
		if hdr.Flags().Has(chunkhdr.Last) {
			sawLast = true
		}

		if hdr.Size()%chunkhdr.Align != 0 || hdr.Size() < chunkhdr.MinChunkSize {
			violations = append(violations, Violation{"P1", "chunk size misaligned or below minimum"})
		}

		f := c.Footer()
		isLastMarker := hdr.Flags().Has(chunkhdr.Last) && f.Size() == 0
		if !isLastMarker && (f.Size() != hdr.Size() || f.Flags() != hdr.Flags()) {
			violations = append(violations, Violation{"P1", "header and footer disagree"})
		}

		if havePrev {
			prevHdr := prev.Header()
			if !prevHdr.Flags().Has(chunkhdr.Allocated) && !hdr.Flags().Has(chunkhdr.Allocated) {
				violations = append(violations, Violation{"P4", "two adjacent free chunks were not coalesced"})
			}
		}

		if hdr.Flags().Has(chunkhdr.Allocated) {
			if payload := c.PayloadStart(); payload%chunkhdr.Align != 0 {
				violations = append(violations, Violation{"P6", "payload is not ALIGN-aligned"})
			}
			if usable := hdr.Size() - chunkhdr.MetadataSize(false); hdr.UserSize() > usable {
				violations = append(violations, Violation{"P7", "user_size exceeds usable size"})
			}
		} else {
			nonFreeListed++
		}

		prev = c
		havePrev = true
	})

	h.FreeList().ForEach(func(chunkhdr.Chunk) { onFreeList++ })
	if onFreeList != nonFreeListed {
		violations = append(violations, Violation{"P5", fmt.Sprintf("%d free chunks, %d on the free list", nonFreeListed, onFreeList)})
	}

	if !sawFirst || !sawLast {
		violations = append(violations, Violation{"P3", "heap is missing a First or Last chunk"})
	}
	if want := h.Size() - pageheap.HeaderSize; sum != want {
		violations = append(violations, Violation{"P2", fmt.Sprintf("chunk sizes sum to %d, want %d", sum, want)})
	}
	return violations
}
