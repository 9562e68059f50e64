// Package pageheap implements a single heap: one contiguous page-aligned
// region obtained from pagemap, carved into boundary-tagged chunks linked
// implicitly by address adjacency and explicitly, when free, through a
// free list rooted in the heap.
package pageheap

import (
	"unsafe"

	"github.com/ngrange/nalloc/pkg/chunkhdr"
	"github.com/ngrange/nalloc/pkg/freelist"
	"github.com/ngrange/nalloc/pkg/pagemap"
)

// HeaderSize is the space reserved at the start of every heap mapping for
// the heap's own bookkeeping, before the first chunk's payload begins at
// Align alignment. The heap's live fields (size, next heap, free-list
// root) are kept in ordinary Go-managed memory on the *Heap value itself
// rather than packed into this reserved space — there is no cross-process
// or cross-restart need to recover them from the mapping — but the bytes
// are still carved out of the mapping so that heap-size arithmetic
// (HeapSize, and the audit's P2 invariant) matches the spec's heap layout
// exactly.
var HeaderSize = chunkhdr.AlignUp(chunkhdr.Align, chunkhdr.Align)

// Heap is a page-mapped region carved into chunks, owned by one arena.
type Heap struct {
	mapping []byte
	base    uintptr
	size    uint64
	next    *Heap
	free    freelist.List
}

// HeapSize computes the mapping size for a heap whose size class has the
// given representative chunk size, per the "100 x representative chunk
// size" sizing rule: heaps amortize mapping overhead across roughly 100
// chunks of the class's representative size.
func HeapSize(representativeChunkSize uint64) uint64 {
	raw := 100*representativeChunkSize + HeaderSize
	return chunkhdr.AlignUp(raw, uint64(pagemap.PageSize))
}

// Create maps a new heap of heapSize bytes and carves it into a single
// free chunk spanning the whole payload.
func Create(heapSize uint64) (*Heap, error) {
	mapping, err := pagemap.MapPages(heapSize)
	if err != nil {
		return nil, err
	}
	h := &Heap{
		mapping: mapping,
		base:    uintptr(unsafe.Pointer(&mapping[0])),
		size:    heapSize,
	}
	chunkSize := heapSize - HeaderSize
	chunkhdr.InitFree(h.base+uintptr(HeaderSize), chunkSize, chunkhdr.First|chunkhdr.Last)
	h.free.Prepend(chunkhdr.Chunk(h.base + uintptr(HeaderSize)))
	return h, nil
}

// Destroy unmaps the heap's backing pages. The caller must ensure the
// heap's single remaining chunk spans its whole payload (i.e. the heap is
// otherwise empty) before calling Destroy.
func (h *Heap) Destroy() error {
	return pagemap.UnmapPages(h.mapping)
}

// Base returns the heap's mapping base address. dump_allocations() output
// does not use it; it prints the first chunk's payload address instead.
func (h *Heap) Base() uintptr { return h.base }

// Size returns the heap's total mapped size in bytes.
func (h *Heap) Size() uint64 { return h.size }

// Next returns the next heap in the arena's list, or nil at the tail.
func (h *Heap) Next() *Heap { return h.next }

// SetNext links h to the next heap in the arena's list; owned by pkg/arena.
func (h *Heap) SetNext(n *Heap) { h.next = n }

// Contains reports whether addr falls within this heap's mapped range.
func (h *Heap) Contains(addr uintptr) bool {
	return addr >= h.base && addr < h.base+uintptr(h.size)
}

// FirstChunk returns the first chunk of the heap's payload.
func (h *Heap) FirstChunk() chunkhdr.Chunk {
	return chunkhdr.Chunk(h.base + uintptr(HeaderSize))
}

// FindFit delegates to the heap's own free list.
func (h *Heap) FindFit(size uint64) (chunkhdr.Chunk, bool) {
	return h.free.FindFit(size)
}

// FreeList returns the heap's free list, for Prepend/Remove by callers
// that already hold a chunk (pkg/arena, pkg/nalloc).
func (h *Heap) FreeList() *freelist.List { return &h.free }

// SoleChunkSpansPayload reports whether the heap currently has exactly one
// chunk, free, spanning the entire payload — the precondition for
// reclaiming the heap back to the OS.
func (h *Heap) SoleChunkSpansPayload() bool {
	c := h.FirstChunk()
	if c.Header().Flags().Has(chunkhdr.Allocated) {
		return false
	}
	if _, ok := c.Next(); ok {
		return false
	}
	return c.Header().Size() == h.size-HeaderSize
}

// ForEachChunk walks every chunk in the heap in address order.
func (h *Heap) ForEachChunk(fn func(chunkhdr.Chunk)) {
	c := h.FirstChunk()
	for {
		fn(c)
		next, ok := c.Next()
		if !ok {
			return
		}
		c = next
	}
}
