// Package arena implements a size class's arena: a singly linked list of
// heaps plus the class-selection and cross-heap search logic layered on
// top of pkg/pageheap.
package arena

import (
	"github.com/ngrange/nalloc/pkg/chunkhdr"
	"github.com/ngrange/nalloc/pkg/pageheap"
)

// Class identifies one of the two small size classes that share the
// heap/free-list engine. LARGE allocations never reach an Arena.
type Class uint8

const (
	Tiny Class = iota
	Small
)

func (c Class) String() string {
	switch c {
	case Tiny:
		return "TINY"
	case Small:
		return "SMALL"
	default:
		return "UNKNOWN"
	}
}

// SelectClass returns the size class that a chunk_size(req, unmapped)-sized
// request belongs to: TINY if it fits within maxTiny, SMALL otherwise.
func SelectClass(req, maxTiny uint64) Class {
	if chunkhdr.ChunkSize(req, false) <= maxTiny {
		return Tiny
	}
	return Small
}

// Arena is a singly linked list of heaps for one size class.
type Arena struct {
	class              Class
	representativeSize uint64
	head               *pageheap.Heap
	len                int
}

// New constructs an empty arena for class, sized so that each heap it
// grows amortizes mapping overhead across roughly 100 chunks of
// representativeSize bytes (pageheap.HeapSize's contract).
func New(class Class, representativeSize uint64) *Arena {
	return &Arena{class: class, representativeSize: representativeSize}
}

// Class returns the arena's size class.
func (a *Arena) Class() Class { return a.class }

// Len returns the number of heaps currently owned by the arena.
func (a *Arena) Len() int { return a.len }

// Head returns the most recently grown heap, or nil if the arena is empty.
func (a *Arena) Head() *pageheap.Heap { return a.head }

// HeapSize is the mapping size Grow uses for this arena's class.
func (a *Arena) HeapSize() uint64 { return pageheap.HeapSize(a.representativeSize) }

// Grow maps a new heap and prepends it to the arena's list (so the most
// recently grown heap is found first by FindFit and dump_allocations()).
// On mapping failure the arena is left unmodified and the error is
// returned with a nil heap.
func (a *Arena) Grow() (*pageheap.Heap, error) {
	h, err := pageheap.Create(a.HeapSize())
	if err != nil {
		return nil, err
	}
	h.SetNext(a.head)
	a.head = h
	a.len++
	return h, nil
}

// FindHeap returns the heap containing addr, or (nil, false).
func (a *Arena) FindHeap(addr uintptr) (*pageheap.Heap, bool) {
	for h := a.head; h != nil; h = h.Next() {
		if h.Contains(addr) {
			return h, true
		}
	}
	return nil, false
}

// FindFit walks the arena's heaps, newest first, and returns the first
// chunk across all of them whose free-list fit satisfies size.
func (a *Arena) FindFit(size uint64) (chunkhdr.Chunk, *pageheap.Heap, bool) {
	for h := a.head; h != nil; h = h.Next() {
		if c, ok := h.FindFit(size); ok {
			return c, h, true
		}
	}
	return chunkhdr.NoChunk, nil, false
}

// RemoveHeap unlinks heap from the arena's list, for return to the OS.
// The caller is responsible for verifying that heap's single chunk spans
// its whole payload before calling RemoveHeap, and for calling
// heap.Destroy() afterward.
func (a *Arena) RemoveHeap(heap *pageheap.Heap) bool {
	if a.head == heap {
		a.head = heap.Next()
		a.len--
		return true
	}
	for h := a.head; h != nil; h = h.Next() {
		if h.Next() == heap {
			h.SetNext(heap.Next())
			a.len--
			return true
		}
	}
	return false
}

// ForEachHeap walks every heap owned by the arena, newest first.
func (a *Arena) ForEachHeap(fn func(*pageheap.Heap)) {
	for h := a.head; h != nil; h = h.Next() {
		fn(h)
	}
}
