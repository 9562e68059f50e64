package nalloc

import (
	"unsafe"

	"github.com/ngrange/nalloc/pkg/arena"
	"github.com/ngrange/nalloc/pkg/chunkhdr"
)

// Allocate returns a newly allocated, ALIGN-aligned payload pointer of at
// least size bytes, or nil on out-of-memory. size==0 is treated as
// size==1, matching the host platform's malloc(0) convention.
func (a *Allocator) Allocate(size uint64) unsafe.Pointer {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureInit()
	return a.allocateLocked(size)
}

func (a *Allocator) allocateLocked(size uint64) unsafe.Pointer {
	if size == 0 {
		size = 1
	}

	if mappedTotal := chunkhdr.ChunkSize(size, true); mappedTotal >= MinLarge {
		return a.allocateLargeLocked(mappedTotal, size)
	}
	return a.allocateSmallLocked(size)
}

func (a *Allocator) allocateLargeLocked(mappedTotal, size uint64) unsafe.Pointer {
	if !a.reserveLocked(mappedTotal) {
		return nil
	}
	c, err := a.large.mapNew(mappedTotal, size)
	if err != nil {
		a.log.Debugf("nalloc: large mapping of %d bytes failed: %v", mappedTotal, err)
		return nil
	}
	a.totalMemory += mappedTotal
	a.log.Debugf("nalloc: mapped LARGE chunk of %d bytes (user_size=%d)", mappedTotal, size)
	return unsafe.Pointer(c.PayloadStart())
}

func (a *Allocator) allocateSmallLocked(size uint64) unsafe.Pointer {
	class := arena.SelectClass(size, MaxTiny)
	ar := a.arenaFor(class)
	required := chunkhdr.ChunkSize(size, false)

	c, heap, ok := ar.FindFit(required)
	if !ok {
		if !a.growArenaLocked(ar) {
			return nil
		}
		c, heap, ok = ar.FindFit(required)
		if !ok {
			return nil
		}
	}

	heap.FreeList().Remove(c)
	if c.Header().Size()-required >= chunkhdr.MinChunkSize {
		tail := chunkhdr.Split(c, required)
		heap.FreeList().Prepend(tail)
	}

	h := c.Header()
	h.SetFlags(h.Flags() | chunkhdr.Allocated)
	h.SetUserSize(size)
	if !h.Flags().Has(chunkhdr.Last) {
		*c.Footer() = *h
	}
	return unsafe.Pointer(c.PayloadStart())
}

// Release returns the chunk backing ptr to its free list (or unmaps it,
// for a LARGE chunk). A nil ptr, a misaligned pointer, or a pointer to a
// chunk that is not currently Allocated are all silent no-ops, matching
// the defensive double-free/corruption posture of spec.md §7.
func (a *Allocator) Release(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureInit()
	a.releaseLocked(ptr)
}

func (a *Allocator) releaseLocked(ptr unsafe.Pointer) {
	c, ok := chunkFromPayload(ptr)
	if !ok {
		return
	}
	h := c.Header()
	if !h.Flags().Has(chunkhdr.Allocated) {
		return
	}

	if h.Flags().Has(chunkhdr.Mapped) {
		size := h.Size()
		if removed, err := a.large.remove(c); removed {
			a.totalMemory -= size
			if err != nil {
				a.log.Debugf("nalloc: munmap of %d-byte LARGE chunk failed: %v", size, err)
			} else {
				a.log.Debugf("nalloc: unmapped LARGE chunk of %d bytes", size)
			}
		}
		return
	}

	heap, ar, ok := a.findOwner(uintptr(c))
	if !ok {
		return
	}

	h.SetFlags(h.Flags() &^ chunkhdr.Allocated)
	if !h.Flags().Has(chunkhdr.Last) {
		*c.Footer() = *h
	}
	merged := c
	if prev, ok := merged.Prev(); ok && !prev.Header().Flags().Has(chunkhdr.Allocated) {
		heap.FreeList().Remove(prev)
		merged = chunkhdr.Coalesce(prev, merged)
	}
	if next, ok := merged.Next(); ok && !next.Header().Flags().Has(chunkhdr.Allocated) {
		heap.FreeList().Remove(next)
		merged = chunkhdr.Coalesce(merged, next)
	}

	if heap.SoleChunkSpansPayload() && ar.Len() > 1 {
		ar.RemoveHeap(heap)
		size := heap.Size()
		if err := heap.Destroy(); err != nil {
			a.log.Debugf("nalloc: munmap of %d-byte heap failed: %v", size, err)
		}
		a.totalMemory -= size
		a.log.Debugf("nalloc: reclaimed %s heap of %d bytes (len=%d)", ar.Class(), size, ar.Len())
		return
	}
	heap.FreeList().Prepend(merged)
}

// Reallocate resizes the allocation at ptr to size bytes, preserving
// min(old user_size, size) bytes of content, and returns the (possibly
// new) payload pointer. ptr==nil dispatches to Allocate; size==0
// dispatches to Release and returns nil.
func (a *Allocator) Reallocate(ptr unsafe.Pointer, size uint64) unsafe.Pointer {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureInit()

	if ptr == nil {
		return a.allocateLocked(size)
	}
	if size == 0 {
		a.releaseLocked(ptr)
		return nil
	}
	return a.reallocateLocked(ptr, size)
}

func (a *Allocator) reallocateLocked(ptr unsafe.Pointer, size uint64) unsafe.Pointer {
	c, ok := chunkFromPayload(ptr)
	if !ok {
		return nil
	}
	h := c.Header()
	if !h.Flags().Has(chunkhdr.Allocated) {
		return nil
	}
	mapped := h.Flags().Has(chunkhdr.Mapped)

	if usable := h.Size() - chunkhdr.MetadataSize(mapped); usable >= size {
		h.SetUserSize(size)
		return ptr
	}

	becomesLarge := chunkhdr.ChunkSize(size, true) >= MinLarge
	if !mapped && !becomesLarge {
		if grown, ok := a.growInPlaceLocked(c, size); ok {
			return grown
		}
	}
	return a.reallocateByCopyLocked(c, ptr, size)
}

// growInPlaceLocked attempts spec.md's in-place-growth path: the request
// must stay within the in-heap size classes (never LARGE — the caller
// already excludes that case), stay in c's current size class, and the
// chunk immediately following c must exist, be free, and be large enough
// once merged.
func (a *Allocator) growInPlaceLocked(c chunkhdr.Chunk, size uint64) (unsafe.Pointer, bool) {
	heap, ar, ok := a.findOwner(uintptr(c))
	if !ok {
		return nil, false
	}
	if arena.SelectClass(size, MaxTiny) != ar.Class() {
		return nil, false
	}

	next, ok := c.Next()
	if !ok {
		return nil, false
	}
	nh := next.Header()
	if nh.Flags().Has(chunkhdr.Allocated) {
		return nil, false
	}

	h := c.Header()
	required := chunkhdr.ChunkSize(size, false)
	if h.Size()+nh.Size() < required {
		return nil, false
	}

	heap.FreeList().Remove(next)

	h.SetFlags(h.Flags() &^ chunkhdr.Allocated)
	merged := chunkhdr.Coalesce(c, next)
	mh := merged.Header()
	mh.SetFlags(mh.Flags() | chunkhdr.Allocated)

	if mh.Size()-required >= chunkhdr.MinChunkSize {
		tail := chunkhdr.Split(merged, required)
		heap.FreeList().Prepend(tail)
	}
	mh.SetUserSize(size)
	if !mh.Flags().Has(chunkhdr.Last) {
		*merged.Footer() = *mh
	}
	return unsafe.Pointer(merged.PayloadStart()), true
}

// reallocateByCopyLocked is the fallback path: allocate a fresh block,
// copy the old content over, release the old block.
func (a *Allocator) reallocateByCopyLocked(c chunkhdr.Chunk, ptr unsafe.Pointer, size uint64) unsafe.Pointer {
	oldUserSize := c.Header().UserSize()

	newPtr := a.allocateLocked(size)
	if newPtr == nil {
		return nil
	}
	n := oldUserSize
	if size < n {
		n = size
	}
	chunkhdr.Copy(newPtr, ptr, n)
	a.releaseLocked(ptr)
	return newPtr
}

// chunkFromPayload recovers the chunk backing a payload pointer,
// rejecting any pointer whose derived header address is not
// ALIGN-aligned (spec.md's InvalidPointer defence).
func chunkFromPayload(ptr unsafe.Pointer) (chunkhdr.Chunk, bool) {
	c := chunkhdr.FromPayload(ptr)
	if uintptr(c)%chunkhdr.Align != 0 {
		return chunkhdr.NoChunk, false
	}
	return c, true
}
