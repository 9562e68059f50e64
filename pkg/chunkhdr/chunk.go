package chunkhdr

import "unsafe"

// Chunk is the address of a chunk's header. It is never dereferenced
// directly by callers outside this package; all access goes through the
// accessor methods below, which is what lets the free-chunk overlay and
// the header/footer boundary tags stay internal to chunkhdr.
type Chunk uintptr

// NoChunk is the zero value, meaning "no chunk" (used as the not-ok result
// of Next/Prev).
const NoChunk Chunk = 0

func (c Chunk) ptr() unsafe.Pointer { return unsafe.Pointer(uintptr(c)) }

// Header returns the chunk's header.
func (c Chunk) Header() *Header { return headerAt(c.ptr()) }

// Footer returns the chunk's footer. Only valid for non-Mapped chunks.
func (c Chunk) Footer() *Header {
	h := c.Header()
	off := h.Size() - HeaderSize
	return headerAt(unsafe.Add(c.ptr(), off))
}

// PayloadStart returns the address of the chunk's payload, i.e. the
// pointer that would be returned to (or was returned to) the caller. The
// payload always begins immediately after the header, for both in-heap
// and Mapped chunks; only the metadata *size* (and thus where the chunk
// ends) differs between the two.
func (c Chunk) PayloadStart() uintptr {
	return uintptr(c) + uintptr(HeaderSize)
}

// FromPayload recovers a Chunk from a payload pointer previously returned
// by PayloadStart. The header always sits exactly HeaderSize bytes before
// the payload, whether or not the chunk is Mapped.
func FromPayload(payload unsafe.Pointer) Chunk {
	return Chunk(uintptr(payload) - uintptr(HeaderSize))
}

// Next returns the chunk immediately following c in address order, or
// (NoChunk, false) if c is the last chunk of its heap. Mapped chunks have
// no next chunk.
func (c Chunk) Next() (Chunk, bool) {
	h := c.Header()
	if h.Flags().Has(Mapped) {
		return NoChunk, false
	}
	if c.Footer().Size() == 0 {
		return NoChunk, false
	}
	return Chunk(uintptr(c) + uintptr(h.Size())), true
}

// Prev returns the chunk immediately preceding c in address order, or
// (NoChunk, false) if c is the first chunk of its heap.
func (c Chunk) Prev() (Chunk, bool) {
	h := c.Header()
	if h.Flags().Has(First) {
		return NoChunk, false
	}
	prevFooter := headerAt(unsafe.Add(c.ptr(), -int(HeaderSize)))
	return Chunk(uintptr(c) - uintptr(prevFooter.Size())), true
}

// freeLinks is the overlay written into a free chunk's payload: the
// doubly linked free-list pointers. It is only ever valid to read or write
// this while the chunk is free; chunkhdr never touches it once Allocated
// is set.
type freeLinks struct {
	prev Chunk
	next Chunk
}

func (c Chunk) links() *freeLinks {
	return (*freeLinks)(unsafe.Pointer(c.PayloadStart()))
}

// FreePrev/FreeNext/SetFreePrev/SetFreeNext expose the free-chunk overlay
// to pkg/freelist, which owns list traversal and linkage policy; chunkhdr
// only owns where the pointers live in memory.
func (c Chunk) FreePrev() Chunk     { return c.links().prev }
func (c Chunk) FreeNext() Chunk     { return c.links().next }
func (c Chunk) SetFreePrev(v Chunk) { c.links().prev = v }
func (c Chunk) SetFreeNext(v Chunk) { c.links().next = v }

// InitFree writes a fresh header and footer for a brand new free chunk
// spanning size bytes starting at addr. If flags include Last, the footer
// is the size-0 heap-end marker rather than a copy of the header.
func InitFree(addr uintptr, size uint64, flags Flags) Chunk {
	c := Chunk(addr)
	h := c.Header()
	*h = Header{}
	h.SetSize(size)
	h.SetFlags(flags &^ Allocated &^ Mapped)
	c.writeFooter()
	return c
}

// writeFooter copies the header into the footer slot, except that the
// footer of a Last chunk is written with size 0 as the heap's forward
// traversal end marker (spec invariant I2).
func (c Chunk) writeFooter() {
	h := c.Header()
	f := c.Footer()
	if h.Flags().Has(Last) {
		*f = Header{}
		return
	}
	*f = *h
}

// Split shrinks c to exactly size bytes (which must satisfy size >=
// MinChunkSize and c.Size()-size >= MinChunkSize) and returns the new
// chunk carved from the remainder. The remainder inherits c's Last flag
// (and Mapped/Allocated are always clear on it); c loses Last if it had
// it. Split does not touch any free list; the caller removes c beforehand
// and is responsible for inserting whichever pieces remain free.
func Split(c Chunk, size uint64) Chunk {
	h := c.Header()
	oldSize := h.Size()
	wasLast := h.Flags().Has(Last)

	h.SetSize(size)
	h.SetFlags(h.Flags() &^ Last)
	c.writeFooter()

	tail := Chunk(uintptr(c) + uintptr(size))
	tailFlags := Flags(0)
	if wasLast {
		tailFlags |= Last
	}
	return InitFree(uintptr(tail), oldSize-size, tailFlags)
}

// Coalesce merges back into front, which must be adjacent (front
// immediately precedes back) and both free. The caller must have already
// removed both chunks from their free lists; the merged chunk (front) is
// not reinserted automatically.
func Coalesce(front, back Chunk) Chunk {
	fh := front.Header()
	bh := back.Header()
	if fh.Flags().Has(Allocated) || fh.Flags().Has(Mapped) ||
		bh.Flags().Has(Allocated) || bh.Flags().Has(Mapped) {
		panic("chunkhdr: Coalesce requires two free, unmapped chunks")
	}
	fh.SetSize(fh.Size() + bh.Size())
	if bh.Flags().Has(Last) {
		fh.SetFlags(fh.Flags() | Last)
	}
	front.writeFooter()
	return front
}
