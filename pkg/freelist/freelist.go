// Package freelist implements the doubly linked, unordered, first-fit free
// list used by every heap. The list is rooted in whatever struct embeds a
// List value (a heap, in this allocator); it does not own any memory
// itself, only the prev/next linkage overlaid on free chunks by
// pkg/chunkhdr.
package freelist

import "github.com/ngrange/nalloc/pkg/chunkhdr"

// List is a doubly linked, unordered free list rooted in a single head
// pointer. Insertion is at the head; removal is O(1) given the node.
type List struct {
	head chunkhdr.Chunk
}

// Head returns the first chunk on the list, or (NoChunk, false) if empty.
func (l *List) Head() (chunkhdr.Chunk, bool) {
	if l.head == chunkhdr.NoChunk {
		return chunkhdr.NoChunk, false
	}
	return l.head, true
}

// Empty reports whether the list has no chunks on it.
func (l *List) Empty() bool { return l.head == chunkhdr.NoChunk }

// Prepend inserts c at the head of the list in O(1). Prepending the
// current head again is a no-op, matching the source allocator's
// idempotent double-prepend guard.
func (l *List) Prepend(c chunkhdr.Chunk) {
	if l.head == c {
		return
	}
	if l.head != chunkhdr.NoChunk {
		old := l.head
		old.SetFreePrev(c)
		c.SetFreeNext(old)
	} else {
		c.SetFreeNext(chunkhdr.NoChunk)
	}
	c.SetFreePrev(chunkhdr.NoChunk)
	l.head = c
}

// Remove unlinks c from the list in O(1). c must currently be on the
// list; Remove does not search for it.
func (l *List) Remove(c chunkhdr.Chunk) {
	prev := c.FreePrev()
	next := c.FreeNext()
	if prev != chunkhdr.NoChunk {
		prev.SetFreeNext(next)
	} else {
		l.head = next
	}
	if next != chunkhdr.NoChunk {
		next.SetFreePrev(prev)
	}
}

// FindFit returns the first chunk on the list whose size is at least
// size, searching head to tail (first-fit). No size ordering is
// maintained, so this is always a linear scan.
func (l *List) FindFit(size uint64) (chunkhdr.Chunk, bool) {
	for c := l.head; c != chunkhdr.NoChunk; c = c.FreeNext() {
		if c.Header().Size() >= size {
			return c, true
		}
	}
	return chunkhdr.NoChunk, false
}

// ForEach walks every chunk currently on the list, head to tail. fn must
// not mutate the list while iterating.
func (l *List) ForEach(fn func(chunkhdr.Chunk)) {
	for c := l.head; c != chunkhdr.NoChunk; c = c.FreeNext() {
		fn(c)
	}
}
