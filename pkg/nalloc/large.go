package nalloc

import (
	"unsafe"

	"github.com/google/btree"
	"github.com/ngrange/nalloc/pkg/chunkhdr"
	"github.com/ngrange/nalloc/pkg/pagemap"
)

// largeMapping is one page mapping dedicated to a single LARGE allocation.
//
// The source allocator packs a per-mapping list header into the first
// ALIGN bytes of the mapping, ahead of the chunk header, purely so the
// intrusive singly linked list needs no separate allocation. Go already
// has a garbage-collected home for that bookkeeping — the same adaptation
// pageheap.Heap makes for its own "next" pointer — so the list node lives
// here as an ordinary struct, and the mapping holds nothing but the chunk
// itself starting at its first byte. A mapped chunk has only a header
// (no footer), so the chunk spans the mapping exactly.
type largeMapping struct {
	bytes []byte
	base  uintptr
	next  *largeMapping
}

func (m *largeMapping) chunk() chunkhdr.Chunk { return chunkhdr.Chunk(m.base) }

// largeList is the process-wide large-chunk list plus an address-keyed
// btree for O(log n) ownership lookup from Release/Reallocate, instead of
// the O(n) scan a plain singly linked list would require.
type largeList struct {
	head  *largeMapping
	index *btree.BTreeG[*largeMapping]
}

func newLargeList() largeList {
	return largeList{
		index: btree.NewG(32, func(a, b *largeMapping) bool { return a.base < b.base }),
	}
}

// mapNew obtains a fresh mapping of mappedTotal bytes, carves it into a
// single Mapped|Allocated chunk recording userSize, and links it into the
// list (most recently mapped first).
func (l *largeList) mapNew(mappedTotal, userSize uint64) (chunkhdr.Chunk, error) {
	bytes, err := pagemap.MapPages(mappedTotal)
	if err != nil {
		return chunkhdr.NoChunk, err
	}
	m := &largeMapping{bytes: bytes, base: uintptr(unsafe.Pointer(&bytes[0]))}

	c := m.chunk()
	h := c.Header()
	h.SetSize(mappedTotal)
	h.SetFlags(chunkhdr.Mapped | chunkhdr.Allocated)
	h.SetUserSize(userSize)

	m.next = l.head
	l.head = m
	l.index.ReplaceOrInsert(m)
	return c, nil
}

// find returns the mapping containing addr (any address within its
// range), if any.
func (l *largeList) find(addr uintptr) (*largeMapping, bool) {
	var found *largeMapping
	probe := &largeMapping{base: addr}
	l.index.DescendLessOrEqual(probe, func(item *largeMapping) bool {
		found = item
		return false
	})
	if found == nil {
		return nil, false
	}
	if addr >= found.base && addr < found.base+uintptr(len(found.bytes)) {
		return found, true
	}
	return nil, false
}

// remove unlinks the mapping owning c from the list and unmaps it. A c
// with no matching mapping is a no-op, returning (false, nil).
func (l *largeList) remove(c chunkhdr.Chunk) (bool, error) {
	m, ok := l.find(uintptr(c))
	if !ok {
		return false, nil
	}
	if l.head == m {
		l.head = m.next
	} else {
		for p := l.head; p != nil; p = p.next {
			if p.next == m {
				p.next = m.next
				break
			}
		}
	}
	l.index.Delete(m)
	return true, pagemap.UnmapPages(m.bytes)
}

// empty reports whether the large-chunk list currently holds no mappings
// (the P9 round-trip invariant).
func (l *largeList) empty() bool { return l.head == nil }

// forEach walks every live mapping, most recently mapped first, yielding
// each mapping's base address and its sole chunk.
func (l *largeList) forEach(fn func(base uintptr, c chunkhdr.Chunk)) {
	for m := l.head; m != nil; m = m.next {
		fn(m.base, m.chunk())
	}
}
