package nalloc

import (
	"bytes"
	"strings"
	"testing"
	"unsafe"

	"github.com/ngrange/nalloc/pkg/chunkhdr"
)

func newTestAllocator() *Allocator {
	return New(nil)
}

func bytesAt(ptr unsafe.Pointer, n uint64) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}

func fill(ptr unsafe.Pointer, n uint64, b byte) {
	buf := bytesAt(ptr, n)
	for i := range buf {
		buf[i] = b
	}
}

func TestAllocateWriteReleaseRoundTrip(t *testing.T) {
	a := newTestAllocator()
	p := a.Allocate(12)
	if p == nil {
		t.Fatal("Allocate(12) returned nil")
	}
	copy(bytesAt(p, 12), "Hello World\n")
	if got := string(bytesAt(p, 12)); got != "Hello World\n" {
		t.Fatalf("payload = %q, want %q", got, "Hello World\n")
	}
	a.Release(p)

	var buf bytes.Buffer
	if err := a.Dump(&buf); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "Total : 0 bytes\n") {
		t.Fatalf("dump after release = %q, want it to end with Total : 0 bytes", buf.String())
	}
	if violations := a.Audit(); len(violations) != 0 {
		t.Fatalf("Audit found violations after release: %v", violations)
	}
}

func TestAllocateZeroSizeTreatedAsOne(t *testing.T) {
	a := newTestAllocator()
	p := a.Allocate(0)
	if p == nil {
		t.Fatal("Allocate(0) returned nil, want a non-null result")
	}
	a.Release(p)
}

func TestReallocateGrowthPreservesPrefix(t *testing.T) {
	a := newTestAllocator()
	p := a.Allocate(60)
	if p == nil {
		t.Fatal("Allocate(60) returned nil")
	}
	fill(p, 60, 'A')

	q := a.Reallocate(p, 90)
	if q == nil {
		t.Fatal("Reallocate(p, 90) returned nil")
	}
	prefix := bytesAt(q, 60)
	for i, b := range prefix {
		if b != 'A' {
			t.Fatalf("byte %d = %q, want 'A'", i, b)
		}
	}
	a.Release(q)
}

func TestReallocateShrinkUpdatesInPlace(t *testing.T) {
	a := newTestAllocator()
	p := a.Allocate(64)
	q := a.Reallocate(p, 32)
	if q != p {
		t.Fatalf("Reallocate to a smaller size moved the pointer: %p != %p", q, p)
	}
	a.Release(q)
}

func TestReallocateNilDispatchesToAllocate(t *testing.T) {
	a := newTestAllocator()
	p := a.Reallocate(nil, 16)
	if p == nil {
		t.Fatal("Reallocate(nil, 16) returned nil")
	}
	a.Release(p)
}

func TestReallocateZeroSizeDispatchesToRelease(t *testing.T) {
	a := newTestAllocator()
	p := a.Allocate(16)
	if got := a.Reallocate(p, 0); got != nil {
		t.Fatalf("Reallocate(p, 0) = %p, want nil", got)
	}
	if violations := a.Audit(); len(violations) != 0 {
		t.Fatalf("Audit found violations after reallocate-to-zero: %v", violations)
	}
}

func TestReleaseThenReallocCrossesToLarge(t *testing.T) {
	a := newTestAllocator()
	p := a.Allocate(32)
	fill(p, 32, 'B')

	q := a.Reallocate(p, 8192)
	if q == nil {
		t.Fatal("Reallocate(p, 8192) returned nil")
	}
	prefix := bytesAt(q, 32)
	for i, b := range prefix {
		if b != 'B' {
			t.Fatalf("byte %d = %q, want 'B'", i, b)
		}
	}
	c, ok := chunkFromPayload(q)
	if !ok || !c.Header().Flags().Has(chunkhdr.Mapped) {
		t.Fatalf("expected the grown allocation to be a Mapped (LARGE) chunk")
	}
	a.Release(q)
}

// TestReallocateFromSmallCrossesToLarge guards against routing a
// SMALL-arena chunk's in-place growth path into a plain in-heap chunk
// just because the growth target is still arena.Small under
// SelectClass's TINY-vs-SMALL-only distinction. Any growth target at or
// above MinLarge must become a dedicated Mapped mapping, never an
// in-heap chunk, regardless of whether a same-class neighbor chunk was
// free and large enough to absorb in place.
func TestReallocateFromSmallCrossesToLarge(t *testing.T) {
	a := newTestAllocator()
	p := a.Allocate(3000)
	if p == nil {
		t.Fatal("Allocate(3000) returned nil")
	}
	fill(p, 3000, 'C')

	q := a.Reallocate(p, 8000)
	if q == nil {
		t.Fatal("Reallocate(p, 8000) returned nil")
	}
	prefix := bytesAt(q, 3000)
	for i, b := range prefix {
		if b != 'C' {
			t.Fatalf("byte %d = %q, want 'C'", i, b)
		}
	}
	c, ok := chunkFromPayload(q)
	if !ok || !c.Header().Flags().Has(chunkhdr.Mapped) {
		t.Fatalf("expected a >= MinLarge reallocate target to become a Mapped (LARGE) chunk, not an in-heap chunk")
	}
	a.Release(q)
}

func TestReleaseThreeCollapsesHeapToOneFreeChunk(t *testing.T) {
	a := newTestAllocator()
	p1 := a.Allocate(64)
	p2 := a.Allocate(64)
	p3 := a.Allocate(64)

	a.Release(p2)
	a.Release(p1)
	a.Release(p3)

	if a.tiny.Len() != 1 {
		t.Fatalf("tiny arena has %d heaps after releasing everything, want 1", a.tiny.Len())
	}
	h := a.tiny.Head()
	if !h.SoleChunkSpansPayload() {
		t.Fatalf("remaining TINY heap does not have a sole chunk spanning its payload")
	}
}

func TestAuditFindsNoViolationsUnderMixedWorkload(t *testing.T) {
	a := newTestAllocator()
	sizes := []uint64{8, 100, 4000, 9000, 16, 2000, 64}
	var ptrs []unsafe.Pointer
	for _, s := range sizes {
		p := a.Allocate(s)
		if p == nil {
			t.Fatalf("Allocate(%d) returned nil", s)
		}
		ptrs = append(ptrs, p)
	}
	if violations := a.Audit(); len(violations) != 0 {
		t.Fatalf("Audit found violations mid-workload: %v", violations)
	}
	for _, p := range ptrs {
		a.Release(p)
	}
	if violations := a.Audit(); len(violations) != 0 {
		t.Fatalf("Audit found violations after releasing everything: %v", violations)
	}
	if !a.RoundTripClean() {
		t.Fatal("RoundTripClean() = false after releasing every outstanding pointer")
	}
}

func TestReleaseNilIsNoOp(t *testing.T) {
	a := newTestAllocator()
	a.Release(nil) // must not panic
}

func TestReleaseOfMisalignedPointerIsNoOp(t *testing.T) {
	a := newTestAllocator()
	p := a.Allocate(64)
	misaligned := unsafe.Pointer(uintptr(p) + 1)
	a.Release(misaligned) // must not panic or corrupt state
	if violations := a.Audit(); len(violations) != 0 {
		t.Fatalf("Audit found violations after a rejected misaligned release: %v", violations)
	}
	a.Release(p)
}

func TestDoubleReleaseIsNoOp(t *testing.T) {
	a := newTestAllocator()
	p := a.Allocate(64)
	a.Release(p)
	a.Release(p) // must not panic or double-unlink
	if violations := a.Audit(); len(violations) != 0 {
		t.Fatalf("Audit found violations after a double release: %v", violations)
	}
}
