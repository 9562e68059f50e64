package arena

import "testing"

func TestSelectClass(t *testing.T) {
	const maxTiny = 128
	if got := SelectClass(16, maxTiny); got != Tiny {
		t.Fatalf("SelectClass(16) = %v, want Tiny", got)
	}
	if got := SelectClass(2048, maxTiny); got != Small {
		t.Fatalf("SelectClass(2048) = %v, want Small", got)
	}
}

func TestGrowPrependsNewestFirst(t *testing.T) {
	a := New(Tiny, 128)
	h1, err := a.Grow()
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	h2, err := a.Grow()
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if a.Head() != h2 {
		t.Fatalf("Head() = %p, want most recently grown heap %p", a.Head(), h2)
	}
	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}
	_ = h1
}

func TestFindHeapAndFindFit(t *testing.T) {
	a := New(Tiny, 128)
	h, err := a.Grow()
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	c, ok := h.FindFit(64)
	if !ok {
		t.Fatalf("FindFit on fresh heap failed")
	}
	found, ok := a.FindHeap(c.PayloadStart())
	if !ok || found != h {
		t.Fatalf("FindHeap = (%p, %v), want (%p, true)", found, ok, h)
	}
}

func TestRemoveHeap(t *testing.T) {
	a := New(Tiny, 128)
	h1, _ := a.Grow()
	h2, _ := a.Grow()

	if !a.RemoveHeap(h1) {
		t.Fatalf("RemoveHeap(h1) failed")
	}
	if a.Len() != 1 {
		t.Fatalf("Len() = %d after removing one of two heaps, want 1", a.Len())
	}
	if a.Head() != h2 {
		t.Fatalf("Head() = %p after removing h1, want remaining heap %p", a.Head(), h2)
	}
}
