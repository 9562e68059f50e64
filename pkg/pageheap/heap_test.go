package pageheap

import "testing"

func TestHeapSizeAmortizesHundredChunks(t *testing.T) {
	const representative = 128
	size := HeapSize(representative)
	if size < 100*representative {
		t.Fatalf("HeapSize(%d) = %d, smaller than 100x representative", representative, size)
	}
	if size%4096 != 0 {
		t.Fatalf("HeapSize(%d) = %d, not page-aligned", representative, size)
	}
}

func TestCreateStartsWithOneFreeChunkSpanningPayload(t *testing.T) {
	h, err := Create(HeapSize(128))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Destroy()

	if !h.SoleChunkSpansPayload() {
		t.Fatalf("freshly created heap does not have a sole chunk spanning its payload")
	}
	c := h.FirstChunk()
	if !h.Contains(c.PayloadStart()) {
		t.Fatalf("heap does not contain its own first chunk's payload")
	}
}

func TestFindFitOnFreshHeap(t *testing.T) {
	h, err := Create(HeapSize(128))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Destroy()

	c, ok := h.FindFit(64)
	if !ok {
		t.Fatalf("FindFit(64) found nothing on a fresh heap")
	}
	if c != h.FirstChunk() {
		t.Fatalf("FindFit(64) = %v, want the sole chunk %v", c, h.FirstChunk())
	}
	if _, ok := h.FindFit(h.Size() * 2); ok {
		t.Fatalf("FindFit found a chunk larger than the whole heap")
	}
}
