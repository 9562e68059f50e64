package pagemap

import "testing"

func TestMapPagesReturnsZeroedPageAlignedRegion(t *testing.T) {
	n := uint64(PageSize) * 2
	b, err := MapPages(n)
	if err != nil {
		t.Fatalf("MapPages: %v", err)
	}
	defer UnmapPages(b)

	if uint64(len(b)) != n {
		t.Fatalf("len(b) = %d, want %d", len(b), n)
	}
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d = %d, want a zero-filled mapping", i, v)
		}
	}
}

func TestQueryAddressSpaceLimitSucceeds(t *testing.T) {
	limit, err := QueryAddressSpaceLimit()
	if err != nil {
		t.Fatalf("QueryAddressSpaceLimit: %v", err)
	}
	if limit == 0 {
		t.Fatalf("QueryAddressSpaceLimit() = 0, want either a positive limit or the unlimited sentinel")
	}
}
