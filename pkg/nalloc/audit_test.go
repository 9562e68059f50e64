package nalloc

import (
	"math/rand"
	"testing"
	"unsafe"

	"gotest.tools/v3/assert"
)

// TestAuditAcrossQuantifiedSizeSweep exercises the "allocate(r) then
// release preserves all invariants" quantified property across a
// representative spread of request sizes, including the TINY/SMALL/LARGE
// class boundaries and the largest sizes practical for a single in-process
// test run.
func TestAuditAcrossQuantifiedSizeSweep(t *testing.T) {
	a := newTestAllocator()
	sizes := []uint64{0, 1, 15, 16, 17, 96, 97, 127, 128, 129, 4064, 4065, 4095, 4096, 4097, 1 << 20}

	for _, s := range sizes {
		p := a.Allocate(s)
		assert.Assert(t, p != nil, "Allocate(%d) returned nil", s)

		violations := a.Audit()
		assert.Assert(t, len(violations) == 0, "Audit found violations after Allocate(%d): %v", s, violations)

		a.Release(p)
		violations = a.Audit()
		assert.Assert(t, len(violations) == 0, "Audit found violations after releasing Allocate(%d): %v", s, violations)
	}
	assert.Assert(t, a.RoundTripClean(), "allocator did not collapse cleanly after the size sweep")
}

// TestAuditAfterSeededRandomSequence checks that invariants P1-P8 hold
// between calls over a small, deterministic pseudorandom sequence of
// allocate and release calls (no reallocate), auditing after every
// single call rather than only at the end.
func TestAuditAfterSeededRandomSequence(t *testing.T) {
	a := newTestAllocator()
	rng := rand.New(rand.NewSource(12345))

	type block struct {
		ptr  unsafe.Pointer
		size uint64
	}
	var live []block

	for i := 0; i < 2000; i++ {
		switch rng.Intn(3) {
		case 0, 1:
			size := uint64(rng.Intn(64 * 1024))
			p := a.Allocate(size)
			assert.Assert(t, p != nil, "Allocate(%d) returned nil at step %d", size, i)
			live = append(live, block{ptr: p, size: size})
		case 2:
			if len(live) == 0 {
				continue
			}
			j := rng.Intn(len(live))
			b := live[j]
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
			a.Release(b.ptr)
		}

		violations := a.Audit()
		assert.Assert(t, len(violations) == 0, "Audit found violations at step %d: %v", i, violations)
	}

	for _, b := range live {
		a.Release(b.ptr)
	}
	assert.Assert(t, a.RoundTripClean(), "allocator did not collapse cleanly after the random sequence")
}
