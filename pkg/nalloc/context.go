package nalloc

import (
	"sync"

	"github.com/ngrange/nalloc/pkg/arena"
	"github.com/ngrange/nalloc/pkg/pageheap"
	"github.com/ngrange/nalloc/pkg/pagemap"
	"github.com/sirupsen/logrus"
)

// unlimited mirrors pagemap.QueryAddressSpaceLimit's sentinel for "no
// effective cap"; kept local since the constant itself is pagemap-private.
const unlimited = ^uint64(0)

// Allocator is the process-wide context: the two small-size-class arenas,
// the large-chunk list, the total_memory counter and the single mutex
// guarding all of it. The zero value is not usable; construct one with
// New. A process ordinarily needs exactly one live Allocator, reached
// through the package-level wrapper functions in default.go, but nothing
// here prevents constructing more for testing.
type Allocator struct {
	mu          sync.Mutex
	initialized bool

	tiny  *arena.Arena
	small *arena.Arena
	large largeList

	totalMemory uint64

	log logrus.FieldLogger
}

// New constructs an Allocator. log may be nil, in which case a discard
// logger is used; every other public entry point is safe to call
// immediately, matching the spec's lazy-initialization discipline (the
// "initialized" flag below exists for that discipline's sake even though
// this constructor does all the real setup up front — there is no
// separate OS resource to defer acquiring).
func New(log logrus.FieldLogger) *Allocator {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(ioDiscard{})
		log = discard
	}
	return &Allocator{
		tiny:  arena.New(arena.Tiny, MaxTiny),
		small: arena.New(arena.Small, MinLarge),
		large: newLargeList(),
		log:   log,
	}
}

// ioDiscard is a zero-allocation io.Writer sink, used when no logger is
// supplied so logrus has somewhere harmless to write.
type ioDiscard struct{}

func (ioDiscard) Write(p []byte) (int, error) { return len(p), nil }

// ensureInit runs the one-time setup gVisor's MemoryFile.init does under
// its own mutex: idempotent, cheap, and safe to call at the top of every
// public entry point. Called only while mu is held.
func (a *Allocator) ensureInit() {
	if a.initialized {
		return
	}
	a.initialized = true
	a.log.Debug("nalloc: allocator initialized")
}

// reserveLocked reports whether growing total_memory by n bytes would
// still respect the process's address-space soft limit. It does not
// itself account n into total_memory; callers do that once the
// corresponding mapping actually succeeds.
func (a *Allocator) reserveLocked(n uint64) bool {
	limit, err := pagemap.QueryAddressSpaceLimit()
	if err != nil {
		a.log.Debugf("nalloc: could not query address space limit: %v", err)
		return true
	}
	if limit == unlimited {
		return true
	}
	if a.totalMemory+n > limit {
		a.log.Warnf("nalloc: refusing %d-byte request, would exceed %d-byte address space limit", n, limit)
		return false
	}
	return true
}

// arenaFor returns the arena for a small size class.
func (a *Allocator) arenaFor(class arena.Class) *arena.Arena {
	if class == arena.Tiny {
		return a.tiny
	}
	return a.small
}

// growArenaLocked maps a fresh heap into ar, refusing on an address-space
// limit breach or mapping failure, and accounts its size into
// total_memory on success.
func (a *Allocator) growArenaLocked(ar *arena.Arena) bool {
	heapSize := ar.HeapSize()
	if !a.reserveLocked(heapSize) {
		return false
	}
	if _, err := ar.Grow(); err != nil {
		a.log.Debugf("nalloc: %s heap mapping failed: %v", ar.Class(), err)
		return false
	}
	a.totalMemory += heapSize
	a.log.Debugf("nalloc: %s arena grew by %d-byte heap (len=%d)", ar.Class(), heapSize, ar.Len())
	return true
}

// findOwner locates the heap and arena owning addr, if any.
func (a *Allocator) findOwner(addr uintptr) (*pageheap.Heap, *arena.Arena, bool) {
	if h, ok := a.tiny.FindHeap(addr); ok {
		return h, a.tiny, true
	}
	if h, ok := a.small.FindHeap(addr); ok {
		return h, a.small, true
	}
	return nil, nil, false
}
