package nalloc

import (
	"io"

	"github.com/ngrange/nalloc/pkg/arena"
	"github.com/ngrange/nalloc/pkg/chunkhdr"
	"github.com/ngrange/nalloc/pkg/dumper"
	"github.com/ngrange/nalloc/pkg/pageheap"
)

// Dump writes dump_allocations()'s byte-exact report to w: for each
// arena in class order, each heap in list order (newest first, since
// heaps are prepended), every allocated chunk in address order; then
// every live LARGE mapping; then the accumulated total.
func (a *Allocator) Dump(w io.Writer) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var sections []dumper.Section
	for _, ar := range [...]*arena.Arena{a.tiny, a.small} {
		tag := ar.Class().String()
		ar.ForEachHeap(func(h *pageheap.Heap) {
			sections = append(sections, dumper.Section{
				Tag:     tag,
				Base:    h.FirstChunk().PayloadStart(),
				Entries: allocatedEntries(h),
			})
		})
	}

	a.large.forEach(func(base uintptr, c chunkhdr.Chunk) {
		h := c.Header()
		sections = append(sections, dumper.Section{
			Tag:  "LARGE",
			Base: base,
			Entries: []dumper.Entry{
				{PayloadStart: c.PayloadStart(), UserSize: h.UserSize()},
			},
		})
	})

	return dumper.Write(w, sections)
}

// allocatedEntries collects a heap's allocated chunks, in address order.
func allocatedEntries(h *pageheap.Heap) []dumper.Entry {
	var entries []dumper.Entry
	h.ForEachChunk(func(c chunkhdr.Chunk) {
		hdr := c.Header()
		if !hdr.Flags().Has(chunkhdr.Allocated) {
			return
		}
		entries = append(entries, dumper.Entry{PayloadStart: c.PayloadStart(), UserSize: hdr.UserSize()})
	})
	return entries
}
