// Package dumper renders the allocator's byte-exact diagnostic output.
// It knows nothing about chunks, heaps, or arenas; it only formats the
// sections handed to it, so pkg/nalloc is the only place that
// understands the allocator's own data structures.
package dumper

import (
	"fmt"
	"io"
)

// Entry is one allocated chunk's payload range and recorded user size.
type Entry struct {
	PayloadStart uintptr
	UserSize     uint64
}

// Section is one heap or large mapping: a class tag, a header address,
// and the allocated entries found inside it, in address order.
type Section struct {
	Tag     string
	Base    uintptr
	Entries []Entry
}

// Write renders sections in the diagnostic format:
//
//	<TAG> : 0x<hex base>
//	0x<hex payload-start> - 0x<hex payload-end> : <dec user_size> bytes
//	...
//	Total : <dec total_user_size> bytes
//
// A section with no allocated entries still emits its header line, just
// no per-chunk lines beneath it. Total sums every entry's UserSize across
// every section. Lines are newline-terminated.
func Write(w io.Writer, sections []Section) error {
	var total uint64
	for _, s := range sections {
		if _, err := fmt.Fprintf(w, "%s : 0x%x\n", s.Tag, s.Base); err != nil {
			return err
		}
		for _, e := range s.Entries {
			end := e.PayloadStart + uintptr(e.UserSize)
			if _, err := fmt.Fprintf(w, "0x%x - 0x%x : %d bytes\n", e.PayloadStart, end, e.UserSize); err != nil {
				return err
			}
			total += e.UserSize
		}
	}
	_, err := fmt.Fprintf(w, "Total : %d bytes\n", total)
	return err
}
