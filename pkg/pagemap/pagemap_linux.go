// Package pagemap is the allocator's only collaborator with the operating
// system: an anonymous page-mapping primitive and a query of the
// process's virtual-address-space soft limit. Nothing above this package
// knows that pages come from mmap(2); it only sees whole, page-aligned,
// zero-filled byte ranges.
package pagemap

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// PageSize is the host's page size, queried once at process start.
var PageSize = unix.Getpagesize()

// MapPages returns an n-byte, page-aligned, zero-filled, read/write
// region obtained from the OS. n need not be a multiple of PageSize: the
// OS maps whole pages, and the returned slice has length n.
// The returned slice's header is the only handle to the mapping; keep it
// around and pass it back to UnmapPages to release it.
func MapPages(n uint64) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, errors.Wrap(err, "pagemap: mmap")
	}
	return b, nil
}

// UnmapPages releases a region previously returned by MapPages. It must be
// called with the exact slice MapPages returned (not a sub-slice).
func UnmapPages(b []byte) error {
	if err := unix.Munmap(b); err != nil {
		return errors.Wrap(err, "pagemap: munmap")
	}
	return nil
}
