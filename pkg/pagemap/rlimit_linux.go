package pagemap

import "golang.org/x/sys/unix"

// unlimited is returned by QueryAddressSpaceLimit when the process's
// address-space soft limit is RLIM_INFINITY.
const unlimited = ^uint64(0)

// QueryAddressSpaceLimit returns the current soft limit (RLIMIT_AS) on
// this process's virtual-memory size, in bytes. A return value of
// ^uint64(0) means no limit is in effect.
func QueryAddressSpaceLimit() (uint64, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &rlim); err != nil {
		return 0, err
	}
	if rlim.Cur == unix.RLIM_INFINITY {
		return unlimited, nil
	}
	return rlim.Cur, nil
}
