//go:build unix

package dump

import "golang.org/x/sys/unix"

// advise hints the kernel that the mapping is read front to back.
// The hint is advisory; failures are ignored.
func advise(b []byte) {
	if len(b) == 0 {
		return
	}
	_ = unix.Madvise(b, unix.MADV_SEQUENTIAL)
}
