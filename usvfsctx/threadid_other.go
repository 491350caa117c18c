//go:build !windows

package usvfsctx

import "golang.org/x/sys/unix"

// ThreadID is the portable stand-in for the Windows build's real
// thread id, used only so dispatch/usvfsctx tests can exercise the
// mutex-group table on any GOOS. unix.Gettid returns the actual kernel
// thread id on Linux/Darwin, which is the closest analogue available
// off Windows.
func ThreadID() uint64 {
	return uint64(unix.Gettid())
}
