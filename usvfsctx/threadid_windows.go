//go:build windows

package usvfsctx

import "golang.org/x/sys/windows"

// ThreadID returns the real OS thread id the calling goroutine is
// currently pinned to, the key groupTable reentrancy counters are kept
// under (§5). Hooked calls arrive on whatever OS thread Windows or the
// host process happened to schedule them on, so this must be the
// actual kernel thread id and not anything goroutine-local.
func ThreadID() uint64 {
	return uint64(windows.GetCurrentThreadId())
}
