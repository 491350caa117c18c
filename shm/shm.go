// Package shm allocates the named shared-memory segment the parent
// and an injected child attach the same Redirection Tree through (§9
// "named shared memory region").
//
// Grounded on avfs's build-tag split for OS-specific code
// (avfs used separate _windows/_linux/_other files for anything that
// couldn't be expressed portably, e.g. its former umask_windows.go /
// umask_unix.go pair) — Region itself and the naming helper are
// portable; Create/Open are implemented per-GOOS in shm_windows.go and
// shm_other.go.
package shm

import "github.com/google/uuid"

// Region is a mapped shared-memory segment.
type Region interface {
	// Name is the segment's system-visible name, passed to a child
	// process so it can Open the same region.
	Name() string

	// Bytes returns the mapped memory as a byte slice of Size() bytes.
	Bytes() []byte

	// Size returns the region's size in bytes.
	Size() int

	// Close unmaps the region. The underlying OS object is destroyed
	// once the last attached process closes it (§6 "Persisted state:
	// none").
	Close() error
}

// NewName derives a shared-memory segment name from an instance name,
// generating a fresh UUID-based name when instanceName is empty (§4.8,
// §9): "both processes attach to the same storage" via a name derived
// from the parent's library parameters.
func NewName(instanceName string) string {
	if instanceName != "" {
		return "usvfs-" + instanceName
	}

	return "usvfs-" + uuid.NewString()
}
