package usvfsctx

import "sync"

// Group identifies one of the fixed mutex groups the dispatcher enters
// around every hooked call (§5).
type Group int

const (
	OpenFile Group = iota
	FileAttributes
	DeleteFile
	ShellFileOp
	SearchFiles
	FindFiles
	LoadLibrary
	CreateProcess
	FullPathname
	AllGroups
	groupCount
)

func (g Group) String() string {
	names := [...]string{
		"OPEN_FILE", "FILE_ATTRIBUTES", "DELETE_FILE", "SHELL_FILEOP",
		"SEARCH_FILES", "FIND_FILES", "LOAD_LIBRARY", "CREATE_PROCESS",
		"FULL_PATHNAME", "ALL_GROUPS",
	}

	if int(g) < 0 || int(g) >= len(names) {
		return "UNKNOWN_GROUP"
	}

	return names[g]
}

// groupCounters holds the per-thread reentrancy counters for every
// group, one struct per real OS thread (§5 "thread-local reentrancy
// counter").
type groupCounters struct {
	counts [groupCount]int
}

// groupTable maps a real OS thread id to its groupCounters. Keyed by
// the actual OS thread id (via ThreadID, behind a build tag) rather
// than any goroutine-local notion: hooked calls in this engine's real
// deployment run on arbitrary OS threads created by the host process
// or by the Windows loader, not on goroutines the engine scheduled
// itself, so a goroutine-local design would track the wrong unit of
// reentrancy (see DESIGN.md).
type groupTable struct {
	mu    sync.Mutex
	byTID map[uint64]*groupCounters
}

func newGroupTable() *groupTable {
	return &groupTable{byTID: make(map[uint64]*groupCounters)}
}

func (t *groupTable) counters(tid uint64) *groupCounters {
	t.mu.Lock()
	defer t.mu.Unlock()

	gc, ok := t.byTID[tid]
	if !ok {
		gc = &groupCounters{}
		t.byTID[tid] = gc
	}

	return gc
}

// Enter raises the reentrancy counter for group (and, since entering
// ALL_GROUPS raises every counter, for every group when group ==
// AllGroups) on the calling OS thread, returning whether the group was
// already active — i.e. whether this is a reentrant call that must
// pass through to the original API unrerouted (§5).
func (t *groupTable) Enter(tid uint64, group Group) (alreadyActive bool) {
	gc := t.counters(tid)

	t.mu.Lock()
	defer t.mu.Unlock()

	alreadyActive = gc.counts[group] > 0

	if group == AllGroups {
		for i := range gc.counts {
			gc.counts[i]++
		}
	} else {
		gc.counts[group]++
		gc.counts[AllGroups]++
	}

	return alreadyActive
}

// Exit lowers the reentrancy counter raised by the matching Enter.
func (t *groupTable) Exit(tid uint64, group Group) {
	gc := t.counters(tid)

	t.mu.Lock()
	defer t.mu.Unlock()

	if group == AllGroups {
		for i := range gc.counts {
			if gc.counts[i] > 0 {
				gc.counts[i]--
			}
		}

		return
	}

	if gc.counts[group] > 0 {
		gc.counts[group]--
	}

	if gc.counts[AllGroups] > 0 {
		gc.counts[AllGroups]--
	}
}
