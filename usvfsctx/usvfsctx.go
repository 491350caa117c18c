// Package usvfsctx implements the Context / Shared State component
// (C5, §4.5): the single per-process instance tying together the
// Redirection Tree, the current-directory string, per-handle auxiliary
// maps, the deferred-task list, and the mutex-group reentrancy table.
//
// Grounded on avfs's MemFS/MountFS configuration idiom
// (memfs_cfg.go's New(opts ...Option)) for construction, and on
// curdir.go for the current-directory field this package now owns.
package usvfsctx

import (
	"sync"

	"github.com/deckarep/golang-set/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/usvfs-go/usvfs/tree"
)

// InitParameters configures a Context at create/connect time (§6).
type InitParameters struct {
	InstanceName       string
	LogLevel           logrus.Level
	ProcessBlacklisted bool
}

// Option mutates a Context at construction time, in avfs's
// functional-options idiom (memfs.Option).
type Option func(*Context)

// WithInstanceName sets the shared-memory instance name a connecting
// child must use to attach to the same tree (§9).
func WithInstanceName(name string) Option {
	return func(c *Context) {
		c.params.InstanceName = name
	}
}

// WithLogLevel sets the logrus level the Context's logger is created
// with.
func WithLogLevel(level logrus.Level) Option {
	return func(c *Context) {
		c.params.LogLevel = level
	}
}

// searchHandleEntry is the per-handle side map value remembered across
// a directory-enumeration open/query pair (§4.4 "Directory open for
// enumeration").
type searchHandleEntry struct {
	OriginalQueryPath string
}

// Context is the single shared-state instance per process (§4.5).
type Context struct {
	params InitParameters
	log    *logrus.Logger

	fwd *tree.Tree
	inv *tree.Tree

	cwdMu sync.RWMutex
	cwd   string

	searchHandles *gocache.Cache // uintptr handle -> *searchHandleEntry

	deferredMu sync.Mutex
	deferred   []func()

	groups *groupTable

	// ProcessBlacklist is scaffolded per §9 ("process blacklisting is
	// disabled") but never consulted by inject: the set exists and can
	// be populated, there is simply no enforcement point wired to it
	// yet.
	ProcessBlacklist mapset.Set[uint32]

	ring *LogRing
}

// New constructs a Context with an empty tree, ready for create/connect
// (§4.5 "Single instance per process").
func New(opts ...Option) *Context {
	c := &Context{
		fwd:              tree.New(),
		inv:              tree.New(),
		cwd:              `C:\`,
		searchHandles:    gocache.New(gocache.NoExpiration, 0),
		groups:           newGroupTable(),
		ProcessBlacklist: mapset.NewSet[uint32](),
		ring:             NewLogRing(256),
		log:              logrus.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log.SetLevel(c.params.LogLevel)

	return c
}

// Params returns the parameters the Context was created with.
func (c *Context) Params() InitParameters {
	return c.params
}

// Log returns the Context's structured logger, used by dispatch and
// inject to emit the hook trace lines required by §4.4 item 7.
func (c *Context) Log() *logrus.Logger {
	return c.log
}

// Tree returns the forward (virtual -> physical) Redirection Tree.
func (c *Context) Tree() *tree.Tree {
	return c.fwd
}

// InverseTree returns the inverse (physical -> virtual) tree used by
// GetModuleFileName's reroute(inverse=true) (§4.3 step 3).
func (c *Context) InverseTree() *tree.Tree {
	return c.inv
}

// AddFile records a virtual -> physical mapping in the forward tree
// and mirrors it into the inverse tree in the same call, so a later
// GetModuleFileName(physicalPath) can translate back to virtualPath
// without every call site having to remember to keep the two trees in
// sync by hand (§4.3 step 3, glossary "Inverse tree"). Argument order
// matches tree.AddFile (virtual first).
func (c *Context) AddFile(virtualPath, physicalPath string) (tree.NodeRef, error) {
	n, err := c.fwd.AddFile(virtualPath, physicalPath)
	if err != nil {
		return nil, err
	}

	if _, invErr := c.inv.AddFile(physicalPath, virtualPath); invErr != nil {
		c.log.WithError(invErr).Warn("inverse tree add_file failed")
	}

	return n, nil
}

// LinkFile is AddFile with tree.LinkFile's argument order (physical
// source first), for callers that think in "link this real file into
// the virtual tree" terms rather than "add this virtual mapping".
func (c *Context) LinkFile(physicalSource, virtualDest string) (tree.NodeRef, error) {
	return c.AddFile(virtualDest, physicalSource)
}

// LinkDirectory is LinkFile's counterpart for link_directory_static:
// it links the directory into the forward tree and mirrors the
// directory itself (not its recursively-inserted children, which
// GetModuleFileName never needs to resolve back) into the inverse
// tree.
func (c *Context) LinkDirectory(physicalSource, virtualDest string, flags tree.LinkFlags, readDir tree.DirReader) (tree.NodeRef, error) {
	n, err := c.fwd.LinkDirectoryStatic(physicalSource, virtualDest, flags, readDir)
	if err != nil {
		return n, err
	}

	if _, invErr := c.inv.AddFile(physicalSource, virtualDest); invErr != nil {
		c.log.WithError(invErr).Warn("inverse tree add_file failed")
	}

	return n, nil
}

// Unlink removes n from the forward tree and, when it carried a link
// target, its mirrored entry from the inverse tree.
func (c *Context) Unlink(n tree.NodeRef) error {
	if n == nil {
		return c.fwd.RemoveFromTree(n)
	}

	physical := n.LinkTarget()
	virtual := n.Path()

	if err := c.fwd.RemoveFromTree(n); err != nil {
		return err
	}

	if physical != "" {
		if invNode, ok := c.inv.FindNode(physical); ok && invNode.LinkTarget() == virtual {
			_ = c.inv.RemoveFromTree(invNode)
		}
	}

	return nil
}

// CWD returns the process's actual (physical) current directory, the
// field avfs's curdir.go tracked for its VFS equivalent.
func (c *Context) CWD() string {
	c.cwdMu.RLock()
	defer c.cwdMu.RUnlock()

	return c.cwd
}

// SetCWD updates the actual current directory.
func (c *Context) SetCWD(path string) {
	c.cwdMu.Lock()
	defer c.cwdMu.Unlock()

	c.cwd = path
}

// RememberSearchHandle records the original virtual query path a
// directory-enumeration handle was opened with, so the subsequent
// FindNextFile-equivalent call can merge in virtual children (§4.4).
func (c *Context) RememberSearchHandle(handle uintptr, originalQueryPath string) {
	c.searchHandles.SetDefault(handleKey(handle), &searchHandleEntry{OriginalQueryPath: originalQueryPath})
}

// SearchHandleQueryPath returns the query path remembered for handle,
// if any.
func (c *Context) SearchHandleQueryPath(handle uintptr) (string, bool) {
	v, ok := c.searchHandles.Get(handleKey(handle))
	if !ok {
		return "", false
	}

	return v.(*searchHandleEntry).OriginalQueryPath, true
}

// ForgetSearchHandle drops a handle's remembered query path, called
// when the handle is closed.
func (c *Context) ForgetSearchHandle(handle uintptr) {
	c.searchHandles.Delete(handleKey(handle))
}

func handleKey(handle uintptr) string {
	const base = 36

	return "h" + uitoa(uint64(handle), base)
}

func uitoa(v uint64, base uint64) string {
	if v == 0 {
		return "0"
	}

	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

	var buf [64]byte

	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v%base]
		v /= base
	}

	return string(buf[i:])
}

// Defer appends a task to the deferred-task list that ExitProcess must
// join before teardown (§4.4 "ExitProcess", §4.5 "Deferred tasks").
func (c *Context) Defer(task func()) {
	c.deferredMu.Lock()
	defer c.deferredMu.Unlock()

	c.deferred = append(c.deferred, task)
}

// JoinDeferred runs and clears every deferred task, in the order they
// were registered.
func (c *Context) JoinDeferred() {
	c.deferredMu.Lock()
	tasks := c.deferred
	c.deferred = nil
	c.deferredMu.Unlock()

	for _, task := range tasks {
		task()
	}
}

// Groups returns the mutex-group reentrancy table (§5).
func (c *Context) Groups() *groupTable {
	return c.groups
}

// Logs drains the bounded ring of formatted log entries for
// GetLogMessages (§6 expansion).
func (c *Context) Logs() []string {
	return c.ring.Drain()
}

// LogEntry appends a formatted line to the bounded ring, called by the
// dispatch package's trace.
func (c *Context) LogEntry(line string) {
	c.ring.Add(line)
}

// Disconnect joins every deferred task and clears the per-handle
// search map (§4.6 "Teardown"). It does not clear the trees, detach
// from any shared-memory segment, or uninstall hooks.
func (c *Context) Disconnect() {
	c.JoinDeferred()
	c.searchHandles.Flush()
}
