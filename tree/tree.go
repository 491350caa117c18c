// Package tree implements the Redirection Tree (§4.2), the in-memory
// map from virtual Windows paths to the physical paths that should
// answer for them.
//
// Grounded on avfs's vfs/mountfs package (avfs/vfs/mountfs/
// mountfs.go, mountfs_internal.go, mountfs_types.go): mountfs already
// solves "one VFS mounted at a path inside another", which is the same
// shape of problem as "one physical path substituted for a virtual
// one" — a prefix tree of named nodes, walked segment by segment, with
// the deepest matching node winning. USVFS's tree goes further:
// mountfs's nodes name an entire mounted filesystem, while a usvfs node
// names a single physical path and additionally remembers whether it
// was asked to materialize new files underneath itself
// (FlagCreateTarget, absent from mountfs).
package tree

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/usvfs-go/usvfs/canonpath"
	"github.com/usvfs-go/usvfs/winerr"
)

// LinkFlags controls the behavior of the Link* operations (§4.2).
type LinkFlags uint32

const (
	// LinkFlagRecursive makes LinkDirectoryStatic walk the physical
	// source directory and insert one node per descendant, instead of
	// linking only the directory itself.
	LinkFlagRecursive LinkFlags = 1 << iota

	// LinkFlagCreateTarget sets FlagCreateTarget on the inserted
	// directory node.
	LinkFlagCreateTarget
)

// Tree is the Redirection Tree (§4.2).
//
// A single sync.RWMutex guards the whole tree, departing from avfs's
// per-node locking (memfs_internal.go gives every baseNode
// its own sync.RWMutex, since file content can mutate independently of
// directory shape). The engine's own find_node/visit_path calls are
// read operations that must observe a consistent snapshot of an entire
// path's ancestry, and its writes (add_file, link_*,
// remove_from_tree) are rare compared to the lookup traffic from
// hooked Win32 calls — a single RWMutex is both simpler and is the
// locking granularity §5 calls for ("single reader-writer lock for the
// whole tree, not per-node").
type Tree struct {
	mu   sync.RWMutex
	root *Node

	log *logrus.Entry
}

// New creates an empty Redirection Tree.
func New() *Tree {
	return &Tree{
		root: &Node{name: "", isDirectory: true},
		log:  logrus.WithField("component", "tree"),
	}
}

// walk finds the deepest existing node along path's segments, stopping
// short of segments that don't exist. It returns the node, the index
// into segs of the first unresolved segment (len(segs) if path fully
// resolved), and the segments themselves.
func (t *Tree) walk(path string) (node *Node, segs []string, resolved int) {
	segs = canonpath.AllSegments(path)

	cur := t.root
	i := 0

	for i < len(segs) {
		next := cur.child(segs[i])
		if next == nil {
			break
		}

		cur = next
		i++
	}

	return cur, segs, i
}

// FindNode looks up the node governing path (§4.2 find_node).
//
// Per the tie-break rule in §4.2 ("Ordering and tie-breaks"): a node
// that was only ever created as an intermediate directory on the way
// to some deeper link — it has no link target and was never the
// direct target of add_file/link_file/link_directory_static — is not
// itself considered "found"; only nodes that carry an explicit link
// target, or directories created directly by link_directory_static,
// count.
func (t *Tree) FindNode(path string) (NodeRef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node, segs, resolved := t.walk(path)
	if resolved != len(segs) {
		return nil, false
	}

	if node == t.root {
		return nil, false
	}

	if !node.isDirectory && node.linkTarget == "" {
		return nil, false
	}

	return node, true
}

// VisitPath calls visit once for every existing node along path, from
// the outermost (volume) node to the deepest match, in that order
// (§4.2 visit_path — used by the rerouter to find the nearest ancestor
// with FlagCreateTarget).
func (t *Tree) VisitPath(path string, visit func(NodeRef)) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	segs := canonpath.AllSegments(path)

	cur := t.root
	for i := 0; i < len(segs); i++ {
		next := cur.child(segs[i])
		if next == nil {
			return
		}

		cur = next
		visit(cur)
	}
}

// mkdirAll creates (or reuses) the chain of pure directory nodes down
// to, but not including, the final segment, returning the parent under
// which the final segment should be inserted.
func (t *Tree) mkdirAll(segs []string) *Node {
	cur := t.root

	for _, seg := range segs[:len(segs)-1] {
		next := cur.child(seg)
		if next == nil {
			next = &Node{name: seg}
			cur.addChild(next)
		}

		cur = next
	}

	return cur
}

// AddFile inserts (or replaces) a single virtual-path -> physical-path
// mapping (§4.2 add_file, §4.4 resolved argument order — see
// DESIGN.md).
func (t *Tree) AddFile(virtualPath, physicalPath string) (NodeRef, error) {
	segs := canonpath.AllSegments(virtualPath)
	if len(segs) == 0 {
		return nil, fmt.Errorf("tree: add_file: empty virtual path")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent := t.mkdirAll(segs)
	node := &Node{name: segs[len(segs)-1], linkTarget: physicalPath}
	parent.addChild(node)

	t.log.WithFields(logrus.Fields{
		"virtual":  virtualPath,
		"physical": physicalPath,
	}).Debug("add_file")

	return node, nil
}

// LinkFile is the single-file form of link_directory_static (§4.2):
// insert one node whose link target is physicalSource at virtualDest.
// It is add_file under a name matching the original engine's
// vocabulary for a user-initiated, as opposed to hook-initiated, link.
func (t *Tree) LinkFile(physicalSource, virtualDest string) (NodeRef, error) {
	return t.AddFile(virtualDest, physicalSource)
}

// LinkDirectoryStatic links a physical directory into the tree at
// virtualDest (§4.2). With LinkFlagRecursive and a non-nil readDir it
// also walks physicalSource (via readDir) and inserts one node per
// descendant file and directory, preserving relative layout. Otherwise
// only the directory node itself is inserted; files underneath get no
// nodes of their own, so reroute.Do does not rewrite paths below the
// directory (reroute.New still places new files there when the node
// carries FlagCreateTarget).
func (t *Tree) LinkDirectoryStatic(physicalSource, virtualDest string, flags LinkFlags, readDir DirReader) (NodeRef, error) {
	segs := canonpath.AllSegments(virtualDest)
	if len(segs) == 0 {
		return nil, fmt.Errorf("tree: link_directory_static: empty virtual path")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent := t.mkdirAll(segs)

	node := &Node{
		name:        segs[len(segs)-1],
		linkTarget:  physicalSource,
		isDirectory: true,
	}

	if flags&LinkFlagCreateTarget != 0 {
		node.flags |= FlagCreateTarget
	}

	parent.addChild(node)

	if flags&LinkFlagRecursive != 0 && readDir != nil {
		if err := t.linkChildren(node, physicalSource, readDir); err != nil {
			return node, err
		}
	}

	t.log.WithFields(logrus.Fields{
		"virtual":   virtualDest,
		"physical":  physicalSource,
		"recursive": flags&LinkFlagRecursive != 0,
	}).Debug("link_directory_static")

	return node, nil
}

// DirReader abstracts a physical-directory listing so the tree package
// stays free of any direct os.* dependency and remains testable with
// an in-memory fake (usvfstest), matching the way avfs isolates
// syscall-backed behavior behind small interfaces (see
// utils_windows.go's UMask indirection).
type DirReader func(physicalDir string) ([]DirEntry, error)

// DirEntry is one entry returned by a DirReader.
type DirEntry struct {
	Name  string
	IsDir bool
}

func (t *Tree) linkChildren(parent *Node, physicalDir string, readDir DirReader) error {
	entries, err := readDir(physicalDir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		child := &Node{
			name:        e.Name,
			linkTarget:  physicalDir + string(canonpath.Separator) + e.Name,
			isDirectory: e.IsDir,
		}
		parent.addChild(child)

		if e.IsDir {
			if err := t.linkChildren(child, child.linkTarget, readDir); err != nil {
				return err
			}
		}
	}

	return nil
}

// RemoveFromTree detaches n from the tree (§4.2 remove_from_tree). A
// node already removed, or never inserted, is rejected with
// winerr.FileNotFound — mirroring the "operate on a path with no tree
// entry" failure mode real hooked calls see when asked to undo a
// mapping that isn't there.
func (t *Tree) RemoveFromTree(n NodeRef) error {
	if n == nil || n.parent == nil {
		return winerr.FileNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if n.detached {
		return winerr.FileNotFound
	}

	parent := n.parent
	parent.removeChild(n.name)

	t.log.WithField("virtual", n.Path()).Debug("remove_from_tree")

	return nil
}

// Clear detaches every node, resetting the tree to empty.
func (t *Tree) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.root = &Node{name: "", isDirectory: true}
}

// Dump renders the tree as an indented listing, adapted from avfs's
// root-level tree.go pretty-printer (avfs/tree.go), which
// walked a vfs.Dir via ReadDir; this walks Node.children directly since
// the redirection tree already holds its full shape in memory.
func (t *Tree) Dump() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var b strings.Builder

	dumpNode(&b, t.root, "")

	return b.String()
}

func dumpNode(b *strings.Builder, n *Node, indent string) {
	names := n.sortedChildNames()

	for i, name := range names {
		child := n.child(name)
		last := i == len(names)-1

		connector := "├── "
		nextIndent := indent + "│   "

		if last {
			connector = "└── "
			nextIndent = indent + "    "
		}

		b.WriteString(indent)
		b.WriteString(connector)
		b.WriteString(name)

		if child.linkTarget != "" {
			b.WriteString(" -> ")
			b.WriteString(child.linkTarget)
		}

		b.WriteString("\n")

		dumpNode(b, child, nextIndent)
	}
}

func sortFold(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
}
