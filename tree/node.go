package tree

import (
	"strings"

	"github.com/usvfs-go/usvfs/canonpath"
)

// Flags is the per-node bitset described in §3 Data Model.
type Flags uint32

const (
	// FlagCreateTarget marks a directory node under which new virtual
	// files should be materialized on the physical side given by the
	// node's link target (§3, §4.2, §4.3 reroute_new).
	FlagCreateTarget Flags = 1 << iota
)

// Has reports whether all bits of want are set in f.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// Node is a node of the Redirection Tree (§3 "Tree node").
//
// Adapted from avfs's dirNode/fileNode/baseNode split
// (vfs/memfs/memfs_types.go, memfs_internal.go): memfs gives every node
// its own sync.RWMutex because file content and metadata (mtime, mode)
// can change independently of the tree's shape. USVFS's tree has no
// per-node mutable content — a node's identity (name, link target,
// flags) is fixed at construction and only ever replaced wholesale
// under the tree's single writer lock (§5 "Tree locking") — so Node
// carries no lock of its own; every field access is already
// synchronized by the Tree's RWMutex held by its caller.
type Node struct {
	name        string
	parent      *Node
	children    map[string]*Node // keyed by canonpath.EqualFold-normalized name
	linkTarget  string           // absolute, canonicalized physical path; empty for a pure directory node
	flags       Flags
	isDirectory bool
	detached    bool // true once removed from the tree; kept readable by holders of the reference
}

// NodeRef is the type handed out by tree lookups. It is a plain pointer:
// Go's garbage collector already gives readers the "keep using the node
// after the writer detaches it" guarantee that the original engine
// implemented with std::shared_ptr reference counting (§9 "Node
// ownership vs detachment") — there is nothing for an explicit refcount
// to do here that the runtime doesn't already do, so none is kept.
type NodeRef = *Node

// Name returns the node's own path segment.
func (n *Node) Name() string {
	return n.name
}

// LinkTarget returns the node's physical backing path, or "" if the
// node is a pure (unlinked) directory.
func (n *Node) LinkTarget() string {
	return n.linkTarget
}

// IsDirectory reports whether the node represents a directory in the
// virtual namespace.
func (n *Node) IsDirectory() bool {
	return n.isDirectory
}

// Flags returns the node's flag bitset.
func (n *Node) Flags() Flags {
	return n.flags
}

// Detached reports whether the node has been removed from the tree.
func (n *Node) Detached() bool {
	return n.detached
}

// Path reconstructs the node's absolute virtual path by walking up to
// the root (§3 invariant 2: "its full path is its parent's path joined
// with n.name under canonical rules").
func (n *Node) Path() string {
	if n.parent == nil {
		return ""
	}

	var segs []string

	for cur := n; cur.parent != nil; cur = cur.parent {
		segs = append(segs, cur.name)
	}

	// segs was built leaf-to-root; reverse it.
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}

	if len(segs) == 1 {
		return segs[0] + string(canonpath.Separator)
	}

	return segs[0] + string(canonpath.Separator) + strings.Join(segs[1:], string(canonpath.Separator))
}

// child returns the existing child named name (case-insensitive), or
// nil.
func (n *Node) child(name string) *Node {
	if n.children == nil {
		return nil
	}

	return n.children[foldKey(name)]
}

// addChild inserts (or replaces) a child under n. Replacement detaches
// the previous occupant, matching the writer policy in §4.2 "Ordering
// and tie-breaks": "the writer policy is replace (the new link wins)".
func (n *Node) addChild(child *Node) {
	if n.children == nil {
		n.children = make(map[string]*Node)
	}

	if old, ok := n.children[foldKey(child.name)]; ok {
		old.detached = true
	}

	child.parent = n
	n.children[foldKey(child.name)] = child
}

// removeChild detaches the named child, if present.
func (n *Node) removeChild(name string) {
	if n.children == nil {
		return
	}

	key := foldKey(name)
	if child, ok := n.children[key]; ok {
		child.detached = true
		child.parent = nil
		delete(n.children, key)
	}
}

// sortedChildNames returns the node's child segment names in Unicode
// code-point order after case-fold, the enumeration order §4.2
// specifies for directory reads.
func (n *Node) sortedChildNames() []string {
	names := make([]string, 0, len(n.children))
	for _, c := range n.children {
		names = append(names, c.name)
	}

	sortFold(names)

	return names
}

func foldKey(name string) string {
	return strings.ToLower(name)
}
