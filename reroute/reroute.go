// Package reroute implements the Rerouter (C3, §4.3): the pure decision
// function that turns a caller-visible virtual path into the physical
// path a hooked OS call should actually operate on.
//
// Grounded on avfs's mountfs path-resolution walk
// (avfs/vfs/mountfs/mountfs_internal.go toAbsPath/baseDir): mountfs
// decides, for every call, which of its mounted filesystems a path
// belongs to and what the path looks like inside that filesystem.
// Reroute asks the same kind of question of the tree package — "which
// physical tree node, if any, does this virtual path resolve to" —
// but returns a plain value (Reroute) rather than dispatching the call
// itself, so the dispatch package can apply it uniformly to every
// hooked primitive.
package reroute

import (
	"strings"

	"github.com/usvfs-go/usvfs/canonpath"
	"github.com/usvfs-go/usvfs/tree"
)

// Reroute is the result of resolving a single path (§4.3).
type Reroute struct {
	// Rerouted reports whether the tree had anything to say about this
	// path. For a pure directory node Result can equal the plain
	// canonicalization of the input and Rerouted is still true.
	Rerouted bool

	// Result is the path the original OS call should actually use:
	// either the rewritten physical path, or the canonicalized input
	// unchanged when nothing matched.
	Result string

	// Node is the tree node the reroute was derived from, carried
	// alongside the path so a later remove_from_tree/add_file call
	// doesn't need a second tree lookup (mirrors the original engine's
	// RerouteW carrying its m_FileNode alongside the rewritten path;
	// see original_source/src/usvfs_dll/hooks/kernel32.cpp). For a New
	// result, Node is the CREATE_TARGET ancestor, not the (not yet
	// existing) file itself — callers that need to know whether the
	// tree still needs an add_file for the created path must check
	// Created, not Node == nil.
	Node tree.NodeRef

	// Created reports whether this result came from New (reroute_new):
	// the path didn't already exist in the tree and was placed fresh
	// under a CREATE_TARGET ancestor, so the caller still owes the
	// tree an add_file/link_directory_static call once the real OS
	// call succeeds (§4.4 step 5).
	Created bool
}

// devicePrefix is the special hid# device-id prefix that must never be
// touched (§4.3 step 1).
const devicePrefix = "hid#"

// Tree is the minimal surface reroute needs from *tree.Tree, so this
// package can be tested against a fake without importing the concrete
// type's locking behavior.
type Tree interface {
	FindNode(path string) (tree.NodeRef, bool)
	VisitPath(path string, visit func(tree.NodeRef))
}

// Do resolves path against fwd (or inv, when inverse is true — the
// translation GetModuleFileName needs to map a physical path back to
// the virtual name the caller originally loaded, §4.3 step 3).
//
// fullPathName is the FULL_PATHNAME-guarded callback the canonicalizer
// uses to resolve relative paths (§4.1); it may be nil in tests that
// only exercise absolute paths.
func Do(path string, inverse bool, fwd, inv Tree, fullPathName canonpath.FullPathName) Reroute {
	if path == "" || strings.HasPrefix(path, devicePrefix) {
		return Reroute{Result: path}
	}

	canon := canonpath.Canonicalize(path, fullPathName)

	lookup := fwd
	if inverse {
		lookup = inv
	}

	node, ok := lookup.FindNode(canon)
	if !ok {
		return Reroute{Result: canon}
	}

	result := node.LinkTarget()
	if result == "" {
		// Pure directory node with no link: the reroute is the node's
		// own virtual path reassembled — still indicates a hit even
		// though nothing actually changed.
		result = node.Path()
	}

	result = canonpath.ToBackslash(result)
	result = canonpath.ApplyLongPathPrefix(result)

	return Reroute{Rerouted: true, Result: result, Node: node}
}

// New computes the reroute for a path that is being created fresh
// (§4.3 reroute_new): if a CREATE_TARGET ancestor exists, the new file
// is placed under that ancestor's physical backing location at the
// same relative position, and the physical parent directory chain is
// created via mkdirAll so the subsequent real OS call can succeed.
//
// mkdirAll is injected so this package stays free of any direct os.*
// dependency (see tree.DirReader for the same reasoning on the tree
// side).
func New(path string, fwd Tree, fullPathName canonpath.FullPathName, mkdirAll func(dir string) error) Reroute {
	canon := canonpath.Canonicalize(path, fullPathName)

	var target tree.NodeRef

	fwd.VisitPath(canon, func(n tree.NodeRef) {
		if n.Flags().Has(tree.FlagCreateTarget) {
			target = n
		}
	})

	if target == nil {
		return Reroute{Result: canon}
	}

	tail, ok := canonpath.TrimPrefix(canon, target.Path())
	if !ok {
		return Reroute{Result: canon}
	}

	result := target.LinkTarget()
	if tail != "" {
		result = canonpath.Join(result, tail)
	}

	result = canonpath.ToBackslash(result)
	result = canonpath.ApplyLongPathPrefix(result)

	if mkdirAll != nil {
		_ = mkdirAll(canonpath.Dir(result))
	}

	return Reroute{Rerouted: true, Result: result, Node: target, Created: true}
}
