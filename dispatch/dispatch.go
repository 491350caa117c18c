// Package dispatch implements the Hook Dispatcher (C4, §4.4): the
// template every intercepted Win32 primitive follows (enter a mutex
// group, reroute, call the original API, mutate the tree, log) plus
// the handful of named special cases §4.4 calls out.
//
// Grounded on avfs's MountFS call path
// (avfs/vfs/mountfs/mountfs_internal.go toAbsPath + mountfs.go's public
// methods): every MountFS method resolves which backing filesystem a
// path belongs to, rewrites the path, and delegates — the same
// resolve-then-delegate shape this package generalizes into a single
// reusable template function instead of repeating it per hook.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/usvfs-go/usvfs/canonpath"
	"github.com/usvfs-go/usvfs/reroute"
	"github.com/usvfs-go/usvfs/tree"
	"github.com/usvfs-go/usvfs/usvfsctx"
)

// Spec describes one hooked primitive's policy (§6 "dispatch.Spec").
type Spec struct {
	Name            string
	Group           usvfsctx.Group
	CreationCapable bool
}

// Well-known specs for the primitives named in §6.
var (
	SpecOpenExisting    = Spec{Name: "OpenExisting", Group: usvfsctx.OpenFile}
	SpecOpenCreate      = Spec{Name: "OpenCreate", Group: usvfsctx.OpenFile, CreationCapable: true}
	SpecGetAttributes   = Spec{Name: "GetFileAttributes", Group: usvfsctx.FileAttributes}
	SpecSetAttributes   = Spec{Name: "SetFileAttributes", Group: usvfsctx.FileAttributes}
	SpecDeleteFile      = Spec{Name: "DeleteFile", Group: usvfsctx.DeleteFile}
	SpecCreateDirectory = Spec{Name: "CreateDirectory", Group: usvfsctx.FileAttributes, CreationCapable: true}
	SpecRemoveDirectory = Spec{Name: "RemoveDirectory", Group: usvfsctx.DeleteFile}
	SpecMoveFileSource  = Spec{Name: "MoveFile(source)", Group: usvfsctx.ShellFileOp}
	SpecMoveFileDest    = Spec{Name: "MoveFile(dest)", Group: usvfsctx.ShellFileOp, CreationCapable: true}
	SpecCopyFileSource  = Spec{Name: "CopyFile(source)", Group: usvfsctx.ShellFileOp}
	SpecCopyFileDest    = Spec{Name: "CopyFile(dest)", Group: usvfsctx.ShellFileOp, CreationCapable: true}
	SpecFindFirst       = Spec{Name: "FindFirstFileEx", Group: usvfsctx.FindFiles}
	SpecFullPathName    = Spec{Name: "GetFullPathName", Group: usvfsctx.FullPathname}
	SpecGetModuleName   = Spec{Name: "GetModuleFileName", Group: usvfsctx.LoadLibrary}
	SpecCreateProcess   = Spec{Name: "CreateProcess", Group: usvfsctx.CreateProcess, CreationCapable: true}
)

// Hooks is the hook dispatcher (§4.4), holding the callbacks it needs
// to reach the real OS surface without importing any Windows-specific
// package itself — tests supply fakes, the real engine binary wires
// windows.* syscalls in.
type Hooks struct {
	Ctx *usvfsctx.Context

	// FullPathName resolves a relative path against the process's real
	// current directory (§4.1). Neither canonpath nor this package
	// enters the FULL_PATHNAME group around the call; any recursion
	// guard is up to the callback itself.
	FullPathName canonpath.FullPathName

	// PhysicalExists reports whether a physical path already exists,
	// used by creation-capable calls to decide between reroute and
	// reroute_new (§4.4 step 3).
	PhysicalExists func(path string) bool

	// MkdirAll physically creates a directory chain, used by
	// reroute_new (§4.3 step 3).
	MkdirAll func(dir string) error

	// Cache memoizes canonicalization so a hot path doesn't re-enter
	// FullPathName on every single hooked call (optional).
	Cache *canonpath.Cache
}

// canonicalize resolves path once through the cache when one is
// configured, and then hands the dispatcher's downstream reroute.Do/New
// calls an already-canonical path with no further fullPathName calls
// needed (Canonicalize is idempotent on an already-canonical absolute
// path). Without a cache it returns path unchanged together with
// h.FullPathName, and reroute.Do/New canonicalize it themselves.
func (h *Hooks) canonicalize(path string) (canon string, already canonpath.FullPathName) {
	if h.Cache == nil {
		return path, h.FullPathName
	}

	return h.Cache.CanonicalizeCached(path, h.FullPathName), nil
}

// resolution is what a single dispatch pass through the template
// produces: the path the original API should actually receive, and
// whether the call should be made at all (a reentrant call always
// passes through with the caller's original, un-rerouted path).
type resolution struct {
	reroute.Reroute
	threadID uint64
}

// enter applies §4.4 steps 1-3: enter the named mutex group; if this
// thread is already inside that group, the call is reentrant and must
// pass through unrerouted (the returned Reroute then carries the input
// path unchanged in Result, and callers hand their original path to the
// OS call).
func (h *Hooks) enter(spec Spec, path string) (res resolution, reentrant bool, exit func()) {
	tid := usvfsctx.ThreadID()
	reentrant = h.Ctx.Groups().Enter(tid, spec.Group)

	exit = func() { h.Ctx.Groups().Exit(tid, spec.Group) }

	if reentrant {
		return resolution{Reroute: reroute.Reroute{Result: path}, threadID: tid}, true, exit
	}

	canon, fullPathName := h.canonicalize(path)

	var r reroute.Reroute

	if spec.CreationCapable {
		r = reroute.Do(canon, false, h.Ctx.Tree(), h.Ctx.InverseTree(), fullPathName)
		if !r.Rerouted && h.PhysicalExists != nil && !h.PhysicalExists(r.Result) {
			r = reroute.New(canon, h.Ctx.Tree(), fullPathName, h.MkdirAll)
		}
	} else {
		r = reroute.Do(canon, false, h.Ctx.Tree(), h.Ctx.InverseTree(), fullPathName)
	}

	return resolution{Reroute: r, threadID: tid}, false, exit
}

func (h *Hooks) trace(spec Spec, res resolution, mutated bool) {
	if !res.Rerouted && !mutated {
		return
	}

	level := logrus.DebugLevel
	if mutated {
		level = logrus.WarnLevel
	}

	entry := h.Ctx.Log().WithFields(logrus.Fields{
		"hook":     spec.Name,
		"group":    spec.Group.String(),
		"rerouted": res.Rerouted,
		"physical": res.Result,
		"mutated":  mutated,
	})

	entry.Log(level, spec.Name)
	h.Ctx.LogEntry(fmt.Sprintf("%s group=%s rerouted=%t physical=%s mutated=%t",
		spec.Name, spec.Group, res.Rerouted, res.Result, mutated))
}

// OpenExisting implements read-only open (§4.4 step 3 "open-existing").
func (h *Hooks) OpenExisting(path string, call func(physical string) error) error {
	res, reentrant, exit := h.enter(SpecOpenExisting, path)
	defer exit()

	if reentrant {
		return call(path)
	}

	err := call(res.Result)
	h.trace(SpecOpenExisting, res, false)

	return err
}

// OpenCreate implements CREATE_ALWAYS/CREATE_NEW open (§4.4 step 3
// "creation-capable calls"). On success, the file is recorded in the
// tree when it was materialized via reroute_new (§4.4 step 5 "File
// created via reroute_new").
func (h *Hooks) OpenCreate(path string, call func(physical string) error) error {
	res, reentrant, exit := h.enter(SpecOpenCreate, path)
	defer exit()

	if reentrant {
		return call(path)
	}

	err := call(res.Result)

	mutated := false

	if err == nil && res.Created {
		canon := canonpath.Canonicalize(path, h.FullPathName)
		if _, addErr := h.Ctx.AddFile(canon, res.Result); addErr != nil {
			h.Ctx.Log().WithError(addErr).Warn("add_file failed after OpenCreate")
		} else {
			mutated = true
		}
	}

	h.trace(SpecOpenCreate, res, mutated)

	return err
}

// DeleteFile implements file deletion (§4.4 step 5 "File deleted").
func (h *Hooks) DeleteFile(path string, call func(physical string) error) error {
	res, reentrant, exit := h.enter(SpecDeleteFile, path)
	defer exit()

	if reentrant {
		return call(path)
	}

	err := call(res.Result)

	mutated := false

	if err == nil && res.Node != nil {
		if rmErr := h.Ctx.Unlink(res.Node); rmErr != nil {
			h.Ctx.Log().WithError(rmErr).Warn("remove_from_tree failed after DeleteFile")
		} else {
			mutated = true
		}
	}

	h.trace(SpecDeleteFile, res, mutated)

	return err
}

// MoveFile implements §4.4's move special cases: the source side is
// removed from the tree, the destination side is recorded if it was
// rerouted, and a cross-drive move forces MOVEFILE_COPY_ALLOWED when
// the caller-visible paths shared a drive letter but their physical
// reroutes land on different ones ("Move across virtual drives").
func (h *Hooks) MoveFile(src, dst string, call func(physSrc, physDst string, copyAllowed bool) error) error {
	tid := usvfsctx.ThreadID()
	reentrant := h.Ctx.Groups().Enter(tid, usvfsctx.ShellFileOp)

	defer h.Ctx.Groups().Exit(tid, usvfsctx.ShellFileOp)

	if reentrant {
		return call(src, dst, false)
	}

	srcRes := reroute.Do(src, false, h.Ctx.Tree(), h.Ctx.InverseTree(), h.FullPathName)

	dstRes := reroute.Do(dst, false, h.Ctx.Tree(), h.Ctx.InverseTree(), h.FullPathName)
	if !dstRes.Rerouted && h.PhysicalExists != nil && !h.PhysicalExists(dstRes.Result) {
		dstRes = reroute.New(dst, h.Ctx.Tree(), h.FullPathName, h.MkdirAll)
	}

	callerSameDrive := !canonpath.OnDifferentDrives(
		canonpath.Canonicalize(src, h.FullPathName),
		canonpath.Canonicalize(dst, h.FullPathName),
	)
	physicalCrossDrive := canonpath.OnDifferentDrives(srcRes.Result, dstRes.Result)
	copyAllowed := callerSameDrive && physicalCrossDrive

	err := call(srcRes.Result, dstRes.Result, copyAllowed)

	mutated := false

	if err == nil {
		if srcRes.Node != nil {
			if rmErr := h.Ctx.Unlink(srcRes.Node); rmErr == nil {
				mutated = true
			} else {
				h.Ctx.Log().WithError(rmErr).Warn("remove_from_tree failed after MoveFile")
			}
		}

		if dstRes.Created {
			canon := canonpath.Canonicalize(dst, h.FullPathName)
			if _, addErr := h.Ctx.AddFile(canon, dstRes.Result); addErr == nil {
				mutated = true
			} else {
				h.Ctx.Log().WithError(addErr).Warn("add_file failed after MoveFile")
			}
		}
	}

	h.trace(SpecMoveFileDest, dstRes, mutated)

	return err
}

// CreateDirectory implements directory creation: the same
// reroute-then-reroute_new fallback as OpenCreate, recording the new
// directory node when a CREATE_TARGET ancestor claimed it.
func (h *Hooks) CreateDirectory(path string, call func(physical string) error) error {
	res, reentrant, exit := h.enter(SpecCreateDirectory, path)
	defer exit()

	if reentrant {
		return call(path)
	}

	err := call(res.Result)

	mutated := false

	if err == nil && res.Created {
		canon := canonpath.Canonicalize(path, h.FullPathName)
		if _, addErr := h.Ctx.LinkDirectory(res.Result, canon, 0, nil); addErr == nil {
			mutated = true
		} else {
			h.Ctx.Log().WithError(addErr).Warn("link_directory_static failed after CreateDirectory")
		}
	}

	h.trace(SpecCreateDirectory, res, mutated)

	return err
}

// FindFirst implements the directory-enumeration special case (§4.4
// "Directory open for enumeration"): if the directory exists
// physically the search opens it directly; otherwise the original
// query path is remembered against the returned handle so a later
// enumeration call can merge in virtual children.
func (h *Hooks) FindFirst(queryPath string, open func(physical string) (uintptr, error)) (uintptr, error) {
	res, reentrant, exit := h.enter(SpecFindFirst, queryPath)
	defer exit()

	if reentrant {
		return open(queryPath)
	}

	physicalDir := res.Result
	if idx := strings.LastIndexByte(physicalDir, canonpath.Separator); idx >= 0 {
		physicalDir = physicalDir[:idx]
	}

	exists := h.PhysicalExists == nil || h.PhysicalExists(physicalDir)

	handle, err := open(res.Result)
	if err == nil && !exists {
		h.Ctx.RememberSearchHandle(handle, queryPath)
	}

	h.trace(SpecFindFirst, res, false)

	return handle, err
}

// GetModuleFileName implements the inverse-reroute special case
// (§4.4): the physical module path is translated back to the virtual
// name the caller originally loaded. If the result doesn't fit bufLen,
// it is truncated and reports insufficientBuffer=true with the
// truncated length, matching the real API's "written length, not
// required length" contract on overflow.
func (h *Hooks) GetModuleFileName(physicalPath string, bufLen int) (virtual string, truncated string, insufficientBuffer bool) {
	tid := usvfsctx.ThreadID()
	reentrant := h.Ctx.Groups().Enter(tid, SpecGetModuleName.Group)

	defer h.Ctx.Groups().Exit(tid, SpecGetModuleName.Group)

	if reentrant {
		return physicalPath, physicalPath, false
	}

	res := reroute.Do(physicalPath, true, h.Ctx.Tree(), h.Ctx.InverseTree(), h.FullPathName)

	virtual = res.Result
	if !res.Rerouted {
		virtual = physicalPath
	}

	h.trace(SpecGetModuleName, res, false)

	if len(virtual) <= bufLen {
		return virtual, virtual, false
	}

	return virtual, virtual[:bufLen], true
}

// ExitProcess implements the teardown special case (§4.4): every
// deferred task is joined and the context's per-handle state cleared
// (Context.Disconnect) before the original ExitProcess call is allowed
// through. Hooks are not uninstalled or disabled here, so a hooked call
// made during teardown is still rerouted.
func (h *Hooks) ExitProcess(call func()) {
	h.Ctx.Disconnect()
	call()
}
