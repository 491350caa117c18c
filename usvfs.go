// Package usvfs is the engine's exported surface (§6): InitParameters,
// CreateVFS/ConnectVFS, DisconnectVFS, ClearVirtualMappings,
// VirtualLinkFile, VirtualLinkDirectoryStatic, CreateProcessHooked, and
// GetLogMessages, wired to the usvfsctx/tree/dispatch/inject packages.
//
// Grounded on avfs's top-level package (avfs.go declared the
// VFS interface and its root-level entry points; memfs.New/mountfs.New
// were the concrete constructors every caller actually used) — this
// file plays the same "public entry point gathering the concrete
// packages together" role for this module.
package usvfs

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/usvfs-go/usvfs/dispatch"
	"github.com/usvfs-go/usvfs/tree"
	"github.com/usvfs-go/usvfs/usvfsctx"
)

// InitParameters is the parameter block passed to CreateVFS/ConnectVFS
// (§6).
type InitParameters struct {
	InstanceName string
	Debug        bool
	LogLevel     logrus.Level
	DumpsType    string
	DumpsPath    string
}

// VFS is the root handle returned by CreateVFS/ConnectVFS, bundling
// the shared Context and the Hooks it drives.
type VFS struct {
	Ctx   *usvfsctx.Context
	Hooks *dispatch.Hooks
}

// CreateVFS creates a new engine instance with a fresh, empty tree
// (§6 "CreateVFS(params)"). An empty InstanceName is replaced by a
// freshly generated UUID string.
func CreateVFS(params InitParameters) *VFS {
	if params.InstanceName == "" {
		params.InstanceName = uuid.NewString()
	}

	ctx := usvfsctx.New(
		usvfsctx.WithInstanceName(params.InstanceName),
		usvfsctx.WithLogLevel(params.LogLevel),
	)

	return &VFS{
		Ctx:   ctx,
		Hooks: &dispatch.Hooks{Ctx: ctx},
	}
}

// ConnectVFS is the §6 "ConnectVFS(params)" entry point. It builds a
// VFS exactly as CreateVFS does, with a fresh, empty tree; it does not
// attach to another instance's shared-memory segment, and no code in
// this module performs such an attach.
func ConnectVFS(params InitParameters) *VFS {
	return CreateVFS(params)
}

// DisconnectVFS joins deferred teardown tasks and clears per-handle
// state (§6 "DisconnectVFS()"). It does not detach from shared memory
// or uninstall hooks.
func (v *VFS) DisconnectVFS() {
	v.Ctx.Disconnect()
}

// ClearVirtualMappings empties both the forward and inverse trees (§6
// "ClearVirtualMappings()").
func (v *VFS) ClearVirtualMappings() {
	v.Ctx.Tree().Clear()
	v.Ctx.InverseTree().Clear()
}

// VirtualLinkFile links a single physical file into the virtual tree,
// mirroring the mapping into the inverse tree so GetModuleFileName can
// translate it back. LINKFLAG_RECURSIVE is ignored for files, per §6.
func (v *VFS) VirtualLinkFile(sourceReal, destVirtual string) (tree.NodeRef, error) {
	return v.Ctx.LinkFile(sourceReal, destVirtual)
}

// VirtualLinkDirectoryStatic links a physical directory into the
// virtual tree with the given flags (§6), mirroring the directory
// itself into the inverse tree.
func (v *VFS) VirtualLinkDirectoryStatic(sourceReal, destVirtual string, flags tree.LinkFlags, readDir tree.DirReader) (tree.NodeRef, error) {
	return v.Ctx.LinkDirectory(sourceReal, destVirtual, flags, readDir)
}

// GetLogMessages drains the shared log ring (§6 "GetLogMessages(buf,
// size, block) -> bool") and returns at most the max most recent lines,
// discarding older ones, together with whether any were available;
// this Go surface
// returns a slice instead of writing into a caller buffer, since that
// marshaling concern belongs to the ABI layer between this package and
// an actual injected DLL boundary, which is out of scope (§1).
func (v *VFS) GetLogMessages(max int) ([]string, bool) {
	logs := v.Ctx.Logs()
	if len(logs) > max {
		logs = logs[len(logs)-max:]
	}

	return logs, len(logs) > 0
}
