//go:build windows

package usvfs

import (
	"context"

	"github.com/usvfs-go/usvfs/inject"
)

// CreateProcessHooked creates a child process with injection
// guaranteed (§6 "CreateProcessHooked(...)"); it is only available on
// the Windows build since process injection has no portable
// equivalent.
func (v *VFS) CreateProcessHooked(ctx context.Context, appName, commandLine string, callerWantsSuspended bool, launch inject.Launcher, pipeName func(pid uint32) string) (uint32, error) {
	ctrl := &inject.Controller{Ctx: v.Ctx, Launch: launch, PipeName: pipeName, FullPathName: v.Hooks.FullPathName}

	return ctrl.CreateProcessHooked(ctx, appName, commandLine, callerWantsSuspended)
}
