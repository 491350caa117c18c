//go:build windows

package inject_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/usvfs-go/usvfs/inject"
	"github.com/usvfs-go/usvfs/usvfsctx"
)

func TestCreateProcessHookedResumesByDefault(t *testing.T) {
	resumed := false

	ctrl := &inject.Controller{
		Ctx: usvfsctx.New(),
		Launch: func(appName, commandLine string, forceSuspended bool) (uint32, func() error, error) {
			if !forceSuspended {
				t.Fatalf("expected the launcher to always be asked for CREATE_SUSPENDED")
			}

			return uint32(os.Getpid()), func() error { resumed = true; return nil }, nil
		},
		PipeName: func(pid uint32) string {
			return fmt.Sprintf(`\\.\pipe\usvfs-test-%d`, pid)
		},
	}

	pid, err := ctrl.CreateProcessHooked(context.Background(), `C:\app.exe`, `app.exe`, false)
	if err != nil {
		t.Fatalf("CreateProcessHooked: %v", err)
	}

	if pid == 0 {
		t.Fatalf("expected a non-zero pid")
	}

	if !resumed {
		t.Fatalf("expected resume() to be called when the caller did not ask for suspension")
	}
}

func TestCreateProcessHookedHonorsCallerSuspendRequest(t *testing.T) {
	resumed := false

	ctrl := &inject.Controller{
		Ctx: usvfsctx.New(),
		Launch: func(appName, commandLine string, forceSuspended bool) (uint32, func() error, error) {
			return uint32(os.Getpid()), func() error { resumed = true; return nil }, nil
		},
		PipeName: func(pid uint32) string {
			return fmt.Sprintf(`\\.\pipe\usvfs-test-%d`, pid)
		},
	}

	_, err := ctrl.CreateProcessHooked(context.Background(), `C:\app.exe`, `app.exe`, true)
	if err != nil {
		t.Fatalf("CreateProcessHooked: %v", err)
	}

	if resumed {
		t.Fatalf("resume() should not be called when the caller asked for CREATE_SUSPENDED")
	}
}

func TestCreateProcessHookedReroutesAppNameAndArgv0(t *testing.T) {
	ctx := usvfsctx.New()
	ctx.Tree().AddFile(`C:\mods\app.exe`, `D:\real\app.exe`)

	var gotAppName, gotCommandLine string

	ctrl := &inject.Controller{
		Ctx: ctx,
		Launch: func(appName, commandLine string, forceSuspended bool) (uint32, func() error, error) {
			gotAppName, gotCommandLine = appName, commandLine
			return uint32(os.Getpid()), func() error { return nil }, nil
		},
		PipeName: func(pid uint32) string {
			return fmt.Sprintf(`\\.\pipe\usvfs-test-%d`, pid)
		},
	}

	_, err := ctrl.CreateProcessHooked(context.Background(), `C:\mods\app.exe`, `"C:\mods\app.exe" --flag value`, false)
	if err != nil {
		t.Fatalf("CreateProcessHooked: %v", err)
	}

	if gotAppName != `D:\real\app.exe` {
		t.Errorf("appName = %q, want the rerouted physical path", gotAppName)
	}

	want := `"D:\real\app.exe" --flag value`
	if gotCommandLine != want {
		t.Errorf("commandLine = %q, want %q", gotCommandLine, want)
	}
}

func TestCreateProcessHookedFailsOnLaunchError(t *testing.T) {
	ctrl := &inject.Controller{
		Ctx: usvfsctx.New(),
		Launch: func(appName, commandLine string, forceSuspended bool) (uint32, func() error, error) {
			return 0, nil, fmt.Errorf("boom")
		},
	}

	if _, err := ctrl.CreateProcessHooked(context.Background(), `C:\app.exe`, `app.exe`, false); err == nil {
		t.Fatalf("expected launch failure to fail CreateProcessHooked")
	}
}
