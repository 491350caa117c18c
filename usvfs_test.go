package usvfs_test

import (
	"testing"

	"github.com/usvfs-go/usvfs"
)

func TestCreateVFSLinkAndFind(t *testing.T) {
	v := usvfs.CreateVFS(usvfs.InitParameters{InstanceName: "test"})

	if _, err := v.VirtualLinkFile(`D:\real\a.dll`, `C:\mods\a.dll`); err != nil {
		t.Fatalf("VirtualLinkFile: %v", err)
	}

	if _, ok := v.Ctx.Tree().FindNode(`C:\mods\a.dll`); !ok {
		t.Fatalf("expected the linked file to be findable")
	}
}

func TestClearVirtualMappings(t *testing.T) {
	v := usvfs.CreateVFS(usvfs.InitParameters{})

	v.VirtualLinkFile(`D:\real\a.dll`, `C:\mods\a.dll`)
	v.ClearVirtualMappings()

	if _, ok := v.Ctx.Tree().FindNode(`C:\mods\a.dll`); ok {
		t.Fatalf("expected the tree to be empty after ClearVirtualMappings")
	}
}

func TestGetLogMessages(t *testing.T) {
	v := usvfs.CreateVFS(usvfs.InitParameters{})

	v.Ctx.LogEntry("one")
	v.Ctx.LogEntry("two")
	v.Ctx.LogEntry("three")

	logs, ok := v.GetLogMessages(2)
	if !ok {
		t.Fatalf("expected GetLogMessages to report it wrote something")
	}

	if len(logs) != 2 || logs[0] != "two" || logs[1] != "three" {
		t.Fatalf("GetLogMessages(2) = %v, want the 2 most recent entries", logs)
	}
}

func TestDisconnectVFS(t *testing.T) {
	v := usvfs.CreateVFS(usvfs.InitParameters{})

	ran := false
	v.Ctx.Defer(func() { ran = true })

	v.DisconnectVFS()

	if !ran {
		t.Fatalf("expected DisconnectVFS to join deferred tasks")
	}
}
