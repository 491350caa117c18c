//go:build windows

// Package inject implements the Process-Injection Control Plane (C6,
// §4.6): propagating the engine into a freshly spawned child so the
// child observes the same Redirection Tree as its parent.
//
// Grounded on moby's use of github.com/Microsoft/go-winio named pipes
// for a host<->container control channel
// (integration-cli/docker_api_containers_windows_test.go's
// winio.ListenPipe/l.Accept pattern) for the parent<->child handshake,
// and on github.com/shirou/gopsutil/v3/process for confirming the
// child is alive after launch, before the handshake — the pack
// repo that actually imports gopsutil is rclone, for similar
// "is this PID still there" checks around its mount-helper processes.
package inject

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Microsoft/go-winio"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/usvfs-go/usvfs/canonpath"
	"github.com/usvfs-go/usvfs/reroute"
	"github.com/usvfs-go/usvfs/shm"
	"github.com/usvfs-go/usvfs/usvfsctx"
)

// Launcher abstracts the real CreateProcess call so this package never
// imports golang.org/x/sys/windows directly. The pipe name for the
// handshake is not passed to the Launcher; Controller.PipeName derives
// it from the child's pid after launch.
type Launcher func(appName, commandLine string, forceSuspended bool) (pid uint32, resume func() error, err error)

// Controller drives the injection sequence for CreateProcessHooked
// (§4.6, §6 "CreateProcessHooked").
type Controller struct {
	Ctx      *usvfsctx.Context
	Launch   Launcher
	PipeName func(pid uint32) string

	// FullPathName resolves a relative path against the process's real
	// current directory (§4.1), the same callback dispatch.Hooks uses;
	// it feeds the reroute of appName/argv[0] below.
	FullPathName canonpath.FullPathName
}

// pipeHandshakeTimeout bounds how long the parent waits for the
// injected child to connect and receive the shared-memory region name,
// before treating injection as failed (§7 "injection failure
// fails the CreateProcess call").
const pipeHandshakeTimeout = 5 * time.Second

// CreateProcessHooked implements §4.4's CreateProcess special case and
// §4.6's injection sequence: force CREATE_SUSPENDED regardless of
// caller intent, wait for the child's engine to connect over a named
// pipe and send it the shared-memory region name, then resume unless
// the caller originally asked for suspension. Injection failure fails
// the call. This function does not itself load the engine DLL into the
// child; the handshake only succeeds if something in the child connects
// to the pipe.
func (c *Controller) CreateProcessHooked(ctx context.Context, appName, commandLine string, callerWantsSuspended bool) (pid uint32, err error) {
	appName, commandLine = c.rerouteLaunch(appName, commandLine)

	pid, resume, err := c.Launch(appName, commandLine, true)
	if err != nil {
		return 0, fmt.Errorf("inject: launch: %w", err)
	}

	if err := c.confirmAlive(pid); err != nil {
		return 0, fmt.Errorf("inject: child did not start: %w", err)
	}

	regionName := shm.NewName(c.Ctx.Params().InstanceName)

	if err := c.handshake(ctx, pid, regionName); err != nil {
		return 0, fmt.Errorf("inject: handshake with pid %d failed: %w", pid, err)
	}

	c.Ctx.Log().WithFields(logrus.Fields{
		"hook": "CreateProcess",
		"pid":  pid,
	}).Debug("child connected to shared tree")

	if !callerWantsSuspended {
		if err := resume(); err != nil {
			return 0, fmt.Errorf("inject: resume pid %d: %w", pid, err)
		}
	}

	return pid, nil
}

// rerouteLaunch implements §4.4's CreateProcess special case: reroute
// the application name and the first token of the command line,
// reassembling the rest of the command line verbatim.
func (c *Controller) rerouteLaunch(appName, commandLine string) (string, string) {
	fwd, inv := c.Ctx.Tree(), c.Ctx.InverseTree()

	if appName != "" {
		appName = reroute.Do(appName, false, fwd, inv, c.FullPathName).Result
	}

	head, quoted, rest := splitCommandLineHead(commandLine)
	if head != "" {
		reroutedHead := reroute.Do(head, false, fwd, inv, c.FullPathName).Result

		if quoted {
			commandLine = `"` + reroutedHead + `"` + rest
		} else {
			commandLine = reroutedHead + rest
		}
	}

	return appName, commandLine
}

// splitCommandLineHead splits commandLine into its first token — a
// double-quoted run or a whitespace-delimited word, the two forms
// CreateProcess itself recognizes when resolving argv[0] — and the
// untouched remainder. quoted reports which form head was found in,
// so the caller can restore the same quoting on reassembly.
func splitCommandLineHead(commandLine string) (head string, quoted bool, rest string) {
	if commandLine == "" {
		return "", false, ""
	}

	if commandLine[0] == '"' {
		if end := strings.IndexByte(commandLine[1:], '"'); end >= 0 {
			return commandLine[1 : 1+end], true, commandLine[1+end+1:]
		}

		return commandLine[1:], true, ""
	}

	if end := strings.IndexAny(commandLine, " \t"); end >= 0 {
		return commandLine[:end], false, commandLine[end:]
	}

	return commandLine, false, ""
}

// confirmAlive checks the freshly created process is actually running
// before attempting injection, via gopsutil rather than a raw
// OpenProcess call so the check works the same way in portable tests.
func (c *Controller) confirmAlive(pid uint32) error {
	running, err := process.PidExists(int32(pid))
	if err != nil {
		return err
	}

	if !running {
		return fmt.Errorf("pid %d is not running", pid)
	}

	return nil
}

// handshake listens on a named pipe for the child's copy of the engine
// DLL to connect, and writes the named shared-memory region's name to
// it; no reply from the child is read. This matches the way moby's integration tests stand up a
// go-winio named pipe and Accept a single connection from the other
// side (see package doc).
func (c *Controller) handshake(ctx context.Context, pid uint32, regionName string) error {
	pipeName := c.PipeName(pid)

	listener, err := winio.ListenPipe(pipeName, nil)
	if err != nil {
		return fmt.Errorf("ListenPipe %q: %w", pipeName, err)
	}
	defer listener.Close()

	ctx, cancel := context.WithTimeout(ctx, pipeHandshakeTimeout)
	defer cancel()

	connCh := make(chan error, 1)

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			connCh <- err
			return
		}
		defer conn.Close()

		if _, err := conn.Write([]byte(regionName)); err != nil {
			connCh <- err
			return
		}

		connCh <- nil
	}()

	select {
	case err := <-connCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
