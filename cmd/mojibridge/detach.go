package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/Gaurav-Gosain/mojibridge/internal/session"
	"github.com/Gaurav-Gosain/mojibridge/internal/terminal"
)

// launch is what a launcher knows about the terminal it was started from.
type launch struct {
	label       string
	hwnd        uint64
	pid         int32
	clientPID   int32
	hostSession string
	cwd         string
}

// captureForeground fills in the foreground window if no terminal was given.
// It must run before anything of ours can take focus.
func (l launch) captureForeground() launch {
	if l.hwnd == 0 {
		sys := terminal.NewSystem()
		if fg := sys.Foreground(); fg != 0 {
			if w, ok := sys.Describe(fg); ok {
				l.hwnd, l.pid = uint64(fg), w.PID
			}
		}
	}
	if l.clientPID == 0 {
		l.clientPID = int32(os.Getppid())
	}
	if l.cwd == "" {
		l.cwd, _ = os.Getwd()
	}
	return l
}

func (l launch) attach() session.AttachPayload {
	return session.AttachPayload{
		Window:      l.hwnd,
		WindowPID:   l.pid,
		ClientPID:   l.clientPID,
		Label:       l.label,
		HostSession: l.hostSession,
		Cwd:         l.cwd,
	}
}

func (l launch) trackRequest() terminal.TrackRequest {
	return terminal.TrackRequest{
		Handle:      terminal.Handle(l.hwnd),
		PID:         l.pid,
		ClientPID:   l.clientPID,
		Label:       l.label,
		HostSession: l.hostSession,
		Cwd:         l.cwd,
	}
}

// args re-encodes l for the resident's command line.
func (l launch) args() []string {
	args := []string{"--resident"}
	if l.label != "" {
		args = append(args, "--label", l.label)
	}
	if l.hwnd != 0 {
		args = append(args, "--terminal-hwnd", strconv.FormatUint(l.hwnd, 10))
	}
	if l.pid != 0 {
		args = append(args, "--terminal-pid", strconv.FormatInt(int64(l.pid), 10))
	}
	if l.clientPID != 0 {
		args = append(args, "--client-pid", strconv.FormatInt(int64(l.clientPID), 10))
	}
	if l.hostSession != "" {
		args = append(args, "--session", l.hostSession)
	}
	if l.cwd != "" {
		args = append(args, "--cwd", l.cwd)
	}
	if debugMode {
		args = append(args, "--debug")
	}
	return args
}

// runDetach hands the terminal to a running bridge, or starts one in the
// background, and returns without waiting for it.
func runDetach(ctx context.Context, l launch) error {
	l = l.captureForeground()

	ep, err := session.DefaultEndpoint()
	if err != nil {
		return err
	}
	if session.IsRunning(ep) {
		dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		c, err := session.Dial(dctx, ep)
		if err == nil {
			defer func() { _ = c.Close() }()
			if _, err := c.Attach(l.attach()); err != nil {
				// the bridge is up; a terminal it refuses is not worth a second one
				fmt.Fprintf(os.Stderr, "mojibridge: attach refused: %v\n", err)
			}
			return nil
		}
	}
	// a concurrent launcher may win the race; the resident sorts that out
	return spawnResident(l)
}

func spawnResident(l launch) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("could not locate executable: %w", err)
	}
	cmd := exec.Command(exe, l.args()...)
	cmd.Dir = os.TempDir()
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}
	return cmd.Process.Release()
}
