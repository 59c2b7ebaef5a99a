package terminal_test

import (
	"errors"
	"testing"

	"github.com/Gaurav-Gosain/mojibridge/internal/config"
	"github.com/Gaurav-Gosain/mojibridge/internal/terminal"
	"github.com/Gaurav-Gosain/mojibridge/internal/terminal/terminaltest"
)

const selfPID = 9000

func newDirectory(sys *terminaltest.System, procs *terminaltest.Processes) *terminal.Directory {
	return terminal.NewDirectory(sys, procs, terminal.Options{
		Self:        selfPID,
		SelfExe:     "mojibridge.exe",
		TitlePrefix: "MojiBridge",
		Hosts:       config.DefaultTerminalHosts,
		MaxDepth:    10,
	})
}

// fixture: a Windows Terminal window, a VS Code window whose integrated
// terminal runs a tracked client, a notepad titled like a terminal, the
// bridge itself and another copy of the bridge.
func fixture() (*terminaltest.System, *terminaltest.Processes) {
	sys := terminaltest.NewSystem()
	sys.Add(terminal.Window{Handle: 0x10, PID: 100, Title: "pwsh", Exe: "WindowsTerminal.exe"})
	sys.Add(terminal.Window{Handle: 0x20, PID: 200, Title: "project - Visual Studio Code", Exe: "Code.exe"})
	sys.Add(terminal.Window{Handle: 0x30, PID: 300, Title: "Windows PowerShell", Exe: "notepad.exe"})
	sys.Add(terminal.Window{Handle: 0x40, PID: selfPID, Title: "MojiBridge", Exe: "mojibridge.exe"})
	sys.Add(terminal.Window{Handle: 0x50, PID: 500, Title: "MojiBridge - other", Exe: "mojibridge.exe"})
	sys.Add(terminal.Window{Handle: 0x60, PID: 600, Title: "mojibridge hook", Exe: "mojibridge.exe"})

	procs := terminaltest.NewProcesses(
		terminal.Process{PID: 100, PPID: 1, Name: "WindowsTerminal.exe"},
		terminal.Process{PID: 200, PPID: 1, Name: "Code.exe"},
		terminal.Process{PID: 210, PPID: 200, Name: "pwsh.exe"},
		terminal.Process{PID: 220, PPID: 210, Name: "node.exe"},
		terminal.Process{PID: 300, PPID: 1, Name: "notepad.exe"},
		terminal.Process{PID: 500, PPID: 1, Name: "mojibridge.exe"},
		terminal.Process{PID: 600, PPID: 1, Name: "mojibridge.exe"},
		terminal.Process{PID: selfPID, PPID: 1, Name: "mojibridge.exe"},
	)
	return sys, procs
}

// =============================================================================
// Classification Tests
// =============================================================================

func TestClassify(t *testing.T) {
	sys, procs := fixture()
	dir := newDirectory(sys, procs)

	tests := []struct {
		name   string
		handle terminal.Handle
		want   terminal.Class
	}{
		{"terminal host", 0x10, terminal.ClassEligible},
		{"untracked editor", 0x20, terminal.ClassOther},
		{"terminal-like title is not enough", 0x30, terminal.ClassOther},
		{"own window", 0x40, terminal.ClassBridge},
		{"other bridge process", 0x50, terminal.ClassBridge},
		{"same exe without bridge title", 0x60, terminal.ClassOther},
		{"unknown handle", 0x99, terminal.ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, s := dir.Classify(tt.handle)
			if got != tt.want {
				t.Errorf("Classify(%s) = %v, want %v", tt.handle, got, tt.want)
			}
			if (got == terminal.ClassEligible) != !s.IsZero() {
				t.Errorf("session presence mismatch for %v: %+v", got, s)
			}
		})
	}
}

func TestClassifyKeepsSessionIdentity(t *testing.T) {
	sys, procs := fixture()
	dir := newDirectory(sys, procs)

	_, first := dir.Classify(0x10)
	_, second := dir.Classify(0x10)
	if first.ID == "" || first.ID != second.ID {
		t.Errorf("session id changed: %q then %q", first.ID, second.ID)
	}

	// Handle reused by a different process is a new session.
	sys.Close(0x10)
	sys.Add(terminal.Window{Handle: 0x10, PID: 111, Title: "cmd", Exe: "cmd.exe"})
	_, third := dir.Classify(0x10)
	if third.ID == first.ID {
		t.Error("reused handle kept the dead session's id")
	}
	if dir.Alive(first) {
		t.Error("session with reused handle reported alive")
	}
}

func TestTrackByClientAncestry(t *testing.T) {
	sys, procs := fixture()
	dir := newDirectory(sys, procs)

	s, err := dir.Track(terminal.TrackRequest{ClientPID: 220, Label: "api", HostSession: "abc"})
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if s.Handle != 0x20 {
		t.Errorf("tracked handle = %s, want 0x20", s.Handle)
	}
	if s.Label != "api" || s.HostSession != "abc" || !s.Tracked {
		t.Errorf("unexpected session: %+v", s)
	}

	// The editor now hosts a tracked client, so it is a terminal.
	if got, _ := dir.Classify(0x20); got != terminal.ClassEligible {
		t.Errorf("Classify(editor) = %v after tracking, want terminal", got)
	}

	// A second editor window of the same process also hosts the client.
	sys.Add(terminal.Window{Handle: 0x21, PID: 200, Title: "second", Exe: "Code.exe"})
	if got, _ := dir.Classify(0x21); got != terminal.ClassEligible {
		t.Errorf("Classify(second editor window) = %v, want terminal", got)
	}
}

func TestTrackRejects(t *testing.T) {
	sys, procs := fixture()
	dir := newDirectory(sys, procs)

	tests := []struct {
		name string
		req  terminal.TrackRequest
		want error
	}{
		{"no handle no client", terminal.TrackRequest{}, terminal.ErrNotEligible},
		{"dead handle", terminal.TrackRequest{Handle: 0x77}, terminal.ErrWindowGone},
		{"owner mismatch", terminal.TrackRequest{Handle: 0x10, PID: 999}, terminal.ErrWindowGone},
		{"bridge window", terminal.TrackRequest{Handle: 0x50}, terminal.ErrNotEligible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dir.Track(tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Track(%+v) error = %v, want %v", tt.req, err, tt.want)
			}
		})
	}
}

// =============================================================================
// Enumeration Tests
// =============================================================================

func TestEnumerateEligiblePrunes(t *testing.T) {
	sys, procs := fixture()
	sys.Add(terminal.Window{Handle: 0x11, PID: 101, Title: "cmd", Exe: "cmd.exe"})
	dir := newDirectory(sys, procs)

	sessions, err := dir.EnumerateEligible()
	if err != nil {
		t.Fatalf("EnumerateEligible failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2: %+v", len(sessions), sessions)
	}

	sys.Close(0x11)
	sessions, _ = dir.EnumerateEligible()
	if len(sessions) != 1 || sessions[0].Handle != 0x10 {
		t.Errorf("closed terminal not pruned: %+v", sessions)
	}
	if got := dir.Sessions(); len(got) != 1 {
		t.Errorf("Sessions() = %d entries, want 1", len(got))
	}
}

func TestBridges(t *testing.T) {
	sys, procs := fixture()
	dir := newDirectory(sys, procs)

	bridges, err := dir.Bridges()
	if err != nil {
		t.Fatalf("Bridges failed: %v", err)
	}
	if len(bridges) != 1 || bridges[0].Handle != 0x50 {
		t.Errorf("Bridges() = %+v, want only 0x50", bridges)
	}

	own, ok := dir.OwnBridge()
	if !ok || own.Handle != 0x40 {
		t.Errorf("OwnBridge() = %+v, %v; want 0x40", own, ok)
	}
}

func TestBridgesSkipsOtherWindowsOfSameExe(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		bridge bool
	}{
		{"bridge", "MojiBridge", true},
		{"labelled bridge", "MojiBridge - api", true},
		{"hook prompt", "Enter your prompt - fix tests", false},
		{"prefix without separator", "MojiBridgeSettings", false},
		{"hook prompt with bridge prefix", "MojiBridge prompt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := terminaltest.NewSystem()
			sys.Add(terminal.Window{Handle: 0x40, PID: selfPID, Title: "MojiBridge", Exe: "mojibridge.exe"})
			sys.Add(terminal.Window{Handle: 0x70, PID: 700, Title: tt.title, Exe: "mojibridge.exe"})
			procs := terminaltest.NewProcesses(
				terminal.Process{PID: 700, PPID: 1, Name: "mojibridge.exe"},
				terminal.Process{PID: selfPID, PPID: 1, Name: "mojibridge.exe"},
			)
			dir := newDirectory(sys, procs)

			bridges, err := dir.Bridges()
			if err != nil {
				t.Fatalf("Bridges failed: %v", err)
			}
			if got := len(bridges) == 1; got != tt.bridge {
				t.Errorf("Bridges() = %+v, want bridge=%v", bridges, tt.bridge)
			}
			if class, _ := dir.Classify(0x70); (class == terminal.ClassBridge) != tt.bridge {
				t.Errorf("Classify(0x70) = %v", class)
			}
		})
	}
}

// =============================================================================
// Focus Tests
// =============================================================================

func TestFocusRevalidates(t *testing.T) {
	sys, procs := fixture()
	dir := newDirectory(sys, procs)

	_, s := dir.Classify(0x10)
	if err := dir.Focus(s); err != nil {
		t.Fatalf("Focus failed: %v", err)
	}
	if sys.Foreground() != 0x10 {
		t.Errorf("foreground = %s, want 0x10", sys.Foreground())
	}

	sys.Close(0x10)
	before := len(sys.Activations())
	if err := dir.Focus(s); !errors.Is(err, terminal.ErrWindowGone) {
		t.Errorf("Focus(dead) error = %v, want ErrWindowGone", err)
	}
	if len(sys.Activations()) != before {
		t.Error("Focus on a dead session reached the OS")
	}
}

// =============================================================================
// Ancestry Tests
// =============================================================================

func TestAncestry(t *testing.T) {
	procs := terminaltest.NewProcesses(
		terminal.Process{PID: 4, PPID: 3, Name: "d"},
		terminal.Process{PID: 3, PPID: 2, Name: "c"},
		terminal.Process{PID: 2, PPID: 1, Name: "b"},
		terminal.Process{PID: 1, PPID: 0, Name: "a"},
		terminal.Process{PID: 7, PPID: 8, Name: "loop1"},
		terminal.Process{PID: 8, PPID: 7, Name: "loop2"},
		terminal.Process{PID: 9, PPID: 9, Name: "self"},
	)

	tests := []struct {
		name  string
		pid   int32
		depth int
		want  []int32
	}{
		{"full chain", 4, 10, []int32{4, 3, 2, 1}},
		{"bounded", 4, 2, []int32{4, 3}},
		{"cycle", 7, 10, []int32{7, 8}},
		{"self parent", 9, 10, []int32{9}},
		{"missing", 42, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := terminal.Ancestry(procs, tt.pid, tt.depth)
			if len(chain) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(chain), len(tt.want))
			}
			for i, p := range chain {
				if p.PID != tt.want[i] {
					t.Errorf("chain[%d] = %d, want %d", i, p.PID, tt.want[i])
				}
			}
		})
	}
}
