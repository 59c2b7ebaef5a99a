// Package terminal finds and classifies top-level windows: the bridge window
// itself, terminal windows the bridge may send text to, and everything else.
package terminal

import (
	"errors"
	"fmt"
	"time"
)

// Handle is an opaque OS window handle. Zero is never a valid window.
type Handle uintptr

func (h Handle) String() string { return fmt.Sprintf("%#x", uintptr(h)) }

// Class is the result of classifying a window.
type Class int

const (
	ClassOther Class = iota
	ClassBridge
	ClassEligible
)

func (c Class) String() string {
	switch c {
	case ClassBridge:
		return "bridge"
	case ClassEligible:
		return "terminal"
	default:
		return "other"
	}
}

// Window is a snapshot of one top-level window.
type Window struct {
	Handle Handle
	PID    int32
	Title  string
	// Exe is the base name of the owning process image, e.g. "pwsh.exe".
	Exe string
}

// Session is a terminal window the bridge can target.
type Session struct {
	ID     string
	Handle Handle
	// PID owns the window. A different owner for the same handle means the
	// handle was reused and the session is dead.
	PID int32
	// ClientPID is the process that asked for tracking (0 if discovered).
	ClientPID int32
	Label     string
	// HostSession and Cwd describe the host application session, if known.
	HostSession string
	Cwd         string
	Exe         string
	Title       string
	Tracked     bool
	LastActive  time.Time
}

// IsZero reports whether s refers to no session.
func (s Session) IsZero() bool { return s.Handle == 0 }

var (
	// ErrUnsupported is returned by OS adapters on platforms without a
	// window system integration.
	ErrUnsupported = errors.New("window system not supported on this platform")
	// ErrWindowGone means a handle no longer refers to the same live window.
	ErrWindowGone = errors.New("window no longer exists")
	// ErrNotEligible means a window is not a terminal the bridge may target.
	ErrNotEligible = errors.New("window is not an eligible terminal")
	// ErrActivate means the OS refused to move the foreground.
	ErrActivate = errors.New("foreground change refused")
)

// System is the OS window table.
type System interface {
	// Windows lists visible top-level windows.
	Windows() ([]Window, error)
	// Describe returns the current state of h, or false if it is gone.
	Describe(h Handle) (Window, bool)
	Foreground() Handle
	// Activate asks the OS to bring h to the foreground.
	Activate(h Handle) error
}
