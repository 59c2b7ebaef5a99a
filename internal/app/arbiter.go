package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/Gaurav-Gosain/mojibridge/internal/terminal"
	"github.com/charmbracelet/log"
)

// Directory is the window directory as seen by the arbiter and pipeline.
type Directory interface {
	Classify(h terminal.Handle) (terminal.Class, terminal.Session)
	Alive(s terminal.Session) bool
	Focus(s terminal.Session) error
	FocusWindow(h terminal.Handle) error
	Foreground() terminal.Handle
	ResolveForegroundOwner() terminal.Handle
	OwnBridge() (terminal.Window, bool)
	Track(req terminal.TrackRequest) (terminal.Session, error)
	Sessions() []terminal.Session
	EnumerateEligible() ([]terminal.Session, error)
	SetHosts(hosts []string, maxDepth int)
}

// StateKind is the focus state discriminator.
type StateKind int

const (
	StateUnknown StateKind = iota
	StateTerminalFocused
	StateBridgeFocused
)

func (k StateKind) String() string {
	switch k {
	case StateTerminalFocused:
		return "terminal-focused"
	case StateBridgeFocused:
		return "bridge-focused"
	default:
		return "unknown"
	}
}

// State is the arbiter's view of where focus is. Session is the focused
// terminal, or the origin while the bridge is focused.
type State struct {
	Kind    StateKind
	Session terminal.Session
}

func (s State) String() string {
	if s.Kind == StateUnknown {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Session.Handle)
}

// Action is what a hotkey press should do.
type Action int

const (
	ActionPassThrough Action = iota
	ActionShowBridge
	ActionReturnToTerminal
	ActionRefuse
)

func (a Action) String() string {
	switch a {
	case ActionShowBridge:
		return "show-bridge"
	case ActionReturnToTerminal:
		return "return-to-terminal"
	case ActionRefuse:
		return "refuse"
	default:
		return "pass-through"
	}
}

// Plan is a hotkey decision. Target is the terminal being left or returned
// to.
type Plan struct {
	Action     Action
	Target     terminal.Session
	Foreground terminal.Handle
}

// Intercept reports whether the key should be swallowed.
func (p Plan) Intercept() bool { return p.Action != ActionPassThrough }

// Arbiter owns the focus state. It is not safe for concurrent use; the
// coordinator loop is its only caller.
type Arbiter struct {
	dir    Directory
	log    *log.Logger
	state  State
	bridge terminal.Handle
}

// NewArbiter returns an arbiter in the Unknown state.
func NewArbiter(dir Directory, logger *log.Logger) *Arbiter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Arbiter{dir: dir, log: logger}
}

// State returns the current focus state.
func (a *Arbiter) State() State { return a.state }

// SetBridge records the bridge window handle.
func (a *Arbiter) SetBridge(h terminal.Handle) { a.bridge = h }

// Bridge returns the bridge window handle, looking it up if unknown.
func (a *Arbiter) Bridge() terminal.Handle {
	if a.bridge == 0 {
		if w, ok := a.dir.OwnBridge(); ok {
			a.bridge = w.Handle
		}
	}
	return a.bridge
}

func (a *Arbiter) origin() terminal.Session {
	switch a.state.Kind {
	case StateTerminalFocused, StateBridgeFocused:
		return a.state.Session
	}
	return terminal.Session{}
}

// Plan decides what a hotkey press with fg in front should do. It does not
// move focus or change state.
func (a *Arbiter) Plan(fg terminal.Handle) Plan {
	class, s := a.dir.Classify(fg)
	switch class {
	case terminal.ClassEligible:
		return Plan{Action: ActionShowBridge, Target: s, Foreground: fg}
	case terminal.ClassBridge:
		o := a.origin()
		if !o.IsZero() && a.dir.Alive(o) {
			return Plan{Action: ActionReturnToTerminal, Target: o, Foreground: fg}
		}
		return Plan{Action: ActionRefuse, Target: o, Foreground: fg}
	default:
		return Plan{Action: ActionPassThrough, Foreground: fg}
	}
}

// Execute carries out p. The state changes only when the focus move
// succeeds.
func (a *Arbiter) Execute(p Plan) error {
	switch p.Action {
	case ActionShowBridge:
		h := a.Bridge()
		if h == 0 {
			return fmt.Errorf("show bridge: %w", terminal.ErrWindowGone)
		}
		if err := a.dir.FocusWindow(h); err != nil {
			a.bridge = 0
			return fmt.Errorf("show bridge: %w", err)
		}
		a.set(State{Kind: StateBridgeFocused, Session: p.Target})
		return nil

	case ActionReturnToTerminal:
		if !a.dir.Alive(p.Target) {
			return ErrNoTarget
		}
		if err := a.dir.Focus(p.Target); err != nil {
			if errors.Is(err, terminal.ErrWindowGone) {
				return fmt.Errorf("%w: %v", ErrNoTarget, err)
			}
			return fmt.Errorf("%w: %v", ErrFocusRejected, err)
		}
		a.set(State{Kind: StateTerminalFocused, Session: p.Target})
		return nil

	case ActionRefuse:
		return ErrNoTarget
	}
	return nil
}

// Origin returns the terminal a submission should go to.
func (a *Arbiter) Origin() (terminal.Session, error) {
	o := a.origin()
	if o.IsZero() || !a.dir.Alive(o) {
		return terminal.Session{}, ErrNoTarget
	}
	return o, nil
}

// MarkTerminalFocused records that s now has focus.
func (a *Arbiter) MarkTerminalFocused(s terminal.Session) {
	a.set(State{Kind: StateTerminalFocused, Session: s})
}

// Observe seeds the state from a newly attached terminal. Only an Unknown
// state is changed.
func (a *Arbiter) Observe(s terminal.Session) {
	if a.state.Kind == StateUnknown && !s.IsZero() {
		a.set(State{Kind: StateTerminalFocused, Session: s})
	}
}

func (a *Arbiter) set(s State) {
	if s.Kind != a.state.Kind || s.Session.Handle != a.state.Session.Handle {
		a.log.Debug("focus state", "from", a.state, "to", s)
	}
	a.state = s
}
