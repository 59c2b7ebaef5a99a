// Package singleton makes sure one bridge window serves every terminal.
//
// Liveness is decided by enumerating bridge windows, not by lock files. The
// instance endpoint is only a rendezvous for handing attaches to the owner,
// and its claim is atomic so that concurrent launches elect one owner.
package singleton

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Gaurav-Gosain/mojibridge/internal/app"
	"github.com/Gaurav-Gosain/mojibridge/internal/session"
	"github.com/Gaurav-Gosain/mojibridge/internal/terminal"
	"github.com/charmbracelet/log"
)

// Outcome is the result of AcquireOrForward.
type Outcome int

const (
	// Owner means this process must create the bridge window.
	Owner Outcome = iota
	// Forwarded means a live bridge took the attach; this process exits.
	Forwarded
)

func (o Outcome) String() string {
	if o == Forwarded {
		return "forwarded"
	}
	return "owner"
}

// Result describes the elected role.
type Result struct {
	Outcome Outcome
	// Listener is the claimed endpoint (Owner only). The owner serves it.
	Listener net.Listener
	// Peer and Attached describe the bridge that took the attach
	// (Forwarded only).
	Peer     session.WelcomePayload
	Attached *session.AttachedPayload
}

// Bridges lists bridge windows of other processes.
type Bridges interface {
	Bridges() ([]terminal.Window, error)
	StartTime(pid int32) int64
}

// Guard elects the bridge owner.
type Guard struct {
	ep  session.Endpoint
	dir Bridges
	log *log.Logger

	// Attempts and Delay bound dialing an owner that has claimed the
	// endpoint but is not serving yet.
	Attempts int
	Delay    time.Duration
}

// New returns a guard over ep.
func New(ep session.Endpoint, dir Bridges, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Guard{ep: ep, dir: dir, log: logger, Attempts: 50, Delay: 100 * time.Millisecond}
}

// AcquireOrForward either claims ownership or hands req to the live bridge.
// A zero req is forwarded as a plain ping.
func (g *Guard) AcquireOrForward(ctx context.Context, req session.AttachPayload) (Result, error) {
	if wins, err := g.dir.Bridges(); err != nil {
		g.log.Debug("bridge enumeration unavailable", "err", err)
	} else if len(wins) > 0 {
		g.log.Debug("live bridge found", "hwnd", wins[0].Handle, "pid", wins[0].PID)
		res, err := g.forward(ctx, req)
		if err == nil || !errors.Is(err, session.ErrNotRunning) {
			return res, err
		}
		// a window without a reachable endpoint; claim it and let Confirm
		// settle any duplicate
		g.log.Warn("bridge window found but endpoint unreachable", "err", err)
	}

	l, err := g.ep.Listen()
	switch {
	case err == nil:
		g.log.Info("claimed instance endpoint", "endpoint", g.ep)
		return Result{Outcome: Owner, Listener: l}, nil
	case errors.Is(err, session.ErrInUse):
		return g.forward(ctx, req)
	default:
		return Result{}, fmt.Errorf("claim %s: %w", g.ep, err)
	}
}

func (g *Guard) forward(ctx context.Context, req session.AttachPayload) (Result, error) {
	var lastErr error
	for attempt := 0; attempt < max(1, g.Attempts); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(g.Delay):
			}
		}

		dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		c, err := session.Dial(dctx, g.ep)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		res := Result{Outcome: Forwarded, Peer: c.Welcome}
		if req == (session.AttachPayload{}) {
			err = c.Ping()
		} else {
			res.Attached, err = c.Attach(req)
		}
		_ = c.Close()
		if err != nil {
			return res, fmt.Errorf("forward to pid %d: %w", c.Welcome.PID, err)
		}
		g.log.Info("forwarded to running bridge", "pid", c.Welcome.PID, "label", c.Welcome.Label)
		return res, nil
	}
	return Result{}, lastErr
}

// Confirm re-checks, once the owner's window exists, that no older bridge
// is also alive. If one is, it is returned with app.ErrDuplicateInstance and
// this process should forward to it and exit.
func (g *Guard) Confirm(self int32) (terminal.Window, error) {
	wins, err := g.dir.Bridges()
	if err != nil {
		return terminal.Window{}, nil
	}
	mine := g.dir.StartTime(self)
	for _, w := range wins {
		theirs := g.dir.StartTime(w.PID)
		if theirs == 0 {
			// exiting
			continue
		}
		if older(theirs, w.PID, mine, self) {
			g.log.Info("older bridge running, yielding", "pid", w.PID, "hwnd", w.Handle)
			return w, app.ErrDuplicateInstance
		}
	}
	return terminal.Window{}, nil
}

// Forward hands req to whichever bridge serves the endpoint, retrying while
// one comes up. A zero req is sent as a ping.
func (g *Guard) Forward(ctx context.Context, req session.AttachPayload) (Result, error) {
	return g.forward(ctx, req)
}

// Yield settles a duplicate found by Confirm. When an older bridge exists,
// release is called to give up this process's endpoint and req is then
// forwarded to whoever serves it. yielded reports that the caller must exit;
// err is a failed hand-off, which does not change that.
//
// A duplicate is only reachable when the older bridge's endpoint was
// unreachable at startup, so the hand-off succeeds only if that bridge has
// recovered its endpoint since.
func (g *Guard) Yield(ctx context.Context, self int32, req session.AttachPayload, release func()) (older terminal.Window, yielded bool, err error) {
	older, err = g.Confirm(self)
	if !errors.Is(err, app.ErrDuplicateInstance) {
		return terminal.Window{}, false, nil
	}
	if release != nil {
		release()
	}
	if req == (session.AttachPayload{}) {
		return older, true, nil
	}
	if _, err := g.Forward(ctx, req); err != nil {
		return older, true, fmt.Errorf("hand terminal to pid %d: %w", older.PID, err)
	}
	return older, true, nil
}

// older orders processes by creation time, then PID.
func older(startA int64, pidA int32, startB int64, pidB int32) bool {
	if startB == 0 {
		return true
	}
	if startA != startB {
		return startA < startB
	}
	return pidA < pidB
}
