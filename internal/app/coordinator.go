package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gaurav-Gosain/mojibridge/internal/clipboard"
	"github.com/Gaurav-Gosain/mojibridge/internal/config"
	"github.com/Gaurav-Gosain/mojibridge/internal/session"
	"github.com/Gaurav-Gosain/mojibridge/internal/terminal"
	"github.com/charmbracelet/log"
)

// StatusKind styles a status line message.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusError
)

// View is the bridge window as driven by the coordinator. Implementations
// must not block: every call is made from the coordinator loop.
type View interface {
	SetLabel(label string)
	ClearBuffer()
	ShowStatus(msg string, kind StatusKind)
	Raise()
}

// Hotkeys is the global hotkey registry.
type Hotkeys interface {
	Register(b config.Binding, h func() bool)
	Unregister(b config.Binding)
}

// Options configures a Coordinator.
type Options struct {
	Config    *config.Config
	Directory Directory
	Clipboard clipboard.Channel
	Keys      Keys
	// Hotkeys, if set, gets the toggle binding registered.
	Hotkeys Hotkeys
	Label   string
	Logger  *log.Logger
	// OnStop is called on the loop when a stop is requested over IPC.
	OnStop func()
	Now    func() time.Time
}

type request func(ctx context.Context)

// Coordinator serialises every state change of the bridge on one goroutine.
// Hotkey presses, form events, attaches and config reloads are all queued
// here; the arbiter, pipeline and instance are only touched by Run.
type Coordinator struct {
	reqs chan request
	done chan struct{}

	dir     Directory
	arb     *Arbiter
	pipe    *Pipeline
	inst    *Instance
	keys    Keys
	hotkeys Hotkeys
	log     *log.Logger
	onStop  func()
	now     func() time.Time

	// set once by SetView before Run
	view View

	cfg             *config.Config
	toggle          config.Binding
	decisionTimeout atomic.Int64

	bridge    atomic.Uintptr
	startedAt time.Time
	stopOnce  sync.Once
}

// NewCoordinator wires the arbiter and pipeline around opts.
func NewCoordinator(opts Options) (*Coordinator, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	toggle, err := config.ParseBinding(cfg.Hotkey.Toggle)
	if err != nil {
		return nil, fmt.Errorf("toggle hotkey: %w", err)
	}

	inst := NewInstance(cfg.Window.Title, opts.Label, now())
	arb := NewArbiter(opts.Directory, logger.WithPrefix("arbiter"))
	pipe := NewPipeline(opts.Clipboard, opts.Keys, opts.Directory, arb, inst, TimingsFrom(cfg.Submission), logger.WithPrefix("submit"))
	pipe.now = now

	c := &Coordinator{
		reqs:      make(chan request, 64),
		done:      make(chan struct{}),
		dir:       opts.Directory,
		arb:       arb,
		pipe:      pipe,
		inst:      inst,
		keys:      opts.Keys,
		hotkeys:   opts.Hotkeys,
		log:       logger,
		onStop:    opts.OnStop,
		now:       now,
		cfg:       cfg,
		toggle:    toggle,
		startedAt: now(),
	}
	c.decisionTimeout.Store(int64(cfg.Hotkey.DecisionTimeout.D()))
	if c.hotkeys != nil {
		c.hotkeys.Register(toggle, c.Hotkey)
	}
	return c, nil
}

// Instance returns the bridge instance. Only the loop may mutate it.
func (c *Coordinator) Instance() *Instance { return c.inst }

// SetView attaches the bridge window. It must be called before Run.
func (c *Coordinator) SetView(v View) {
	c.view = v
	if v != nil {
		v.SetLabel(c.inst.Label())
	}
}

// Run processes requests until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.stopOnce.Do(func() { close(c.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-c.reqs:
			c.exec(ctx, req)
		}
	}
}

func (c *Coordinator) exec(ctx context.Context, req request) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("request panicked", "panic", r)
		}
	}()
	req(ctx)
}

func (c *Coordinator) enqueue(ctx context.Context, req request) error {
	select {
	case c.reqs <- req:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the loop and waits for it.
func (c *Coordinator) call(ctx context.Context, fn func(ctx context.Context)) error {
	finished := make(chan struct{})
	if err := c.enqueue(ctx, func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// Hotkey
// =============================================================================

// decision is the handshake between a waiting hotkey callback and the loop.
// Whichever side gets the mutex first wins: a decided request is executed,
// an abandoned one is not.
type decision struct {
	mu        sync.Mutex
	decided   bool
	abandoned bool
	intercept bool
	ready     chan struct{}
}

func (d *decision) decide(intercept bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.abandoned {
		return false
	}
	d.decided, d.intercept = true, intercept
	close(d.ready)
	return true
}

// abandon gives up on d unless it was already decided.
func (d *decision) abandon() (intercept, decided bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.decided {
		return d.intercept, true
	}
	d.abandoned = true
	return false, false
}

// Hotkey handles a toggle press and reports whether to swallow the key. It
// blocks for at most the decision timeout; after that the key passes through
// and the press is dropped.
func (c *Coordinator) Hotkey() bool {
	timeout := time.Duration(c.decisionTimeout.Load())
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	d := &decision{ready: make(chan struct{})}
	if err := c.enqueue(ctx, func(context.Context) { c.handleHotkey(d) }); err != nil {
		c.log.Warn("hotkey dropped", "err", err)
		return false
	}

	select {
	case <-d.ready:
		return d.intercept
	case <-ctx.Done():
	case <-c.done:
	}
	intercept, decided := d.abandon()
	if !decided {
		c.log.Warn("hotkey decision timed out, passing key through", "timeout", timeout)
	}
	return intercept
}

func (c *Coordinator) handleHotkey(d *decision) {
	plan := c.arb.Plan(c.dir.ResolveForegroundOwner())
	if !d.decide(plan.Intercept()) {
		c.log.Debug("abandoned hotkey request skipped", "action", plan.Action)
		return
	}
	c.log.Debug("hotkey", "action", plan.Action, "fg", plan.Foreground, "target", plan.Target.Handle)

	err := c.arb.Execute(plan)
	switch {
	case err == nil && plan.Action == ActionShowBridge:
		c.raise()
	case errors.Is(err, ErrNoTarget):
		c.status("No terminal to return to", StatusError)
		c.log.Info("hotkey refused", "err", err)
	case err != nil:
		c.log.Warn("hotkey focus change failed", "action", plan.Action, "err", err)
	}
}

// =============================================================================
// Form events
// =============================================================================

// TextChanged records the current buffer text.
func (c *Coordinator) TextChanged(text string) {
	if err := c.enqueue(context.Background(), func(context.Context) { c.inst.SetBuffer(text) }); err != nil {
		c.log.Debug("text change dropped", "err", err)
	}
}

// SubmitRequested submits the buffer without waiting for the result, which
// is reported through the view.
func (c *Coordinator) SubmitRequested() {
	if err := c.enqueue(context.Background(), func(ctx context.Context) {
		_, _ = c.submit(ctx, c.inst.Buffer())
	}); err != nil {
		c.log.Debug("submit dropped", "err", err)
	}
}

// Submit replaces the buffer with text and submits it.
func (c *Coordinator) Submit(ctx context.Context, text string) (Acknowledged, error) {
	var (
		ack Acknowledged
		err error
	)
	if cerr := c.call(ctx, func(ctx context.Context) {
		c.inst.SetBuffer(text)
		ack, err = c.submit(ctx, text)
	}); cerr != nil {
		return Acknowledged{}, cerr
	}
	return ack, err
}

func (c *Coordinator) submit(ctx context.Context, text string) (Acknowledged, error) {
	ack, err := c.pipe.Submit(ctx, text)
	switch {
	case err == nil:
		if c.view != nil {
			c.view.ClearBuffer()
		}
		c.status("Sent", StatusSuccess)
	case errors.Is(err, ErrEmpty):
	case errors.Is(err, ErrClipboardUnavailable):
		c.status("Clipboard error: "+err.Error(), StatusError)
	default:
		c.status("Send error: "+err.Error(), StatusError)
	}
	if err != nil && !errors.Is(err, ErrEmpty) {
		c.log.Warn("submission failed", "err", err)
	}
	return ack, err
}

// =============================================================================
// Queries and control
// =============================================================================

// State returns the current focus state.
func (c *Coordinator) State(ctx context.Context) (State, error) {
	var s State
	err := c.call(ctx, func(context.Context) { s = c.arb.State() })
	return s, err
}

// SetBridge records the bridge window handle once it exists.
func (c *Coordinator) SetBridge(h terminal.Handle) {
	c.bridge.Store(uintptr(h))
	_ = c.enqueue(context.Background(), func(context.Context) {
		c.inst.SetHandle(h)
		c.arb.SetBridge(h)
	})
}

// Track attaches the terminal the resident was launched from.
func (c *Coordinator) Track(ctx context.Context, req terminal.TrackRequest) (terminal.Session, error) {
	var (
		s   terminal.Session
		err error
	)
	if cerr := c.call(ctx, func(context.Context) { s, err = c.track(req) }); cerr != nil {
		return terminal.Session{}, cerr
	}
	return s, err
}

func (c *Coordinator) track(req terminal.TrackRequest) (terminal.Session, error) {
	s, err := c.dir.Track(req)
	if err != nil {
		return terminal.Session{}, err
	}
	c.arb.Observe(s)
	c.log.Info("terminal attached", "id", s.ID, "hwnd", s.Handle, "pid", s.PID, "label", s.Label)
	return s, nil
}

// ApplyConfig swaps in a reloaded configuration.
func (c *Coordinator) ApplyConfig(ctx context.Context, cfg *config.Config) error {
	toggle, err := config.ParseBinding(cfg.Hotkey.Toggle)
	if err != nil {
		return err
	}
	paste, err := config.ParseBinding(cfg.Hotkey.Paste)
	if err != nil {
		return err
	}
	confirm, err := config.ParseBinding(cfg.Hotkey.Confirm)
	if err != nil {
		return err
	}
	return c.call(ctx, func(context.Context) {
		c.cfg = cfg
		c.pipe.Timings = TimingsFrom(cfg.Submission)
		c.decisionTimeout.Store(int64(cfg.Hotkey.DecisionTimeout.D()))
		c.dir.SetHosts(cfg.Terminal.Hosts, cfg.Terminal.MaxAncestry)
		if kb, ok := c.keys.(interface{ SetBindings(paste, confirm config.Binding) }); ok {
			kb.SetBindings(paste, confirm)
		}
		if c.hotkeys != nil && toggle != c.toggle {
			c.hotkeys.Unregister(c.toggle)
			c.hotkeys.Register(toggle, c.Hotkey)
			c.toggle = toggle
		}
		c.log.Info("configuration reloaded", "toggle", toggle)
	})
}

func (c *Coordinator) status(msg string, kind StatusKind) {
	if c.view != nil {
		c.view.ShowStatus(msg, kind)
	}
}

func (c *Coordinator) raise() {
	if c.view != nil {
		c.view.Raise()
	}
}

// =============================================================================
// session.Handler
// =============================================================================

var _ session.Handler = (*Coordinator)(nil)

// Welcome implements session.Handler.
func (c *Coordinator) Welcome() session.WelcomePayload {
	return session.WelcomePayload{
		Version:   session.ProtocolVersion,
		PID:       os.Getpid(),
		Label:     c.inst.Label(),
		Window:    uint64(c.bridge.Load()),
		StartedAt: c.startedAt,
	}
}

// Attach implements session.Handler.
func (c *Coordinator) Attach(ctx context.Context, req session.AttachPayload) (session.AttachedPayload, error) {
	s, err := c.Track(ctx, terminal.TrackRequest{
		Handle:      terminal.Handle(req.Window),
		PID:         req.WindowPID,
		ClientPID:   req.ClientPID,
		Label:       req.Label,
		HostSession: req.HostSession,
		Cwd:         req.Cwd,
	})
	switch {
	case errors.Is(err, terminal.ErrWindowGone):
		return session.AttachedPayload{}, session.NewError(session.ErrCodeWindowGone, "%v", err)
	case errors.Is(err, terminal.ErrNotEligible):
		return session.AttachedPayload{}, session.NewError(session.ErrCodeNotEligible, "%v", err)
	case err != nil:
		return session.AttachedPayload{}, err
	}
	return session.AttachedPayload{
		SessionID:   s.ID,
		Window:      uint64(s.Handle),
		BridgeLabel: c.inst.Label(),
	}, nil
}

// Sessions implements session.Handler.
func (c *Coordinator) Sessions(ctx context.Context) ([]session.SessionInfo, error) {
	var out []session.SessionInfo
	err := c.call(ctx, func(context.Context) {
		origin := c.arb.origin()
		sessions, err := c.dir.EnumerateEligible()
		if err != nil {
			c.log.Debug("window enumeration failed, listing known sessions", "err", err)
			sessions = c.dir.Sessions()
		}
		for _, s := range sessions {
			out = append(out, session.SessionInfo{
				ID:          s.ID,
				Window:      uint64(s.Handle),
				PID:         s.PID,
				ClientPID:   s.ClientPID,
				Label:       s.Label,
				HostSession: s.HostSession,
				Cwd:         s.Cwd,
				Exe:         s.Exe,
				Title:       s.Title,
				Tracked:     s.Tracked,
				Origin:      !origin.IsZero() && origin.Handle == s.Handle && origin.PID == s.PID,
				LastActive:  s.LastActive,
			})
		}
	})
	return out, err
}

// Stop implements session.Handler.
func (c *Coordinator) Stop(ctx context.Context) error {
	return c.call(ctx, func(context.Context) {
		c.log.Info("stop requested")
		if c.onStop != nil {
			c.onStop()
		}
	})
}
