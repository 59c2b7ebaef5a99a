package singleton

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Gaurav-Gosain/mojibridge/internal/app"
	"github.com/Gaurav-Gosain/mojibridge/internal/config"
	"github.com/Gaurav-Gosain/mojibridge/internal/session"
	"github.com/Gaurav-Gosain/mojibridge/internal/terminal"
	"github.com/Gaurav-Gosain/mojibridge/internal/terminal/terminaltest"
)

type fakeBridges struct {
	mu     sync.Mutex
	wins   []terminal.Window
	starts map[int32]int64
	err    error
}

func (f *fakeBridges) Bridges() ([]terminal.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]terminal.Window(nil), f.wins...), f.err
}

func (f *fakeBridges) StartTime(pid int32) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts[pid]
}

type recordingHandler struct {
	mu       sync.Mutex
	attaches []session.AttachPayload
}

func (h *recordingHandler) Welcome() session.WelcomePayload {
	return session.WelcomePayload{Version: session.ProtocolVersion, PID: 1, Label: "owner"}
}

func (h *recordingHandler) Attach(_ context.Context, req session.AttachPayload) (session.AttachedPayload, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attaches = append(h.attaches, req)
	return session.AttachedPayload{SessionID: "s", Window: req.Window, BridgeLabel: "owner"}, nil
}

func (h *recordingHandler) Sessions(context.Context) ([]session.SessionInfo, error) { return nil, nil }
func (h *recordingHandler) Stop(context.Context) error                             { return nil }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.attaches)
}

// loopback is a TCP endpoint whose claim can be pre-empted.
type loopback struct {
	mu   sync.Mutex
	addr string
}

func (e *loopback) Listen() (net.Listener, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.addr != "" {
		return nil, session.ErrInUse
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	e.addr = l.Addr().String()
	return l, nil
}

func (e *loopback) Dial(ctx context.Context) (net.Conn, error) {
	e.mu.Lock()
	addr := e.addr
	e.mu.Unlock()
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

func (e *loopback) String() string { return "loopback" }

func serve(t *testing.T, l net.Listener, h session.Handler) {
	t.Helper()
	srv := session.NewServer(l, h, nil)
	go func() { _ = srv.Serve(context.Background()) }()
	t.Cleanup(srv.Close)
}

// =============================================================================
// AcquireOrForward
// =============================================================================

func TestFirstCallerOwns(t *testing.T) {
	ep := &loopback{}
	g := New(ep, &fakeBridges{}, nil)

	res, err := g.AcquireOrForward(context.Background(), session.AttachPayload{Window: 0x10})
	if err != nil {
		t.Fatalf("AcquireOrForward: %v", err)
	}
	if res.Outcome != Owner || res.Listener == nil {
		t.Fatalf("result = %+v, want owner with listener", res)
	}
	res.Listener.Close()
}

func TestSecondCallerForwards(t *testing.T) {
	ep := &loopback{}
	h := &recordingHandler{}
	first, err := New(ep, &fakeBridges{}, nil).AcquireOrForward(context.Background(), session.AttachPayload{})
	if err != nil || first.Outcome != Owner {
		t.Fatalf("first = %+v, %v", first, err)
	}
	serve(t, first.Listener, h)

	req := session.AttachPayload{Window: 0x20, WindowPID: 7, Label: "api"}
	res, err := New(ep, &fakeBridges{}, nil).AcquireOrForward(context.Background(), req)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if res.Outcome != Forwarded || res.Listener != nil {
		t.Fatalf("second result = %+v, want forwarded", res)
	}
	if res.Peer.Label != "owner" || res.Attached == nil || res.Attached.Window != 0x20 {
		t.Errorf("peer = %+v attached = %+v", res.Peer, res.Attached)
	}
	if h.count() != 1 {
		t.Errorf("owner received %d attaches, want 1", h.count())
	}
}

func TestLiveBridgeWindowForwardsWithoutClaim(t *testing.T) {
	ep := &loopback{}
	owner, _ := ep.Listen()
	h := &recordingHandler{}
	serve(t, owner, h)

	// the window is found first, so the endpoint is never claimed again
	dir := &fakeBridges{wins: []terminal.Window{{Handle: 0x40, PID: 1, Title: "MojiBridge"}}}
	res, err := New(ep, dir, nil).AcquireOrForward(context.Background(), session.AttachPayload{Window: 0x10})
	if err != nil || res.Outcome != Forwarded {
		t.Fatalf("result = %+v, %v", res, err)
	}
}

func TestConcurrentLaunchesElectOneOwner(t *testing.T) {
	const n = 8
	ep := &loopback{}
	h := &recordingHandler{}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		owners int
		fwd    int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := New(ep, &fakeBridges{}, nil)
			g.Delay = 10 * time.Millisecond
			res, err := g.AcquireOrForward(context.Background(), session.AttachPayload{Window: uint64(0x100 + i)})
			if err != nil {
				t.Errorf("launch %d: %v", i, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Outcome == Owner {
				owners++
				serve(t, res.Listener, h)
			} else {
				fwd++
			}
		}()
	}
	wg.Wait()

	if owners != 1 || fwd != n-1 {
		t.Fatalf("owners=%d forwarded=%d, want 1 and %d", owners, fwd, n-1)
	}
	if got := h.count(); got != n-1 {
		t.Errorf("owner received %d attaches, want %d", got, n-1)
	}
}

func TestForwardGivesUp(t *testing.T) {
	ep := &loopback{addr: "127.0.0.1:1"}
	g := New(ep, &fakeBridges{}, nil)
	g.Attempts, g.Delay = 2, time.Millisecond

	_, err := g.AcquireOrForward(context.Background(), session.AttachPayload{})
	if !errors.Is(err, session.ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
}

// =============================================================================
// Confirm
// =============================================================================

func TestConfirm(t *testing.T) {
	const self = 500
	tests := []struct {
		name   string
		wins   []terminal.Window
		starts map[int32]int64
		yield  bool
	}{
		{
			name:   "alone",
			starts: map[int32]int64{self: 1000},
		},
		{
			name:   "older bridge wins",
			wins:   []terminal.Window{{Handle: 0x50, PID: 600}},
			starts: map[int32]int64{self: 1000, 600: 900},
			yield:  true,
		},
		{
			name:   "younger bridge yields to us",
			wins:   []terminal.Window{{Handle: 0x50, PID: 600}},
			starts: map[int32]int64{self: 1000, 600: 1100},
		},
		{
			name:   "same start time, lower pid wins",
			wins:   []terminal.Window{{Handle: 0x50, PID: 400}},
			starts: map[int32]int64{self: 1000, 400: 1000},
			yield:  true,
		},
		{
			name:   "same start time, higher pid loses",
			wins:   []terminal.Window{{Handle: 0x50, PID: 600}},
			starts: map[int32]int64{self: 1000, 600: 1000},
		},
		{
			name:   "exiting process ignored",
			wins:   []terminal.Window{{Handle: 0x50, PID: 600}},
			starts: map[int32]int64{self: 1000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(&loopback{}, &fakeBridges{wins: tt.wins, starts: tt.starts}, nil)
			w, err := g.Confirm(self)
			if tt.yield {
				if !errors.Is(err, app.ErrDuplicateInstance) {
					t.Fatalf("Confirm = %v, want ErrDuplicateInstance", err)
				}
				if w.Handle != 0x50 {
					t.Errorf("yield target = %s, want 0x50", w.Handle)
				}
				return
			}
			if err != nil {
				t.Fatalf("Confirm = %v, want nil", err)
			}
		})
	}
}

// =============================================================================
// Yield
// =============================================================================

func TestYieldHandsAttachToOlderBridge(t *testing.T) {
	const self = 500
	ep := &loopback{}
	mine, err := ep.Listen()
	if err != nil {
		t.Fatal(err)
	}

	older := &recordingHandler{}
	dir := &fakeBridges{
		wins:   []terminal.Window{{Handle: 0x50, PID: 400}},
		starts: map[int32]int64{self: 1000, 400: 900},
	}
	g := New(ep, dir, nil)
	g.Delay = time.Millisecond

	released := false
	release := func() {
		released = true
		mine.Close()
		ep.mu.Lock()
		ep.addr = ""
		ep.mu.Unlock()
		// the older bridge takes the endpoint back
		l, err := ep.Listen()
		if err != nil {
			t.Errorf("reclaim: %v", err)
			return
		}
		serve(t, l, older)
	}

	req := session.AttachPayload{Window: 0x10, WindowPID: 100, Label: "api"}
	w, yielded, err := g.Yield(context.Background(), self, req, release)
	if err != nil {
		t.Fatalf("Yield: %v", err)
	}
	if !yielded || !released || w.Handle != 0x50 {
		t.Fatalf("yielded=%v released=%v older=%+v", yielded, released, w)
	}
	older.mu.Lock()
	defer older.mu.Unlock()
	if len(older.attaches) != 1 || older.attaches[0] != req {
		t.Errorf("older bridge attaches = %+v, want %+v", older.attaches, req)
	}
}

func TestYieldHandOffFailureStillYields(t *testing.T) {
	const self = 500
	ep := &loopback{addr: "127.0.0.1:1"}
	dir := &fakeBridges{
		wins:   []terminal.Window{{Handle: 0x50, PID: 400}},
		starts: map[int32]int64{self: 1000, 400: 900},
	}
	g := New(ep, dir, nil)
	g.Attempts, g.Delay = 2, time.Millisecond

	_, yielded, err := g.Yield(context.Background(), self, session.AttachPayload{Window: 0x10}, nil)
	if !yielded {
		t.Fatal("should yield to the older bridge")
	}
	if !errors.Is(err, session.ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
}

func TestYieldWithoutDuplicateKeepsRunning(t *testing.T) {
	const self = 500
	dir := &fakeBridges{
		wins:   []terminal.Window{{Handle: 0x50, PID: 600}},
		starts: map[int32]int64{self: 1000, 600: 1100},
	}
	called := false
	_, yielded, err := New(&loopback{}, dir, nil).Yield(context.Background(), self, session.AttachPayload{Window: 0x10}, func() { called = true })
	if yielded || called || err != nil {
		t.Errorf("yielded=%v release called=%v err=%v", yielded, called, err)
	}
}

func TestConfirmIgnoresHookPrompt(t *testing.T) {
	const self = 9000
	sys := terminaltest.NewSystem()
	sys.Add(terminal.Window{Handle: 0x40, PID: self, Title: "MojiBridge", Exe: "mojibridge.exe"})
	sys.Add(terminal.Window{Handle: 0x70, PID: 700, Title: "Enter your prompt - fix tests", Exe: "mojibridge.exe"})
	procs := terminaltest.NewProcesses(
		terminal.Process{PID: 700, PPID: 1, Name: "mojibridge.exe", CreateTime: 1000},
		terminal.Process{PID: self, PPID: 1, Name: "mojibridge.exe", CreateTime: 2000},
	)
	dir := terminal.NewDirectory(sys, procs, terminal.Options{
		Self:        self,
		SelfExe:     "mojibridge.exe",
		TitlePrefix: "MojiBridge",
		Hosts:       config.DefaultTerminalHosts,
	})

	g := New(&loopback{}, dir, nil)
	if w, err := g.Confirm(self); err != nil {
		t.Fatalf("Confirm = %+v, %v; the prompt is not a bridge", w, err)
	}
	if wins, _ := dir.Bridges(); len(wins) != 0 {
		t.Errorf("Bridges() = %+v, want none", wins)
	}
}
