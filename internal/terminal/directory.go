package terminal

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Options configures a Directory.
type Options struct {
	// Self is this process; its windows are always the bridge.
	Self int32
	// SelfExe is this executable's base name, used to spot other bridges.
	SelfExe     string
	TitlePrefix string
	Hosts       []string
	MaxDepth    int
	Rules       []Rule
	Logger      *log.Logger
	Now         func() time.Time
}

// TrackRequest asks the directory to track a terminal explicitly.
type TrackRequest struct {
	Handle Handle
	// PID, when set, must own Handle.
	PID         int32
	ClientPID   int32
	Label       string
	HostSession string
	Cwd         string
}

// Directory classifies windows and owns the terminal session records. Every
// query re-reads the OS window table; the session map only keeps identities
// stable across queries and is pruned each time.
type Directory struct {
	sys   System
	procs Processes
	log   *log.Logger
	now   func() time.Time

	self        int32
	selfExe     string
	titlePrefix string
	hosts       map[string]struct{}
	maxDepth    int
	rules       []Rule

	mu       sync.Mutex
	sessions map[Handle]*Session
}

// NewDirectory returns a directory over the given OS adapters.
func NewDirectory(sys System, procs Processes, opts Options) *Directory {
	d := &Directory{
		sys:         sys,
		procs:       procs,
		log:         opts.Logger,
		now:         opts.Now,
		self:        opts.Self,
		selfExe:     opts.SelfExe,
		titlePrefix: opts.TitlePrefix,
		rules:       opts.Rules,
		sessions:    make(map[Handle]*Session),
	}
	if d.log == nil {
		d.log = log.New(io.Discard)
	}
	if d.now == nil {
		d.now = time.Now
	}
	if len(d.rules) == 0 {
		d.rules = DefaultRules()
	}
	d.SetHosts(opts.Hosts, opts.MaxDepth)
	return d
}

// SetHosts replaces the terminal host list and the ancestry depth.
func (d *Directory) SetHosts(hosts []string, maxDepth int) {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		set[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}
	d.mu.Lock()
	d.hosts = set
	d.maxDepth = maxDepth
	d.mu.Unlock()
}

// Classify classifies h. Eligible windows get a session record, which is
// returned and marked active.
func (d *Directory) Classify(h Handle) (Class, Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.sys.Describe(h)
	if !ok {
		delete(d.sessions, h)
		return ClassOther, Session{}
	}
	class := d.classifyLocked(w)
	if class != ClassEligible {
		return class, Session{}
	}
	s := d.upsertLocked(w)
	s.LastActive = d.now()
	return class, *s
}

func (d *Directory) classifyLocked(w Window) Class {
	c := &Candidate{Window: w, dir: d}
	for _, r := range d.rules {
		if class, ok := r.Match(c); ok {
			d.log.Debug("classified window", "hwnd", w.Handle, "exe", w.Exe, "rule", r.Name(), "class", class)
			return class
		}
	}
	return ClassOther
}

func (d *Directory) upsertLocked(w Window) *Session {
	if s, ok := d.sessions[w.Handle]; ok && s.PID == w.PID {
		s.Title, s.Exe = w.Title, w.Exe
		return s
	}
	s := &Session{
		ID:         uuid.NewString(),
		Handle:     w.Handle,
		PID:        w.PID,
		Exe:        w.Exe,
		Title:      w.Title,
		LastActive: d.now(),
	}
	d.sessions[w.Handle] = s
	d.log.Debug("new terminal session", "id", s.ID, "hwnd", w.Handle, "pid", w.PID)
	return s
}

func (d *Directory) pruneLocked() {
	for h, s := range d.sessions {
		if w, ok := d.sys.Describe(h); !ok || w.PID != s.PID {
			d.log.Debug("terminal session gone", "id", s.ID, "hwnd", h)
			delete(d.sessions, h)
		}
	}
}

// EnumerateEligible re-reads the window table and returns every eligible
// terminal, most recently active first.
func (d *Directory) EnumerateEligible() ([]Session, error) {
	wins, err := d.sys.Windows()
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked()
	for _, w := range wins {
		if d.classifyLocked(w) == ClassEligible {
			d.upsertLocked(w)
		}
	}
	return d.snapshotLocked(), nil
}

// Sessions returns the known sessions after dropping dead ones.
func (d *Directory) Sessions() []Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked()
	return d.snapshotLocked()
}

func (d *Directory) snapshotLocked() []Session {
	out := make([]Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActive.Equal(out[j].LastActive) {
			return out[i].LastActive.After(out[j].LastActive)
		}
		return out[i].Handle < out[j].Handle
	})
	return out
}

// ResolveForegroundOwner returns the current foreground window.
func (d *Directory) ResolveForegroundOwner() Handle {
	return d.sys.Foreground()
}

// Track registers a terminal on behalf of a launcher. With no handle, the
// client's ancestry is searched for the nearest process owning a window.
func (d *Directory) Track(req TrackRequest) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := req.Handle
	if h == 0 && req.ClientPID != 0 {
		h = d.windowForClientLocked(req.ClientPID)
	}
	if h == 0 {
		return Session{}, fmt.Errorf("no window for client %d: %w", req.ClientPID, ErrNotEligible)
	}

	w, ok := d.sys.Describe(h)
	if !ok || (req.PID != 0 && w.PID != req.PID) {
		return Session{}, fmt.Errorf("track %s: %w", h, ErrWindowGone)
	}
	if d.classifyLocked(w) == ClassBridge {
		return Session{}, fmt.Errorf("track %s: %w", h, ErrNotEligible)
	}

	s := d.upsertLocked(w)
	s.Tracked = true
	if req.ClientPID != 0 {
		s.ClientPID = req.ClientPID
	}
	if req.Label != "" {
		s.Label = req.Label
	}
	if req.HostSession != "" {
		s.HostSession = req.HostSession
	}
	if req.Cwd != "" {
		s.Cwd = req.Cwd
	}
	s.LastActive = d.now()
	return *s, nil
}

func (d *Directory) windowForClientLocked(client int32) Handle {
	wins, err := d.sys.Windows()
	if err != nil {
		return 0
	}
	byPID := make(map[int32]Window, len(wins))
	for _, w := range wins {
		if _, dup := byPID[w.PID]; !dup {
			byPID[w.PID] = w
		}
	}
	for _, p := range Ancestry(d.procs, client, d.maxDepth) {
		if w, ok := byPID[p.PID]; ok && p.PID != d.self {
			return w.Handle
		}
	}
	return 0
}

// Alive reports whether s still names the same live window.
func (d *Directory) Alive(s Session) bool {
	if s.IsZero() {
		return false
	}
	w, ok := d.sys.Describe(s.Handle)
	return ok && w.PID == s.PID
}

// Focus re-validates s and activates its window.
func (d *Directory) Focus(s Session) error {
	if !d.Alive(s) {
		d.mu.Lock()
		if cur, ok := d.sessions[s.Handle]; ok && cur.PID == s.PID {
			delete(d.sessions, s.Handle)
		}
		d.mu.Unlock()
		return fmt.Errorf("focus %s: %w", s.Handle, ErrWindowGone)
	}
	if err := d.sys.Activate(s.Handle); err != nil {
		return err
	}
	d.Touch(s)
	return nil
}

// FocusWindow activates an arbitrary live window, e.g. the bridge.
func (d *Directory) FocusWindow(h Handle) error {
	if _, ok := d.sys.Describe(h); !ok {
		return fmt.Errorf("focus %s: %w", h, ErrWindowGone)
	}
	return d.sys.Activate(h)
}

// Foreground returns the current foreground window.
func (d *Directory) Foreground() Handle { return d.sys.Foreground() }

// Touch marks s as active now.
func (d *Directory) Touch(s Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.sessions[s.Handle]; ok && cur.PID == s.PID {
		cur.LastActive = d.now()
	}
}

// Bridges lists bridge windows owned by other processes.
func (d *Directory) Bridges() ([]Window, error) {
	wins, err := d.sys.Windows()
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Window
	for _, w := range wins {
		if w.PID == d.self {
			continue
		}
		if d.classifyLocked(w) == ClassBridge {
			out = append(out, w)
		}
	}
	return out, nil
}

// OwnBridge finds this process's bridge window.
func (d *Directory) OwnBridge() (Window, bool) {
	wins, err := d.sys.Windows()
	if err != nil {
		return Window{}, false
	}
	for _, w := range wins {
		if w.PID == d.self && isBridgeTitle(w.Title, d.titlePrefix) {
			return w, true
		}
	}
	return Window{}, false
}

// StartTime returns the creation time of pid in milliseconds, or 0.
func (d *Directory) StartTime(pid int32) int64 {
	p, err := d.procs.Lookup(pid)
	if err != nil {
		return 0
	}
	return p.CreateTime
}
