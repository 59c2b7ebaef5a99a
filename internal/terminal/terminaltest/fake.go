// Package terminaltest provides in-memory window and process tables for
// tests.
package terminaltest

import (
	"fmt"
	"sync"

	"github.com/Gaurav-Gosain/mojibridge/internal/terminal"
)

// System is a fake terminal.System. Activate moves the foreground unless the
// handle is configured to refuse or to be silently ignored.
type System struct {
	mu          sync.Mutex
	windows     map[terminal.Handle]terminal.Window
	order       []terminal.Handle
	fg          terminal.Handle
	activations []terminal.Handle
	refuse      map[terminal.Handle]bool
	ignore      map[terminal.Handle]bool
}

// NewSystem returns an empty window table.
func NewSystem() *System {
	return &System{
		windows: make(map[terminal.Handle]terminal.Window),
		refuse:  make(map[terminal.Handle]bool),
		ignore:  make(map[terminal.Handle]bool),
	}
}

// Add opens a window (or replaces the one with the same handle).
func (s *System) Add(w terminal.Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.windows[w.Handle]; !ok {
		s.order = append(s.order, w.Handle)
	}
	s.windows[w.Handle] = w
}

// Close destroys a window.
func (s *System) Close(h terminal.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, h)
	for i, o := range s.order {
		if o == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.fg == h {
		s.fg = 0
	}
}

// SetForeground moves the foreground as if the user clicked h.
func (s *System) SetForeground(h terminal.Handle) {
	s.mu.Lock()
	s.fg = h
	s.mu.Unlock()
}

// Refuse makes Activate(h) fail.
func (s *System) Refuse(h terminal.Handle) {
	s.mu.Lock()
	s.refuse[h] = true
	s.mu.Unlock()
}

// Ignore makes Activate(h) report success without moving the foreground,
// like a focus-stealing guard that blocks silently.
func (s *System) Ignore(h terminal.Handle) {
	s.mu.Lock()
	s.ignore[h] = true
	s.mu.Unlock()
}

// Activations returns every handle passed to Activate, in order.
func (s *System) Activations() []terminal.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]terminal.Handle(nil), s.activations...)
}

// Windows implements terminal.System.
func (s *System) Windows() ([]terminal.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]terminal.Window, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, s.windows[h])
	}
	return out, nil
}

// Describe implements terminal.System.
func (s *System) Describe(h terminal.Handle) (terminal.Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[h]
	return w, ok
}

// Foreground implements terminal.System.
func (s *System) Foreground() terminal.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fg
}

// Activate implements terminal.System.
func (s *System) Activate(h terminal.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activations = append(s.activations, h)
	if _, ok := s.windows[h]; !ok {
		return fmt.Errorf("activate %s: %w", h, terminal.ErrWindowGone)
	}
	if s.refuse[h] {
		return fmt.Errorf("activate %s: %w", h, terminal.ErrActivate)
	}
	if !s.ignore[h] {
		s.fg = h
	}
	return nil
}

// Processes is a fake terminal.Processes.
type Processes struct {
	mu    sync.Mutex
	procs map[int32]terminal.Process
}

// NewProcesses returns a table holding procs.
func NewProcesses(procs ...terminal.Process) *Processes {
	p := &Processes{procs: make(map[int32]terminal.Process)}
	for _, pr := range procs {
		p.procs[pr.PID] = pr
	}
	return p
}

// Add starts a process.
func (p *Processes) Add(pr terminal.Process) {
	p.mu.Lock()
	p.procs[pr.PID] = pr
	p.mu.Unlock()
}

// Kill removes a process.
func (p *Processes) Kill(pid int32) {
	p.mu.Lock()
	delete(p.procs, pid)
	p.mu.Unlock()
}

// Lookup implements terminal.Processes.
func (p *Processes) Lookup(pid int32) (terminal.Process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.procs[pid]
	if !ok {
		return terminal.Process{}, fmt.Errorf("process %d not found", pid)
	}
	return pr, nil
}
