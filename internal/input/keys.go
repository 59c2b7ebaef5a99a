// Package input injects synthetic key events into the focused window and
// listens for the global toggle hotkey.
package input

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Gaurav-Gosain/mojibridge/internal/config"
)

var (
	// ErrUnsupported is returned on platforms without key injection or
	// global hooks.
	ErrUnsupported = errors.New("keyboard integration not supported on this platform")
	// ErrInjection means the OS accepted fewer events than were sent.
	ErrInjection = errors.New("key injection failed")
)

// Virtual-key codes of the modifiers.
const (
	vkShift   uint16 = 0x10
	vkControl uint16 = 0x11
	vkMenu    uint16 = 0x12
	vkLWin    uint16 = 0x5B
	vkReturn  uint16 = 0x0D
)

// scanReturn is the set-1 scan code of Enter. Some console hosts ignore a
// virtual-key Enter but accept the scan code.
const scanReturn uint16 = 0x1C

// KeyEvent is one synthetic key transition.
type KeyEvent struct {
	VK uint16
	// Scan, when non-zero, is sent instead of VK.
	Scan uint16
	Up   bool
}

func (e KeyEvent) String() string {
	dir := "down"
	if e.Up {
		dir = "up"
	}
	if e.Scan != 0 {
		return fmt.Sprintf("scan:%#x %s", e.Scan, dir)
	}
	return fmt.Sprintf("vk:%#x %s", e.VK, dir)
}

// Injector delivers events to whichever window holds keyboard focus.
type Injector interface {
	Send(events []KeyEvent) error
}

// ChordEvents expands b into presses: modifiers down, key down, key up,
// modifiers up in reverse order.
func ChordEvents(b config.Binding) []KeyEvent {
	var mods []uint16
	if b.Mods&config.ModCtrl != 0 {
		mods = append(mods, vkControl)
	}
	if b.Mods&config.ModShift != 0 {
		mods = append(mods, vkShift)
	}
	if b.Mods&config.ModAlt != 0 {
		mods = append(mods, vkMenu)
	}
	if b.Mods&config.ModWin != 0 {
		mods = append(mods, vkLWin)
	}

	key := KeyEvent{VK: b.VK}
	if b.VK == vkReturn && b.Mods == 0 {
		key.Scan = scanReturn
	}

	events := make([]KeyEvent, 0, 2*len(mods)+2)
	for _, m := range mods {
		events = append(events, KeyEvent{VK: m})
	}
	events = append(events, key)
	up := key
	up.Up = true
	events = append(events, up)
	for i := len(mods) - 1; i >= 0; i-- {
		events = append(events, KeyEvent{VK: mods[i], Up: true})
	}
	return events
}

// Simulator issues the paste and confirm chords.
type Simulator struct {
	inj Injector

	mu      sync.RWMutex
	paste   config.Binding
	confirm config.Binding
}

// NewSimulator returns a simulator sending through inj.
func NewSimulator(inj Injector, paste, confirm config.Binding) *Simulator {
	return &Simulator{inj: inj, paste: paste, confirm: confirm}
}

// SetBindings replaces the chords.
func (s *Simulator) SetBindings(paste, confirm config.Binding) {
	s.mu.Lock()
	s.paste, s.confirm = paste, confirm
	s.mu.Unlock()
}

// Paste sends the paste chord.
func (s *Simulator) Paste() error {
	s.mu.RLock()
	b := s.paste
	s.mu.RUnlock()
	return s.send("paste", b)
}

// Confirm sends the confirm key.
func (s *Simulator) Confirm() error {
	s.mu.RLock()
	b := s.confirm
	s.mu.RUnlock()
	return s.send("confirm", b)
}

func (s *Simulator) send(what string, b config.Binding) error {
	if err := s.inj.Send(ChordEvents(b)); err != nil {
		return fmt.Errorf("%s %s: %w", what, b, err)
	}
	return nil
}
