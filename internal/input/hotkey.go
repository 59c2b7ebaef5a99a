package input

import (
	"io"
	"sync"

	"github.com/Gaurav-Gosain/mojibridge/internal/config"
	"github.com/charmbracelet/log"
)

// KeyState is one physical key transition seen by the hook.
type KeyState struct {
	VK   uint16
	Down bool
	Mods config.Modifier
	// Injected is set for synthetic events, including our own paste chord.
	Injected bool
}

type chord struct {
	mods config.Modifier
	vk   uint16
}

// Listener routes global key presses to registered handlers.
type Listener struct {
	log *log.Logger

	mu       sync.Mutex
	handlers map[chord]func() bool
	// held records keys whose press was dispatched, with whether it was
	// swallowed. Repeats and the release follow the press.
	held map[uint16]bool
}

// NewListener returns a listener with no bindings.
func NewListener(logger *log.Logger) *Listener {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Listener{
		log:      logger,
		handlers: make(map[chord]func() bool),
		held:     make(map[uint16]bool),
	}
}

// Register binds h to b, replacing any previous handler. h reports whether
// the key was consumed; false lets the keystroke reach the focused window.
func (l *Listener) Register(b config.Binding, h func() bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[chord{b.Mods, b.VK}] = h
}

// Unregister removes the handler bound to b.
func (l *Listener) Unregister(b config.Binding) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, chord{b.Mods, b.VK})
}

// Bound reports whether b has a handler.
func (l *Listener) Bound(b config.Binding) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.handlers[chord{b.Mods, b.VK}]
	return ok
}

// dispatch decides whether ev is swallowed. It runs on the hook thread and
// must return quickly.
func (l *Listener) dispatch(ev KeyState) bool {
	if ev.Injected {
		return false
	}

	l.mu.Lock()
	swallowed, isHeld := l.held[ev.VK]
	if !ev.Down {
		delete(l.held, ev.VK)
		l.mu.Unlock()
		return isHeld && swallowed
	}
	if isHeld {
		// auto-repeat
		l.mu.Unlock()
		return swallowed
	}
	h, ok := l.handlers[chord{ev.Mods, ev.VK}]
	l.mu.Unlock()
	if !ok {
		return false
	}

	intercept := l.call(h)

	l.mu.Lock()
	l.held[ev.VK] = intercept
	l.mu.Unlock()
	return intercept
}

func (l *Listener) call(h func() bool) (intercept bool) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("hotkey handler panicked", "panic", r)
			intercept = false
		}
	}()
	return h()
}
