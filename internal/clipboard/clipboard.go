// Package clipboard gives scoped, verified access to the OS clipboard.
//
// The clipboard is process-wide and other programs may write to it at any
// time; writes here are last-writer-wins and previous contents are not
// restored.
package clipboard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	xclip "golang.design/x/clipboard"
)

// ErrUnavailable means the clipboard could not be opened or did not accept
// the text.
var ErrUnavailable = errors.New("clipboard unavailable")

// Channel puts and gets clipboard text.
type Channel interface {
	Write(text string) error
	Read() (string, error)
}

// System is the OS clipboard.
type System struct {
	mu       sync.Mutex
	initOnce sync.Once
	initErr  error

	// Attempts and Backoff cover other programs holding the clipboard open.
	Attempts int
	Backoff  time.Duration
}

// NewSystem returns the OS clipboard. Initialisation is deferred to the
// first use.
func NewSystem() *System {
	return &System{Attempts: 3, Backoff: 20 * time.Millisecond}
}

func (s *System) init() error {
	s.initOnce.Do(func() {
		if err := xclip.Init(); err != nil {
			s.initErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	})
	return s.initErr
}

// Write replaces the clipboard text and reads it back to confirm.
func (s *System) Write(text string) error {
	if err := s.init(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < max(1, s.Attempts); attempt++ {
		if attempt > 0 {
			time.Sleep(s.Backoff)
		}
		if xclip.Write(xclip.FmtText, []byte(text)) == nil {
			lastErr = fmt.Errorf("%w: write rejected", ErrUnavailable)
			continue
		}
		if got := string(xclip.Read(xclip.FmtText)); got != text {
			lastErr = fmt.Errorf("%w: read-back mismatch", ErrUnavailable)
			continue
		}
		return nil
	}
	return lastErr
}

// Read returns the clipboard text, or "" if it holds no text.
func (s *System) Read() (string, error) {
	if err := s.init(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(xclip.Read(xclip.FmtText)), nil
}

// Memory is an in-process clipboard.
type Memory struct {
	mu   sync.Mutex
	text string
	// Err, when set, fails every Write.
	Err    error
	writes int
}

// Write implements Channel.
func (m *Memory) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, m.Err)
	}
	m.text = text
	m.writes++
	return nil
}

// Read implements Channel.
func (m *Memory) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

// Writes counts successful writes.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
