package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Gaurav-Gosain/mojibridge/internal/clipboard"
	"github.com/Gaurav-Gosain/mojibridge/internal/config"
	"github.com/Gaurav-Gosain/mojibridge/internal/pool"
	"github.com/Gaurav-Gosain/mojibridge/internal/terminal"
	"github.com/charmbracelet/log"
)

// Keys injects the paste and confirm chords into the focused window.
type Keys interface {
	Paste() error
	Confirm() error
}

// Timings are the pipeline's waits.
type Timings struct {
	// FocusSettle is the wait between a verified focus change and the paste.
	FocusSettle time.Duration
	// FocusTimeout bounds the wait for the target to become foreground.
	FocusTimeout time.Duration
	FocusPoll    time.Duration
	// KeyGap separates the paste chord from the confirm key.
	KeyGap time.Duration
}

// TimingsFrom converts the configured timings.
func TimingsFrom(c config.SubmissionConfig) Timings {
	return Timings{
		FocusSettle:  c.FocusSettle.D(),
		FocusTimeout: c.FocusTimeout.D(),
		FocusPoll:    c.FocusPoll.D(),
		KeyGap:       c.KeyGap.D(),
	}
}

// PendingSubmission is the frozen text of one submission.
type PendingSubmission struct {
	Text    string
	Created time.Time
}

// Acknowledged reports a delivered submission.
type Acknowledged struct {
	Target  terminal.Session
	Bytes   int
	Elapsed time.Duration
}

// Normalize converts CRLF to LF and trims trailing whitespace.
func Normalize(text string) string {
	if !strings.Contains(text, "\r\n") {
		return strings.TrimRightFunc(text, isSpace)
	}
	sb := pool.GetStringBuilder()
	defer pool.PutStringBuilder(sb)
	sb.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n' {
			continue
		}
		sb.WriteByte(text[i])
	}
	return strings.TrimRightFunc(sb.String(), isSpace)
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', 0x85, 0xA0, 0x3000:
		return true
	}
	return false
}

// Pipeline delivers the bridge buffer to the origin terminal.
type Pipeline struct {
	clip clipboard.Channel
	keys Keys
	dir  Directory
	arb  *Arbiter
	inst *Instance
	log  *log.Logger

	Timings Timings
	now     func() time.Time
}

// NewPipeline wires a pipeline. Like the arbiter it runs only on the
// coordinator loop.
func NewPipeline(clip clipboard.Channel, keys Keys, dir Directory, arb *Arbiter, inst *Instance, t Timings, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{
		clip:    clip,
		keys:    keys,
		dir:     dir,
		arb:     arb,
		inst:    inst,
		log:     logger,
		Timings: t,
		now:     time.Now,
	}
}

// Submit sends text to the origin terminal: clipboard, focus, paste,
// confirm. On any error the buffer is left as it was and nothing is retried.
func (p *Pipeline) Submit(ctx context.Context, text string) (Acknowledged, error) {
	start := p.now()

	norm := Normalize(text)
	if norm == "" {
		return Acknowledged{}, ErrEmpty
	}
	pending := PendingSubmission{Text: norm, Created: start}

	if err := p.clip.Write(pending.Text); err != nil {
		if !errors.Is(err, clipboard.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", clipboard.ErrUnavailable, err)
		}
		return Acknowledged{}, fmt.Errorf("%w: %v", ErrClipboardUnavailable, err)
	}

	target, err := p.arb.Origin()
	if err != nil {
		return Acknowledged{}, err
	}
	p.log.Debug("submitting", "hwnd", target.Handle, "bytes", len(pending.Text))

	if err := p.focus(ctx, target); err != nil {
		return Acknowledged{}, err
	}

	if err := sleep(ctx, p.Timings.FocusSettle); err != nil {
		return Acknowledged{}, err
	}
	if err := p.keys.Paste(); err != nil {
		return Acknowledged{}, fmt.Errorf("%w: %v", ErrInjectionFailed, err)
	}
	if err := sleep(ctx, p.Timings.KeyGap); err != nil {
		return Acknowledged{}, err
	}
	if err := p.keys.Confirm(); err != nil {
		return Acknowledged{}, fmt.Errorf("%w: %v", ErrInjectionFailed, err)
	}

	p.arb.MarkTerminalFocused(target)
	p.inst.SetBuffer("")

	ack := Acknowledged{Target: target, Bytes: len(pending.Text), Elapsed: p.now().Sub(start)}
	p.log.Info("submitted", "hwnd", target.Handle, "bytes", ack.Bytes, "elapsed", ack.Elapsed)
	return ack, nil
}

// focus activates target and waits until the OS reports it in front.
func (p *Pipeline) focus(ctx context.Context, target terminal.Session) error {
	if err := p.dir.Focus(target); err != nil {
		if errors.Is(err, terminal.ErrWindowGone) {
			return fmt.Errorf("%w: %v", ErrNoTarget, err)
		}
		// SetForegroundWindow can report failure yet still switch; the
		// poll below decides.
		p.log.Debug("focus request refused", "hwnd", target.Handle, "err", err)
	}

	poll := max(p.Timings.FocusPoll, time.Millisecond)
	deadline := p.now().Add(p.Timings.FocusTimeout)
	for {
		if p.dir.Foreground() == target.Handle {
			return nil
		}
		if !p.now().Before(deadline) {
			return fmt.Errorf("%w: %s still not in front after %s", ErrFocusRejected, target.Handle, p.Timings.FocusTimeout)
		}
		if err := sleep(ctx, poll); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
