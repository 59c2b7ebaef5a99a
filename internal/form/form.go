// Package form is the bridge window: a multi-line entry with a status line.
package form

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/Gaurav-Gosain/mojibridge/internal/app"
	"github.com/Gaurav-Gosain/mojibridge/internal/theme"
)

// Placeholder is shown in the empty bridge entry.
const Placeholder = "Ctrl+I: Toggle | Ctrl+Enter: Send"

// successLinger is how long a success message stays up.
const successLinger = 2 * time.Second

// Options configures the window.
type Options struct {
	Title       string
	Width       float32
	Height      float32
	Placeholder string
	Palette     theme.Palette
}

// Form is the bridge window. Its View methods may be called from any
// goroutine; they hand their work to the fyne main thread and return.
type Form struct {
	win    fyne.Window
	entry  *submitEntry
	status *canvas.Text
	base   string
	pal    theme.Palette

	// OnChanged and OnSubmit run on the fyne main thread.
	OnChanged func(text string)
	OnSubmit  func()

	mu        sync.Mutex
	statusGen int
}

var _ app.View = (*Form)(nil)

// New builds the window on a. It is not shown.
func New(a fyne.App, opts Options) *Form {
	if opts.Placeholder == "" {
		opts.Placeholder = Placeholder
	}
	f := &Form{base: opts.Title, pal: opts.Palette}

	f.win = a.NewWindow(opts.Title)
	f.win.Resize(fyne.NewSize(opts.Width, opts.Height))

	f.entry = newSubmitEntry(func() {
		if f.OnSubmit != nil {
			f.OnSubmit()
		}
	})
	f.entry.SetPlaceHolder(opts.Placeholder)
	f.entry.OnChanged = func(text string) {
		f.clearStatusLocked()
		if f.OnChanged != nil {
			f.OnChanged(text)
		}
	}

	f.status = canvas.NewText("", opts.Palette.Subtle)
	f.status.TextSize = 12
	f.status.Hide()

	f.win.SetContent(container.NewBorder(nil, container.NewPadded(f.status), nil, nil, f.entry))
	f.win.Canvas().Focus(f.entry)
	return f
}

// Window returns the fyne window.
func (f *Form) Window() fyne.Window { return f.win }

// SetLabel implements app.View.
func (f *Form) SetLabel(label string) {
	title := app.WindowTitle(f.base, label)
	fyne.Do(func() { f.win.SetTitle(title) })
}

// ClearBuffer implements app.View.
func (f *Form) ClearBuffer() {
	fyne.Do(func() { f.entry.SetText("") })
}

// ShowStatus implements app.View.
func (f *Form) ShowStatus(msg string, kind app.StatusKind) {
	f.mu.Lock()
	f.statusGen++
	gen := f.statusGen
	f.mu.Unlock()

	c := f.pal.Subtle
	switch kind {
	case app.StatusError:
		c = f.pal.Error
	case app.StatusSuccess:
		c = f.pal.Success
	}
	fyne.Do(func() {
		f.status.Text = msg
		f.status.Color = c
		f.status.Show()
		f.status.Refresh()
	})

	if kind == app.StatusSuccess {
		time.AfterFunc(successLinger, func() {
			f.mu.Lock()
			stale := gen != f.statusGen
			f.mu.Unlock()
			if !stale {
				fyne.Do(f.clearStatusLocked)
			}
		})
	}
}

// clearStatusLocked must run on the fyne main thread.
func (f *Form) clearStatusLocked() {
	if f.status.Hidden {
		return
	}
	f.status.Text = ""
	f.status.Hide()
}

// Raise implements app.View.
func (f *Form) Raise() {
	fyne.Do(func() {
		f.win.Show()
		f.win.RequestFocus()
		f.win.Canvas().Focus(f.entry)
	})
}

// submitEntry is a multi-line entry that reports Ctrl+Enter.
type submitEntry struct {
	widget.Entry
	onSubmit func()
}

func newSubmitEntry(onSubmit func()) *submitEntry {
	e := &submitEntry{onSubmit: onSubmit}
	e.MultiLine = true
	e.Wrapping = fyne.TextWrapWord
	e.ExtendBaseWidget(e)
	return e
}

func (e *submitEntry) TypedShortcut(s fyne.Shortcut) {
	if isSubmit(s) {
		e.onSubmit()
		return
	}
	e.Entry.TypedShortcut(s)
}

func isSubmit(s fyne.Shortcut) bool {
	cs, ok := s.(*desktop.CustomShortcut)
	if !ok || cs.Modifier != fyne.KeyModifierControl {
		return false
	}
	return cs.KeyName == fyne.KeyReturn || cs.KeyName == fyne.KeyEnter
}
