package app

import (
	"time"

	"github.com/Gaurav-Gosain/mojibridge/internal/terminal"
)

// Instance is the live bridge window and its input buffer.
type Instance struct {
	// label is fixed at creation; later launches attach their labels to
	// their own sessions instead.
	label   string
	title   string
	handle  terminal.Handle
	buffer  string
	Created time.Time
}

// NewInstance creates the bridge instance.
func NewInstance(baseTitle, label string, now time.Time) *Instance {
	return &Instance{label: label, title: WindowTitle(baseTitle, label), Created: now}
}

// WindowTitle is the bridge window title for label.
func WindowTitle(base, label string) string {
	if label == "" {
		return base
	}
	return base + " - " + label
}

func (i *Instance) Label() string { return i.label }
func (i *Instance) Title() string { return i.title }

func (i *Instance) Handle() terminal.Handle     { return i.handle }
func (i *Instance) SetHandle(h terminal.Handle) { i.handle = h }

func (i *Instance) Buffer() string        { return i.buffer }
func (i *Instance) SetBuffer(text string) { i.buffer = text }
