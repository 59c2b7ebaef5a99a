package form

import (
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

// promptHeading titles the hook prompt. It must not look like a bridge
// title, or a resident would take the prompt for a running bridge.
const promptHeading = "Enter your prompt"

// PromptTitle is the hook prompt's window title.
func PromptTitle(label string) string {
	if label == "" {
		return promptHeading
	}
	return promptHeading + " - " + label
}

// Prompt shows a one-shot input window and blocks until the user submits or
// cancels. ok is false when the window was cancelled or the text was blank.
// a must not be running yet; Prompt runs and quits it.
func Prompt(a fyne.App, opts Options) (text string, ok bool) {
	if opts.Placeholder == "" {
		opts.Placeholder = "Enter your prompt here..."
	}
	w := a.NewWindow(opts.Title)
	w.Resize(fyne.NewSize(opts.Width, opts.Height))

	submit := func(entry *submitEntry) {
		if strings.TrimSpace(entry.Text) != "" {
			text, ok = entry.Text, true
		}
		w.Close()
	}

	var entry *submitEntry
	entry = newSubmitEntry(func() { submit(entry) })
	entry.SetPlaceHolder(opts.Placeholder)

	cancel := widget.NewButton("Cancel", w.Close)
	send := widget.NewButton("Submit", func() { submit(entry) })
	send.Importance = widget.HighImportance

	header := widget.NewLabelWithStyle(promptHeading+":", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	buttons := container.NewHBox(layout.NewSpacer(), cancel, send)
	w.SetContent(container.NewBorder(header, buttons, nil, nil, entry))
	w.Canvas().Focus(entry)

	w.ShowAndRun()
	return text, ok
}
