package form

import (
	"strings"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"github.com/Gaurav-Gosain/mojibridge/internal/theme"
)

func TestIsSubmit(t *testing.T) {
	tests := []struct {
		name string
		s    fyne.Shortcut
		want bool
	}{
		{"ctrl+return", &desktop.CustomShortcut{KeyName: fyne.KeyReturn, Modifier: fyne.KeyModifierControl}, true},
		{"ctrl+keypad enter", &desktop.CustomShortcut{KeyName: fyne.KeyEnter, Modifier: fyne.KeyModifierControl}, true},
		{"shift+return", &desktop.CustomShortcut{KeyName: fyne.KeyReturn, Modifier: fyne.KeyModifierShift}, false},
		{"ctrl+shift+return", &desktop.CustomShortcut{KeyName: fyne.KeyReturn, Modifier: fyne.KeyModifierControl | fyne.KeyModifierShift}, false},
		{"ctrl+i", &desktop.CustomShortcut{KeyName: fyne.KeyI, Modifier: fyne.KeyModifierControl}, false},
		{"paste", &fyne.ShortcutPaste{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSubmit(tt.s); got != tt.want {
				t.Errorf("isSubmit = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubmitEntryShortcut(t *testing.T) {
	submitted := 0
	e := newSubmitEntry(func() { submitted++ })

	e.TypedShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyReturn, Modifier: fyne.KeyModifierControl})
	if submitted != 1 {
		t.Errorf("submitted %d times, want 1", submitted)
	}
	if !e.MultiLine {
		t.Error("entry should be multi-line")
	}
}

func TestFormTypingForwardsText(t *testing.T) {
	a := test.NewTempApp(t)
	f := New(a, Options{Title: "MojiBridge", Width: 500, Height: 150, Palette: theme.Mocha})

	var got string
	f.OnChanged = func(text string) { got = text }
	test.Type(f.entry, "こんにちは")

	if got != "こんにちは" {
		t.Errorf("OnChanged text = %q", got)
	}
	if f.entry.PlaceHolder != Placeholder {
		t.Errorf("placeholder = %q", f.entry.PlaceHolder)
	}
	if f.Window().Title() != "MojiBridge" {
		t.Errorf("title = %q", f.Window().Title())
	}
}

func TestPromptTitleIsNotABridgeTitle(t *testing.T) {
	for _, label := range []string{"", "fix tests", "MojiBridge"} {
		title := PromptTitle(label)
		if strings.HasPrefix(title, "MojiBridge") {
			t.Errorf("PromptTitle(%q) = %q looks like a bridge window", label, title)
		}
	}
	if got := PromptTitle("api"); got != "Enter your prompt - api" {
		t.Errorf("PromptTitle(api) = %q", got)
	}
}
