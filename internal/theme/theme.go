// Package theme provides the bridge window palette and its fyne theme.
package theme

import (
	"fmt"
	"image/color"

	tint "github.com/lrstanley/bubbletint/v2"
)

// Palette holds the colors the bridge window uses.
type Palette struct {
	Base     color.Color
	Surface0 color.Color
	Surface1 color.Color
	Accent   color.Color
	Text     color.Color
	Subtle   color.Color
	Error    color.Color
	Success  color.Color
}

// Mocha is Catppuccin Mocha, the default palette.
var Mocha = Palette{
	Base:     color.NRGBA{R: 30, G: 30, B: 46, A: 255},
	Surface0: color.NRGBA{R: 49, G: 50, B: 68, A: 255},
	Surface1: color.NRGBA{R: 69, G: 71, B: 90, A: 255},
	Accent:   color.NRGBA{R: 180, G: 190, B: 254, A: 255},
	Text:     color.NRGBA{R: 205, G: 214, B: 244, A: 255},
	Subtle:   color.NRGBA{R: 108, G: 112, B: 134, A: 255},
	Error:    color.NRGBA{R: 243, G: 139, B: 168, A: 255},
	Success:  color.NRGBA{R: 166, G: 227, B: 161, A: 255},
}

var current = Mocha

// Initialize selects the palette. An empty name keeps Mocha; any other name
// is looked up in the bubbletint registry.
// Call this once at application startup.
func Initialize(name string) error {
	current = Mocha
	if name == "" {
		return nil
	}

	tint.NewDefaultRegistry()
	if !tint.SetTintID(name) {
		return fmt.Errorf("unknown theme %q", name)
	}
	current = FromTint(tint.Current())
	return nil
}

// Current returns the active palette.
func Current() Palette {
	return current
}

// FromTint maps a terminal color scheme onto the window palette.
func FromTint(t *tint.Tint) Palette {
	if t == nil {
		return Mocha
	}
	return Palette{
		Base:     t.Bg,
		Surface0: t.Black,
		Surface1: t.BrightBlack,
		Accent:   t.BrightBlue,
		Text:     t.Fg,
		Subtle:   t.BrightBlack,
		Error:    t.Red,
		Success:  t.Green,
	}
}
