package theme

import (
	"image/color"
	"testing"

	fynetheme "fyne.io/fyne/v2/theme"
)

func TestInitializeDefault(t *testing.T) {
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize(\"\"): %v", err)
	}
	if Current() != Mocha {
		t.Error("empty theme name should select Mocha")
	}
}

func TestInitializeUnknownKeepsMocha(t *testing.T) {
	if err := Initialize("no_such_theme_anywhere"); err == nil {
		t.Fatal("expected error for unknown theme")
	}
	if Current() != Mocha {
		t.Error("unknown theme should leave Mocha active")
	}
}

func TestFyneColors(t *testing.T) {
	th := Fyne(Mocha)
	tests := []struct {
		name string
		got  color.Color
		want color.Color
	}{
		{"background", th.Color(fynetheme.ColorNameBackground, fynetheme.VariantDark), Mocha.Base},
		{"input", th.Color(fynetheme.ColorNameInputBackground, fynetheme.VariantLight), Mocha.Surface0},
		{"focus", th.Color(fynetheme.ColorNameFocus, fynetheme.VariantDark), Mocha.Accent},
		{"placeholder", th.Color(fynetheme.ColorNamePlaceHolder, fynetheme.VariantDark), Mocha.Subtle},
		{"error", th.Color(fynetheme.ColorNameError, fynetheme.VariantDark), Mocha.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("color = %v, want %v", tt.got, tt.want)
			}
		})
	}

	sel := th.Color(fynetheme.ColorNameSelection, fynetheme.VariantDark)
	if _, _, _, a := sel.RGBA(); a == 0xffff {
		t.Error("selection color should be translucent")
	}
}

func TestFromTintNil(t *testing.T) {
	if FromTint(nil) != Mocha {
		t.Error("FromTint(nil) should fall back to Mocha")
	}
}
