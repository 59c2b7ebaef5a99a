package theme

import (
	"image/color"

	"fyne.io/fyne/v2"
	fynetheme "fyne.io/fyne/v2/theme"
)

type bridgeTheme struct {
	p Palette
}

// Fyne returns a dark fyne theme drawn from p.
func Fyne(p Palette) fyne.Theme {
	return bridgeTheme{p: p}
}

func (t bridgeTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case fynetheme.ColorNameBackground, fynetheme.ColorNameOverlayBackground, fynetheme.ColorNameMenuBackground:
		return t.p.Base
	case fynetheme.ColorNameInputBackground, fynetheme.ColorNameButton:
		return t.p.Surface0
	case fynetheme.ColorNameInputBorder, fynetheme.ColorNameSeparator, fynetheme.ColorNameHover:
		return t.p.Surface1
	case fynetheme.ColorNamePrimary, fynetheme.ColorNameFocus:
		return t.p.Accent
	case fynetheme.ColorNameSelection:
		return withAlpha(t.p.Accent, 0x55)
	case fynetheme.ColorNameForeground:
		return t.p.Text
	case fynetheme.ColorNamePlaceHolder, fynetheme.ColorNameDisabled:
		return t.p.Subtle
	case fynetheme.ColorNameError:
		return t.p.Error
	case fynetheme.ColorNameSuccess:
		return t.p.Success
	}
	return fynetheme.DefaultTheme().Color(name, fynetheme.VariantDark)
}

func (bridgeTheme) Font(s fyne.TextStyle) fyne.Resource {
	return fynetheme.DefaultTheme().Font(s)
}

func (bridgeTheme) Icon(n fyne.ThemeIconName) fyne.Resource {
	return fynetheme.DefaultTheme().Icon(n)
}

func (bridgeTheme) Size(n fyne.ThemeSizeName) float32 {
	return fynetheme.DefaultTheme().Size(n)
}

func withAlpha(c color.Color, a uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: a}
}
