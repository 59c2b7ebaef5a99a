package config

import (
	"fmt"
	"strings"
)

// Modifier is a bit set of held modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModWin
)

func (m Modifier) String() string {
	var parts []string
	if m&ModCtrl != 0 {
		parts = append(parts, "ctrl")
	}
	if m&ModShift != 0 {
		parts = append(parts, "shift")
	}
	if m&ModAlt != 0 {
		parts = append(parts, "alt")
	}
	if m&ModWin != 0 {
		parts = append(parts, "win")
	}
	return strings.Join(parts, "+")
}

// Binding is a parsed key chord such as "ctrl+i".
type Binding struct {
	Mods Modifier
	// VK is the Windows virtual-key code of the non-modifier key.
	VK  uint16
	Key string
}

// String renders the binding in its canonical lower-case form.
func (b Binding) String() string {
	if b.Mods == 0 {
		return b.Key
	}
	return b.Mods.String() + "+" + b.Key
}

// Display renders the binding for humans, e.g. "Ctrl+I".
func (b Binding) Display() string {
	parts := strings.Split(b.String(), "+")
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = strings.ToUpper(p)
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "+")
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"win":     ModWin,
	"super":   ModWin,
	"cmd":     ModWin,
}

var namedKeys = map[string]uint16{
	"enter":  0x0D,
	"return": 0x0D,
	"tab":    0x09,
	"space":  0x20,
	"esc":    0x1B,
	"escape": 0x1B,
	"insert": 0x2D,
	"home":   0x24,
	"end":    0x23,
}

// ParseBinding parses a "+"-separated chord. Exactly one non-modifier key is
// required.
func ParseBinding(s string) (Binding, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Binding{}, fmt.Errorf("empty key binding")
	}

	var b Binding
	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Binding{}, fmt.Errorf("invalid key binding %q", s)
		}
		if mod, ok := modifierNames[part]; ok {
			b.Mods |= mod
			continue
		}
		if b.Key != "" {
			return Binding{}, fmt.Errorf("key binding %q has more than one key", s)
		}
		vk, ok := keyCode(part)
		if !ok {
			return Binding{}, fmt.Errorf("unknown key %q in binding %q", part, s)
		}
		b.Key, b.VK = canonicalKey(part), vk
	}
	if b.Key == "" {
		return Binding{}, fmt.Errorf("key binding %q has no key", s)
	}
	return b, nil
}

// MustParseBinding is ParseBinding for compile-time constants.
func MustParseBinding(s string) Binding {
	b, err := ParseBinding(s)
	if err != nil {
		panic(err)
	}
	return b
}

func keyCode(name string) (uint16, bool) {
	if vk, ok := namedKeys[name]; ok {
		return vk, true
	}
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return uint16(c - 'a' + 'A'), true
		case c >= '0' && c <= '9':
			return uint16(c), true
		}
	}
	if len(name) >= 2 && name[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(name[1:], "%d", &n); err == nil && n >= 1 && n <= 24 {
			return uint16(0x70 + n - 1), true
		}
	}
	return 0, false
}

func canonicalKey(name string) string {
	switch name {
	case "return":
		return "enter"
	case "escape":
		return "esc"
	}
	return name
}

// Keybinding represents a single keybinding entry
type Keybinding struct {
	Key         string
	Description string
}

// KeybindingSection represents a section of related keybindings
type KeybindingSection struct {
	Title    string
	Bindings []Keybinding
}

// GetKeybindings describes the active bindings for help output.
func GetKeybindings(cfg *Config) []KeybindingSection {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return []KeybindingSection{
		{
			Title: "GLOBAL",
			Bindings: []Keybinding{
				{displayOf(cfg.Hotkey.Toggle), "Toggle between terminal and bridge"},
			},
		},
		{
			Title: "BRIDGE WINDOW",
			Bindings: []Keybinding{
				{"Ctrl+Enter", "Send text to the terminal"},
			},
		},
		{
			Title: "INJECTED INTO TERMINAL",
			Bindings: []Keybinding{
				{displayOf(cfg.Hotkey.Paste), "Paste"},
				{displayOf(cfg.Hotkey.Confirm), "Confirm"},
			},
		},
	}
}

func displayOf(s string) string {
	b, err := ParseBinding(s)
	if err != nil {
		return s
	}
	return b.Display()
}
