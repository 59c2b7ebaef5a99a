// Package config loads and saves the mojibridge TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

const (
	appDir         = "mojibridge"
	configFileName = "config.toml"
)

// Duration is a time.Duration that round-trips through TOML as "150ms".
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if v < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", text)
	}
	*d = Duration(v)
	return nil
}

// Config is the user configuration.
type Config struct {
	Hotkey     HotkeyConfig     `toml:"hotkey"`
	Submission SubmissionConfig `toml:"submission"`
	Terminal   TerminalConfig   `toml:"terminal"`
	Window     WindowConfig     `toml:"window"`
	Logging    LoggingConfig    `toml:"logging"`
	Hook       HookConfig       `toml:"hook"`
}

// HotkeyConfig holds the global toggle and the chords injected into terminals.
type HotkeyConfig struct {
	Toggle          string   `toml:"toggle"`
	Paste           string   `toml:"paste"`
	Confirm         string   `toml:"confirm"`
	DecisionTimeout Duration `toml:"decision_timeout"`
}

// SubmissionConfig holds the submission pipeline timings.
type SubmissionConfig struct {
	FocusSettle  Duration `toml:"focus_settle"`
	FocusTimeout Duration `toml:"focus_timeout"`
	FocusPoll    Duration `toml:"focus_poll"`
	KeyGap       Duration `toml:"key_gap"`
}

// TerminalConfig controls which windows count as terminals.
type TerminalConfig struct {
	Hosts       []string `toml:"hosts"`
	MaxAncestry int      `toml:"max_ancestry"`
}

// WindowConfig controls the bridge window.
type WindowConfig struct {
	Title       string `toml:"title"`
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	AlwaysOnTop bool   `toml:"always_on_top"`
	// Theme names a bubbletint palette; empty uses Catppuccin Mocha.
	Theme string `toml:"theme"`
}

// LoggingConfig controls the debug log.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// HookConfig controls the UserPromptSubmit hook.
type HookConfig struct {
	Trigger  string `toml:"trigger"`
	MaxInput int64  `toml:"max_input"`
}

// DefaultTerminalHosts are the executables that host interactive terminals.
var DefaultTerminalHosts = []string{
	"WindowsTerminal.exe",
	"cmd.exe",
	"powershell.exe",
	"pwsh.exe",
	"mintty.exe",
	"ConEmu64.exe",
	"ConEmu.exe",
	"alacritty.exe",
	"wezterm-gui.exe",
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Hotkey: HotkeyConfig{
			Toggle:          "ctrl+i",
			Paste:           "ctrl+v",
			Confirm:         "enter",
			DecisionTimeout: Duration(250 * time.Millisecond),
		},
		Submission: SubmissionConfig{
			FocusSettle:  Duration(150 * time.Millisecond),
			FocusTimeout: Duration(time.Second),
			FocusPoll:    Duration(10 * time.Millisecond),
			KeyGap:       Duration(100 * time.Millisecond),
		},
		Terminal: TerminalConfig{
			Hosts:       append([]string(nil), DefaultTerminalHosts...),
			MaxAncestry: 10,
		},
		Window: WindowConfig{
			Title:  "MojiBridge",
			Width:  500,
			Height: 150,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Hook: HookConfig{
			Trigger:  "//",
			MaxInput: 100 * 1024,
		},
	}
}

// GetConfigPath returns the path of the user config file.
func GetConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(appDir, configFileName))
}

// DefaultLogPath returns the default debug log location.
func DefaultLogPath() string {
	path, err := xdg.StateFile(filepath.Join(appDir, "mojibridge.log"))
	if err != nil {
		return filepath.Join(os.TempDir(), "moji-bridge-debug.log")
	}
	return path
}

// LoadUserConfig loads the user config, writing the defaults on first run.
func LoadUserConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := cfg.Save(path); err != nil {
			return cfg, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}

	return LoadFrom(path)
}

// LoadFrom reads and validates the config at path. Missing keys keep their
// default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as TOML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate fills empty values from the defaults and rejects bad bindings.
func (c *Config) Validate() error {
	def := DefaultConfig()

	if c.Hotkey.Toggle == "" {
		c.Hotkey.Toggle = def.Hotkey.Toggle
	}
	if c.Hotkey.Paste == "" {
		c.Hotkey.Paste = def.Hotkey.Paste
	}
	if c.Hotkey.Confirm == "" {
		c.Hotkey.Confirm = def.Hotkey.Confirm
	}
	if c.Hotkey.DecisionTimeout == 0 {
		c.Hotkey.DecisionTimeout = def.Hotkey.DecisionTimeout
	}
	for name, binding := range map[string]string{
		"hotkey.toggle":  c.Hotkey.Toggle,
		"hotkey.paste":   c.Hotkey.Paste,
		"hotkey.confirm": c.Hotkey.Confirm,
	} {
		if _, err := ParseBinding(binding); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Submission.FocusTimeout == 0 {
		c.Submission.FocusTimeout = def.Submission.FocusTimeout
	}
	if c.Submission.FocusPoll == 0 {
		c.Submission.FocusPoll = def.Submission.FocusPoll
	}
	if c.Submission.FocusPoll > c.Submission.FocusTimeout {
		c.Submission.FocusPoll = c.Submission.FocusTimeout
	}

	if len(c.Terminal.Hosts) == 0 {
		c.Terminal.Hosts = def.Terminal.Hosts
	}
	if c.Terminal.MaxAncestry <= 0 {
		c.Terminal.MaxAncestry = def.Terminal.MaxAncestry
	}

	if strings.TrimSpace(c.Window.Title) == "" {
		c.Window.Title = def.Window.Title
	}
	if c.Window.Width <= 0 {
		c.Window.Width = def.Window.Width
	}
	if c.Window.Height <= 0 {
		c.Window.Height = def.Window.Height
	}

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}

	if c.Hook.Trigger == "" {
		c.Hook.Trigger = def.Hook.Trigger
	}
	if c.Hook.MaxInput <= 0 {
		c.Hook.MaxInput = def.Hook.MaxInput
	}
	return nil
}

// Reset overwrites the user config with the defaults.
func Reset() (string, error) {
	path, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	return path, DefaultConfig().Save(path)
}
