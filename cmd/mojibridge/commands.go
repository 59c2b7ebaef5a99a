package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/pelletier/go-toml/v2"

	"github.com/Gaurav-Gosain/mojibridge/internal/config"
	"github.com/Gaurav-Gosain/mojibridge/internal/session"
)

// dialBridge connects to the running bridge. It returns nil, nil when none
// is running.
func dialBridge(ctx context.Context) (*session.Client, error) {
	ep, err := session.DefaultEndpoint()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	c, err := session.Dial(ctx, ep)
	if errors.Is(err, session.ErrNotRunning) {
		return nil, nil
	}
	return c, err
}

func runListSessions(ctx context.Context) error {
	c, err := dialBridge(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to bridge: %w", err)
	}
	if c == nil {
		fmt.Println("MojiBridge is not running.")
		return nil
	}
	defer func() { _ = c.Close() }()

	sessions, err := c.List()
	if err != nil {
		return err
	}

	title := fmt.Sprintf("Bridge pid %d", c.Welcome.PID)
	if c.Welcome.Label != "" {
		title += " (" + c.Welcome.Label + ")"
	}
	fmt.Println(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Render(title))

	if len(sessions) == 0 {
		fmt.Println("No terminals.")
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		origin := ""
		if s.Origin {
			origin = "*"
		}
		rows = append(rows, []string{
			origin,
			s.Label,
			s.Exe,
			fmt.Sprintf("%#x", s.Window),
			fmt.Sprintf("%d", s.PID),
			s.Cwd,
			formatTimeAgo(s.LastActive),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("", "LABEL", "TERMINAL", "WINDOW", "PID", "CWD", "LAST ACTIVE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			baseStyle := lipgloss.NewStyle().Padding(0, 1)

			if row == table.HeaderRow {
				return baseStyle.Bold(true).Foreground(lipgloss.Color("12"))
			}

			switch col {
			case 0:
				return baseStyle.Foreground(lipgloss.Color("10")).Bold(true)
			case 1:
				return baseStyle.Foreground(lipgloss.Color("3")).Bold(true)
			case 3, 4, 6:
				return baseStyle.Foreground(lipgloss.Color("8"))
			default:
				return baseStyle
			}
		})

	fmt.Println(t.Render())
	fmt.Printf("\n%d terminal(s), * marks the return target\n", len(sessions))
	return nil
}

func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return t.Format("Jan 2 15:04")
	}
}

func runStop(ctx context.Context) error {
	c, err := dialBridge(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to bridge: %w", err)
	}
	if c == nil {
		fmt.Println("MojiBridge is not running.")
		return nil
	}
	defer func() { _ = c.Close() }()

	if err := c.Stop(); err != nil {
		return err
	}
	fmt.Printf("Stopped bridge (pid %d)\n", c.Welcome.PID)
	return nil
}

func printConfigPath() error {
	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("could not determine config path: %w", err)
	}
	fmt.Println(path)
	return nil
}

// editConfigFile opens the config in $EDITOR, writing defaults first if
// it does not exist yet.
func editConfigFile() error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("could not determine config path: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("Config file doesn't exist, creating default at: %s\n", configPath)
		if _, err := config.LoadUserConfig(); err != nil {
			return fmt.Errorf("could not create config file: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		candidates := []string{"vim", "vi", "nano"}
		if runtime.GOOS == "windows" {
			candidates = append(candidates, "notepad")
		}
		for _, e := range candidates {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Please set $EDITOR environment variable")
	}

	cmd := exec.Command(editor, configPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// resetConfigToDefaults overwrites the config with commented defaults after
// asking for confirmation.
func resetConfigToDefaults() error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("could not determine config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Warning: This will overwrite your existing configuration at:\n")
		fmt.Printf("  %s\n\n", configPath)
		fmt.Printf("Are you sure you want to reset to defaults? (yes/no): ")

		var response string
		_, _ = fmt.Scanln(&response)
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "yes" && response != "y" {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	var sb strings.Builder
	sb.WriteString("# MojiBridge Configuration File\n")
	sb.WriteString("# Durations use Go syntax, e.g. \"150ms\" or \"1s\"\n")
	sb.WriteString("# Bindings look like \"ctrl+i\" or \"ctrl+shift+enter\"\n")
	sb.WriteString("#\n")
	sb.WriteString("# Configuration location: " + configPath + "\n\n")

	data, err := toml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	sb.Write(data)

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Configuration reset to defaults\n")
	fmt.Printf("  Location: %s\n", configPath)
	fmt.Println("\nYou can customize it with: mojibridge config edit")
	return nil
}

func listKeybindings() error {
	cfg, err := config.LoadUserConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintln(os.Stderr, "Using default keybindings...")
		cfg = config.DefaultConfig()
	}

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Padding(0, 1)

	cellStyle := lipgloss.NewStyle().
		Padding(0, 1)

	fmt.Println()
	fmt.Println(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Render("MojiBridge Keybindings"))
	fmt.Println()

	for _, section := range config.GetKeybindings(cfg) {
		rows := make([][]string, 0, len(section.Bindings))
		for _, b := range section.Bindings {
			rows = append(rows, []string{b.Key, b.Description})
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
			Headers("Keys", "Action").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})

		fmt.Println(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")).Render(section.Title))
		fmt.Println(t.Render())
		fmt.Println()
	}
	return nil
}
