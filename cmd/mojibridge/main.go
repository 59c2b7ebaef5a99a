// Package main implements MojiBridge, a small always-available input window
// for composing text (IME input in particular) and sending it to the
// terminal it was summoned from.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

// Global flags
var debugMode bool

func main() {
	var (
		l        launch
		detach   bool
		resident bool
	)

	rootCmd := &cobra.Command{
		Use:   "mojibridge",
		Short: "IME input bridge for terminals",
		Long: `MojiBridge - IME input bridge for terminals

Opens a small input window next to your terminal. Compose text with your
input method, press Ctrl+Enter, and MojiBridge pastes it into the terminal
you came from. Ctrl+I toggles between the terminal and the bridge.

Only one bridge runs at a time; launching again from another terminal
registers that terminal with the running bridge.`,
		Example: `  # Run the bridge for the current terminal
  mojibridge

  # Start in the background and return immediately
  mojibridge --detach --label api

  # Use from a UserPromptSubmit hook
  mojibridge hook --launch

  # Show terminals known to the running bridge
  mojibridge sessions`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if detach && !resident {
				return runDetach(cmd.Context(), l)
			}
			if !resident {
				l = l.captureForeground()
			}
			return runResident(cmd.Context(), l)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.Flags().BoolVar(&detach, "detach", false, "Start the bridge in the background and exit")
	rootCmd.Flags().BoolVar(&resident, "resident", false, "Run as the background bridge process")
	rootCmd.Flags().StringVar(&l.label, "label", "", "Label shown in the bridge title")
	rootCmd.Flags().Uint64Var(&l.hwnd, "terminal-hwnd", 0, "Terminal window to return to")
	rootCmd.Flags().Int32Var(&l.pid, "terminal-pid", 0, "Process owning --terminal-hwnd")
	rootCmd.Flags().Int32Var(&l.clientPID, "client-pid", 0, "Process whose ancestry contains the terminal")
	rootCmd.Flags().StringVar(&l.hostSession, "session", "", "Host session id recorded with the terminal")
	rootCmd.Flags().StringVar(&l.cwd, "cwd", "", "Working directory recorded with the terminal")
	_ = rootCmd.Flags().MarkHidden("resident")
	_ = rootCmd.Flags().MarkHidden("client-pid")

	// Hook command
	var hookLaunch, hookJSON bool

	hookCmd := &cobra.Command{
		Use:   "hook",
		Short: "Handle a UserPromptSubmit hook",
		Long: `Handle a UserPromptSubmit hook

Reads the hook payload from stdin. When the prompt starts with the trigger
("//" by default) a prompt window opens, and the submitted text is printed
as additional context and copied to the clipboard. Any other prompt passes
through untouched.`,
		Example: `  # Prompt inline and print the composed text
  mojibridge hook

  # Start the resident bridge for the calling terminal instead
  mojibridge hook --launch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(cmd.Context(), hookLaunch, hookJSON)
		},
	}
	hookCmd.Flags().BoolVar(&hookLaunch, "launch", false, "Start the resident bridge instead of prompting")
	hookCmd.Flags().BoolVar(&hookJSON, "json", false, "Print structured hook output")

	sessionsCmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List terminals known to the running bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListSessions(cmd.Context())
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context())
		},
	}

	// Config command group
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage MojiBridge configuration",
		Long:  `Manage MojiBridge configuration file and settings`,
	}

	configPathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printConfigPath()
		},
	}

	configEditCmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit configuration in $EDITOR",
		Long: `Open the MojiBridge configuration file in your default editor

The editor is determined by checking $EDITOR, $VISUAL, or common editors
like vim, vi, nano, and notepad in that order. A running bridge picks up
saved changes automatically.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editConfigFile()
		},
	}

	configResetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		Long: `Reset the MojiBridge configuration file to default settings

This will overwrite your existing configuration after confirmation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resetConfigToDefaults()
		},
	}

	configCmd.AddCommand(configPathCmd, configEditCmd, configResetCmd)

	keybindsCmd := &cobra.Command{
		Use:     "keybinds",
		Aliases: []string{"keys", "kb"},
		Short:   "List keybindings",
		Long:    `Display the configured keybindings in a formatted table`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listKeybindings()
		},
	}

	rootCmd.AddCommand(hookCmd, sessionsCmd, stopCmd, configCmd, keybindsCmd)

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(fmt.Sprintf("%s\nCommit: %s\nBuilt: %s\nBy: %s", version, commit, date, builtBy)),
	); err != nil {
		os.Exit(1)
	}
}
