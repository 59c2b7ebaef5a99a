package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	fyneapp "fyne.io/fyne/v2/app"

	"github.com/Gaurav-Gosain/mojibridge/internal/clipboard"
	"github.com/Gaurav-Gosain/mojibridge/internal/form"
	"github.com/Gaurav-Gosain/mojibridge/internal/hook"
	"github.com/Gaurav-Gosain/mojibridge/internal/logging"
	"github.com/Gaurav-Gosain/mojibridge/internal/theme"
)

// Size of the one-shot prompt window.
const (
	promptWidth  = 500
	promptHeight = 300
)

// runHook handles one UserPromptSubmit payload. Stdout is the hook's output
// channel, so only the composed text is ever printed there.
func runHook(ctx context.Context, launchBridge, asJSON bool) error {
	if hook.StdinIsTerminal() {
		return errors.New("hook expects a UserPromptSubmit payload on stdin")
	}

	cfg, cfgErr := loadConfig()
	logs, err := openLog(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logs.Close() }()
	logger := logging.Component(logs.Logger, "hook")
	if cfgErr != nil {
		logger.Warn("using default configuration", "err", cfgErr)
	}

	in, err := hook.Read(os.Stdin, cfg.Hook.MaxInput)
	if err != nil {
		return err
	}
	if !hook.IsTrigger(in.Prompt, cfg.Hook.Trigger) {
		logger.Debug("not a trigger prompt", "session", in.SessionID)
		return nil
	}
	label := hook.Label(in.Prompt, cfg.Hook.Trigger)

	if launchBridge {
		logger.Info("launching bridge", "session", in.SessionID, "label", label)
		return runDetach(ctx, launch{label: label, hostSession: in.SessionID, cwd: in.Cwd})
	}

	if err := theme.Initialize(cfg.Window.Theme); err != nil {
		logger.Warn("theme unavailable", "err", err)
	}
	a := fyneapp.NewWithID(appID)
	a.Settings().SetTheme(theme.Fyne(theme.Current()))

	text, ok := form.Prompt(a, form.Options{
		Title:   form.PromptTitle(label),
		Width:   promptWidth,
		Height:  promptHeight,
		Palette: theme.Current(),
	})
	if !ok {
		logger.Debug("prompt cancelled")
		return nil
	}

	if err := clipboard.NewSystem().Write(text); err != nil {
		// the text still reaches the assistant through stdout
		logger.Warn("clipboard write failed", "err", err)
	}

	if asJSON {
		err = hook.WriteJSON(os.Stdout, in.HookEventName, text)
	} else {
		err = hook.WriteContext(os.Stdout, text)
	}
	if err != nil {
		return fmt.Errorf("failed to write hook output: %w", err)
	}
	return nil
}
