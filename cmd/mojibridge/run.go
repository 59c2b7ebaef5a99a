package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/charmbracelet/log"

	"github.com/Gaurav-Gosain/mojibridge/internal/app"
	"github.com/Gaurav-Gosain/mojibridge/internal/clipboard"
	"github.com/Gaurav-Gosain/mojibridge/internal/config"
	"github.com/Gaurav-Gosain/mojibridge/internal/form"
	"github.com/Gaurav-Gosain/mojibridge/internal/input"
	"github.com/Gaurav-Gosain/mojibridge/internal/logging"
	"github.com/Gaurav-Gosain/mojibridge/internal/session"
	"github.com/Gaurav-Gosain/mojibridge/internal/singleton"
	"github.com/Gaurav-Gosain/mojibridge/internal/terminal"
	"github.com/Gaurav-Gosain/mojibridge/internal/theme"
)

const appID = "io.github.gaurav-gosain.mojibridge"

// Bounds for finding our own window once fyne has created it.
const (
	windowPoll    = 100 * time.Millisecond
	windowTimeout = 5 * time.Second
	// handOffTimeout bounds forwarding to an older bridge before quitting.
	handOffTimeout = 3 * time.Second
)

// loadConfig loads the user config, falling back to defaults on error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadUserConfig()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return cfg, err
}

func openLog(cfg *config.Config) (*logging.Logger, error) {
	file := cfg.Logging.File
	if file == "" {
		file = config.DefaultLogPath()
	}
	return logging.New(logging.Options{File: file, Level: cfg.Logging.Level, Debug: debugMode})
}

// runResident runs the bridge window in this process until it is closed or
// stopped. If another bridge is already running, the terminal is handed to
// it and runResident returns at once.
func runResident(ctx context.Context, l launch) error {
	cfg, cfgErr := loadConfig()
	logs, err := openLog(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logs.Close() }()
	logger := logs.Logger
	if cfgErr != nil {
		logger.Warn("using default configuration", "err", cfgErr)
	}
	if err := theme.Initialize(cfg.Window.Theme); err != nil {
		logger.Warn("theme unavailable", "err", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	self := int32(os.Getpid())
	exe, _ := os.Executable()
	dir := terminal.NewDirectory(terminal.NewSystem(), terminal.SystemProcesses{}, terminal.Options{
		Self:        self,
		SelfExe:     filepath.Base(exe),
		TitlePrefix: cfg.Window.Title,
		Hosts:       cfg.Terminal.Hosts,
		MaxDepth:    cfg.Terminal.MaxAncestry,
		Logger:      logging.Component(logger, "terminal"),
	})

	ep, err := session.DefaultEndpoint()
	if err != nil {
		return err
	}
	guard := singleton.New(ep, dir, logging.Component(logger, "singleton"))
	res, err := guard.AcquireOrForward(ctx, l.attach())
	if err != nil {
		return fmt.Errorf("failed to reach running bridge: %w", err)
	}
	if res.Outcome == singleton.Forwarded {
		return nil
	}

	// GUI
	a := fyneapp.NewWithID(appID)
	a.Settings().SetTheme(theme.Fyne(theme.Current()))

	paste, _ := config.ParseBinding(cfg.Hotkey.Paste)
	confirm, _ := config.ParseBinding(cfg.Hotkey.Confirm)
	hotkeys := input.NewListener(logging.Component(logger, "hotkey"))

	coord, err := app.NewCoordinator(app.Options{
		Config:    cfg,
		Directory: dir,
		Clipboard: clipboard.NewSystem(),
		Keys:      input.NewSimulator(input.NewInjector(), paste, confirm),
		Hotkeys:   hotkeys,
		Label:     l.label,
		Logger:    logging.Component(logger, "coordinator"),
		OnStop:    func() { fyne.Do(a.Quit) },
	})
	if err != nil {
		_ = res.Listener.Close()
		return err
	}

	f := form.New(a, form.Options{
		Title:   cfg.Window.Title,
		Width:   float32(cfg.Window.Width),
		Height:  float32(cfg.Window.Height),
		Palette: theme.Current(),
	})
	f.OnChanged = coord.TextChanged
	f.OnSubmit = coord.SubmitRequested
	f.Window().SetMaster()
	coord.SetView(f)

	// Coordinator and IPC
	go func() {
		if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("coordinator stopped", "err", err)
		}
	}()
	srv := session.NewServer(res.Listener, coord, logging.Component(logger, "ipc"))
	go func() { _ = srv.Serve(ctx) }()
	defer srv.Close()

	if l.hwnd != 0 || l.clientPID != 0 {
		if s, err := coord.Track(ctx, l.trackRequest()); err != nil {
			logger.Warn("launching terminal not tracked", "err", err)
		} else {
			logger.Info("tracking terminal", "hwnd", s.Handle, "exe", s.Exe)
		}
	}

	if err := hotkeys.Start(ctx); err != nil {
		logger.Warn("global hotkey unavailable", "err", err)
	}

	go watchConfig(ctx, coord, a, logger)
	go adoptWindow(ctx, coord, dir, guard, srv, l.attach(), cfg, a, logger)
	go func() {
		<-ctx.Done()
		fyne.Do(a.Quit)
	}()

	logger.Info("bridge started", "pid", self, "label", l.label, "endpoint", ep)
	f.Window().ShowAndRun()
	cancel()
	logger.Info("bridge stopped")
	return nil
}

// adoptWindow waits for fyne to map the bridge window, hands its handle to
// the coordinator and then checks for an older bridge that raced us. If one
// exists, req is handed to it and this bridge quits.
func adoptWindow(ctx context.Context, coord *app.Coordinator, dir *terminal.Directory, guard *singleton.Guard, srv *session.Server, req session.AttachPayload, cfg *config.Config, a fyne.App, logger *log.Logger) {
	ticker := time.NewTicker(windowPoll)
	defer ticker.Stop()
	deadline := time.After(windowTimeout)

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			logger.Warn("bridge window not found; toggle will not return here")
			return
		case <-ticker.C:
		}

		w, ok := dir.OwnBridge()
		if !ok {
			continue
		}
		coord.SetBridge(w.Handle)
		logger.Debug("bridge window", "hwnd", w.Handle)

		if cfg.Window.AlwaysOnTop {
			if err := terminal.SetTopmost(w.Handle, true); err != nil {
				logger.Warn("always_on_top failed", "err", err)
			}
		}

		yctx, cancel := context.WithTimeout(ctx, handOffTimeout)
		older, yielded, err := guard.Yield(yctx, int32(os.Getpid()), req, srv.Close)
		cancel()
		if !yielded {
			return
		}
		logger.Info("yielding to older bridge", "pid", older.PID, "hwnd", older.Handle)
		if err != nil {
			logger.Warn("launching terminal not handed over", "err", err)
		}
		_ = dir.FocusWindow(older.Handle)
		fyne.Do(a.Quit)
		return
	}
}

// watchConfig applies saved config changes to the running bridge.
func watchConfig(ctx context.Context, coord *app.Coordinator, a fyne.App, logger *log.Logger) {
	path, err := config.GetConfigPath()
	if err != nil {
		return
	}
	w, err := config.NewWatcher(path)
	if err != nil {
		logger.Warn("config hot reload unavailable", "err", err)
		return
	}
	defer func() { _ = w.Close() }()

	current := theme.Current()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-w.Updates():
			if err := coord.ApplyConfig(ctx, cfg); err != nil {
				logger.Warn("config not applied", "err", err)
				continue
			}
			if err := theme.Initialize(cfg.Window.Theme); err != nil {
				logger.Warn("theme unavailable", "err", err)
			}
			if p := theme.Current(); p != current {
				current = p
				fyne.Do(func() { a.Settings().SetTheme(theme.Fyne(p)) })
			}
		case err := <-w.Errors():
			logger.Warn("config reload failed", "err", err)
		}
	}
}
