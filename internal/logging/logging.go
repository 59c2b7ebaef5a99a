// Package logging sets up the file-backed debug log shared by every
// component. Stdout is never written to, since hook mode owns it.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Options configures New.
type Options struct {
	// File is the log path. Empty means stderr.
	File  string
	Level string
	Debug bool
}

// Logger wraps a charm logger together with the file it writes to.
type Logger struct {
	*log.Logger
	closer io.Closer
}

// New opens the log file in append mode and returns a root logger.
func New(opts Options) (*Logger, error) {
	var (
		w      io.Writer = os.Stderr
		closer io.Closer
	)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w, closer = f, f
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if opts.Debug {
		level = log.DebugLevel
	}

	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "mojibridge",
	})
	if err != nil {
		l.Warn("unknown log level, using info", "level", opts.Level)
	}
	return &Logger{Logger: l, closer: closer}, nil
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel accepts debug, info, warn, error and fatal.
func ParseLevel(s string) (log.Level, error) {
	if strings.TrimSpace(s) == "" {
		return log.InfoLevel, nil
	}
	return log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel + 1})
}

// Component returns a child logger tagged with the component name.
func Component(parent *log.Logger, name string) *log.Logger {
	if parent == nil {
		return Discard()
	}
	return parent.WithPrefix(name)
}
