package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	debounce time.Duration

	updates chan *Config
	errors  chan error

	closeOnce sync.Once
	closeCh   chan struct{}
	done      sync.WaitGroup
}

// NewWatcher watches the directory containing path. Editors often replace
// files by rename, so the file itself is not watched.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		path:     abs,
		debounce: 100 * time.Millisecond,
		updates:  make(chan *Config, 1),
		errors:   make(chan error, 1),
		closeCh:  make(chan struct{}),
	}
	w.done.Add(1)
	go w.processLoop()
	return w, nil
}

// Updates delivers successfully parsed configs.
func (w *Watcher) Updates() <-chan *Config { return w.updates }

// Errors delivers read and parse failures. The previous config stays active.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		err = w.fsw.Close()
		w.done.Wait()
	})
	return err
}

func (w *Watcher) processLoop() {
	defer w.done.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sendError(err)

		case <-fire:
			fire = nil
			cfg, err := LoadFrom(w.path)
			if err != nil {
				w.sendError(err)
				continue
			}
			// Keep only the newest config.
			select {
			case <-w.updates:
			default:
			}
			w.updates <- cfg
		}
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}
