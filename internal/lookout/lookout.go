// Package lookout watches the active-model registry for changes.
//
// The model-switch API writes the registry record; the chat engine needs
// to notice. The lookout watches the record's directory, debounces the
// rename-heavy write pattern, and invokes its callback only when the
// stored model name actually changed since the last observation. Writes
// that re-assert the current model never fire the callback.
package lookout

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/modelplane/modelplane/internal/logger"
	"github.com/modelplane/modelplane/internal/registry"
)

// defaultDebounce absorbs the temp-write-then-rename burst into a single
// observation.
const defaultDebounce = time.Second

// Lookout watches one registry file and reports model changes.
type Lookout struct {
	reg      *registry.Registry
	onChange func(model string)
	debounce time.Duration

	watcher   *fsnotify.Watcher
	stop      chan struct{}
	lastModel string
}

// New creates a Lookout over reg. onChange runs on the lookout's own
// goroutine whenever the stored model name changes.
func New(reg *registry.Registry, onChange func(model string)) *Lookout {
	return &Lookout{
		reg:      reg,
		onChange: onChange,
		debounce: defaultDebounce,
		stop:     make(chan struct{}),
	}
}

// Start begins watching. The registry file itself may not exist yet; the
// watch is on its directory, which the config layer creates at startup.
func (l *Lookout) Start() error {
	current, err := l.reg.ReadCurrent()
	if err != nil {
		logger.Warn("Lookout starting with unreadable registry: %v", err)
	}
	l.lastModel = current
	logger.Info("Current model: %s", orNone(current))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create registry watcher: %w", err)
	}
	l.watcher = watcher

	dir := filepath.Dir(l.reg.Path())
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch registry directory %s: %w", dir, err)
	}

	go l.loop()
	logger.Info("Model lookout started on %s", l.reg.Path())
	return nil
}

// Stop ends the watch. Safe to call once after a successful Start.
func (l *Lookout) Stop() {
	close(l.stop)
	if l.watcher != nil {
		l.watcher.Close()
	}
}

// loop consumes watcher events, debounces them, and re-reads the record.
func (l *Lookout) loop() {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(l.debounce, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}

	target := l.reg.Path()
	for {
		select {
		case <-l.stop:
			return

		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			// The atomic write lands as a rename onto the target path;
			// ignore unrelated churn in the directory.
			if filepath.Clean(ev.Name) != filepath.Clean(target) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			schedule()

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Registry watcher error: %v", err)

		case <-fire:
			l.handleChange()
		}
	}
}

// handleChange re-reads the record and fires the callback on a real change.
func (l *Lookout) handleChange() {
	current, err := l.reg.ReadCurrent()
	if err != nil {
		logger.Error("Lookout failed to read registry: %v", err)
		return
	}

	if current == "" || current == l.lastModel {
		logger.Debug("No actual model change detected, skipping")
		return
	}

	logger.Info("Model changed: %s -> %s", orNone(l.lastModel), current)
	l.lastModel = current
	l.onChange(current)
}

func orNone(name string) string {
	if name == "" {
		return "none"
	}
	return name
}
