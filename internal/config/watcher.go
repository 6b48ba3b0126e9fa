package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pfrederiksen/telefication/internal/logger"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher keeps the latest valid snapshot of a config file and reloads it when the
// file changes. A reload that fails to parse or validate keeps the previous snapshot.
type Watcher struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	// OnReload is called after a new snapshot is committed
	OnReload func(*Config)
}

// NewWatcher parses path once; the initial parse must succeed
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{path: path, cfg: cfg}, nil
}

// Get returns the current snapshot. Callers must not modify it.
func (w *Watcher) Get() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Load implements Source with a copy of the current snapshot
func (w *Watcher) Load() (*Config, error) {
	return w.Get().Clone(), nil
}

// Reload parses the file now and commits it when valid
func (w *Watcher) Reload() error {
	cfg, err := Parse(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()

	if w.OnReload != nil {
		w.OnReload(cfg)
	}
	return nil
}

// Run watches the file's directory until ctx is done. Editors often replace files
// instead of writing them, so create and rename events count as changes too.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	logger.Debug("Config watcher started", logger.Fields{"path": w.path})

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	reload := func() {
		if err := w.Reload(); err != nil {
			logger.Warn("Config reload failed; keeping previous settings", logger.Fields{
				"path":  w.path,
				"error": err.Error(),
			})
			return
		}
		logger.Info("Config reloaded", logger.Fields{"path": w.path})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", logger.Fields{"path": w.path, "error": err.Error()})
		}
	}
}
