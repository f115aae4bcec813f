package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"braingemma/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file when it changes on disk and hands the new
// Config to a callback. The parent directory is watched so editors that
// save by rename are still seen.
type Watcher struct {
	path        string
	onChange    func(*Config)
	debounceDur time.Duration

	mu     sync.Mutex
	stats  WatcherStats
	timer  *time.Timer
	reload chan struct{}
}

// WatcherStats tracks watcher activity for debugging and tests.
type WatcherStats struct {
	Events   int
	Reloads  int
	Errors   int
	LastLoad time.Time
}

// NewWatcher creates a watcher for path. onChange runs on the watcher goroutine.
func NewWatcher(path string, onChange func(*Config)) *Watcher {
	return &Watcher{
		path:        filepath.Clean(path),
		onChange:    onChange,
		debounceDur: 250 * time.Millisecond,
		reload:      make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled, reloading the config after each burst of writes.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logging.Config("watching config file %s", w.path)

	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			logging.ConfigWarn("config watcher error: %v", err)
		case <-w.reload:
			w.load()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Events++
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceDur, func() {
		select {
		case w.reload <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) load() {
	cfg, err := Load(w.path)
	if err == nil {
		err = cfg.Validate()
	}
	w.mu.Lock()
	if err != nil {
		w.stats.Errors++
		w.mu.Unlock()
		logging.ConfigWarn("config reload rejected: %v", err)
		return
	}
	w.stats.Reloads++
	w.stats.LastLoad = time.Now()
	w.mu.Unlock()

	logging.Config("config reloaded from %s (mode=%s)", w.path, cfg.Diagnosis.Mode)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
