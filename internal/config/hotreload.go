package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler receives the freshly loaded config after a file change.
type ChangeHandler func(cfg *Config)

// Watcher reloads the config file when it changes on disk. Writes are
// debounced (300ms) because editors tend to fire several events per save.
// The run command uses this to hot-apply spend-limit changes to running
// wallets without a restart.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	stopChan chan struct{}

	mu       sync.Mutex
	handlers []ChangeHandler
}

// NewWatcher creates a watcher for the given config file.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		watcher:  fw,
		debounce: 300 * time.Millisecond,
		stopChan: make(chan struct{}),
	}, nil
}

// OnChange registers a handler called after each successful reload.
func (w *Watcher) OnChange(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching. Reload failures are logged and skipped; the last
// good config stays in effect.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.path); err != nil {
		return err
	}

	go w.loop()
	slog.Info("config watcher started", "path", w.path)
	return nil
}

// Stop ends watching.
func (w *Watcher) Stop() {
	close(w.stopChan)
	w.watcher.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	for {
		select {
		case <-w.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("config reload failed, keeping previous config", "path", w.path, "error", err)
		return
	}

	slog.Info("config reloaded", "path", w.path)

	w.mu.Lock()
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, handler := range handlers {
		handler(cfg)
	}
}
