package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Tunables are the knobs that may change while the service runs. Only
// per-run settings are hot-reloaded; connection settings require a restart.
type Tunables struct {
	DefaultEffort    string `yaml:"default_effort"`
	MaxContentLength int    `yaml:"max_content_length"`
	MinContentLength int    `yaml:"min_content_length"`
}

// Watcher hot-reloads workflow tunables from a yaml file. Changes apply
// to runs started after the reload; in-flight runs keep the configuration
// captured at their start.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu      sync.RWMutex
	current Tunables
	stopCh  chan struct{}
}

// NewWatcher loads the initial tunables from path and begins watching it.
func NewWatcher(path string, initial Tunables, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	w := &Watcher{
		path:    path,
		watcher: fw,
		logger:  logger,
		current: initial,
		stopCh:  make(chan struct{}),
	}
	if err := w.reload(); err != nil {
		logger.Warn("initial tunables load failed, keeping defaults", zap.Error(err))
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	go w.loop()
	return w, nil
}

// Tunables returns the current snapshot.
func (w *Watcher) Tunables() Tunables {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.stopCh)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	// Editors often emit bursts of writes; debounce before reloading.
	var pending <-chan time.Time
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = time.After(200 * time.Millisecond)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			if err := w.reload(); err != nil {
				w.logger.Warn("tunables reload failed, keeping previous values", zap.Error(err))
			} else {
				w.logger.Info("tunables reloaded", zap.String("path", w.path))
			}
		}
	}
}

func (w *Watcher) reload() error {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	var t Tunables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return fmt.Errorf("parse %s: %w", w.path, err)
	}
	w.mu.Lock()
	if t.DefaultEffort != "" {
		w.current.DefaultEffort = t.DefaultEffort
	}
	if t.MaxContentLength > 0 {
		w.current.MaxContentLength = t.MaxContentLength
	}
	if t.MinContentLength > 0 {
		w.current.MinContentLength = t.MinContentLength
	}
	w.mu.Unlock()
	return nil
}
