package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mplswatch/sentinel/internal/logger"
)

// Watcher re-reads dry_run and log_level from path whenever it changes
// on disk, and nothing else: every other field requires a restart.
// Grounded on the teacher's config package having no live-reload of its
// own; this is new behavior spec.md's ambient configuration section
// calls for.
type Watcher struct {
	mu      sync.RWMutex
	path    string
	dryRun  bool
	level   string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching path for changes, seeding its live fields
// from initial. If path is empty, the returned Watcher just serves the
// initial values and never updates.
func NewWatcher(path string, initial *Config) (*Watcher, error) {
	w := &Watcher{
		path:   path,
		dryRun: initial.Pipeline.DryRun,
		level:  initial.Logging.Level,
		done:   make(chan struct{}),
	}
	if path == "" {
		return w, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w.watcher = fw

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce.Reset(200 * time.Millisecond)
		case <-debounce.C:
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg := defaultConfig()
	if err := loadYAMLFile(w.path, cfg); err != nil {
		logger.Warn("config hot-reload failed, keeping previous values", "path", w.path, "error", err)
		return
	}
	applyEnvOverrides(cfg)

	w.mu.Lock()
	changed := w.dryRun != cfg.Pipeline.DryRun || w.level != cfg.Logging.Level
	w.dryRun = cfg.Pipeline.DryRun
	w.level = cfg.Logging.Level
	w.mu.Unlock()

	if changed {
		logger.Info("config hot-reload applied", "dry_run", cfg.Pipeline.DryRun, "log_level", cfg.Logging.Level)
	}
}

// DryRun returns the current live dry_run value.
func (w *Watcher) DryRun() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dryRun
}

// LogLevel returns the current live log_level value.
func (w *Watcher) LogLevel() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.level
}

// Close stops the underlying filesystem watch, if any.
func (w *Watcher) Close() error {
	close(w.done)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
