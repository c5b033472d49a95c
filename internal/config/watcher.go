package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives each successfully reloaded configuration.
type ReloadFunc func(Config)

// Watcher reloads configuration when the user or project file changes.
//
// It watches the parent directories, since editors often replace files rather
// than write them in place, and debounces bursts into one reload.
type Watcher struct {
	opts   LoadOptions
	files  map[string]bool
	onLoad ReloadFunc

	watcher *fsnotify.Watcher
	logger  *log.Logger

	debounceWindow time.Duration

	mu    sync.Mutex
	dirty bool
	timer *time.Timer

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewWatcher watches the config files Load(opts) reads and calls onLoad after
// every change that still validates. Invalid edits are logged and ignored.
func NewWatcher(opts LoadOptions, onLoad ReloadFunc, logger *log.Logger) (*Watcher, error) {
	if onLoad == nil {
		return nil, fmt.Errorf("reload callback is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	userPath, projectPath := ConfigPaths(opts.ProjectDir, opts.ConfigPath)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new fsnotify watcher: %w", err)
	}

	w := &Watcher{
		opts:           opts,
		files:          make(map[string]bool),
		onLoad:         onLoad,
		watcher:        fsw,
		logger:         logger.WithPrefix("config"),
		debounceWindow: 200 * time.Millisecond,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}

	watched := 0
	for _, p := range []string{userPath, projectPath} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		w.files[filepath.Clean(abs)] = true
		dir := filepath.Dir(abs)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		watched++
	}
	if watched == 0 {
		fsw.Close()
		return nil, fmt.Errorf("no config directory exists to watch")
	}
	return w, nil
}

// Start runs the event loop in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil || w.watcher == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	w.startOnce.Do(func() {
		go w.loop(ctx)
	})
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *Watcher) Stop() error {
	if w == nil {
		return nil
	}
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
		w.startOnce.Do(func() { close(w.doneCh) })
		<-w.doneCh
	})
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		var timerC <-chan time.Time
		w.mu.Lock()
		if w.timer != nil {
			timerC = w.timer.C
		}
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.files[filepath.Clean(ev.Name)] {
				w.record()
			}
		case <-timerC:
			w.flush()
		}
	}
}

func (w *Watcher) record() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.dirty = true
	if w.timer == nil {
		w.timer = time.NewTimer(w.debounceWindow)
		return
	}
	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer.Reset(w.debounceWindow)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	dirty := w.dirty
	w.dirty = false
	w.timer = nil
	w.mu.Unlock()

	if !dirty {
		return
	}
	cfg, err := Load(w.opts)
	if err != nil {
		w.logger.Error("config reload rejected", "error", err)
		return
	}
	w.logger.Info("config reloaded")
	w.onLoad(cfg)
}
