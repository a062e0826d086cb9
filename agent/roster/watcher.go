package roster

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader is implemented by every registry.
type Reloader interface {
	Path() string
	Reload(ctx context.Context) error
}

// Watcher reloads registries when their backing files change.
type Watcher struct {
	watcher  *fsnotify.Watcher
	targets  map[string]Reloader
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	onLoad  func(path string, err error)
}

// NewWatcher watches the files behind regs. Registries without a path are ignored.
func NewWatcher(logger *zap.Logger, regs ...Reloader) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fw,
		targets:  make(map[string]Reloader),
		debounce: 300 * time.Millisecond,
		logger:   logger.With(zap.String("component", "roster_watcher")),
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, r := range regs {
		if r.Path() == "" {
			continue
		}
		abs, err := filepath.Abs(r.Path())
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.targets[abs] = r
	}
	return w, nil
}

// SetDebounce changes how long a file must be quiet before it is reloaded.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// OnReload registers a callback invoked after every reload attempt.
func (w *Watcher) OnReload(fn func(path string, err error)) {
	w.mu.Lock()
	w.onLoad = fn
	w.mu.Unlock()
}

// Start watches the parent directories, so files replaced by rename are seen.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dirs := make(map[string]bool)
	for p := range w.targets {
		dirs[filepath.Dir(p)] = true
	}
	for d := range dirs {
		if err := w.watcher.Add(d); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("dir", d), zap.Error(err))
			continue
		}
		w.logger.Info("watching roster directory", zap.String("dir", d))
	}

	go w.run(ctx)
	return nil
}

// Stop ends the event loop and closes the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", zap.Error(err))
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	if _, ok := w.targets[abs]; !ok {
		return
	}
	w.mu.Lock()
	w.pending[abs] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for p, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, p)
			delete(w.pending, p)
		}
	}
	cb := w.onLoad
	w.mu.Unlock()

	for _, p := range ready {
		err := w.targets[p].Reload(ctx)
		if err == nil {
			w.logger.Info("roster file reloaded", zap.String("path", p))
		}
		if cb != nil {
			cb(p, err)
		}
	}
}
