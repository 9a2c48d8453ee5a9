package registry

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/intentmesh/intentmesh/logging"
)

// DefaultDebounce is the interval to wait after a file event before
// reloading, collapsing editor write bursts into one reload.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a registry from its configuration file whenever the file
// changes. A file that fails to parse is logged and ignored; the previous
// table stays installed.
type Watcher struct {
	path     string
	registry *Registry
	debounce time.Duration
	logger   logging.Logger
	fsw      *fsnotify.Watcher
}

// WatcherOptions configure a Watcher.
type WatcherOptions struct {
	// Debounce overrides DefaultDebounce when > 0.
	Debounce time.Duration
	// Logger receives reload outcomes. Defaults to NoOpLogger.
	Logger logging.Logger
}

// NewWatcher creates a watcher for the given config file. The parent
// directory is watched rather than the file itself so atomic rename-style
// rewrites keep being observed.
func NewWatcher(path string, registry *Registry, optFns ...func(o *WatcherOptions)) (*Watcher, error) {
	opts := WatcherOptions{Debounce: DefaultDebounce, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		registry: registry,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		fsw:      fsw,
	}, nil
}

// Run watches until the context is cancelled. It blocks; run it on its own
// goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("intent config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	table, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("intent config reload rejected", "path", w.path, "error", err)
		return
	}
	w.registry.Reload(table)
	w.logger.Info("intent config reloaded",
		"path", w.path, "version", table.Version(), "intents", table.Len())
}
