package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// ResolverConfigWatcher watches the resolver-specific config files named
// from the main config (HTTPS headers, AWS whitelist, Kubernetes context
// whitelist) and re-reads each one into the running resolver whenever it
// changes, generalizing the original plugins' "read YAML once at
// construction" into a live-reloadable ambient concern.
type ResolverConfigWatcher struct {
	watcher *fsnotify.Watcher
	logger  logr.Logger
	onWrite map[string]func()
}

// NewResolverConfigWatcher starts watching no files; call Watch for each
// path that should trigger a callback on write.
func NewResolverConfigWatcher(logger logr.Logger) (*ResolverConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ResolverConfigWatcher{
		watcher: w,
		logger:  logger,
		onWrite: make(map[string]func()),
	}, nil
}

// Watch registers path so that onChange runs whenever it is written. path
// empty is a no-op, matching resolvers whose config file is optional.
func (w *ResolverConfigWatcher) Watch(path string, onChange func()) error {
	if path == "" {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		return err
	}
	w.onWrite[path] = onChange
	return nil
}

// Run blocks, dispatching registered callbacks until ctx is cancelled or
// Close is called.
func (w *ResolverConfigWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if cb, found := w.onWrite[event.Name]; found {
				w.logger.V(1).Info("resolver config changed, reloading", "path", event.Name)
				cb()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(err, "resolver config watcher error")
		}
	}
}

// Close releases the underlying inotify/kqueue handle.
func (w *ResolverConfigWatcher) Close() error {
	return w.watcher.Close()
}
