package library

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/jsonshape/internal/ctxlog"
	"github.com/vk/jsonshape/internal/fsutil"
)

// ChangeHandler is called after the cache was purged because the template
// identifier changed on disk.
type ChangeHandler func(identifier string, op fsnotify.Op)

// Watcher purges a Library whenever a template in its views directory is
// created, written, removed or renamed.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// Watch starts watching the views directory of source. The returned Watcher
// is active once Watch returns and stops when ctx is done or Close is
// called. onChange may be nil.
func (l *Library) Watch(ctx context.Context, source *Source, onChange ChangeHandler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirs, err := fsutil.Dirs(source.Dir())
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to scan views directory: %w", err)
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w := &Watcher{watcher: fsw, done: make(chan struct{})}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Watching views directory.", "dir", source.Dir(), "directories", len(dirs))

	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				w.close()
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := fsw.Add(event.Name); err != nil {
							logger.Warn("Failed to watch new directory.", "dir", event.Name, "error", err)
						}
						continue
					}
				}
				if !event.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
					continue
				}
				identifier, ok := source.Identifier(event.Name)
				if !ok {
					continue
				}
				l.Purge()
				logger.Debug("Template changed, cache purged.", "template", identifier, "op", event.Op.String())
				if onChange != nil {
					onChange(identifier, event.Op)
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warn("File watcher error.", "error", err)
			}
		}
	}()

	return w, nil
}

func (w *Watcher) close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
	})
	return err
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.close()
	<-w.done
	return err
}
