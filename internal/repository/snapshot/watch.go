package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// Watch reloads the snapshot whenever the export process rewrites an index
// file in dir. Blocks until ctx is done.
func (x *Index) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	x.logger.Info("Watching workspace snapshot", zap.String("dir", dir))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isIndexEvent(ev) {
				continue
			}
			debounce = time.After(reloadDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			x.logger.Warn("Snapshot watcher error", zap.Error(err))
		case <-debounce:
			debounce = nil
			if err := x.Reload(ctx); err != nil {
				x.logger.Error("Snapshot reload failed, keeping previous", zap.Error(err))
			}
		}
	}
}

func isIndexEvent(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if name != SearchIndexFile && name != FullIndexFile {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
