package platform

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"
)

// WatchCredentials calls onRemove once when the credential file at path is
// removed or renamed away. Deleting the file while mounted acts as a remote
// logout. The watch ends with ctx.
func WatchCredentials(ctx context.Context, path string, logger *slog.Logger, onRemove func()) error {
	if logger == nil {
		logger = slog.Default()
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: a watch on the file itself is lost on atomic
	// replacement.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					logger.Info("credential file removed", "path", path)
					onRemove()
					return nil
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logger.Warn("credential watcher error", "error", err)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		logger.Error("credential watcher panic", "error", err)
	}))
	return nil
}
