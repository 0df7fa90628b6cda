package releasestore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/fsnotify/fsnotify"
)

// Watcher is implemented by stores which can notify about changes made
// outside of the process.
type Watcher interface {
	Watch(ctx context.Context, onChange func(fileName string)) error
}

func watchDir(
	ctx context.Context,
	dir string,
	fileNames []string,
	onChange func(fileName string),
) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to initialize a watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("unable to watch '%s': %w", dir, err)
	}

	isWatched := map[string]bool{}
	for _, fileName := range fileNames {
		isWatched[fileName] = true
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				fileName := filepath.Base(event.Name)
				if !isWatched[fileName] {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					logger.FromCtx(ctx).Debugf("'%s' changed: %s", fileName, event.Op)
					onChange(fileName)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.FromCtx(ctx).Warnf("watcher error on '%s': %v", dir, err)
			}
		}
	}()

	return nil
}
