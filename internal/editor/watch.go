package editor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchFile mirrors path into the editor until ctx is done. A missing file
// is created from the current text so it can be opened in an external
// editor. The parent directory is watched because many editors save by
// renaming a temporary file over the original.
func (e *Editor) WatchFile(ctx context.Context, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve watch path: %w", err)
	}

	if err := e.loadOrSeed(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	logger := e.cfg.Logger.WithField("path", path)
	logger.Info("watching file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				logger.WithError(err).Debug("read after change failed")
				continue
			}
			e.SetText(string(data))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("watcher error")
		}
	}
}

func (e *Editor) loadOrSeed(path string) error {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		e.SetText(string(data))
		return nil
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create watch dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(e.Text()), 0o644); err != nil {
			return fmt.Errorf("seed watch file: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("read watch file: %w", err)
	}
}
