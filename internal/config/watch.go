package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and calls onChange each time the file changes to
// a configuration different from the one last delivered. It runs until
// ctx is cancelled.
//
// If a reload fails (invalid YAML, failed validation), the error is
// logged and the previous config remains active — Watch does not call
// onChange. Editors that save atomically replace the watched inode;
// Watch re-adds the path when that happens.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	// Baseline for change suppression: touching the file without
	// changing it should not ripple through the server.
	last, _ := Load(path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):

			case event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove):
				// The watched inode is gone (atomic save). Pick up the
				// replacement file before reloading.
				if err := rewatch(ctx, watcher, path); err != nil {
					return err
				}

			default:
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}
			if last != nil && reflect.DeepEqual(cfg, last) {
				continue
			}
			last = cfg

			slog.Info("config: reloaded", "path", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// rewatch re-adds path after its inode went away, retrying briefly
// while the editor finishes writing the replacement.
func rewatch(ctx context.Context, watcher *fsnotify.Watcher, path string) error {
	for i := 0; i < 20; i++ {
		if err := watcher.Add(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(50 * time.Millisecond):
		}
	}
	return fmt.Errorf("config: re-watch %q: file did not reappear", path)
}
