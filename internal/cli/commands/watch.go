package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ccollicutt/gotestlog/internal/logging"
)

// watchDebounce groups the bursts of writes a test run produces.
const watchDebounce = 300 * time.Millisecond

// watchFiles runs fn once, then again after each change to one of files,
// until ctx is cancelled. Parent directories are watched so files that are
// truncated or recreated by shell redirection are still seen.
func watchFiles(ctx context.Context, files []string, stderr io.Writer, fn func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	wanted := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f, err)
		}
		wanted[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	if err := fn(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}

	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !wanted[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			logging.Debug("input changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(stderr, "Watch error: %v\n", err)

		case <-timer.C:
			if err := fn(ctx); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
			}
		}
	}
}
