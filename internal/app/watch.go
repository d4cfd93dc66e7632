package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"swvcs/internal/metadata"
	"swvcs/internal/vcs"
)

// DefaultDebounce batches the burst of writes a single commit produces.
const DefaultDebounce = 300 * time.Millisecond

// WatchRepository calls onChange whenever the metadata of the repository
// under projectDir changes on disk, for example when another process commits
// or reverts. Bursts of events within debounce collapse into one call.
// It blocks until ctx is cancelled.
func WatchRepository(ctx context.Context, projectDir string, debounce time.Duration, onChange func()) error {
	root := vcs.RootFor(projectDir)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("not a swvcs repository: %s", projectDir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root); err != nil {
		return fmt.Errorf("add watch dirs: %w", err)
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false
	var quietUntil time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldIgnoreEvent(event) || time.Now().Before(quietUntil) {
				continue
			}
			if !pending {
				timer.Reset(debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		case <-timer.C:
			pending = false
			onChange()
			quietUntil = time.Now().Add(debounce)
		}
	}
}

// addWatchDirs watches the repository root plus the per-backend metadata
// directories that exist. Blob and preview directories change only together
// with a metadata write, so they are left out.
func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	if err := watcher.Add(root); err != nil {
		return err
	}
	for _, name := range []string{metadata.CommitsDirName, metadata.BadgerDirName} {
		dir := filepath.Join(root, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			if err := watcher.Add(dir); err != nil {
				return err
			}
		}
	}
	return nil
}

func shouldIgnoreEvent(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".tmp-") || base == "log" {
		return true
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0
}
