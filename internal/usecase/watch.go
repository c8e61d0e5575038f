package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/choplin/agent-bridge/internal/filesystem"
	"github.com/choplin/agent-bridge/internal/merge"
	"github.com/choplin/agent-bridge/internal/vault"
)

// DefaultDebounce is the quiet period after the last change before a
// re-merge starts.
const DefaultDebounce = 500 * time.Millisecond

// ErrNothingToWatch is returned when no enabled local vault has content on disk.
var ErrNothingToWatch = errors.New("no local vault content to watch")

// WatchOptions configures Watch.
type WatchOptions struct {
	TargetOptions
	Debounce time.Duration
	// OnMerge is called after the initial merge and after every re-merge.
	OnMerge func(target string, rep *merge.Report, err error)
}

// Watch merges once, then re-merges whenever the content of an enabled
// local vault changes, until ctx is done.
func (u *Project) Watch(ctx context.Context, opts WatchOptions) error {
	dest, strategy, err := u.resolve(ctx, opts.TargetOptions)
	if err != nil {
		return err
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	notify := opts.OnMerge
	if notify == nil {
		notify = func(string, *merge.Report, error) {}
	}
	logger := u.app.Logger

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	watched := 0
	for _, dir := range u.watchRoots() {
		watched += addRecursive(watcher, dir, func(p string, err error) {
			logger.Warn("failed to watch directory", "dir", p, "error", err)
		})
	}
	if watched == 0 {
		return ErrNothingToWatch
	}
	logger.Info("watching local vaults", "directories", watched, "target", dest)

	rep, err := u.app.Merger.Merge(ctx, dest, strategy)
	notify(dest, rep, err)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) == ".git" || within(event.Name, dest) {
				continue
			}
			if event.Has(fsnotify.Create) && filesystem.IsDir(event.Name) {
				addRecursive(watcher, event.Name, func(p string, err error) {
					logger.Warn("failed to watch directory", "dir", p, "error", err)
				})
			}
			logger.Debug("vault content changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			rep, err := u.app.Merger.Merge(ctx, dest, strategy)
			if err != nil && ctx.Err() != nil {
				return nil
			}
			notify(dest, rep, err)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)
		}
	}
}

// watchRoots lists the content directories of enabled local vaults.
func (u *Project) watchRoots() []string {
	var dirs []string
	for _, v := range u.app.Registry.Enabled() {
		if v.Kind() != vault.KindLocal {
			continue
		}
		loc, err := u.app.Registry.Locate(v)
		if err != nil || !filesystem.IsDir(loc.Dir) {
			continue
		}
		dirs = append(dirs, loc.Dir)
	}
	return dirs
}

// addRecursive watches root and every directory below it except .git
// and returns how many were added.
func addRecursive(w *fsnotify.Watcher, root string, warn func(string, error)) int {
	n := 0
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			warn(p, err)
			return nil
		}
		n++
		return nil
	})
	return n
}

func within(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && filepath.IsLocal(rel)
}
