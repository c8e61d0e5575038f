// Package filesystem provides the copy and atomic write primitives used to
// materialize vault content on disk.
package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"
)

// maxDepth bounds recursion through symlinked directories.
const maxDepth = 32

// SkipFunc reports whether the entry at name (slash separated, relative to
// the source filesystem root) must not be copied.
type SkipFunc func(name string, isDir bool) bool

// FileExists reports whether the given path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// RemoveAll deletes path and everything below it. A missing path is not an error.
func RemoveAll(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.RemoveAll(path)
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place, so readers observe either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Touch sets the modification time of path to now.
func Touch(path string) error {
	now := time.Now()
	return os.Chtimes(path, now, now)
}

// CopyEntry copies the file or directory src of fsys to the OS path dst.
// Directories are copied as whole subtrees. dst must not exist.
func CopyEntry(fsys fs.FS, src, dst string, skip SkipFunc) error {
	info, err := fs.Stat(fsys, src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyTree(fsys, src, dst, skip, 0)
	}
	return copyFile(fsys, src, dst, info.Mode())
}

// ReplaceEntry copies src over dst. The copy is staged in a temporary
// sibling of dst, so a failed copy leaves dst as it was.
func ReplaceEntry(fsys fs.FS, src, dst string, skip SkipFunc) error {
	parent := filepath.Dir(dst)
	if err := os.MkdirAll(parent, 0o755); err != nil { //nolint:gosec // content dirs are shared with editor tooling
		return err
	}
	stage, err := os.MkdirTemp(parent, "."+filepath.Base(dst)+".stage-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(stage) }()

	staged := filepath.Join(stage, filepath.Base(dst))
	if err := CopyEntry(fsys, src, staged, skip); err != nil {
		return err
	}
	if err := RemoveAll(dst); err != nil {
		return err
	}
	return os.Rename(staged, dst)
}

func copyTree(fsys fs.FS, src, dst string, skip SkipFunc, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%s: directory nesting too deep", src)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil { //nolint:gosec // content dirs are shared with editor tooling
		return err
	}

	entries, err := fs.ReadDir(fsys, src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := path.Join(src, e.Name())
		target := filepath.Join(dst, e.Name())

		var info fs.FileInfo
		if e.Type()&fs.ModeSymlink != 0 {
			info, err = fs.Stat(fsys, name)
			if err != nil {
				// dangling link
				continue
			}
		} else if info, err = e.Info(); err != nil {
			return err
		}
		if skip != nil && skip(name, info.IsDir()) {
			continue
		}

		if info.IsDir() {
			if err := copyTree(fsys, name, target, skip, depth+1); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(fsys, name, target, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(fsys fs.FS, src, dst string, mode fs.FileMode) error {
	if !mode.IsRegular() {
		return nil
	}

	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	perm := mode.Perm() | 0o200
	if mode.Perm() == 0 {
		perm = 0o644
	}

	//nolint:gosec // G304: dst is built from the merge destination and vault entry names
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// IsNotExist reports whether err indicates a missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
