package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Errors reported by fetchers independent of the backend.
var (
	ErrNotFastForward = errors.New("git: local history cannot be fast-forwarded")
	ErrNotRepository  = errors.New("git: not a repository")
)

// DefaultDepth is the history depth of fresh clones.
const DefaultDepth = 1

// Fetcher materializes a remote repository in a local directory.
type Fetcher interface {
	// Clone creates a shallow clone of url in dir, which must not exist.
	Clone(ctx context.Context, url, dir string) error
	// Pull fast-forwards the working copy in dir and reports whether HEAD moved.
	Pull(ctx context.Context, dir string) (bool, error)
	// IsRepository reports whether dir holds a usable working copy.
	IsRepository(ctx context.Context, dir string) bool
}

// NewFetcher returns the fetcher for a backend name: "exec" or "go-git".
func NewFetcher(backend string) (Fetcher, error) {
	switch backend {
	case "", "exec":
		return NewExecFetcher(), nil
	case "go-git":
		return NewGoGitFetcher(), nil
	default:
		return nil, fmt.Errorf("unknown git backend %q", backend)
	}
}

// ExecFetcher drives the git command line client.
type ExecFetcher struct {
	Depth int
}

// NewExecFetcher returns an ExecFetcher cloning DefaultDepth commits.
func NewExecFetcher() *ExecFetcher {
	return &ExecFetcher{Depth: DefaultDepth}
}

// Clone runs git clone --depth.
func (f *ExecFetcher) Clone(ctx context.Context, url, dir string) error {
	args := []string{"clone", "--quiet"}
	if f.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(f.Depth))
	}
	args = append(args, url, dir)
	_, err := Run(ctx, filepath.Dir(dir), args...)
	return err
}

// Pull runs git pull --ff-only and compares HEAD before and after.
func (f *ExecFetcher) Pull(ctx context.Context, dir string) (bool, error) {
	before, err := Run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return false, err
	}
	if _, err := Run(ctx, dir, "pull", "--ff-only", "--quiet"); err != nil {
		return false, err
	}
	after, err := Run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return false, err
	}
	return before != after, nil
}

// IsRepository checks for a .git entry that git itself accepts.
func (f *ExecFetcher) IsRepository(ctx context.Context, dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return false
	}
	out, err := Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}
