package git

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
)

// GoGitFetcher implements Fetcher in-process with go-git. It needs no git
// binary for https remotes.
type GoGitFetcher struct {
	Depth int
}

// NewGoGitFetcher returns a GoGitFetcher cloning DefaultDepth commits.
func NewGoGitFetcher() *GoGitFetcher {
	return &GoGitFetcher{Depth: DefaultDepth}
}

// Clone performs a single-branch clone of url into dir.
func (f *GoGitFetcher) Clone(ctx context.Context, url, dir string) error {
	_, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:          url,
		Depth:        f.Depth,
		SingleBranch: true,
		Tags:         gogit.NoTags,
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", url, err)
	}
	return nil
}

// Pull fast-forwards the checked out branch from origin.
func (f *GoGitFetcher) Pull(ctx context.Context, dir string) (bool, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return false, ErrNotRepository
		}
		return false, fmt.Errorf("failed to open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}

	err = wt.PullContext(ctx, &gogit.PullOptions{
		RemoteName:   "origin",
		SingleBranch: true,
		Depth:        f.Depth,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gogit.NoErrAlreadyUpToDate):
		return false, nil
	case errors.Is(err, gogit.ErrNonFastForwardUpdate):
		return false, fmt.Errorf("%w: %w", ErrNotFastForward, err)
	default:
		return false, fmt.Errorf("failed to pull: %w", err)
	}
}

// IsRepository reports whether dir opens as a repository with a worktree.
func (f *GoGitFetcher) IsRepository(_ context.Context, dir string) bool {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return false
	}
	_, err = repo.Worktree()
	return err == nil
}
