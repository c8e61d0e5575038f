package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/choplin/agent-bridge/internal/application"
	"github.com/choplin/agent-bridge/internal/merge"
	"github.com/choplin/agent-bridge/internal/services"
	"github.com/choplin/agent-bridge/internal/syncer"
)

// ErrAllSyncsFailed is returned by Update when no vault could be synced.
var ErrAllSyncsFailed = errors.New("all vault syncs failed")

// Project operates on a project's merged content tree.
type Project struct {
	app *application.Context
}

func NewProject(app *application.Context) *Project {
	return &Project{app: app}
}

// TargetOptions selects the destination. Empty fields fall back to the
// settings.
type TargetOptions struct {
	Target     string
	Strategy   string
	WorkingDir string
}

func (u *Project) resolve(ctx context.Context, opts TargetOptions) (string, merge.Strategy, error) {
	target := opts.Target
	if target == "" {
		target = u.app.Settings.Target
	}
	dest, err := ResolveTarget(ctx, target, opts.WorkingDir)
	if err != nil {
		return "", 0, err
	}

	name := opts.Strategy
	if name == "" {
		name = u.app.Settings.Strategy
	}
	strategy, err := merge.ParseStrategy(name)
	if err != nil {
		return "", 0, err
	}
	return dest, strategy, nil
}

type UpdateResult struct {
	Target   string                   `json:"target"`
	Strategy merge.Strategy           `json:"strategy"`
	Sync     map[string]syncer.Result `json:"-"`
	Merge    *merge.Report            `json:"merge,omitempty"`
}

// Update syncs every enabled vault and merges them into the target. When
// not a single vault syncs, nothing is merged and ErrAllSyncsFailed is
// returned along with the sync results.
func (u *Project) Update(ctx context.Context, opts TargetOptions) (*UpdateResult, error) {
	dest, strategy, err := u.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}

	res := &UpdateResult{Target: dest, Strategy: strategy}
	res.Sync = u.app.Syncer.SyncAll(ctx, "")
	if syncer.Succeeded(res.Sync) == 0 {
		return res, ErrAllSyncsFailed
	}

	if err := os.MkdirAll(dest, 0o755); err != nil { //nolint:gosec // project content is shared with editor tooling
		return res, fmt.Errorf("failed to create target %s: %w", dest, err)
	}
	res.Merge, err = u.app.Merger.Merge(ctx, dest, strategy)
	if err != nil {
		return res, err
	}
	return res, nil
}

// Merge merges the enabled vaults into the target without syncing.
func (u *Project) Merge(ctx context.Context, opts TargetOptions) (string, *merge.Report, error) {
	dest, strategy, err := u.resolve(ctx, opts)
	if err != nil {
		return "", nil, err
	}
	rep, err := u.app.Merger.Merge(ctx, dest, strategy)
	return dest, rep, err
}

// Status reports on the target's content and every registered vault.
func (u *Project) Status(ctx context.Context, opts TargetOptions) (*services.ProjectStatus, error) {
	dest, _, err := u.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	return u.app.Status.Collect(ctx, dest)
}
