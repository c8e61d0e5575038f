// Package merge reconciles the content of enabled vaults into a project
// destination directory.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/choplin/agent-bridge/internal/content"
	"github.com/choplin/agent-bridge/internal/filesystem"
	"github.com/choplin/agent-bridge/internal/logging"
	"github.com/choplin/agent-bridge/internal/vault"
)

// DefaultExclude are the globs never copied out of a vault.
var DefaultExclude = []string{"**/.DS_Store", "**/.git", "**/.git/**"}

// Report summarizes a merge run.
type Report struct {
	// Counts holds the entries actually copied per category.
	Counts content.Inventory `json:"counts"`
	// Skipped counts entries left alone because the destination had them.
	Skipped int `json:"skipped"`
	// SkippedVaults lists enabled vaults whose content could not be found.
	SkippedVaults []SkippedVault `json:"skipped_vaults,omitempty"`
	// MCPConfigFrom names the vault whose mcp_config.json was written, if any.
	MCPConfigFrom string          `json:"mcp_config_from,omitempty"`
	Failures      []*MergeIOError `json:"-"`
}

// SkippedVault is an enabled vault that contributed nothing because its
// content root is missing.
type SkippedVault struct {
	Vault  string `json:"vault"`
	Reason string `json:"reason"`
}

func (s SkippedVault) String() string { return s.Vault + ": " + s.Reason }

// Total returns the number of copied entries.
func (r *Report) Total() int { return r.Counts.Total() }

// Err joins all failures, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

func (r *Report) fail(err *MergeIOError) { r.Failures = append(r.Failures, err) }

// Engine merges the enabled vaults of a registry.
type Engine struct {
	registry *vault.Registry
	exclude  []string
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithExclude replaces the exclude globs. Patterns use doublestar syntax
// and match slash separated paths relative to the vault's content root.
func WithExclude(patterns ...string) Option {
	return func(e *Engine) { e.exclude = patterns }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// New returns an Engine reading vaults from reg.
func New(reg *vault.Registry, opts ...Option) *Engine {
	e := &Engine{registry: reg, exclude: DefaultExclude}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDiscard(e.logger)
	return e
}

// Merge copies every enabled vault, ascending by priority, into dest
// according to strategy. Per-entry failures are collected in the report;
// the returned error is reserved for failures that stop the whole run.
func (e *Engine) Merge(ctx context.Context, dest string, strategy Strategy) (*Report, error) {
	for _, p := range e.exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	if err := os.MkdirAll(dest, 0o755); err != nil { //nolint:gosec // project content is shared with editor tooling
		return nil, fmt.Errorf("failed to create destination %s: %w", dest, err)
	}
	if strategy == VaultOnly {
		if err := clearDestination(dest); err != nil {
			return nil, err
		}
	}

	rep := &Report{Counts: make(content.Inventory, len(content.Categories))}
	for _, c := range content.Categories {
		rep.Counts[c] = 0
	}
	for _, v := range e.registry.Enabled() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		loc, err := e.registry.Locate(v)
		if err != nil {
			rep.fail(&MergeIOError{Vault: v.Name, Entry: v.Source, Err: err})
			e.logger.Warn("vault content unavailable", "vault", v.Name, "error", err)
			continue
		}
		if _, err := fs.Stat(loc.FS, "."); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				rep.fail(&MergeIOError{Vault: v.Name, Entry: v.Source, Err: err})
				e.logger.Warn("vault content unavailable", "vault", v.Name, "error", err)
				continue
			}
			reason := "source not found"
			if v.IsRemote() {
				reason = "not synced yet (run 'agent-bridge vault sync' first)"
			}
			rep.SkippedVaults = append(rep.SkippedVaults, SkippedVault{Vault: v.Name, Reason: reason})
			e.logger.Warn("vault skipped", "vault", v.Name, "reason", reason, "path", loc.Dir)
			continue
		}
		before := rep.Total()
		for _, c := range content.Categories {
			if err := e.mergeCategory(ctx, rep, v, loc.FS, c, dest, strategy); err != nil {
				return rep, err
			}
		}
		e.mergeMCPConfig(rep, v, loc.FS, dest, strategy)
		e.logger.Debug("vault merged", "vault", v.Name, "copied", rep.Total()-before)
	}

	e.logger.Info("merge finished", "strategy", strategy, "copied", rep.Total(), "skipped", rep.Skipped, "skipped_vaults", len(rep.SkippedVaults), "failures", len(rep.Failures))
	return rep, nil
}

func clearDestination(dest string) error {
	for _, c := range content.Categories {
		if err := filesystem.RemoveAll(filepath.Join(dest, string(c))); err != nil {
			return fmt.Errorf("failed to clear %s: %w", c, err)
		}
	}
	if err := filesystem.RemoveAll(filepath.Join(dest, content.MCPConfigFile)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", content.MCPConfigFile, err)
	}
	return nil
}

// mergeCategory copies the top-level entries of one category. The first
// failing entry ends this vault's contribution to the category. Only
// cancellation is returned.
func (e *Engine) mergeCategory(ctx context.Context, rep *Report, v vault.Vault, fsys fs.FS, c content.Category, dest string, strategy Strategy) error {
	entries, err := fs.ReadDir(fsys, string(c))
	if err != nil {
		if !filesystem.IsNotExist(err) {
			rep.fail(&MergeIOError{Vault: v.Name, Category: string(c), Err: err})
		}
		return nil
	}

	dir := filepath.Join(dest, string(c))
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // project content is shared with editor tooling
		rep.fail(&MergeIOError{Vault: v.Name, Category: string(c), Err: err})
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := path.Join(string(c), entry.Name())
		info, err := fs.Stat(fsys, name)
		if err != nil {
			rep.fail(&MergeIOError{Vault: v.Name, Category: string(c), Entry: entry.Name(), Err: err})
			return nil
		}
		if e.skip(name, info.IsDir()) {
			continue
		}

		target := filepath.Join(dir, entry.Name())
		if exists(target) && !strategy.Overwrites() {
			rep.Skipped++
			continue
		}
		if err := filesystem.ReplaceEntry(fsys, name, target, e.skip); err != nil {
			rep.fail(&MergeIOError{Vault: v.Name, Category: string(c), Entry: entry.Name(), Err: err})
			e.logger.Warn("failed to copy entry", "vault", v.Name, "entry", name, "error", err)
			return nil
		}
		rep.Counts[c]++
	}
	return nil
}

func (e *Engine) mergeMCPConfig(rep *Report, v vault.Vault, fsys fs.FS, dest string, strategy Strategy) {
	if !content.Exists(fsys, content.MCPConfigFile) {
		return
	}
	target := filepath.Join(dest, content.MCPConfigFile)
	if exists(target) && !strategy.Overwrites() {
		rep.Skipped++
		return
	}
	if err := filesystem.ReplaceEntry(fsys, content.MCPConfigFile, target, nil); err != nil {
		rep.fail(&MergeIOError{Vault: v.Name, Entry: content.MCPConfigFile, Err: err})
		e.logger.Warn("failed to copy MCP config", "vault", v.Name, "error", err)
		return
	}
	rep.MCPConfigFrom = v.Name
}

func (e *Engine) skip(name string, _ bool) bool {
	for _, p := range e.exclude {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
