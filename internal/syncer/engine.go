// Package syncer fetches or validates vault content so it can be merged.
package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/choplin/agent-bridge/internal/content"
	"github.com/choplin/agent-bridge/internal/filesystem"
	"github.com/choplin/agent-bridge/internal/git"
	"github.com/choplin/agent-bridge/internal/journal"
	"github.com/choplin/agent-bridge/internal/logging"
	"github.com/choplin/agent-bridge/internal/vault"
)

// Recorder persists sync outcomes. *journal.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Engine syncs the vaults of a registry.
type Engine struct {
	registry    *vault.Registry
	fetcher     git.Fetcher
	logger      *slog.Logger
	recorder    Recorder
	concurrency int
	timeout     time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithFetcher selects the git backend. The default drives the git CLI.
func WithFetcher(f git.Fetcher) Option { return func(e *Engine) { e.fetcher = f } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithRecorder records every result, typically into the sync journal.
func WithRecorder(r Recorder) Option { return func(e *Engine) { e.recorder = r } }

// WithConcurrency bounds how many vaults SyncAll fetches at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithTimeout limits each vault sync. Zero means no limit.
func WithTimeout(d time.Duration) Option { return func(e *Engine) { e.timeout = d } }

// New returns an Engine for reg.
func New(reg *vault.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:    reg,
		fetcher:     git.NewExecFetcher(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDiscard(e.logger)
	return e
}

// SyncOne fetches or validates a single vault.
func (e *Engine) SyncOne(ctx context.Context, v vault.Vault) Result {
	return e.sync(ctx, uuid.NewString(), v)
}

// SyncAll syncs the named vault, or every enabled vault when name is empty.
// Failures are captured per vault and never stop the batch. An unknown name
// yields a single entry holding a VaultNotFoundError.
func (e *Engine) SyncAll(ctx context.Context, name string) map[string]Result {
	runID := uuid.NewString()
	results := make(map[string]Result)

	var targets []vault.Vault
	if name != "" {
		v, ok := e.registry.Get(name)
		if !ok {
			results[name] = Result{Vault: name, Err: &vault.VaultNotFoundError{Name: name}}
			return results
		}
		targets = []vault.Vault{v}
	} else {
		targets = e.registry.Enabled()
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(e.concurrency)
	for _, v := range targets {
		g.Go(func() error {
			res := e.sync(ctx, runID, v)
			mu.Lock()
			results[v.Name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) sync(ctx context.Context, runID string, v vault.Vault) Result {
	start := time.Now()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	res := Result{Vault: v.Name}
	if err := ctx.Err(); err != nil {
		res.Err = &SyncError{Vault: v.Name, Op: "sync", Err: err}
	} else {
		switch v.Kind() {
		case vault.KindGit:
			res.Action, res.Err = e.fetch(ctx, v)
		default:
			res.Action, res.Err = e.validate(v)
		}
	}
	if res.Err == nil {
		res.Agents, res.Skills = e.count(v)
	}
	res.Duration = time.Since(start)

	log := e.logger.With("vault", v.Name)
	if res.Err != nil {
		log.Warn("vault sync failed", "error", res.Err)
	} else {
		log.Info("vault synced", "action", res.Action, "agents", res.Agents, "skills", res.Skills, "duration", res.Duration.Round(time.Millisecond))
	}
	e.record(ctx, runID, res)
	return res
}

// fetch updates an existing working copy fast-forward only, or clones into
// a staging directory that replaces the cache only once complete.
func (e *Engine) fetch(ctx context.Context, v vault.Vault) (Action, error) {
	cacheRoot := e.registry.CacheRoot()
	cache := e.registry.CachePath(v)
	if cache == "" {
		return "", &SyncError{Vault: v.Name, Op: "prepare cache", Err: fmt.Errorf("%w: name %q cannot be a cache directory", vault.ErrInvalidVault, v.Name)}
	}
	if err := os.MkdirAll(cacheRoot, 0o750); err != nil {
		return "", &SyncError{Vault: v.Name, Op: "prepare cache", Err: err}
	}

	if e.fetcher.IsRepository(ctx, cache) {
		moved, err := e.fetcher.Pull(ctx, cache)
		if err != nil {
			return "", &SyncError{Vault: v.Name, Op: "pull", Err: err}
		}
		if err := filesystem.Touch(cache); err != nil {
			e.logger.Debug("failed to touch cache", "vault", v.Name, "error", err)
		}
		if moved {
			return ActionUpdated, nil
		}
		return ActionUpToDate, nil
	}

	stage, err := os.MkdirTemp(cacheRoot, "."+v.Name+".clone-*")
	if err != nil {
		return "", &SyncError{Vault: v.Name, Op: "prepare cache", Err: err}
	}
	defer func() { _ = os.RemoveAll(stage) }()

	target := filepath.Join(stage, v.Name)
	if err := e.fetcher.Clone(ctx, v.Source, target); err != nil {
		return "", &SyncError{Vault: v.Name, Op: "clone", Err: err}
	}
	if err := filesystem.RemoveAll(cache); err != nil {
		return "", &SyncError{Vault: v.Name, Op: "replace cache", Err: err}
	}
	if err := os.Rename(target, cache); err != nil {
		return "", &SyncError{Vault: v.Name, Op: "replace cache", Err: err}
	}
	return ActionCloned, nil
}

// validate checks that a local or builtin vault's content is reachable.
func (e *Engine) validate(v vault.Vault) (Action, error) {
	loc, err := e.registry.Locate(v)
	if err != nil {
		return "", &vault.SourceMissingError{Vault: v.Name, Path: v.Source}
	}
	if loc.Root != "" && !filesystem.IsDir(loc.Root) {
		return "", &vault.SourceMissingError{Vault: v.Name, Path: loc.Root}
	}
	if _, err := fs.Stat(loc.FS, "."); err != nil {
		path := loc.Dir
		if path == "" {
			path = fmt.Sprintf("%s/%s", v.Source, v.ContentSubpath)
		}
		return "", &vault.SourceMissingError{Vault: v.Name, Path: path}
	}
	return ActionValidated, nil
}

func (e *Engine) count(v vault.Vault) (int, int) {
	loc, err := e.registry.Locate(v)
	if err != nil {
		return 0, 0
	}
	agents, err := content.CountCategory(loc.FS, content.Agents)
	if err != nil {
		e.logger.Debug("failed to count agents", "vault", v.Name, "error", err)
	}
	skills, err := content.CountCategory(loc.FS, content.Skills)
	if err != nil {
		e.logger.Debug("failed to count skills", "vault", v.Name, "error", err)
	}
	if agents == 0 && skills == 0 && !content.Exists(loc.FS, ".") {
		e.logger.Warn("vault has no content directory", "vault", v.Name, "subpath", v.ContentSubpath)
	}
	return agents, skills
}

func (e *Engine) record(ctx context.Context, runID string, res Result) {
	if e.recorder == nil {
		return
	}
	entry := journal.Entry{
		RunID:    runID,
		Vault:    res.Vault,
		OK:       res.OK(),
		Action:   string(res.Action),
		Agents:   res.Agents,
		Skills:   res.Skills,
		Duration: res.Duration,
	}
	if res.Err != nil {
		entry.Message = res.Err.Error()
	}
	if err := e.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("failed to record sync result", "vault", res.Vault, "error", err)
	}
}
