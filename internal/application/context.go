// Package application wires the long-lived components shared by the CLI
// and the MCP server.
package application

import (
	"fmt"
	"log/slog"

	"github.com/choplin/agent-bridge/internal/config"
	"github.com/choplin/agent-bridge/internal/freshness"
	"github.com/choplin/agent-bridge/internal/git"
	"github.com/choplin/agent-bridge/internal/journal"
	"github.com/choplin/agent-bridge/internal/logging"
	"github.com/choplin/agent-bridge/internal/merge"
	"github.com/choplin/agent-bridge/internal/services"
	"github.com/choplin/agent-bridge/internal/syncer"
	"github.com/choplin/agent-bridge/internal/vault"
)

// Paths locates the on-disk state. An empty Journal disables the journal.
type Paths struct {
	Registry string
	Cache    string
	Journal  string
}

// DefaultPaths resolves every path under the config directory.
func DefaultPaths() Paths {
	return Paths{
		Registry: config.GetRegistryPath(),
		Cache:    config.GetCacheDir(),
		Journal:  config.GetJournalPath(),
	}
}

// Context holds the registry, the engines built from settings and the
// optional sync journal.
type Context struct {
	Settings *config.Settings
	Logger   *slog.Logger
	Registry *vault.Registry
	Journal  *journal.Journal
	Syncer   *syncer.Engine
	Merger   *merge.Engine
	Tracker  *freshness.Tracker
	Status   *services.StatusService
}

// Open loads the registry and builds the engines. A journal that cannot be
// opened is logged and left out, since it only feeds status reporting.
func Open(settings *config.Settings, paths Paths, logger *slog.Logger) (*Context, error) {
	logger = logging.OrDiscard(logger)

	reg, err := vault.Open(paths.Registry, paths.Cache)
	if err != nil {
		return nil, err
	}

	fetcher, err := git.NewFetcher(settings.GitBackend)
	if err != nil {
		return nil, err
	}

	var jrnl *journal.Journal
	if paths.Journal != "" {
		jrnl, err = journal.Open(paths.Journal)
		if err != nil {
			logger.Warn("sync journal unavailable", "path", paths.Journal, "error", err)
			jrnl = nil
		}
	}

	syncOpts := []syncer.Option{
		syncer.WithFetcher(fetcher),
		syncer.WithLogger(logger),
		syncer.WithConcurrency(settings.Concurrency),
		syncer.WithTimeout(settings.SyncTimeout),
	}
	var history services.History
	if jrnl != nil {
		syncOpts = append(syncOpts, syncer.WithRecorder(jrnl))
		history = jrnl
	}

	exclude := settings.Exclude
	if len(exclude) == 0 {
		exclude = merge.DefaultExclude
	}
	tracker := freshness.New(reg, freshness.WithThreshold(settings.StaleAfter))

	return &Context{
		Settings: settings,
		Logger:   logger,
		Registry: reg,
		Journal:  jrnl,
		Syncer:   syncer.New(reg, syncOpts...),
		Merger:   merge.New(reg, merge.WithExclude(exclude...), merge.WithLogger(logger)),
		Tracker:  tracker,
		Status:   services.NewStatusService(reg, tracker, history, logger),
	}, nil
}

// Close releases the journal.
func (c *Context) Close() error {
	if err := c.Journal.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}
