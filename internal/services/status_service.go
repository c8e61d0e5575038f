// Package services assembles read-side reports from the registry, the
// content tree of a project and the sync journal.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/choplin/agent-bridge/internal/content"
	"github.com/choplin/agent-bridge/internal/filesystem"
	"github.com/choplin/agent-bridge/internal/freshness"
	"github.com/choplin/agent-bridge/internal/journal"
	"github.com/choplin/agent-bridge/internal/logging"
	"github.com/choplin/agent-bridge/internal/vault"
)

// History looks up the latest recorded sync of a vault.
type History interface {
	Latest(ctx context.Context, vault string) (*journal.Entry, error)
}

// VaultStatus describes one registered vault.
type VaultStatus struct {
	Name       string         `json:"name"`
	Source     string         `json:"source"`
	Kind       vault.Kind     `json:"kind"`
	Enabled    bool           `json:"enabled"`
	Priority   int            `json:"priority"`
	Cached     bool           `json:"cached"`
	LastSynced string         `json:"last_synced"`
	Stale      bool           `json:"stale"`
	LastRun    *journal.Entry `json:"last_run,omitempty"`
}

// ProjectStatus is the full status report of a project target.
type ProjectStatus struct {
	Target      string            `json:"target"`
	Initialized bool              `json:"initialized"`
	Counts      content.Inventory `json:"counts"`
	Vaults      []VaultStatus     `json:"vaults"`
	MCPServers  []string          `json:"mcp_servers"`
	Issues      []content.Issue   `json:"issues"`
}

// StaleVaults returns the names of enabled vaults that need a sync.
func (s *ProjectStatus) StaleVaults() []string {
	var names []string
	for _, v := range s.Vaults {
		if v.Enabled && v.Stale {
			names = append(names, v.Name)
		}
	}
	return names
}

// StatusService collects ProjectStatus reports.
type StatusService struct {
	registry *vault.Registry
	tracker  *freshness.Tracker
	history  History
	logger   *slog.Logger
}

// NewStatusService returns a StatusService. history may be nil.
func NewStatusService(reg *vault.Registry, tracker *freshness.Tracker, history History, logger *slog.Logger) *StatusService {
	return &StatusService{
		registry: reg,
		tracker:  tracker,
		history:  history,
		logger:   logging.OrDiscard(logger),
	}
}

// Collect inspects the content tree at target and every registered vault.
// A missing target yields an uninitialized report rather than an error.
func (s *StatusService) Collect(ctx context.Context, target string) (*ProjectStatus, error) {
	st := &ProjectStatus{
		Target:     target,
		Counts:     content.Inventory{},
		Vaults:     s.Vaults(ctx),
		MCPServers: []string{},
		Issues:     []content.Issue{},
	}
	for _, c := range content.Categories {
		st.Counts[c] = 0
	}
	if !filesystem.IsDir(target) {
		return st, nil
	}
	st.Initialized = true

	fsys := os.DirFS(target)
	counts, err := content.Count(fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to count project content: %w", err)
	}
	st.Counts = counts

	issues, err := content.Validate(fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to validate project content: %w", err)
	}
	if issues != nil {
		st.Issues = issues
	}

	cfg, err := content.LoadMCPConfig(fsys)
	switch {
	case err == nil:
		st.MCPServers = cfg.ServerNames()
	case !filesystem.IsNotExist(err):
		st.Issues = append(st.Issues, content.Issue{Path: content.MCPConfigFile, Message: err.Error()})
	}
	return st, nil
}

// Vaults reports every registered vault in priority order.
func (s *StatusService) Vaults(ctx context.Context) []VaultStatus {
	vaults := s.registry.List()
	out := make([]VaultStatus, 0, len(vaults))
	for _, v := range vaults {
		fresh := s.tracker.Check(v)
		vs := VaultStatus{
			Name:       v.Name,
			Source:     v.Source,
			Kind:       v.Kind(),
			Enabled:    v.Enabled,
			Priority:   v.Priority,
			Cached:     fresh.Synced,
			LastSynced: fresh.Label,
			Stale:      fresh.Stale,
		}
		if s.history != nil {
			entry, err := s.history.Latest(ctx, v.Name)
			switch {
			case err == nil:
				vs.LastRun = entry
			case !errors.Is(err, journal.ErrNotFound):
				s.logger.Debug("failed to read sync journal", "vault", v.Name, "error", err)
			}
		}
		out = append(out, vs)
	}
	return out
}
