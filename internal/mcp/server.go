package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/choplin/agent-bridge/internal/application"
	"github.com/choplin/agent-bridge/internal/services"
	"github.com/choplin/agent-bridge/internal/syncer"
	"github.com/choplin/agent-bridge/internal/usecase"
	"github.com/choplin/agent-bridge/internal/vault"
)

// Server exposes vault management and project updates as MCP tools.
type Server struct {
	server  *mcp.Server
	app     *application.Context
	vaults  *usecase.Vaults
	project *usecase.Project
}

// NewServer creates a new MCP server instance
func NewServer(app *application.Context, version string) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "agent-bridge",
		Version: version,
	}, nil)

	s := &Server{
		server:  mcpServer,
		app:     app,
		vaults:  usecase.NewVaults(app),
		project: usecase.NewProject(app),
	}
	s.registerTools()
	return s
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_list",
		Description: "List registered knowledge vaults in priority order",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_add",
		Description: "Register a git, local or builtin knowledge vault",
	}, s.handleAdd)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_remove",
		Description: "Unregister a vault and delete its cache",
	}, s.handleRemove)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_sync",
		Description: "Fetch remote vaults and validate local ones",
	}, s.handleSync)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "project_update",
		Description: "Sync all enabled vaults and merge them into the project's agent directory",
	}, s.handleUpdate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "project_status",
		Description: "Report project content counts, vault freshness and content issues",
	}, s.handleStatus)
}

// Input/Output types for each tool

type VaultOutput struct {
	Name           string `json:"name"`
	Source         string `json:"source"`
	Kind           string `json:"kind"`
	Description    string `json:"description,omitempty"`
	ContentSubpath string `json:"contentSubpath"`
	Enabled        bool   `json:"enabled"`
	Priority       int    `json:"priority"`
	Cached         bool   `json:"cached"`
	LastSynced     string `json:"lastSynced"`
	Stale          bool   `json:"stale"`
}

type ListInput struct{}

type ListOutput struct {
	Vaults []VaultOutput `json:"vaults"`
}

type AddInput struct {
	Name           string  `json:"name" jsonschema:"Unique vault name"`
	Source         string  `json:"source" jsonschema:"Git URL, local path or builtin:<kit>"`
	Description    *string `json:"description,omitempty" jsonschema:"Human readable description"`
	Priority       *int    `json:"priority,omitempty" jsonschema:"Merge priority, lower merges first (default 100)"`
	ContentSubpath *string `json:"contentSubpath,omitempty" jsonschema:"Directory inside the source holding the content (default .agent)"`
	Disabled       *bool   `json:"disabled,omitempty" jsonschema:"Register the vault without enabling it"`
}

type AddOutput struct {
	Message string      `json:"message"`
	Vault   VaultOutput `json:"vault"`
}

type RemoveInput struct {
	Name string `json:"name" jsonschema:"Name of the vault to remove"`
}

type MessageOutput struct {
	Message string `json:"message"`
}

type SyncInput struct {
	Name *string `json:"name,omitempty" jsonschema:"Sync only this vault, even when disabled"`
}

type SyncResultOutput struct {
	Vault      string `json:"vault"`
	Status     string `json:"status"`
	Action     string `json:"action,omitempty"`
	Agents     int    `json:"agents"`
	Skills     int    `json:"skills"`
	DurationMs int64  `json:"durationMs"`
}

type SyncOutput struct {
	Results   []SyncResultOutput `json:"results"`
	Succeeded int                `json:"succeeded"`
}

type UpdateInput struct {
	Target     *string `json:"target,omitempty" jsonschema:"Destination directory, relative paths resolve against the git work tree"`
	Strategy   *string `json:"strategy,omitempty" jsonschema:"project-wins, vault-wins or vault-only"`
	WorkingDir *string `json:"workingDir,omitempty" jsonschema:"Working directory for git detection"`
}

type UpdateOutput struct {
	Target        string             `json:"target"`
	Strategy      string             `json:"strategy"`
	Sync          []SyncResultOutput `json:"sync"`
	Counts        map[string]int     `json:"counts"`
	Skipped       int                `json:"skipped"`
	SkippedVaults []string           `json:"skippedVaults,omitempty"`
	MCPConfigFrom string             `json:"mcpConfigFrom,omitempty"`
	Failures      []string           `json:"failures,omitempty"`
}

type StatusInput struct {
	Target     *string `json:"target,omitempty" jsonschema:"Destination directory, relative paths resolve against the git work tree"`
	WorkingDir *string `json:"workingDir,omitempty" jsonschema:"Working directory for git detection"`
}

type StatusOutput struct {
	Target      string         `json:"target"`
	Initialized bool           `json:"initialized"`
	Counts      map[string]int `json:"counts"`
	Vaults      []VaultOutput  `json:"vaults"`
	StaleVaults []string       `json:"staleVaults,omitempty"`
	MCPServers  []string       `json:"mcpServers"`
	Issues      []string       `json:"issues,omitempty"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func toVaultOutput(v vault.Vault, st services.VaultStatus) VaultOutput {
	return VaultOutput{
		Name:           v.Name,
		Source:         v.Source,
		Kind:           string(v.Kind()),
		Description:    v.Description,
		ContentSubpath: v.ContentSubpath,
		Enabled:        v.Enabled,
		Priority:       v.Priority,
		Cached:         st.Cached,
		LastSynced:     st.LastSynced,
		Stale:          st.Stale,
	}
}

func (s *Server) vaultOutputs(ctx context.Context) []VaultOutput {
	statuses := s.vaults.List(ctx)
	out := make([]VaultOutput, 0, len(statuses))
	for _, st := range statuses {
		v, ok := s.app.Registry.Get(st.Name)
		if !ok {
			continue
		}
		out = append(out, toVaultOutput(v, st))
	}
	return out
}

func syncOutputs(results map[string]syncer.Result) []SyncResultOutput {
	out := make([]SyncResultOutput, 0, len(results))
	for _, r := range results {
		out = append(out, SyncResultOutput{
			Vault:      r.Vault,
			Status:     r.Status(),
			Action:     string(r.Action),
			Agents:     r.Agents,
			Skills:     r.Skills,
			DurationMs: r.Duration.Milliseconds(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vault < out[j].Vault })
	return out
}

func failedSummary(results map[string]syncer.Result) string {
	lines := make([]string, 0, len(results))
	for _, r := range syncOutputs(results) {
		lines = append(lines, r.Vault+": "+r.Status)
	}
	if len(lines) == 0 {
		return "no enabled vaults"
	}
	return strings.Join(lines, "; ")
}

// Tool handlers

func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, _ ListInput) (*mcp.CallToolResult, ListOutput, error) {
	return nil, ListOutput{Vaults: s.vaultOutputs(ctx)}, nil
}

func (s *Server) handleAdd(ctx context.Context, _ *mcp.CallToolRequest, input AddInput) (*mcp.CallToolResult, AddOutput, error) {
	priority := vault.DefaultPriority
	if input.Priority != nil {
		priority = *input.Priority
	}
	v, err := s.vaults.Add(ctx, usecase.AddInput{
		Name:           input.Name,
		Source:         input.Source,
		Description:    deref(input.Description),
		Priority:       priority,
		ContentSubpath: deref(input.ContentSubpath),
		Disabled:       deref(input.Disabled),
	})
	if err != nil {
		return nil, AddOutput{}, fmt.Errorf("failed to add vault: %w", err)
	}

	var st services.VaultStatus
	for _, candidate := range s.vaults.List(ctx) {
		if candidate.Name == v.Name {
			st = candidate
		}
	}
	return nil, AddOutput{
		Message: fmt.Sprintf("Added vault '%s'", v.Name),
		Vault:   toVaultOutput(v, st),
	}, nil
}

func (s *Server) handleRemove(ctx context.Context, _ *mcp.CallToolRequest, input RemoveInput) (*mcp.CallToolResult, MessageOutput, error) {
	if err := s.vaults.Remove(ctx, input.Name); err != nil {
		return nil, MessageOutput{}, fmt.Errorf("failed to remove vault: %w", err)
	}
	return nil, MessageOutput{Message: fmt.Sprintf("Removed vault '%s'", input.Name)}, nil
}

func (s *Server) handleSync(ctx context.Context, _ *mcp.CallToolRequest, input SyncInput) (*mcp.CallToolResult, SyncOutput, error) {
	results := s.vaults.Sync(ctx, deref(input.Name))
	return nil, SyncOutput{
		Results:   syncOutputs(results),
		Succeeded: syncer.Succeeded(results),
	}, nil
}

func (s *Server) handleUpdate(ctx context.Context, _ *mcp.CallToolRequest, input UpdateInput) (*mcp.CallToolResult, UpdateOutput, error) {
	res, err := s.project.Update(ctx, usecase.TargetOptions{
		Target:     deref(input.Target),
		Strategy:   deref(input.Strategy),
		WorkingDir: deref(input.WorkingDir),
	})
	if err != nil {
		if errors.Is(err, usecase.ErrAllSyncsFailed) {
			return nil, UpdateOutput{}, fmt.Errorf("%w: %s", err, failedSummary(res.Sync))
		}
		return nil, UpdateOutput{}, fmt.Errorf("failed to update project: %w", err)
	}

	out := UpdateOutput{
		Target:        res.Target,
		Strategy:      res.Strategy.String(),
		Sync:          syncOutputs(res.Sync),
		Counts:        map[string]int{},
		Skipped:       res.Merge.Skipped,
		MCPConfigFrom: res.Merge.MCPConfigFrom,
	}
	for c, n := range res.Merge.Counts {
		out.Counts[string(c)] = n
	}
	for _, sv := range res.Merge.SkippedVaults {
		out.SkippedVaults = append(out.SkippedVaults, sv.String())
	}
	for _, f := range res.Merge.Failures {
		out.Failures = append(out.Failures, f.Error())
	}
	return nil, out, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, input StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	st, err := s.project.Status(ctx, usecase.TargetOptions{
		Target:     deref(input.Target),
		WorkingDir: deref(input.WorkingDir),
	})
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("failed to collect status: %w", err)
	}

	out := StatusOutput{
		Target:      st.Target,
		Initialized: st.Initialized,
		Counts:      map[string]int{},
		Vaults:      s.vaultOutputs(ctx),
		StaleVaults: st.StaleVaults(),
		MCPServers:  st.MCPServers,
	}
	for c, n := range st.Counts {
		out.Counts[string(c)] = n
	}
	for _, issue := range st.Issues {
		out.Issues = append(out.Issues, issue.String())
	}
	return nil, out, nil
}
