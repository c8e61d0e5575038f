package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choplin/agent-bridge/internal/content"
	"github.com/choplin/agent-bridge/internal/freshness"
	"github.com/choplin/agent-bridge/internal/journal"
	"github.com/choplin/agent-bridge/internal/vault"
)

type stubHistory map[string]*journal.Entry

func (h stubHistory) Latest(_ context.Context, name string) (*journal.Entry, error) {
	if e, ok := h[name]; ok {
		return e, nil
	}
	return nil, journal.ErrNotFound
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
}

func newService(t *testing.T, history History) (*StatusService, *vault.Registry) {
	t.Helper()
	dir := t.TempDir()
	reg, err := vault.Open(filepath.Join(dir, "vaults.json"), filepath.Join(dir, "cache"))
	require.NoError(t, err)
	return NewStatusService(reg, freshness.New(reg), history, nil), reg
}

func TestCollectProjectStatus(t *testing.T) {
	svc, _ := newService(t, nil)
	target := t.TempDir()
	writeFiles(t, target, map[string]string{
		"agents/planner.md":   "---\nname: planner\ndescription: plans\n---\nbody",
		"agents/broken.md":    "no frontmatter",
		"skills/tdd/SKILL.md": "---\nname: tdd\ndescription: tests first\n---\n",
		"skills/empty/.keep":  "",
		"workflows/ship.md":   "ship",
		"rules/style.md":      "style",
		"rules/notes.txt":     "ignored",
		"mcp_config.json":     `{"mcpServers":{"zeta":{"command":"z"},"alpha":{"url":"http://localhost"}}}`,
	})

	st, err := svc.Collect(context.Background(), target)
	require.NoError(t, err)

	assert.True(t, st.Initialized)
	assert.Equal(t, content.Inventory{content.Agents: 2, content.Skills: 2, content.Workflows: 1, content.Rules: 1}, st.Counts)
	assert.Equal(t, []string{"alpha", "zeta"}, st.MCPServers)

	paths := make([]string, 0, len(st.Issues))
	for _, i := range st.Issues {
		paths = append(paths, i.Path)
	}
	assert.Equal(t, []string{"agents/broken.md", "skills/empty"}, paths)
}

func TestCollectMissingTarget(t *testing.T) {
	svc, _ := newService(t, nil)
	st, err := svc.Collect(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.False(t, st.Initialized)
	assert.Zero(t, st.Counts.Total())
	assert.Len(t, st.Counts, len(content.Categories))
	assert.Empty(t, st.MCPServers)
	require.Len(t, st.Vaults, 1)
	assert.Equal(t, "antigravity-kit", st.Vaults[0].Name)
}

func TestCollectReportsBrokenMCPConfig(t *testing.T) {
	svc, _ := newService(t, nil)
	target := t.TempDir()
	writeFiles(t, target, map[string]string{content.MCPConfigFile: "{"})

	st, err := svc.Collect(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, st.Issues, 1)
	assert.Equal(t, content.MCPConfigFile, st.Issues[0].Path)
}

func TestVaultStatuses(t *testing.T) {
	recorded := time.Now().Add(-time.Hour)
	history := stubHistory{
		"antigravity-kit": {RunID: "r1", Vault: "antigravity-kit", OK: false, Message: "exit status 128", RecordedAt: recorded},
	}
	svc, reg := newService(t, history)

	src := t.TempDir()
	_, err := reg.Add("team", src, "", 5)
	require.NoError(t, err)
	_, err = reg.Add("off", src, "", 200, vault.Disabled())
	require.NoError(t, err)

	statuses := svc.Vaults(context.Background())
	require.Len(t, statuses, 3)

	team := statuses[0]
	assert.Equal(t, "team", team.Name)
	assert.Equal(t, vault.KindLocal, team.Kind)
	assert.True(t, team.Cached)
	assert.False(t, team.Stale)
	assert.Nil(t, team.LastRun)

	kit := statuses[1]
	assert.Equal(t, vault.KindGit, kit.Kind)
	assert.False(t, kit.Cached)
	assert.Equal(t, freshness.Never, kit.LastSynced)
	assert.True(t, kit.Stale)
	require.NotNil(t, kit.LastRun)
	assert.Equal(t, "exit status 128", kit.LastRun.Message)

	st := &ProjectStatus{Vaults: statuses}
	assert.Equal(t, []string{"antigravity-kit"}, st.StaleVaults())
}

type failingHistory struct{}

func (failingHistory) Latest(context.Context, string) (*journal.Entry, error) {
	return nil, errors.New("database is locked")
}

func TestVaultStatusesIgnoreJournalErrors(t *testing.T) {
	svc, _ := newService(t, failingHistory{})
	statuses := svc.Vaults(context.Background())
	require.Len(t, statuses, 1)
	assert.Nil(t, statuses[0].LastRun)
}
