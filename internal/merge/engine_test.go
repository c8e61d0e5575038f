package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/choplin/agent-bridge/internal/content"
	"github.com/choplin/agent-bridge/internal/vault"
)

type testingT interface {
	require.TestingT
	Helper()
}

func writeTree(t testingT, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
}

func readTree(t testingT, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func newRegistry(t testingT, dir string) *vault.Registry {
	t.Helper()
	reg, err := vault.Open(filepath.Join(dir, "vaults.json"), filepath.Join(dir, "cache"))
	require.NoError(t, err)
	_, err = reg.Remove("antigravity-kit")
	require.NoError(t, err)
	return reg
}

func addLocal(t testingT, reg *vault.Registry, root, name string, priority int, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o750))
	writeTree(t, filepath.Join(root, ".agent"), files)
	_, err := reg.Add(name, root, "", priority)
	require.NoError(t, err)
}

func TestProjectWinsKeepsExistingEntries(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	addLocal(t, reg, t.TempDir(), "team", 10, map[string]string{
		"agents/a.md":          "vault a",
		"agents/b.md":          "vault b",
		"skills/tdd/SKILL.md":  "vault tdd",
		"skills/tdd/notes.txt": "notes",
		"workflows/ship.md":    "ship",
		"rules/style.md":       "style",
	})

	dest := t.TempDir()
	writeTree(t, dest, map[string]string{
		"agents/a.md":         "mine",
		"skills/tdd/SKILL.md": "my tdd",
	})

	rep, err := New(reg).Merge(context.Background(), dest, ProjectWins)
	require.NoError(t, err)
	require.NoError(t, rep.Err())

	got := readTree(t, dest)
	assert.Equal(t, "mine", got["agents/a.md"])
	assert.Equal(t, "vault b", got["agents/b.md"])
	assert.Equal(t, "my tdd", got["skills/tdd/SKILL.md"])
	assert.NotContains(t, got, "skills/tdd/notes.txt", "an existing skill directory is not merged into")
	assert.Equal(t, "ship", got["workflows/ship.md"])
	assert.Equal(t, "style", got["rules/style.md"])

	assert.Equal(t, content.Inventory{content.Agents: 1, content.Skills: 0, content.Workflows: 1, content.Rules: 1}, rep.Counts)
	assert.Equal(t, 2, rep.Skipped)
}

func TestVaultWinsLastVaultWins(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	addLocal(t, reg, t.TempDir(), "core", 10, map[string]string{"agents/x.md": "core", "skills/s/SKILL.md": "core s"})
	addLocal(t, reg, t.TempDir(), "team", 20, map[string]string{"agents/x.md": "team"})

	dest := t.TempDir()
	writeTree(t, dest, map[string]string{"agents/x.md": "project", "agents/keep.md": "keep"})

	rep, err := New(reg).Merge(context.Background(), dest, VaultWins)
	require.NoError(t, err)

	got := readTree(t, dest)
	assert.Equal(t, "team", got["agents/x.md"])
	assert.Equal(t, "keep", got["agents/keep.md"], "entries no vault defines survive vault-wins")
	assert.Equal(t, "core s", got["skills/s/SKILL.md"])
	assert.Equal(t, 2, rep.Counts[content.Agents])
	assert.Equal(t, 1, rep.Counts[content.Skills])
}

func TestVaultWinsReplacesWholeDirectory(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	addLocal(t, reg, t.TempDir(), "core", 10, map[string]string{"skills/s/SKILL.md": "vault"})

	dest := t.TempDir()
	writeTree(t, dest, map[string]string{"skills/s/SKILL.md": "old", "skills/s/stale.md": "stale"})

	_, err := New(reg).Merge(context.Background(), dest, VaultWins)
	require.NoError(t, err)

	got := readTree(t, dest)
	assert.Equal(t, map[string]string{"skills/s/SKILL.md": "vault"}, got)
}

func TestVaultOnlyClearsPriorContent(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	addLocal(t, reg, t.TempDir(), "core", 10, map[string]string{"agents/new.md": "new"})

	dest := t.TempDir()
	writeTree(t, dest, map[string]string{
		"agents/old.md":       "old",
		"skills/old/SKILL.md": "old",
		"workflows/old.md":    "old",
		"rules/old.md":        "old",
		"mcp_config.json":     `{"mcpServers":{}}`,
		"README.md":           "not a category",
	})

	rep, err := New(reg).Merge(context.Background(), dest, VaultOnly)
	require.NoError(t, err)

	got := readTree(t, dest)
	assert.Equal(t, map[string]string{"agents/new.md": "new", "README.md": "not a category"}, got)
	assert.Equal(t, 1, rep.Total())
	assert.Empty(t, rep.MCPConfigFrom)
}

func TestCoreAndTeamScenario(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	core, err := reg.Add("core", "https://example.com/core.git", "", 10)
	require.NoError(t, err)
	writeTree(t, filepath.Join(reg.CachePath(core), ".agent"), map[string]string{
		"agents/reviewer.md":  "core reviewer",
		"agents/shared.md":    "core shared",
		"agents/core-only.md": "core only",
	})
	addLocal(t, reg, t.TempDir(), "team", 5, map[string]string{
		"agents/reviewer.md":  "team reviewer",
		"agents/shared.md":    "team shared",
		"agents/team-only.md": "team only",
	})

	dest := t.TempDir()
	writeTree(t, dest, map[string]string{"agents/reviewer.md": "project reviewer"})

	rep, err := New(reg).Merge(context.Background(), dest, ProjectWins)
	require.NoError(t, err)

	got := readTree(t, dest)
	assert.Equal(t, map[string]string{
		"agents/reviewer.md":  "project reviewer",
		"agents/shared.md":    "team shared",
		"agents/team-only.md": "team only",
		"agents/core-only.md": "core only",
	}, got)
	assert.Equal(t, 3, rep.Counts[content.Agents])
	assert.Equal(t, 3, rep.Skipped)
}

func TestMergeIsIdempotent(t *testing.T) {
	for _, strategy := range Strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			reg := newRegistry(t, t.TempDir())
			addLocal(t, reg, t.TempDir(), "core", 10, map[string]string{
				"agents/a.md":       "core a",
				"skills/s/SKILL.md": "core s",
				"mcp_config.json":   `{"mcpServers":{"core":{"command":"core"}}}`,
			})
			addLocal(t, reg, t.TempDir(), "team", 20, map[string]string{
				"agents/a.md":     "team a",
				"workflows/w.md":  "team w",
				"mcp_config.json": `{"mcpServers":{"team":{"command":"team"}}}`,
			})

			dest := t.TempDir()
			writeTree(t, dest, map[string]string{"agents/mine.md": "mine"})
			engine := New(reg)

			_, err := engine.Merge(context.Background(), dest, strategy)
			require.NoError(t, err)
			first := readTree(t, dest)

			rep, err := engine.Merge(context.Background(), dest, strategy)
			require.NoError(t, err)
			assert.Equal(t, first, readTree(t, dest))
			if strategy == ProjectWins {
				assert.Zero(t, rep.Total(), "a second project-wins merge copies nothing")
			}
		})
	}
}

func TestFailureIsolation(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	addLocal(t, reg, t.TempDir(), "core", 10, map[string]string{"agents/a.md": "a", "skills/s/SKILL.md": "s"})
	addLocal(t, reg, t.TempDir(), "team", 20, map[string]string{"agents/b.md": "b", "rules/r.md": "r"})

	dest := t.TempDir()
	// a file where the agents directory belongs makes every agents copy fail
	writeTree(t, dest, map[string]string{"agents": "not a directory"})

	rep, err := New(reg).Merge(context.Background(), dest, ProjectWins)
	require.NoError(t, err)

	require.Len(t, rep.Failures, 2)
	for _, f := range rep.Failures {
		assert.Equal(t, "agents", f.Category)
	}
	assert.True(t, errors.Is(rep.Err(), ErrMergeIO))
	var mergeErr *MergeIOError
	require.True(t, errors.As(rep.Err(), &mergeErr))

	got := readTree(t, dest)
	assert.Equal(t, "s", got["skills/s/SKILL.md"])
	assert.Equal(t, "r", got["rules/r.md"])
	assert.Equal(t, 0, rep.Counts[content.Agents])
}

func TestExcludedEntriesAreNotCopied(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	addLocal(t, reg, t.TempDir(), "core", 10, map[string]string{
		"agents/.DS_Store":       "junk",
		"agents/a.md":            "a",
		"agents/a.md.tmp":        "tmp",
		"skills/s/SKILL.md":      "s",
		"skills/s/.git/HEAD":     "ref",
		"skills/s/.DS_Store":     "junk",
		"skills/s/deep/x.tmp":    "tmp",
		"skills/s/deep/keep.txt": "keep",
	})

	dest := t.TempDir()
	rep, err := New(reg, WithExclude(append(DefaultExclude, "**/*.tmp")...)).Merge(context.Background(), dest, ProjectWins)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"agents/a.md":            "a",
		"skills/s/SKILL.md":      "s",
		"skills/s/deep/keep.txt": "keep",
	}, readTree(t, dest))
	assert.Equal(t, 1, rep.Counts[content.Agents])
}

func TestInvalidExcludePattern(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	_, err := New(reg, WithExclude("[")).Merge(context.Background(), t.TempDir(), ProjectWins)
	assert.Error(t, err)
}

func TestMCPConfigFollowsStrategy(t *testing.T) {
	setup := func(t *testing.T) *vault.Registry {
		reg := newRegistry(t, t.TempDir())
		addLocal(t, reg, t.TempDir(), "core", 10, map[string]string{"mcp_config.json": "core"})
		addLocal(t, reg, t.TempDir(), "team", 20, map[string]string{"mcp_config.json": "team"})
		return reg
	}

	t.Run("project-wins takes the first vault", func(t *testing.T) {
		dest := t.TempDir()
		rep, err := New(setup(t)).Merge(context.Background(), dest, ProjectWins)
		require.NoError(t, err)
		assert.Equal(t, "core", rep.MCPConfigFrom)
		assert.Equal(t, "core", readTree(t, dest)["mcp_config.json"])
	})

	t.Run("project-wins keeps the project config", func(t *testing.T) {
		dest := t.TempDir()
		writeTree(t, dest, map[string]string{"mcp_config.json": "project"})
		rep, err := New(setup(t)).Merge(context.Background(), dest, ProjectWins)
		require.NoError(t, err)
		assert.Empty(t, rep.MCPConfigFrom)
		assert.Equal(t, "project", readTree(t, dest)["mcp_config.json"])
	})

	t.Run("vault-wins takes the last vault", func(t *testing.T) {
		dest := t.TempDir()
		writeTree(t, dest, map[string]string{"mcp_config.json": "project"})
		rep, err := New(setup(t)).Merge(context.Background(), dest, VaultWins)
		require.NoError(t, err)
		assert.Equal(t, "team", rep.MCPConfigFrom)
		assert.Equal(t, "team", readTree(t, dest)["mcp_config.json"])
	})
}

func TestDisabledAndUnsyncedVaultsContributeNothing(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	root := t.TempDir()
	writeTree(t, filepath.Join(root, ".agent"), map[string]string{"agents/off.md": "off"})
	_, err := reg.Add("off", root, "", 10, vault.Disabled())
	require.NoError(t, err)
	_, err = reg.Add("remote", "https://example.com/remote.git", "", 20)
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	dest := t.TempDir()
	rep, err := New(reg, WithLogger(logger)).Merge(context.Background(), dest, VaultWins)
	require.NoError(t, err)
	assert.Zero(t, rep.Total())
	assert.Empty(t, rep.Failures)
	assert.Empty(t, readTree(t, dest))

	require.Len(t, rep.SkippedVaults, 1, "the disabled vault is not reported")
	assert.Equal(t, "remote", rep.SkippedVaults[0].Vault)
	assert.Contains(t, rep.SkippedVaults[0].Reason, "vault sync")
	assert.Contains(t, logs.String(), "vault skipped")
	assert.Contains(t, logs.String(), "vault=remote")
}

func TestMissingLocalSourceIsSkipped(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	root := t.TempDir()
	writeTree(t, filepath.Join(root, ".agent"), map[string]string{"agents/a.md": "a"})
	_, err := reg.Add("gone", root, "", 10)
	require.NoError(t, err)
	_, err = reg.Add("empty", t.TempDir(), "", 20, vault.WithContentSubpath("."))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(root))

	rep, err := New(reg).Merge(context.Background(), t.TempDir(), ProjectWins)
	require.NoError(t, err)
	require.NoError(t, rep.Err())
	assert.Equal(t, []SkippedVault{{Vault: "gone", Reason: "source not found"}}, rep.SkippedVaults)
}

func TestBuiltinKitMerges(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	_, err := reg.Add("starter", "builtin:starter", "", 10)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "project", ".agent")
	rep, err := New(reg).Merge(context.Background(), dest, ProjectWins)
	require.NoError(t, err)
	require.NoError(t, rep.Err())

	assert.Equal(t, 4, rep.Total())
	assert.Equal(t, "starter", rep.MCPConfigFrom)
	assert.FileExists(t, filepath.Join(dest, "skills", "writing-plans", "SKILL.md"))
}

func TestDestinationCannotBeCreated(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := New(reg).Merge(context.Background(), filepath.Join(blocker, "dest"), ProjectWins)
	assert.Error(t, err)
}

func TestCancelledMerge(t *testing.T) {
	reg := newRegistry(t, t.TempDir())
	addLocal(t, reg, t.TempDir(), "core", 10, map[string]string{"agents/a.md": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(reg).Merge(ctx, t.TempDir(), ProjectWins)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"":             ProjectWins,
		"project-wins": ProjectWins,
		"PROJECT_WINS": ProjectWins,
		"vault-wins":   VaultWins,
		"VAULT_WINS":   VaultWins,
		" vault-only ": VaultOnly,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStrategy("newest-wins")
	assert.Error(t, err)
}

func TestProjectWinsIsNonDestructiveProperty(t *testing.T) {
	base := t.TempDir()
	names := []string{"a", "b", "c", "d", "e"}

	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp(base, "case-*")
		require.NoError(rt, err)
		reg := newRegistry(rt, dir)

		vaults := rapid.IntRange(1, 3).Draw(rt, "vaults")
		for i := 0; i < vaults; i++ {
			files := map[string]string{}
			for _, n := range names {
				if rapid.Bool().Draw(rt, fmt.Sprintf("v%d-%s", i, n)) {
					files["agents/"+n+".md"] = fmt.Sprintf("vault %d", i)
				}
			}
			addLocal(rt, reg, filepath.Join(dir, fmt.Sprintf("src%d", i)), fmt.Sprintf("v%d", i), rapid.IntRange(0, 3).Draw(rt, fmt.Sprintf("prio%d", i)), files)
		}

		dest := filepath.Join(dir, "dest")
		existing := map[string]string{}
		for _, n := range names {
			if rapid.Bool().Draw(rt, "dest-"+n) {
				existing["agents/"+n+".md"] = "project"
			}
		}
		writeTree(rt, dest, existing)

		_, err = New(reg).Merge(context.Background(), dest, ProjectWins)
		require.NoError(rt, err)

		got := readTree(rt, dest)
		for name, body := range existing {
			if got[name] != body {
				rt.Fatalf("%s was modified: %q", name, got[name])
			}
		}
		// first vault in priority order defining a new name wins
		for _, n := range names {
			name := "agents/" + n + ".md"
			if _, ok := existing[name]; ok {
				continue
			}
			want := ""
			for _, v := range reg.Enabled() {
				data, err := os.ReadFile(filepath.Join(v.Source, ".agent", filepath.FromSlash(name)))
				if err == nil {
					want = string(data)
					break
				}
			}
			if got[name] != want {
				rt.Fatalf("%s = %q, want %q", name, got[name], want)
			}
		}
	})
}
