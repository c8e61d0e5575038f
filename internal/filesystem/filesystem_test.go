package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingFS fails to open any file whose name contains bad.
type failingFS struct {
	fstest.MapFS
	bad string
}

func (f failingFS) Open(name string) (fs.File, error) {
	if strings.Contains(name, f.bad) {
		return nil, errors.New("injected read failure")
	}
	return f.MapFS.Open(name)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "vaults.json")

	require.NoError(t, WriteFileAtomic(target, []byte("one"), 0o600))
	require.NoError(t, WriteFileAtomic(target, []byte("two"), 0o600))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCopyEntryTreeWithSkip(t *testing.T) {
	src := fstest.MapFS{
		"skills/tdd/SKILL.md":       {Data: []byte("skill")},
		"skills/tdd/refs/guide.md":  {Data: []byte("guide")},
		"skills/tdd/.DS_Store":      {Data: []byte("junk")},
		"skills/tdd/scripts/run.sh": {Data: []byte("#!/bin/sh"), Mode: 0o755},
	}
	dst := filepath.Join(t.TempDir(), "tdd")

	skip := func(name string, _ bool) bool { return strings.HasSuffix(name, ".DS_Store") }
	require.NoError(t, CopyEntry(src, "skills/tdd", dst, skip))

	assert.FileExists(t, filepath.Join(dst, "SKILL.md"))
	assert.FileExists(t, filepath.Join(dst, "refs", "guide.md"))
	assert.NoFileExists(t, filepath.Join(dst, ".DS_Store"))

	info, err := os.Stat(filepath.Join(dst, "scripts", "run.sh"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "exec bit preserved")
}

func TestCopyEntryFileRefusesOverwrite(t *testing.T) {
	src := fstest.MapFS{"agents/a.md": {Data: []byte("vault")}}
	dst := filepath.Join(t.TempDir(), "a.md")
	require.NoError(t, os.WriteFile(dst, []byte("project"), 0o600))

	require.Error(t, CopyEntry(src, "agents/a.md", dst, nil))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "project", string(data))
}

func TestReplaceEntry(t *testing.T) {
	src := fstest.MapFS{"skills/tdd/SKILL.md": {Data: []byte("new")}}
	dst := filepath.Join(t.TempDir(), "skills", "tdd")
	require.NoError(t, os.MkdirAll(dst, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "old.md"), []byte("old"), 0o600))

	require.NoError(t, ReplaceEntry(src, "skills/tdd", dst, nil))

	assert.NoFileExists(t, filepath.Join(dst, "old.md"))
	data, err := os.ReadFile(filepath.Join(dst, "SKILL.md"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	siblings, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Len(t, siblings, 1, "staging directory must be cleaned up")
}

func TestReplaceEntryKeepsOriginalOnFailure(t *testing.T) {
	src := failingFS{
		MapFS: fstest.MapFS{
			"skills/tdd/SKILL.md":  {Data: []byte("new")},
			"skills/tdd/broken.md": {Data: []byte("x")},
		},
		bad: "broken.md",
	}
	dst := filepath.Join(t.TempDir(), "tdd")
	require.NoError(t, os.MkdirAll(dst, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "SKILL.md"), []byte("old"), 0o600))

	require.Error(t, ReplaceEntry(src, "skills/tdd", dst, nil))

	data, err := os.ReadFile(filepath.Join(dst, "SKILL.md"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestRemoveAllAndTouch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, RemoveAll(filepath.Join(dir, "missing")))

	sub := filepath.Join(dir, "cache")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(sub, old, old))

	require.NoError(t, Touch(sub))
	info, err := os.Stat(sub)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), info.ModTime(), time.Minute)

	require.NoError(t, RemoveAll(sub))
	assert.False(t, FileExists(sub))
	assert.True(t, IsDir(dir))
}
