package journal

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := j.Close(); err != nil {
			t.Fatalf("Close error: %v", err)
		}
	})
	return j
}

func TestRecordAndLatest(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	require.NoError(t, j.Record(ctx, Entry{RunID: "r1", Vault: "core", OK: true, Action: "cloned", Agents: 3, Skills: 2, Duration: 1500 * time.Millisecond, RecordedAt: base}))
	require.NoError(t, j.Record(ctx, Entry{RunID: "r2", Vault: "core", OK: false, Message: "exit status 128", RecordedAt: base.Add(time.Minute)}))
	require.NoError(t, j.Record(ctx, Entry{RunID: "r2", Vault: "team", OK: true, Action: "validated", RecordedAt: base.Add(time.Minute)}))

	latest, err := j.Latest(ctx, "core")
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.RunID)
	assert.False(t, latest.OK)
	assert.Equal(t, "exit status 128", latest.Message)
	assert.True(t, latest.RecordedAt.Equal(base.Add(time.Minute)))

	history, err := j.History(ctx, "core", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 3, history[1].Agents)
	assert.Equal(t, 1500*time.Millisecond, history[1].Duration)
}

func TestLatestNotFound(t *testing.T) {
	j := openTestJournal(t)
	_, err := j.Latest(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestForget(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, Entry{RunID: "r1", Vault: "core", OK: true}))
	require.NoError(t, j.Record(ctx, Entry{RunID: "r1", Vault: "team", OK: true}))
	require.NoError(t, j.Record(ctx, Entry{RunID: "r2", Vault: "core", OK: true}))

	n, err := j.Forget(ctx, "core")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = j.Latest(ctx, "core")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = j.Latest(ctx, "team")
	assert.NoError(t, err)

	var runs int
	require.NoError(t, j.db.QueryRow("SELECT COUNT(*) FROM sync_runs").Scan(&runs))
	assert.Equal(t, 1, runs)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), Entry{RunID: "r1", Vault: "core", OK: true}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	_, err = j.Latest(context.Background(), "core")
	assert.NoError(t, err)
}

func TestConcurrentRecord(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, j.Record(ctx, Entry{RunID: "r", Vault: "core", OK: true}))
		}()
	}
	wg.Wait()

	history, err := j.History(ctx, "core", 100)
	require.NoError(t, err)
	assert.Len(t, history, 8)
}
