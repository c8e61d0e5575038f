// Package sqldb holds the typed statements of the sync journal, laid out the
// way sqlc generates them.
package sqldb

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs journal statements against a DBTX.
type Queries struct {
	db DBTX
}

// New constructs Queries around db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// SyncResult is a row of sync_results.
type SyncResult struct {
	ID         int64
	RunID      string
	Vault      string
	Ok         int64
	Action     string
	Message    string
	Agents     int64
	Skills     int64
	DurationMs int64
	RecordedAt int64
}

const insertRun = `-- name: InsertRun :exec
INSERT OR IGNORE INTO sync_runs (id, started_at) VALUES (?, ?)
`

// InsertRun registers a run id; repeated ids are ignored.
func (q *Queries) InsertRun(ctx context.Context, id string, startedAt int64) error {
	_, err := q.db.ExecContext(ctx, insertRun, id, startedAt)
	return err
}

const insertResult = `-- name: InsertResult :one
INSERT INTO sync_results (run_id, vault, ok, action, message, agents, skills, duration_ms, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

// InsertResultParams are the columns of a new sync_results row.
type InsertResultParams struct {
	RunID      string
	Vault      string
	Ok         int64
	Action     string
	Message    string
	Agents     int64
	Skills     int64
	DurationMs int64
	RecordedAt int64
}

// InsertResult appends a result row and returns its id.
func (q *Queries) InsertResult(ctx context.Context, arg InsertResultParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertResult,
		arg.RunID,
		arg.Vault,
		arg.Ok,
		arg.Action,
		arg.Message,
		arg.Agents,
		arg.Skills,
		arg.DurationMs,
		arg.RecordedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const selectColumns = `id, run_id, vault, ok, action, message, agents, skills, duration_ms, recorded_at`

const latestResult = `-- name: LatestResult :one
SELECT ` + selectColumns + ` FROM sync_results
WHERE vault = ?
ORDER BY recorded_at DESC, id DESC
LIMIT 1
`

// LatestResult returns the most recent row for vault.
func (q *Queries) LatestResult(ctx context.Context, vault string) (SyncResult, error) {
	row := q.db.QueryRowContext(ctx, latestResult, vault)
	return scanResult(row)
}

const listResults = `-- name: ListResults :many
SELECT ` + selectColumns + ` FROM sync_results
WHERE vault = ?
ORDER BY recorded_at DESC, id DESC
LIMIT ?
`

// ListResults returns up to limit rows for vault, newest first.
func (q *Queries) ListResults(ctx context.Context, vault string, limit int64) ([]SyncResult, error) {
	rows, err := q.db.QueryContext(ctx, listResults, vault, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []SyncResult
	for rows.Next() {
		i, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteVaultResults = `-- name: DeleteVaultResults :execrows
DELETE FROM sync_results WHERE vault = ?
`

// DeleteVaultResults removes every row of vault.
func (q *Queries) DeleteVaultResults(ctx context.Context, vault string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteVaultResults, vault)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteEmptyRuns = `-- name: DeleteEmptyRuns :exec
DELETE FROM sync_runs WHERE id NOT IN (SELECT DISTINCT run_id FROM sync_results)
`

// DeleteEmptyRuns drops runs left without results.
func (q *Queries) DeleteEmptyRuns(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteEmptyRuns)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (SyncResult, error) {
	var i SyncResult
	err := s.Scan(
		&i.ID,
		&i.RunID,
		&i.Vault,
		&i.Ok,
		&i.Action,
		&i.Message,
		&i.Agents,
		&i.Skills,
		&i.DurationMs,
		&i.RecordedAt,
	)
	return i, err
}
