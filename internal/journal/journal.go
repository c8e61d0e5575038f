// Package journal keeps an advisory SQLite log of vault sync attempts. The
// journal only feeds status reporting; deleting it loses history, nothing else.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/choplin/agent-bridge/db/migrations"
	sqldb "github.com/choplin/agent-bridge/internal/journal/sqlc"

	// Import SQLite driver for database/sql
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates no journal entry exists for the requested vault.
var ErrNotFound = errors.New("journal: not found")

// Entry is one recorded sync attempt.
type Entry struct {
	RunID      string        `json:"run_id"`
	Vault      string        `json:"vault"`
	OK         bool          `json:"ok"`
	Action     string        `json:"action,omitempty"`
	Message    string        `json:"message,omitempty"`
	Agents     int           `json:"agents"`
	Skills     int           `json:"skills"`
	Duration   time.Duration `json:"duration"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Journal is an open journal database.
type Journal struct {
	db      *sql.DB
	queries *sqldb.Queries
}

// Open opens (creating and migrating if needed) the journal at path.
// ":memory:" opens a private in-memory journal.
func Open(path string) (*Journal, error) {
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve journal path: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", filepath.ToSlash(absPath))
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// concurrent syncs record through a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Journal{db: db, queries: sqldb.New(db)}, nil
}

// Close closes the database. A nil journal is a no-op.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores e, registering its run on first use.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	q := j.queries.WithTx(tx)

	if err := q.InsertRun(ctx, e.RunID, e.RecordedAt.UnixMilli()); err != nil {
		return rollback(tx, fmt.Errorf("failed to insert run: %w", err))
	}
	if _, err := q.InsertResult(ctx, sqldb.InsertResultParams{
		RunID:      e.RunID,
		Vault:      e.Vault,
		Ok:         boolToInt64(e.OK),
		Action:     e.Action,
		Message:    e.Message,
		Agents:     int64(e.Agents),
		Skills:     int64(e.Skills),
		DurationMs: e.Duration.Milliseconds(),
		RecordedAt: e.RecordedAt.UnixMilli(),
	}); err != nil {
		return rollback(tx, fmt.Errorf("failed to insert result: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit journal entry: %w", err)
	}
	return nil
}

// Latest returns the newest entry for vault or ErrNotFound.
func (j *Journal) Latest(ctx context.Context, vault string) (*Entry, error) {
	row, err := j.queries.LatestResult(ctx, vault)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	e := fromRow(row)
	return &e, nil
}

// History returns up to limit entries for vault, newest first.
func (j *Journal) History(ctx context.Context, vault string, limit int) ([]Entry, error) {
	rows, err := j.queries.ListResults(ctx, vault, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

// Forget deletes the history of vault and returns the number of removed entries.
func (j *Journal) Forget(ctx context.Context, vault string) (int64, error) {
	n, err := j.queries.DeleteVaultResults(ctx, vault)
	if err != nil {
		return 0, fmt.Errorf("failed to delete journal entries: %w", err)
	}
	if err := j.queries.DeleteEmptyRuns(ctx); err != nil {
		return n, fmt.Errorf("failed to prune journal runs: %w", err)
	}
	return n, nil
}

func fromRow(r sqldb.SyncResult) Entry {
	return Entry{
		RunID:      r.RunID,
		Vault:      r.Vault,
		OK:         r.Ok != 0,
		Action:     r.Action,
		Message:    r.Message,
		Agents:     int(r.Agents),
		Skills:     int(r.Skills),
		Duration:   time.Duration(r.DurationMs) * time.Millisecond,
		RecordedAt: time.UnixMilli(r.RecordedAt),
	}
}

func rollback(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		return fmt.Errorf("%w (rollback error: %w)", err, rbErr)
	}
	return err
}

func boolToInt64(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to initialise migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.Files, ".")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	defer func() {
		_ = sourceDriver.Close()
	}()

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
