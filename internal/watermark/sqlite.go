package watermark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS watermarks (
	container    TEXT PRIMARY KEY,
	at_unix_nano INTEGER NOT NULL,
	updated      INTEGER NOT NULL
);`

// SqliteStore persists one watermark per container in a local database file.
type SqliteStore struct {
	db    *sql.DB
	floor floor
}

func NewSqliteStore(path string, maxBackfill time.Duration, start time.Time, now func() time.Time) (*SqliteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create watermark directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open watermark database: %w", err)
	}
	// A single connection serialises writers; sqlite has one writer anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create watermark schema: %w", err)
	}

	return &SqliteStore{
		db: db,
		floor: floor{
			started:     start,
			maxBackfill: maxBackfill,
			now:         now,
		},
	}, nil
}

func (s *SqliteStore) Since(ctx context.Context, container string) (time.Time, error) {
	var at int64
	err := s.db.QueryRowContext(ctx,
		`SELECT at_unix_nano FROM watermarks WHERE container = ?`, container,
	).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return s.floor.apply(time.Time{}, false), nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query watermark for %s: %w", container, err)
	}
	return s.floor.apply(time.Unix(0, at).UTC(), true), nil
}

// Advance upserts every container in one transaction, keeping the larger of
// the stored and the new value.
func (s *SqliteStore) Advance(ctx context.Context, containers []string, to time.Time) error {
	if len(containers) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin watermark transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO watermarks (container, at_unix_nano, updated) VALUES (?, ?, ?)
		ON CONFLICT(container) DO UPDATE SET
			at_unix_nano = max(at_unix_nano, excluded.at_unix_nano),
			updated = excluded.updated`)
	if err != nil {
		return fmt.Errorf("prepare watermark upsert: %w", err)
	}
	defer stmt.Close()

	updated := s.floor.now().UnixNano()
	for _, name := range containers {
		if _, err := stmt.ExecContext(ctx, name, to.UnixNano(), updated); err != nil {
			return fmt.Errorf("store watermark for %s: %w", name, err)
		}
	}
	return tx.Commit()
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}
