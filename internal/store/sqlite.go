package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailtrack/internal/model"
)

// keepSnapshots bounds how much history SaveSnapshot retains.
const keepSnapshots = 30

// SQLiteStore implements Store using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveSnapshot inserts the state as the newest snapshot and prunes
// history beyond keepSnapshots.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, state model.MailState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO snapshots (id, taken_at, state) VALUES (?, ?, ?)",
		uuid.New().String(), time.Now().UTC(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY taken_at DESC, rowid DESC LIMIT ?
		)`, keepSnapshots,
	)
	if err != nil {
		return fmt.Errorf("pruning snapshots: %w", err)
	}

	return tx.Commit()
}

// LatestSnapshot returns the most recent snapshot, or nil when the
// table is empty.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*model.MailState, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload,
		"SELECT state FROM snapshots ORDER BY taken_at DESC, rowid DESC LIMIT 1",
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	var state model.MailState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}

	return &state, nil
}
