package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matt-wil/masterblog/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// busyTimeout is how long a write waits for another connection's lock,
// for example the CLI writing while the server runs.
const busyTimeout = "_pragma=busy_timeout(5000)"

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", withBusyTimeout(path))
	if err != nil {
		return nil, err
	}
	// One connection serializes the server's concurrent upserts.
	db.SetMaxOpenConns(1)
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func withBusyTimeout(path string) string {
	if strings.Contains(path, "busy_timeout") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + busyTimeout
	}
	return path + "?" + busyTimeout
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: settings
	`
CREATE TABLE IF NOT EXISTS settings (
	owner TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (owner, key)
);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

func (s *Store) GetSetting(ctx context.Context, owner, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE owner = ? AND key = ?`, owner, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *Store) PutSetting(ctx context.Context, owner, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings (owner, key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(owner, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, owner, key, value, time.Now().Unix())
	return err
}
