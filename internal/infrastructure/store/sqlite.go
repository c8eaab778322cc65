// Package store provides sqlite-backed persistence for the notification
// service.
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.NotificationStore using a local SQLite
// database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite db")
	}

	// WAL keeps snapshot reads from blocking the publish path.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enabling WAL mode")
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "running migrations")
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrations are applied in order; the schema version is tracked in
// PRAGMA user_version.
var migrations = []string{
	`CREATE TABLE notifications (
		id         TEXT PRIMARY KEY,
		username   TEXT NOT NULL,
		type       TEXT NOT NULL,
		title      TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		seen       INTEGER NOT NULL DEFAULT 0,
		deleted    INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX idx_notifications_user ON notifications (username, deleted, created_at)`,
}

func (s *SQLiteStore) runMigrations() error {
	var version int
	if err := s.db.Get(&version, "PRAGMA user_version"); err != nil {
		return errors.Wrap(err, "reading schema version")
	}

	for i := version; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return errors.Wrapf(err, "applying migration %d", i+1)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return errors.Wrapf(err, "recording migration %d", i+1)
		}
	}

	return nil
}
