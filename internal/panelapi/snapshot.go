package panelapi

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SnapshotStore is a small sqlite-backed audit trail of every exp_date
// change the provisioner persists, independent of source.yml/the batch
// CSV (which only ever hold the current value). Grounded on the teacher's
// internal/plex/lineup.go, which already opens a sqlite database via
// database/sql for its own one-table write path.
type SnapshotStore struct {
	db *sql.DB
}

// OpenSnapshotStore opens (creating if necessary) the sqlite database at
// path and ensures its one table exists.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("panel_api: open snapshot db: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS exp_date_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		input_name TEXT NOT NULL,
		account_name TEXT NOT NULL,
		old_exp_date INTEGER NOT NULL,
		new_exp_date INTEGER NOT NULL,
		recorded_at_unix INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("panel_api: create snapshot schema: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Close releases the underlying sqlite connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// RecordExpDateChange appends one row to the history table. Safe to call
// on a nil *SnapshotStore (a no-op), so callers that never configured
// snapshotting don't need a nil check at every call site.
func (s *SnapshotStore) RecordExpDateChange(inputName, accountName string, oldExp, newExp, nowUnix int64) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO exp_date_history (input_name, account_name, old_exp_date, new_exp_date, recorded_at_unix) VALUES (?, ?, ?, ?, ?)`,
		inputName, accountName, oldExp, newExp, nowUnix,
	)
	if err != nil {
		return fmt.Errorf("panel_api: record exp_date history: %w", err)
	}
	return nil
}

// LastKnownExpDate returns the newest new_exp_date recorded for
// accountName under inputName, and whether any row exists. Boot sync uses
// this as a fallback when the live config doesn't carry a prior exp_date
// (e.g. an alias added outside this process).
func (s *SnapshotStore) LastKnownExpDate(inputName, accountName string) (int64, bool) {
	if s == nil {
		return 0, false
	}
	row := s.db.QueryRow(
		`SELECT new_exp_date FROM exp_date_history WHERE input_name = ? AND account_name = ? ORDER BY id DESC LIMIT 1`,
		inputName, accountName,
	)
	var exp int64
	if err := row.Scan(&exp); err != nil {
		return 0, false
	}
	return exp, true
}
