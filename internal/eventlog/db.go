// Package eventlog records every Change published on ModManager's bus into
// a durable SQLite log, so a host UI can show "what happened last session"
// across restarts even though ModCache/ModManager themselves only track
// state in memory and JSON sidecars. It is a pure observer: nothing here
// feeds back into install/update/remove decisions, so it cannot violate
// any of the core's invariants. Grounded on internal/storage/db's
// open-then-migrate shape.
package eventlog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection backing the activity log.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the activity log at path and brings its
// schema up to date.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	db := &DB{DB: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
