package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations[v] upgrades a run log from user_version v to v+1. A new
// database starts at 0 and runs all of them.
var migrations = []string{
	schemaSQL,
}

// SchemaVersion is the user_version of a run log written by this package.
var SchemaVersion = len(migrations)

// ErrSchemaVersion is returned by Open for a run log written by a newer
// schema than this package knows.
var ErrSchemaVersion = errors.New("unsupported run log schema version")

// pragmas apply to the single pooled connection, so they hold for every
// statement the store runs.
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// Store is the run log: programs, the runs evaluated over them and their
// answers.
type Store struct {
	db *sql.DB
}

// Open opens the run log at path, creating it if needed, and brings its
// schema up to SchemaVersion.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer; one connection also keeps the pragmas.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %s: %w", p.name, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// migrate runs the migrations past the database's user_version, each in
// its own transaction together with the version bump.
func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("%w: %d (newest known %d)", ErrSchemaVersion, version, SchemaVersion)
	}

	for v := version; v < SchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: begin tx: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: set user_version: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: commit: %w", v+1, err)
		}
	}
	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// Close closes the database. Calling it again is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection for queries the store has no
// method for.
func (s *Store) DB() *sql.DB {
	return s.db
}
