// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means a C compiler on every build machine
// and painful cross-compilation. modernc.org/sqlite is a pure Go translation
// of SQLite — no C toolchain needed.
//
// The pattern is always:
//  1. sql.Open(driverName, dataSourceName) → creates a pool
//  2. db.QueryContext / db.ExecContext     → runs queries
//  3. rows.Scan(&field1, &field2)          → reads results into Go variables
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// Importing modernc.org/sqlite also registers the "sqlite" driver with database/sql.
	moderncsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/sakif/colab/internal/apperror"
	"github.com/sakif/colab/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/colab.db" → file-based database (persistent)
//   - ":memory:"      → in-memory database (tests)
//
// IN-MEMORY DATABASES AND THE POOL:
// Every new connection to ":memory:" gets its OWN empty database. The pool is
// therefore pinned to one connection, otherwise migrations would run on one
// connection and queries would land on another.
//
// PER-CONNECTION PRAGMAS:
// foreign_keys and busy_timeout only apply to the connection they run on, so
// they go in the DSN as _pragma parameters and every pooled connection gets
// them. journal_mode=WAL is stored in the file itself and runs once.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS makes it safe to
// run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			user_id         INTEGER PRIMARY KEY AUTOINCREMENT,
			username        TEXT NOT NULL UNIQUE,
			email           TEXT NOT NULL UNIQUE,
			password_digest TEXT NOT NULL,
			firstname       TEXT NOT NULL DEFAULT '',
			lastname        TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// user_bio arrived after the first schema; existing files get the column added.
	if err := db.addColumnIfNotExists("users", "user_bio", "TEXT"); err != nil {
		return fmt.Errorf("adding user_bio to users: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS images (
			image_id   INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			img_url    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_images_user_id ON images(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating images table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent — safe to run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

type violation int

const (
	noViolation violation = iota
	uniqueViolation
	foreignKeyViolation
)

// constraintViolation classifies a constraint failure. Extended result codes
// are checked first; the message is the fallback when only the primary
// SQLITE_CONSTRAINT code is reported.
func constraintViolation(err error) violation {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return noViolation
	}

	switch se.Code() {
	case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return uniqueViolation
	case sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY:
		return foreignKeyViolation
	}

	if se.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT {
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE constraint failed"):
			return uniqueViolation
		case strings.Contains(msg, "FOREIGN KEY constraint failed"):
			return foreignKeyViolation
		}
	}
	return noViolation
}

func unavailable(op string, err error) error {
	return apperror.Unavailable("storage unavailable", fmt.Errorf("sqlite: %s: %w", op, err))
}
