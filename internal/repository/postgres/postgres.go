// Package postgres implements the repository interfaces on PostgreSQL.
//
// The driver is pgx, used through its database/sql adapter so the query code
// reads the same as the SQLite backend. Schema changes live in migrations/
// as goose SQL files and are embedded into the binary.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sakif/colab/internal/apperror"
	"github.com/sakif/colab/internal/repository"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ repository.Store = (*DB)(nil)

// Postgres SQLSTATE codes we translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// DB implements repository.Store on a *sql.DB opened with the pgx driver.
type DB struct {
	conn *sql.DB
}

// gooseUpContext is a seam so tests can run Open without a live database.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Open connects to dsn, checks the connection and applies pending migrations.
func Open(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := NewFromConn(conn)
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// NewFromConn wraps an already-open connection. No migrations are run.
func NewFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Migrate applies the embedded goose migrations.
func (db *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("postgres: setting goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db.conn, "migrations"); err != nil {
		return fmt.Errorf("postgres: running migrations: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func unavailable(op string, err error) error {
	return apperror.Unavailable("storage unavailable", fmt.Errorf("postgres: %s: %w", op, err))
}
