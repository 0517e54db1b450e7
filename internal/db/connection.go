package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/imgajeed76/sqlgit/internal/util"
)

// Pragmas applied to every connection. WAL allows readers in other
// processes while one writer holds the file; NORMAL sync is durable
// enough under WAL; writers wait up to 5s on contention before
// surfacing Busy.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

// DB owns the single SQLite connection backing one repository handle.
// The handle is single-writer: max one open connection, transactions
// start IMMEDIATE so the write lock is taken up front instead of
// upgrading mid-transaction.
type DB struct {
	sql  *sql.DB
	path string
}

// Open opens the database file. When create is false an absent file
// fails with ErrNotARepository instead of being created.
func Open(path string, create bool) (*DB, error) {
	mode := "rw"
	if create {
		mode = "rwc"
	}
	dsn := fmt.Sprintf("file:%s?mode=%s&_txlock=immediate", path, mode)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection, kept for the handle's lifetime. SQLite
	// connections are not shareable and the engine is
	// single-threaded per handle anyway.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{sql: conn, path: path}
	if err := db.applyPragmas(context.Background()); err != nil {
		conn.Close()
		if !create && isCantOpen(err) {
			return nil, util.ErrNotARepository
		}
		return nil, err
	}
	return db, nil
}

func (db *DB) applyPragmas(ctx context.Context) error {
	for _, pragma := range pragmas {
		if _, err := db.sql.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Exec executes a statement without returning rows.
func (db *DB) Exec(ctx context.Context, query string, args ...any) error {
	_, err := db.sql.ExecContext(ctx, query, args...)
	return mapErr(err)
}

// Query executes a query and returns rows.
func (db *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := db.sql.QueryContext(ctx, query, args...)
	return rows, mapErr(err)
}

// QueryRow executes a query and returns a single row.
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.sql.QueryRowContext(ctx, query, args...)
}

// WithTx executes fn inside one transaction. The transaction begins
// IMMEDIATE (write lock up front), commits when fn returns nil and
// rolls back otherwise, so every mutating path either completes fully
// or leaves the file untouched.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return mapErr(err)
	}

	return mapErr(tx.Commit())
}

// mapErr converts driver-level lock contention into the engine's Busy
// error so callers can retry without matching on driver types.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		if se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %v", util.ErrBusy, err)
		}
	}
	return err
}

func isCantOpen(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrCantOpen || se.Code == sqlite3.ErrNotADB
	}
	return false
}

// isConstraint reports whether err is a primary-key or uniqueness
// violation.
func isConstraint(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}
