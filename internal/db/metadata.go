package db

import (
	"context"
	"database/sql"

	"github.com/imgajeed76/sqlgit/internal/util"
)

// GetMetadata retrieves a metadata value by key.
func (db *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRow(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", util.ErrNotARepository
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair (upsert).
func (db *DB) SetMetadata(ctx context.Context, key, value string) error {
	return db.Exec(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
}
