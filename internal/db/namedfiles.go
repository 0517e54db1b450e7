package db

import (
	"context"
	"database/sql"
)

// Named-file paths reserved by the engine.
const (
	FileConfig      = "config"
	FileDescription = "description"
	FileExclude     = "info/exclude"

	FileDictCommit = "_zstd_dict_commit"
	FileDictTree   = "_zstd_dict_tree"
	FileDictChunk  = "_zstd_dict_chunk"
	FileDictLegacy = "_zstd_dict"
)

// GetNamedFile returns the contents of a named file, or nil when the
// file does not exist.
func (db *DB) GetNamedFile(ctx context.Context, path string) ([]byte, error) {
	var contents []byte
	err := db.QueryRow(ctx,
		"SELECT contents FROM named_files WHERE path = ?", path,
	).Scan(&contents)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if contents == nil {
		contents = []byte{}
	}
	return contents, nil
}

// PutNamedFile creates or replaces a named file.
func (db *DB) PutNamedFile(ctx context.Context, path string, contents []byte) error {
	if contents == nil {
		contents = []byte{}
	}
	return db.Exec(ctx,
		"INSERT OR REPLACE INTO named_files (path, contents) VALUES (?, ?)",
		path, contents)
}

// DeleteNamedFile removes a named file. Deleting an absent file is
// not an error.
func (db *DB) DeleteNamedFile(ctx context.Context, path string) error {
	return db.Exec(ctx, "DELETE FROM named_files WHERE path = ?", path)
}
