package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/util"
)

// SchemaVersion is the current schema version. Databases at older
// versions are migrated forward on open; databases newer than this
// fail with ErrUnsupportedSchemaVersion.
const SchemaVersion = 9

// minMigratableVersion is the oldest version with a retained migration
// path. Anything below predates the chunked object store and is not
// worth carrying migration code for.
const minMigratableVersion = 7

// Metadata keys managed by the engine.
const (
	MetaKeySchemaVersion = "schema_version"
	MetaKeyCompression   = "compression"
)

var createTables = []string{
	`CREATE TABLE IF NOT EXISTS objects (
		sha BLOB PRIMARY KEY NOT NULL,
		type_num INTEGER NOT NULL,
		data BLOB,
		chunk_refs BLOB,
		total_size INTEGER,
		compression TEXT NOT NULL DEFAULT 'none',
		sha_hex TEXT GENERATED ALWAYS AS (lower(hex(sha))) VIRTUAL,
		type_name TEXT GENERATED ALWAYS AS (
			CASE type_num
				WHEN 1 THEN 'commit'
				WHEN 2 THEN 'tree'
				WHEN 3 THEN 'blob'
				WHEN 4 THEN 'tag'
			END
		) VIRTUAL,
		size_bytes INTEGER GENERATED ALWAYS AS (total_size) VIRTUAL,
		is_chunked INTEGER GENERATED ALWAYS AS (data IS NULL) VIRTUAL
	)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		chunk_sha BLOB PRIMARY KEY NOT NULL,
		data BLOB NOT NULL,
		compression TEXT NOT NULL DEFAULT 'none',
		raw_size INTEGER,
		chunk_sha_hex TEXT GENERATED ALWAYS AS (lower(hex(chunk_sha))) VIRTUAL,
		stored_size INTEGER GENERATED ALWAYS AS (length(data)) VIRTUAL
	)`,
	`CREATE TABLE IF NOT EXISTS refs (
		name BLOB PRIMARY KEY NOT NULL,
		value BLOB NOT NULL,
		name_text TEXT GENERATED ALWAYS AS (cast(name AS TEXT)) VIRTUAL,
		value_text TEXT GENERATED ALWAYS AS (cast(value AS TEXT)) VIRTUAL
	)`,
	`CREATE TABLE IF NOT EXISTS peeled_refs (
		name BLOB PRIMARY KEY NOT NULL,
		value BLOB NOT NULL,
		name_text TEXT GENERATED ALWAYS AS (cast(name AS TEXT)) VIRTUAL,
		value_text TEXT GENERATED ALWAYS AS (cast(value AS TEXT)) VIRTUAL
	)`,
	`CREATE TABLE IF NOT EXISTS named_files (
		path TEXT PRIMARY KEY NOT NULL,
		contents BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY NOT NULL,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reflog (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ref_name BLOB NOT NULL,
		old_sha BLOB NOT NULL,
		new_sha BLOB NOT NULL,
		committer BLOB NOT NULL,
		timestamp INTEGER NOT NULL,
		timezone INTEGER NOT NULL,
		message BLOB NOT NULL,
		ref_name_text TEXT GENERATED ALWAYS AS (cast(ref_name AS TEXT)) VIRTUAL,
		message_text TEXT GENERATED ALWAYS AS (cast(message AS TEXT)) VIRTUAL,
		datetime_text TEXT GENERATED ALWAYS AS (datetime(timestamp, 'unixepoch')) VIRTUAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reflog_ref ON reflog (ref_name, id)`,
}

// InitSchema creates the current schema in an empty database and
// records the schema version and active compression method.
func (db *DB) InitSchema(ctx context.Context, compression codec.Method) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range createTables {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO metadata (key, value) VALUES (?, ?)",
			MetaKeySchemaVersion, strconv.Itoa(SchemaVersion)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO metadata (key, value) VALUES (?, ?)",
			MetaKeyCompression, string(compression)); err != nil {
			return err
		}
		return nil
	})
}

// SchemaExists checks for the metadata relation, the marker that this
// file is an initialized repository database.
func (db *DB) SchemaExists(ctx context.Context) (bool, error) {
	var n int
	err := db.QueryRow(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'metadata'",
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DetectVersion reads the recorded schema version.
func (db *DB) DetectVersion(ctx context.Context) (int, error) {
	var raw string
	err := db.QueryRow(ctx,
		"SELECT value FROM metadata WHERE key = ?", MetaKeySchemaVersion,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, util.ErrNotARepository
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed schema_version %q", util.ErrUnsupportedSchemaVersion, raw)
	}
	return v, nil
}

// Migrate brings the schema from its recorded version to the current
// one, one version at a time. Each step runs in its own transaction;
// a failed step rolls back and leaves the file at its pre-step
// version.
func (db *DB) Migrate(ctx context.Context) error {
	version, err := db.DetectVersion(ctx)
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("%w: database is at v%d, engine supports up to v%d",
			util.ErrUnsupportedSchemaVersion, version, SchemaVersion)
	}
	if version < minMigratableVersion {
		return fmt.Errorf("%w: database is at v%d, oldest migratable version is v%d",
			util.ErrUnsupportedSchemaVersion, version, minMigratableVersion)
	}

	for version < SchemaVersion {
		next := version + 1
		log.WithFields(log.Fields{"from": version, "to": next, "db": db.path}).
			Info("migrating schema")

		var step func(context.Context, *sql.Tx) error
		switch version {
		case 7:
			step = migrateV7ChunkIDsToBinary
		case 8:
			step = migrateV8PackChunkRefs
		default:
			return fmt.Errorf("%w: no migration from v%d", util.ErrUnsupportedSchemaVersion, version)
		}

		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			if err := step(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"UPDATE metadata SET value = ? WHERE key = ?",
				strconv.Itoa(next), MetaKeySchemaVersion)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration v%d -> v%d failed: %w", version, next, err)
		}
		version = next
	}
	return nil
}

// migrateV7ChunkIDsToBinary narrows the chunk ID column from hex text
// to a 32-byte blob. Packed chunk_refs blobs (and the v7 join table)
// reference chunks by rowid, so the rebuild carries each rowid across
// explicitly.
func migrateV7ChunkIDsToBinary(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE chunks_new (
			chunk_sha BLOB PRIMARY KEY NOT NULL,
			data BLOB NOT NULL,
			compression TEXT NOT NULL DEFAULT 'none',
			raw_size INTEGER,
			chunk_sha_hex TEXT GENERATED ALWAYS AS (lower(hex(chunk_sha))) VIRTUAL,
			stored_size INTEGER GENERATED ALWAYS AS (length(data)) VIRTUAL
		)`); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT rowid, chunk_sha, data, compression, raw_size FROM chunks")
	if err != nil {
		return err
	}
	defer rows.Close()

	type chunkRow struct {
		rowid       int64
		sha         []byte
		data        []byte
		compression string
		rawSize     sql.NullInt64
	}
	var all []chunkRow
	for rows.Next() {
		var r chunkRow
		var shaHex string
		if err := rows.Scan(&r.rowid, &shaHex, &r.data, &r.compression, &r.rawSize); err != nil {
			return err
		}
		r.sha, err = hex.DecodeString(shaHex)
		if err != nil {
			return fmt.Errorf("chunk rowid %d has malformed hex ID %q: %w", r.rowid, shaHex, err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range all {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks_new (rowid, chunk_sha, data, compression, raw_size) VALUES (?, ?, ?, ?, ?)",
			r.rowid, r.sha, r.data, r.compression, r.rawSize); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE chunks"); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "ALTER TABLE chunks_new RENAME TO chunks")
	return err
}

// migrateV8PackChunkRefs folds the object_chunks join table into
// packed chunk_refs blobs on the objects rows and drops the table.
// Chunk rowids are untouched, so the packed references stay valid.
func migrateV8PackChunkRefs(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx,
		"ALTER TABLE objects ADD COLUMN chunk_refs BLOB"); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT object_sha, chunk_rowid FROM object_chunks ORDER BY object_sha, chunk_idx")
	if err != nil {
		return err
	}
	defer rows.Close()

	refsByObject := map[string][]int64{}
	var order []string
	for rows.Next() {
		var sha []byte
		var rowid int64
		if err := rows.Scan(&sha, &rowid); err != nil {
			return err
		}
		key := string(sha)
		if _, seen := refsByObject[key]; !seen {
			order = append(order, key)
		}
		refsByObject[key] = append(refsByObject[key], rowid)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, key := range order {
		packed := codec.PackRefs(refsByObject[key])
		if _, err := tx.ExecContext(ctx,
			"UPDATE objects SET chunk_refs = ? WHERE sha = ?",
			packed, []byte(key)); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, "DROP TABLE object_chunks")
	return err
}
