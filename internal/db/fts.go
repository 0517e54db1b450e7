package db

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/object"
	"github.com/imgajeed76/sqlgit/internal/util"
)

// Optional FTS5 index over text chunks. The index maps chunk rowids to
// tokenized content; binary chunks (any NUL byte) are never indexed.
// Word queries hit the index instead of scanning every chunk; the
// byte-substring SearchContent path is unaffected.

// HasFTS reports whether the full-text index exists.
func (db *DB) HasFTS(ctx context.Context) (bool, error) {
	var n int
	err := db.QueryRow(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'chunks_fts'",
	).Scan(&n)
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

// EnableFTS creates the full-text index and backfills it from the
// existing text chunks. Fails with ErrFTSUnavailable when the linked
// SQLite lacks the FTS5 module.
func (s *ObjectStore) EnableFTS(ctx context.Context) error {
	has, err := s.db.HasFTS(ctx)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"CREATE VIRTUAL TABLE chunks_fts USING fts5(content)"); err != nil {
			return fmt.Errorf("%w: %v", util.ErrFTSUnavailable, err)
		}

		rows, err := tx.QueryContext(ctx, "SELECT rowid, data, compression FROM chunks")
		if err != nil {
			return err
		}
		defer rows.Close()

		type textChunk struct {
			rowid int64
			text  []byte
		}
		var backfill []textChunk
		for rows.Next() {
			var rowid int64
			var data []byte
			var compression string
			if err := rows.Scan(&rowid, &data, &compression); err != nil {
				return err
			}
			method, err := codec.ParseMethod(compression)
			if err != nil {
				return err
			}
			raw, err := s.codec.Decompress(data, method)
			if err != nil {
				return err
			}
			if bytes.IndexByte(raw, 0) >= 0 {
				continue
			}
			backfill = append(backfill, textChunk{rowid: rowid, text: raw})
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, c := range backfill {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO chunks_fts (rowid, content) VALUES (?, ?)",
				c.rowid, string(c.text)); err != nil {
				return err
			}
		}
		log.WithField("chunks", len(backfill)).Info("full-text index built")
		return nil
	})
	if err != nil {
		return err
	}
	s.fts = true
	return nil
}

// DisableFTS drops the full-text index. Search falls back to the
// substring scan.
func (s *ObjectStore) DisableFTS(ctx context.Context) error {
	if err := s.db.Exec(ctx, "DROP TABLE IF EXISTS chunks_fts"); err != nil {
		return err
	}
	s.fts = false
	return nil
}

// indexChunkTx adds a freshly inserted text chunk to the index within
// the inserting transaction.
func (s *ObjectStore) indexChunkTx(ctx context.Context, tx *sql.Tx, rowid int64, raw []byte) error {
	if bytes.IndexByte(raw, 0) >= 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO chunks_fts (rowid, content) VALUES (?, ?)",
		rowid, string(raw))
	return err
}

// SearchOptions tunes SearchText.
type SearchOptions struct {
	// Ranked skips the final sort by object ID. The FTS rank order of
	// the matching chunks is not carried through to the returned
	// objects, so with Ranked the result order is not defined.
	Ranked bool
	// Limit caps the number of returned IDs; 0 means unlimited.
	Limit int
	// Quote treats operator words (AND, OR, NOT) as literal terms.
	Quote bool
}

// SearchText searches blob content by words. With the FTS index
// present the query string uses FTS5 syntax (AND/OR/NOT, phrases,
// prefix*); without it the query degrades to a byte-substring search
// via SearchContent. Inline blobs are always matched by substring,
// since only chunks are indexed.
func (s *ObjectStore) SearchText(ctx context.Context, query string, opts *SearchOptions) ([]object.ID, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	has, err := s.db.HasFTS(ctx)
	if err != nil {
		return nil, err
	}
	if !has {
		ids, err := s.SearchContent(ctx, query)
		if err != nil {
			return nil, err
		}
		return capIDs(ids, opts.Limit), nil
	}

	match := query
	if opts.Quote {
		match = quoteFTSQuery(query)
	}

	stmt := "SELECT rowid FROM chunks_fts WHERE chunks_fts MATCH ?"
	if opts.Ranked {
		stmt += " ORDER BY rank"
	}
	rows, err := s.db.Query(ctx, stmt, match)
	if err != nil {
		return nil, err
	}
	matched := map[int64]bool{}
	if err := func() error {
		defer rows.Close()
		for rows.Next() {
			var rowid int64
			if err := rows.Scan(&rowid); err != nil {
				return err
			}
			matched[rowid] = true
		}
		return rows.Err()
	}(); err != nil {
		return nil, err
	}

	found := map[object.ID]bool{}
	var ids []object.ID
	if len(matched) > 0 {
		chunkIDs, err := s.objectsReferencingChunks(ctx, matched)
		if err != nil {
			return nil, err
		}
		for _, id := range chunkIDs {
			if !found[id] {
				found[id] = true
				ids = append(ids, id)
			}
		}
	}

	// Inline blobs are not in the chunk index; match them by
	// substring on the first queried word so small files still
	// surface.
	inline, err := s.searchInline(ctx, []byte(firstWord(query)))
	if err != nil {
		return nil, err
	}
	for id := range inline {
		if !found[id] {
			found[id] = true
			ids = append(ids, id)
		}
	}

	if !opts.Ranked {
		ids = sortedIDs(found)
	}
	return capIDs(ids, opts.Limit), nil
}

// quoteFTSQuery wraps every whitespace-separated token in double
// quotes so FTS operators match literally.
func quoteFTSQuery(query string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}

func firstWord(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return query
	}
	return fields[0]
}

func capIDs(ids []object.ID, limit int) []object.ID {
	if limit > 0 && len(ids) > limit {
		return ids[:limit]
	}
	return ids
}
