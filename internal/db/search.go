package db

import (
	"bytes"
	"context"
	"database/sql"
	"sort"

	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/object"
)

// SearchContent returns the IDs of blobs whose raw content contains
// query as a byte substring. Four passes cover the storage matrix:
// uncompressed rows are matched inside SQL, compressed rows are
// decompressed host-side, and matching chunks are reverse-mapped to
// their objects by scanning the packed reference blobs (there is no
// join table to consult).
func (s *ObjectStore) SearchContent(ctx context.Context, query string) ([]object.ID, error) {
	needle := []byte(query)
	found, err := s.searchInline(ctx, needle)
	if err != nil {
		return nil, err
	}

	// Chunks, both regimes: collect matching rowids.
	matched, err := s.matchingChunkRowids(ctx, needle)
	if err != nil {
		return nil, err
	}
	if len(matched) > 0 {
		ids, err := s.objectsReferencingChunks(ctx, matched)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			found[id] = true
		}
	}

	return sortedIDs(found), nil
}

// searchInline matches needle against inline blob rows only:
// uncompressed rows inside SQL, compressed rows host-side.
func (s *ObjectStore) searchInline(ctx context.Context, needle []byte) (map[object.ID]bool, error) {
	found := map[object.ID]bool{}

	rows, err := s.db.Query(ctx, `
		SELECT sha FROM objects
		WHERE type_num = ? AND data IS NOT NULL AND compression = 'none'
		  AND instr(data, ?) > 0`,
		int(object.TypeBlob), needle)
	if err != nil {
		return nil, err
	}
	if err := collectIDs(rows, found); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `
		SELECT sha, data, compression FROM objects
		WHERE type_num = ? AND data IS NOT NULL AND compression != 'none'`,
		int(object.TypeBlob))
	if err != nil {
		return nil, err
	}
	if err := func() error {
		defer rows.Close()
		for rows.Next() {
			var sha, data []byte
			var compression string
			if err := rows.Scan(&sha, &data, &compression); err != nil {
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
			if bytes.Contains(raw, needle) {
				id, err := object.IDFromBytes(sha)
				if err != nil {
					return err
				}
				found[id] = true
			}
		}
		return rows.Err()
	}(); err != nil {
		return nil, err
	}

	return found, nil
}

// matchingChunkRowids returns the rowids of chunks whose raw bytes
// contain needle.
func (s *ObjectStore) matchingChunkRowids(ctx context.Context, needle []byte) (map[int64]bool, error) {
	matched := map[int64]bool{}

	rows, err := s.db.Query(ctx,
		"SELECT rowid FROM chunks WHERE compression = 'none' AND instr(data, ?) > 0",
		needle)
	if err != nil {
		return nil, err
	}
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

	rows, err = s.db.Query(ctx,
		"SELECT rowid, data, compression FROM chunks WHERE compression != 'none'")
	if err != nil {
		return nil, err
	}
	if err := func() error {
		defer rows.Close()
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
			if bytes.Contains(raw, needle) {
				matched[rowid] = true
			}
		}
		return rows.Err()
	}(); err != nil {
		return nil, err
	}

	return matched, nil
}

// objectsReferencingChunks scans chunked object rows and returns the
// IDs whose packed reference list intersects the rowid set.
func (s *ObjectStore) objectsReferencingChunks(ctx context.Context, rowids map[int64]bool) ([]object.ID, error) {
	rows, err := s.db.Query(ctx,
		"SELECT sha, chunk_refs FROM objects WHERE data IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []object.ID
	for rows.Next() {
		var sha, packed []byte
		if err := rows.Scan(&sha, &packed); err != nil {
			return nil, err
		}
		refs, err := codec.UnpackRefs(packed)
		if err != nil {
			return nil, err
		}
		for _, r := range refs {
			if rowids[r] {
				id, err := object.IDFromBytes(sha)
				if err != nil {
					return nil, err
				}
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, rows.Err()
}

func collectIDs(rows *sql.Rows, into map[object.ID]bool) error {
	defer rows.Close()
	for rows.Next() {
		var sha []byte
		if err := rows.Scan(&sha); err != nil {
			return err
		}
		id, err := object.IDFromBytes(sha)
		if err != nil {
			return err
		}
		into[id] = true
	}
	return rows.Err()
}

func sortedIDs(set map[object.ID]bool) []object.ID {
	ids := make([]object.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}
