package db

import (
	"context"
	"database/sql"

	"github.com/imgajeed76/sqlgit/internal/codec"
)

// RepoStats summarizes the storage state of a repository database.
type RepoStats struct {
	Objects       int64
	InlineObjects int64
	ChunkedBlobs  int64
	Chunks        int64
	ChunkRefs     int64 // total packed references; minus Chunks = dedup wins
	TotalRawBytes int64
	StoredBytes   int64 // compressed on-disk payload bytes
	Refs          int64
	ReflogEntries int64
}

// Stats gathers repository statistics in one pass over the schema.
func (s *ObjectStore) Stats(ctx context.Context) (*RepoStats, error) {
	st := &RepoStats{}

	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(data),
		       COUNT(chunk_refs),
		       COALESCE(SUM(total_size), 0),
		       COALESCE(SUM(length(data)), 0)
		FROM objects`,
	).Scan(&st.Objects, &st.InlineObjects, &st.ChunkedBlobs, &st.TotalRawBytes, &st.StoredBytes)
	if err != nil {
		return nil, mapErr(err)
	}

	var chunkStored sql.NullInt64
	err = s.db.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(SUM(length(data)), 0) FROM chunks",
	).Scan(&st.Chunks, &chunkStored)
	if err != nil {
		return nil, mapErr(err)
	}
	st.StoredBytes += chunkStored.Int64

	// Packed reference lists have no SQL-visible length; count by
	// unpacking.
	rows, err := s.db.Query(ctx, "SELECT chunk_refs FROM objects WHERE chunk_refs IS NOT NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var packed []byte
		if err := rows.Scan(&packed); err != nil {
			return nil, err
		}
		refs, err := codec.UnpackRefs(packed)
		if err != nil {
			return nil, err
		}
		st.ChunkRefs += int64(len(refs))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM refs").Scan(&st.Refs); err != nil {
		return nil, mapErr(err)
	}
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM reflog").Scan(&st.ReflogEntries); err != nil {
		return nil, mapErr(err)
	}
	return st, nil
}

// CountObjects returns the number of object rows.
func (s *ObjectStore) CountObjects(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM objects").Scan(&n)
	return n, mapErr(err)
}

// CountChunks returns the number of chunk rows.
func (s *ObjectStore) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, mapErr(err)
}
