package db

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"

	"github.com/imgajeed76/sqlgit/internal/chunker"
	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/object"
	"github.com/imgajeed76/sqlgit/internal/util"
)

// ObjectStore is the content-addressed store for commits, trees,
// blobs and tags. Small objects live inline on the objects row; large
// blobs are partitioned into content-defined chunks shared across
// objects. The store holds a non-owning handle to the repository's
// connection and codec.
type ObjectStore struct {
	db    *DB
	codec *codec.Codec
	fts   bool
}

// NewObjectStore wires an object store over an open connection. fts
// reports whether the full-text chunk index exists so inserts keep it
// current.
func NewObjectStore(db *DB, c *codec.Codec, fts bool) *ObjectStore {
	return &ObjectStore{db: db, codec: c, fts: fts}
}

// Codec returns the store's codec.
func (s *ObjectStore) Codec() *codec.Codec {
	return s.codec
}

// dictKindFor maps an object type to the dictionary used for its
// inline data. Inline blobs and tags compress dictionary-free: their
// content is too heterogeneous for a trained dictionary to help.
func dictKindFor(t object.Type) codec.DictKind {
	switch t {
	case object.TypeCommit:
		return codec.DictCommit
	case object.TypeTree:
		return codec.DictTree
	default:
		return codec.DictNone
	}
}

// AddObject inserts or replaces one object and commits immediately.
func (s *ObjectStore) AddObject(ctx context.Context, obj *object.Object) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return s.insertObjectTx(ctx, tx, obj)
	})
}

// AddObjects inserts or replaces many objects atomically in one
// transaction. All objects and their chunks become visible together.
func (s *ObjectStore) AddObjects(ctx context.Context, objects iter.Seq[*object.Object]) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for obj := range objects {
			if err := s.insertObjectTx(ctx, tx, obj); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddPackedObjects ingests a stream of already-inflated objects fed by
// an external pack parser. It is the batch path: one transaction for
// the whole stream.
func (s *ObjectStore) AddPackedObjects(ctx context.Context, objects iter.Seq[*object.Object]) error {
	return s.AddObjects(ctx, objects)
}

func (s *ObjectStore) insertObjectTx(ctx context.Context, tx *sql.Tx, obj *object.Object) error {
	if !obj.Type.Valid() {
		return fmt.Errorf("invalid object type %d", int(obj.Type))
	}
	id := obj.ID()

	if obj.Type == object.TypeBlob {
		if chunks := chunker.Split(obj.Data); chunks != nil {
			return s.insertChunkedTx(ctx, tx, id, obj, chunks)
		}
	}

	compressed, err := s.codec.Compress(obj.Data, dictKindFor(obj.Type))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO objects (sha, type_num, data, chunk_refs, total_size, compression)
		VALUES (?, ?, ?, NULL, ?, ?)`,
		id[:], int(obj.Type), compressed, len(obj.Data), string(s.codec.Method()))
	if err != nil {
		return fmt.Errorf("failed to insert object %s: %w", id.Hex(), err)
	}
	return nil
}

func (s *ObjectStore) insertChunkedTx(ctx context.Context, tx *sql.Tx, id object.ID, obj *object.Object, chunks []chunker.Chunk) error {
	rowids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		compressed, err := s.codec.Compress(c.Data, codec.DictChunk)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO chunks (chunk_sha, data, compression, raw_size)
			VALUES (?, ?, ?, ?)`,
			c.SHA[:], compressed, string(s.codec.Method()), len(c.Data))
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}

		var rowid int64
		if err := tx.QueryRowContext(ctx,
			"SELECT rowid FROM chunks WHERE chunk_sha = ?", c.SHA[:],
		).Scan(&rowid); err != nil {
			return fmt.Errorf("failed to resolve chunk rowid: %w", err)
		}
		rowids = append(rowids, rowid)

		if s.fts && inserted > 0 {
			if err := s.indexChunkTx(ctx, tx, rowid, c.Data); err != nil {
				return fmt.Errorf("failed to index chunk: %w", err)
			}
		}
	}

	// The object row of a chunked blob carries no payload of its own;
	// compression happens per chunk.
	packed := codec.PackRefs(rowids)
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO objects (sha, type_num, data, chunk_refs, total_size, compression)
		VALUES (?, ?, NULL, ?, ?, 'none')`,
		id[:], int(obj.Type), packed, len(obj.Data))
	if err != nil {
		return fmt.Errorf("failed to insert object %s: %w", id.Hex(), err)
	}
	return nil
}

// Contains reports whether an object exists.
func (s *ObjectStore) Contains(ctx context.Context, id object.ID) (bool, error) {
	var n int
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM objects WHERE sha = ?", id[:],
	).Scan(&n)
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

type objectRow struct {
	typeNum     int
	data        []byte
	chunkRefs   []byte
	totalSize   int64
	compression string
	isChunked   bool
}

func (s *ObjectStore) getObjectRow(ctx context.Context, id object.ID) (*objectRow, error) {
	var r objectRow
	var totalSize sql.NullInt64
	err := s.db.QueryRow(ctx, `
		SELECT type_num, data, chunk_refs, total_size, compression, data IS NULL
		FROM objects WHERE sha = ?`, id[:],
	).Scan(&r.typeNum, &r.data, &r.chunkRefs, &totalSize, &r.compression, &r.isChunked)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", util.ErrObjectNotFound, id.Hex())
	}
	if err != nil {
		return nil, mapErr(err)
	}
	r.totalSize = totalSize.Int64
	return &r, nil
}

// GetRaw returns an object's type and fully reassembled raw bytes.
func (s *ObjectStore) GetRaw(ctx context.Context, id object.ID) (object.Type, []byte, error) {
	row, err := s.getObjectRow(ctx, id)
	if err != nil {
		return 0, nil, err
	}

	if !row.isChunked {
		method, err := codec.ParseMethod(row.compression)
		if err != nil {
			return 0, nil, err
		}
		raw, err := s.codec.Decompress(row.data, method)
		if err != nil {
			return 0, nil, err
		}
		return object.Type(row.typeNum), raw, nil
	}

	rowids, err := codec.UnpackRefs(row.chunkRefs)
	if err != nil {
		return 0, nil, fmt.Errorf("object %s: %w", id.Hex(), err)
	}
	chunks, err := s.fetchChunks(ctx, rowids)
	if err != nil {
		return 0, nil, fmt.Errorf("object %s: %w", id.Hex(), err)
	}

	raw := make([]byte, 0, row.totalSize)
	for _, rowid := range rowids {
		raw = append(raw, chunks[rowid]...)
	}
	return object.Type(row.typeNum), raw, nil
}

// rowidBatchSize bounds the IN (...) lists so a huge object cannot
// exceed SQLite's bound-variable limit.
const rowidBatchSize = 500

func uniqueRowids(rowids []int64) []int64 {
	unique := make([]int64, 0, len(rowids))
	seen := make(map[int64]bool, len(rowids))
	for _, r := range rowids {
		if !seen[r] {
			seen[r] = true
			unique = append(unique, r)
		}
	}
	return unique
}

// fetchChunks loads and decompresses the chunks with the given rowids,
// returning raw bytes keyed by rowid.
func (s *ObjectStore) fetchChunks(ctx context.Context, rowids []int64) (map[int64][]byte, error) {
	unique := uniqueRowids(rowids)
	out := make(map[int64][]byte, len(unique))

	for batch := range slices.Chunk(unique, rowidBatchSize) {
		query := fmt.Sprintf(
			"SELECT rowid, data, compression FROM chunks WHERE rowid IN (%s)",
			placeholders(len(batch)))
		args := make([]any, len(batch))
		for i, r := range batch {
			args[i] = r
		}

		rows, err := s.db.Query(ctx, query, args...)
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
				out[rowid] = raw
			}
			return rows.Err()
		}(); err != nil {
			return nil, err
		}
	}

	for _, r := range unique {
		if _, ok := out[r]; !ok {
			return nil, fmt.Errorf("%w: chunk rowid %d has no row", util.ErrCorruptReferenceList, r)
		}
	}
	return out, nil
}

// GetRawRange returns up to length raw bytes starting at offset.
// Requests past the end of the object clamp to what exists; an offset
// at or beyond the total size returns empty. For chunked objects only
// the chunks overlapping the range are fetched and decompressed.
func (s *ObjectStore) GetRawRange(ctx context.Context, id object.ID, offset, length int64) ([]byte, error) {
	row, err := s.getObjectRow(ctx, id)
	if err != nil {
		return nil, err
	}

	if offset < 0 {
		offset = 0
	}
	if length < 0 {
		length = 0
	}
	if offset >= row.totalSize || length == 0 {
		return []byte{}, nil
	}
	end := offset + length
	if end > row.totalSize || end < offset {
		end = row.totalSize
	}

	if !row.isChunked {
		method, err := codec.ParseMethod(row.compression)
		if err != nil {
			return nil, err
		}
		raw, err := s.codec.Decompress(row.data, method)
		if err != nil {
			return nil, err
		}
		if offset > int64(len(raw)) {
			return []byte{}, nil
		}
		if end > int64(len(raw)) {
			end = int64(len(raw))
		}
		return raw[offset:end], nil
	}

	rowids, err := codec.UnpackRefs(row.chunkRefs)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id.Hex(), err)
	}

	sizes, err := s.chunkRawSizes(ctx, rowids)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id.Hex(), err)
	}

	// Cumulative start offset of each chunk in the reassembled blob.
	starts := make([]int64, len(rowids)+1)
	for i, rowid := range rowids {
		starts[i+1] = starts[i] + sizes[rowid]
	}

	// First chunk whose end exceeds offset, last chunk whose start
	// precedes end.
	first := sort.Search(len(rowids), func(i int) bool { return starts[i+1] > offset })
	last := sort.Search(len(rowids), func(i int) bool { return starts[i] >= end })
	if first >= len(rowids) || first >= last {
		return []byte{}, nil
	}

	chunks, err := s.fetchChunks(ctx, rowids[first:last])
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id.Hex(), err)
	}

	buf := make([]byte, 0, end-offset)
	for i := first; i < last; i++ {
		raw := chunks[rowids[i]]
		lo := int64(0)
		if offset > starts[i] {
			lo = offset - starts[i]
		}
		hi := int64(len(raw))
		if end < starts[i+1] {
			hi = end - starts[i]
		}
		if lo > hi {
			continue
		}
		buf = append(buf, raw[lo:hi]...)
	}
	return buf, nil
}

// chunkRawSizes returns the raw (decompressed) size per chunk rowid.
func (s *ObjectStore) chunkRawSizes(ctx context.Context, rowids []int64) (map[int64]int64, error) {
	unique := uniqueRowids(rowids)
	out := make(map[int64]int64, len(unique))

	for batch := range slices.Chunk(unique, rowidBatchSize) {
		query := fmt.Sprintf(
			"SELECT rowid, raw_size FROM chunks WHERE rowid IN (%s)",
			placeholders(len(batch)))
		args := make([]any, len(batch))
		for i, r := range batch {
			args[i] = r
		}

		rows, err := s.db.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		if err := func() error {
			defer rows.Close()
			for rows.Next() {
				var rowid, size int64
				if err := rows.Scan(&rowid, &size); err != nil {
					return err
				}
				out[rowid] = size
			}
			return rows.Err()
		}(); err != nil {
			return nil, err
		}
	}

	for _, r := range unique {
		if _, ok := out[r]; !ok {
			return nil, fmt.Errorf("%w: chunk rowid %d has no row", util.ErrCorruptReferenceList, r)
		}
	}
	return out, nil
}

// GetSize returns an object's raw uncompressed size without
// reassembling it.
func (s *ObjectStore) GetSize(ctx context.Context, id object.ID) (int64, error) {
	var size sql.NullInt64
	err := s.db.QueryRow(ctx,
		"SELECT total_size FROM objects WHERE sha = ?", id[:],
	).Scan(&size)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", util.ErrObjectNotFound, id.Hex())
	}
	if err != nil {
		return 0, mapErr(err)
	}
	return size.Int64, nil
}

// IterIDs lazily yields every object ID in unspecified order.
func (s *ObjectStore) IterIDs(ctx context.Context) iter.Seq2[object.ID, error] {
	return func(yield func(object.ID, error) bool) {
		rows, err := s.db.Query(ctx, "SELECT sha FROM objects")
		if err != nil {
			yield(object.ID{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var sha []byte
			if err := rows.Scan(&sha); err != nil {
				yield(object.ID{}, err)
				return
			}
			id, err := object.IDFromBytes(sha)
			if err != nil {
				yield(object.ID{}, err)
				return
			}
			if !yield(id, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(object.ID{}, err)
		}
	}
}

// ChunkRefs returns the ordered chunk rowid list of a chunked object,
// or nil for an inline object.
func (s *ObjectStore) ChunkRefs(ctx context.Context, id object.ID) ([]int64, error) {
	row, err := s.getObjectRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if !row.isChunked {
		return nil, nil
	}
	rowids, err := codec.UnpackRefs(row.chunkRefs)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id.Hex(), err)
	}
	return rowids, nil
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
