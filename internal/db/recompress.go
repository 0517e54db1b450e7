package db

import (
	"context"
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/object"
)

// RecompressAll rewrites every stored payload under next's active
// method and dictionaries, then makes next the store's codec. Rows are
// decoded with the current codec (which still knows the old
// dictionaries) and re-encoded with the new one, all inside a single
// transaction: dictionary retraining either converts the whole store
// or none of it.
func (s *ObjectStore) RecompressAll(ctx context.Context, next *codec.Codec) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT sha, type_num, data, compression FROM objects WHERE data IS NOT NULL")
		if err != nil {
			return err
		}
		type inlineRow struct {
			sha     []byte
			typeNum int
			raw     []byte
		}
		var inline []inlineRow
		if err := func() error {
			defer rows.Close()
			for rows.Next() {
				var r inlineRow
				var data []byte
				var compression string
				if err := rows.Scan(&r.sha, &r.typeNum, &data, &compression); err != nil {
					return err
				}
				method, err := codec.ParseMethod(compression)
				if err != nil {
					return err
				}
				if r.raw, err = s.codec.Decompress(data, method); err != nil {
					return err
				}
				inline = append(inline, r)
			}
			return rows.Err()
		}(); err != nil {
			return err
		}

		for _, r := range inline {
			compressed, err := next.Compress(r.raw, dictKindFor(object.Type(r.typeNum)))
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE objects SET data = ?, compression = ? WHERE sha = ?",
				compressed, string(next.Method()), r.sha); err != nil {
				return err
			}
		}

		rows, err = tx.QueryContext(ctx,
			"SELECT rowid, data, compression FROM chunks")
		if err != nil {
			return err
		}
		type chunkRow struct {
			rowid int64
			raw   []byte
		}
		var chunks []chunkRow
		if err := func() error {
			defer rows.Close()
			for rows.Next() {
				var r chunkRow
				var data []byte
				var compression string
				if err := rows.Scan(&r.rowid, &data, &compression); err != nil {
					return err
				}
				method, err := codec.ParseMethod(compression)
				if err != nil {
					return err
				}
				if r.raw, err = s.codec.Decompress(data, method); err != nil {
					return err
				}
				chunks = append(chunks, r)
			}
			return rows.Err()
		}(); err != nil {
			return err
		}

		for _, r := range chunks {
			compressed, err := next.Compress(r.raw, codec.DictChunk)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE chunks SET data = ?, compression = ? WHERE rowid = ?",
				compressed, string(next.Method()), r.rowid); err != nil {
				return err
			}
		}

		log.WithFields(log.Fields{"objects": len(inline), "chunks": len(chunks)}).
			Info("recompressed store")
		return nil
	})
	if err != nil {
		return fmt.Errorf("recompression failed: %w", err)
	}
	s.codec = next
	return nil
}
