package db

import (
	"context"
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/imgajeed76/sqlgit/internal/codec"
)

// SweepChunks deletes chunk rows that no object references. Replacing
// an object can strand its old chunks; nothing reclaims them
// implicitly, this routine must be invoked explicitly. It scans every
// packed reference list, builds the referenced rowid set, and removes
// the rest in one transaction. Returns the number of deleted chunks.
func (s *ObjectStore) SweepChunks(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		referenced := map[int64]bool{}

		rows, err := tx.QueryContext(ctx,
			"SELECT chunk_refs FROM objects WHERE chunk_refs IS NOT NULL")
		if err != nil {
			return err
		}
		if err := func() error {
			defer rows.Close()
			for rows.Next() {
				var packed []byte
				if err := rows.Scan(&packed); err != nil {
					return err
				}
				refs, err := codec.UnpackRefs(packed)
				if err != nil {
					return err
				}
				for _, r := range refs {
					referenced[r] = true
				}
			}
			return rows.Err()
		}(); err != nil {
			return err
		}

		rows, err = tx.QueryContext(ctx, "SELECT rowid FROM chunks")
		if err != nil {
			return err
		}
		var orphans []int64
		if err := func() error {
			defer rows.Close()
			for rows.Next() {
				var rowid int64
				if err := rows.Scan(&rowid); err != nil {
					return err
				}
				if !referenced[rowid] {
					orphans = append(orphans, rowid)
				}
			}
			return rows.Err()
		}(); err != nil {
			return err
		}

		for _, rowid := range orphans {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM chunks WHERE rowid = ?", rowid); err != nil {
				return err
			}
			if s.fts {
				if _, err := tx.ExecContext(ctx,
					"DELETE FROM chunks_fts WHERE rowid = ?", rowid); err != nil {
					return err
				}
			}
		}
		deleted = int64(len(orphans))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("chunk sweep failed: %w", err)
	}
	if deleted > 0 {
		log.WithField("chunks", deleted).Info("swept orphaned chunks")
	}
	return deleted, nil
}
