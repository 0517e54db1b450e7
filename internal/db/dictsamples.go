package db

import (
	"context"

	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/object"
)

// DictSamples gathers raw payloads for dictionary training, keyed by
// dictionary kind: inline commit and tree bodies, and chunk contents.
func (s *ObjectStore) DictSamples(ctx context.Context) (map[codec.DictKind][][]byte, error) {
	samples := map[codec.DictKind][][]byte{}

	rows, err := s.db.Query(ctx, `
		SELECT type_num, data, compression FROM objects
		WHERE data IS NOT NULL AND type_num IN (?, ?)`,
		int(object.TypeCommit), int(object.TypeTree))
	if err != nil {
		return nil, err
	}
	if err := func() error {
		defer rows.Close()
		for rows.Next() {
			var typeNum int
			var data []byte
			var compression string
			if err := rows.Scan(&typeNum, &data, &compression); err != nil {
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
			kind := dictKindFor(object.Type(typeNum))
			samples[kind] = append(samples[kind], raw)
		}
		return rows.Err()
	}(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, "SELECT data, compression FROM chunks")
	if err != nil {
		return nil, err
	}
	if err := func() error {
		defer rows.Close()
		for rows.Next() {
			var data []byte
			var compression string
			if err := rows.Scan(&data, &compression); err != nil {
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
			samples[codec.DictChunk] = append(samples[codec.DictChunk], raw)
		}
		return rows.Err()
	}(); err != nil {
		return nil, err
	}

	return samples, nil
}
