package repo

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/db"
)

// TrainDictionaries builds per-type zstd dictionaries from the data
// already in the store and re-compresses everything under them. Only
// types with enough samples get a dictionary (commits, trees and
// chunks train separately; a sparse type is skipped rather than
// overfit). The trained dictionaries are persisted to their reserved
// named-file slots; the legacy single-dictionary slot is removed once
// the store no longer holds frames that need it.
func (r *Repository) TrainDictionaries(ctx context.Context) error {
	samples, err := r.objects.DictSamples(ctx)
	if err != nil {
		return err
	}

	trained := map[codec.DictKind][]byte{}
	for _, kind := range codec.DictKinds {
		if len(samples[kind]) < codec.MinDictSamples {
			log.WithFields(log.Fields{"kind": string(kind), "samples": len(samples[kind])}).
				Debug("skipping dictionary: too few samples")
			continue
		}
		dict, err := codec.TrainDict(samples[kind], codec.DictIDForKind(kind))
		if err != nil {
			return fmt.Errorf("training %s dictionary: %w", kind, err)
		}
		trained[kind] = dict
	}
	if len(trained) == 0 {
		return fmt.Errorf("not enough data to train any dictionary")
	}

	dictPaths := map[codec.DictKind]string{
		codec.DictCommit: db.FileDictCommit,
		codec.DictTree:   db.FileDictTree,
		codec.DictChunk:  db.FileDictChunk,
	}
	for kind, dict := range trained {
		if err := r.database.PutNamedFile(ctx, dictPaths[kind], dict); err != nil {
			return err
		}
	}

	// The new codec decodes legacy frames during recompression, so
	// the legacy dictionary stays registered until the rewrite has
	// committed.
	legacy, err := r.database.GetNamedFile(ctx, db.FileDictLegacy)
	if err != nil {
		return err
	}
	next, err := codec.NewCodec(r.objects.Codec().Method(), trained, legacy)
	if err != nil {
		return err
	}

	if err := r.objects.RecompressAll(ctx, next); err != nil {
		return err
	}

	if err := r.database.DeleteNamedFile(ctx, db.FileDictLegacy); err != nil {
		return err
	}

	for kind := range trained {
		log.WithFields(log.Fields{
			"kind":    string(kind),
			"dict_id": next.DictID(kind),
			"samples": len(samples[kind]),
		}).Info("trained dictionary")
	}
	return nil
}
