package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/imgajeed76/sqlgit/internal/util"
)

// MinDictSamples is the minimum number of samples required before a
// dictionary is trained for a kind. Below this the dictionary would
// overfit and hurt ratios on future data.
const MinDictSamples = 10

const dictMagic = 0xEC30A437

// TrainDict trains a zstd dictionary over the sample set and embeds
// the given dictionary ID. Fails when fewer than MinDictSamples
// samples are supplied.
func TrainDict(samples [][]byte, id uint32) ([]byte, error) {
	if len(samples) < MinDictSamples {
		return nil, fmt.Errorf("%w: %d samples, need at least %d", util.ErrCompression, len(samples), MinDictSamples)
	}
	// The concatenated samples form the dictionary content; the
	// individual samples drive the entropy tables.
	var history []byte
	for _, s := range samples {
		history = append(history, s...)
	}
	dict, err := zstd.BuildDict(zstd.BuildDictOptions{
		ID:       id,
		Contents: samples,
		History:  history,
		Level:    zstd.SpeedDefault,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: training dictionary: %v", util.ErrCompression, err)
	}
	return dict, nil
}

// ParseDictID reads the dictionary ID out of a serialized zstd
// dictionary header (magic then ID, both little endian).
func ParseDictID(dict []byte) (uint32, error) {
	if len(dict) < 8 {
		return 0, fmt.Errorf("%w: dictionary too short", util.ErrCompression)
	}
	if binary.LittleEndian.Uint32(dict[:4]) != dictMagic {
		return 0, fmt.Errorf("%w: bad dictionary magic", util.ErrCompression)
	}
	return binary.LittleEndian.Uint32(dict[4:8]), nil
}

// DictIDForKind assigns the stable dictionary ID used when training a
// dictionary for kind. IDs are arbitrary but must be distinct and
// nonzero, since zstd reserves 0 for "no dictionary".
func DictIDForKind(kind DictKind) uint32 {
	switch kind {
	case DictCommit:
		return 101
	case DictTree:
		return 102
	case DictChunk:
		return 103
	default:
		return 0
	}
}
