package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/imgajeed76/sqlgit/internal/util"
)

// Chunk reference lists are stored as delta-zigzag-varint blobs: the
// first rowid is an absolute uvarint, every following value is the
// signed delta from its predecessor, zigzag-mapped and emitted as a
// uvarint. Consecutively inserted chunks give delta=1, one byte each,
// which shrinks the list by roughly 80% versus fixed-width encoding.

func zigzag(d int64) uint64 {
	return uint64((d << 1) ^ (d >> 63))
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// PackRefs encodes an ordered list of chunk rowids.
// An empty list encodes to an empty byte string.
func PackRefs(rowids []int64) []byte {
	if len(rowids) == 0 {
		return nil
	}
	buf := make([]byte, 0, len(rowids)+binary.MaxVarintLen64)
	var tmp [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(tmp[:], uint64(rowids[0]))
	buf = append(buf, tmp[:n]...)

	prev := rowids[0]
	for _, r := range rowids[1:] {
		n = binary.PutUvarint(tmp[:], zigzag(r-prev))
		buf = append(buf, tmp[:n]...)
		prev = r
	}
	return buf
}

// UnpackRefs decodes a packed chunk reference blob back to the ordered
// rowid list. An empty blob decodes to an empty list. Truncated varints
// and trailing garbage fail with ErrCorruptReferenceList.
func UnpackRefs(data []byte) ([]int64, error) {
	if len(data) == 0 {
		return nil, nil
	}

	first, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("%w: truncated leading varint", util.ErrCorruptReferenceList)
	}
	data = data[n:]

	rowids := []int64{int64(first)}
	prev := int64(first)
	for len(data) > 0 {
		u, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, fmt.Errorf("%w: truncated delta varint at element %d", util.ErrCorruptReferenceList, len(rowids))
		}
		data = data[n:]
		prev += unzigzag(u)
		if prev < 0 {
			return nil, fmt.Errorf("%w: negative rowid at element %d", util.ErrCorruptReferenceList, len(rowids))
		}
		rowids = append(rowids, prev)
	}
	return rowids, nil
}
