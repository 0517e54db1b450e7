// Package chunker implements content-defined chunking for blob
// deduplication. Text blobs cut at line boundaries selected by CRC32,
// binary blobs cut with a FastCDC rolling hash. Local edits move few
// chunk boundaries, so versions of the same file share most chunks.
package chunker

import (
	"bytes"
	"hash/crc32"

	"github.com/imgajeed76/sqlgit/internal/codec"
)

const (
	// ChunkingThreshold is the minimum blob size considered for
	// chunking. Smaller blobs always stay inline.
	ChunkingThreshold = 4096

	// TextProbeLen is how many leading bytes are scanned for NUL
	// when classifying a blob as text or binary.
	TextProbeLen = 8000

	// TextCDCMask selects line-boundary cut points: cut when
	// crc32(line) & mask == 0. No cut before TextMinLines lines, then
	// 1 in 8 lines cuts, giving ~10-line average chunks.
	TextCDCMask = 0x7

	// TextMinLines is the minimum number of lines per text chunk.
	TextMinLines = 3

	// TextMaxChunkBytes forces a cut regardless of CRC state.
	TextMaxChunkBytes = 4096

	// Binary FastCDC parameters.
	BinaryMinSize = 2048
	BinaryAvgSize = 8192
	BinaryMaxSize = 65536
)

// Chunk is one element of a chunked blob: the raw bytes and their
// SHA-256 identity.
type Chunk struct {
	Data []byte
	SHA  [codec.ChunkIDLen]byte
}

// IsText reports whether data looks like text: no NUL byte within the
// first TextProbeLen bytes.
func IsText(data []byte) bool {
	probe := data
	if len(probe) > TextProbeLen {
		probe = probe[:TextProbeLen]
	}
	return !bytes.ContainsRune(probe, 0)
}

// Split decides between inline and chunked storage for blob data.
// It returns nil when the blob should be stored inline: the data is
// below the chunking threshold, or content-defined chunking produced
// a single chunk. Otherwise it returns the ordered chunk sequence.
func Split(data []byte) []Chunk {
	if len(data) < ChunkingThreshold {
		return nil
	}

	var chunks []Chunk
	if IsText(data) {
		chunks = SplitText(data)
	} else {
		chunks = SplitBinary(data)
	}

	if len(chunks) <= 1 {
		return nil
	}
	return chunks
}

// SplitText partitions text data at line boundaries. Input is split on
// '\n' with the newline re-attached to each line; a cut happens once
// at least TextMinLines lines are buffered and the current line's
// CRC32 lands on the mask, or unconditionally once the buffered bytes
// reach TextMaxChunkBytes.
func SplitText(data []byte) []Chunk {
	parts := splitLines(data)
	if len(parts) == 0 {
		return []Chunk{makeChunk(data)}
	}

	var chunks []Chunk
	var buf []byte
	lineCount := 0

	for _, part := range parts {
		buf = append(buf, part...)
		lineCount++
		crc := crc32.ChecksumIEEE(part)

		shouldCut := (lineCount >= TextMinLines && crc&TextCDCMask == 0) ||
			len(buf) >= TextMaxChunkBytes

		if shouldCut {
			chunks = append(chunks, makeChunk(buf))
			buf = nil
			lineCount = 0
		}
	}

	if len(buf) > 0 {
		chunks = append(chunks, makeChunk(buf))
	}
	return chunks
}

// SplitBinary partitions binary data with the FastCDC rolling hash.
func SplitBinary(data []byte) []Chunk {
	var chunks []Chunk
	for len(data) > 0 {
		n := fastCDCCut(data)
		chunks = append(chunks, makeChunk(data[:n]))
		data = data[n:]
	}
	return chunks
}

// splitLines splits on '\n', keeping the newline with each line. A
// trailing line without a newline is kept as-is; a trailing empty
// element (input ended with '\n') is dropped.
func splitLines(data []byte) [][]byte {
	var parts [][]byte
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			if len(data) > 0 {
				parts = append(parts, data)
			}
			return parts
		}
		parts = append(parts, data[:i+1])
		data = data[i+1:]
	}
}

func makeChunk(data []byte) Chunk {
	c := Chunk{Data: make([]byte, len(data))}
	copy(c.Data, data)
	c.SHA = codec.HashChunk(c.Data)
	return c
}
