package codec

import (
	"crypto/sha256"
)

// ChunkIDLen is the byte length of a chunk ID (SHA-256).
const ChunkIDLen = 32

// HashChunk computes the chunk ID: SHA-256 over the raw, uncompressed
// bytes. Hashing before compression keeps chunk identity stable across
// codec choices.
func HashChunk(raw []byte) [ChunkIDLen]byte {
	return sha256.Sum256(raw)
}
