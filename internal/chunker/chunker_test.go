package chunker

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/imgajeed76/sqlgit/internal/codec"
)

// helper to build text data large enough to chunk
func largeText(keyword string, n int) []byte {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "%s line %d of the file\n", keyword, i)
	}
	return buf.Bytes()
}

func randomBinary(seed int64, n int) []byte {
	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, n)
	rng.Read(data)
	return data
}

func join(chunks []Chunk) []byte {
	var buf bytes.Buffer
	for _, c := range chunks {
		buf.Write(c.Data)
	}
	return buf.Bytes()
}

func TestIsText(t *testing.T) {
	if !IsText([]byte("hello world\n")) {
		t.Fatal("plain text misclassified")
	}
	if IsText([]byte("bin\x00ary")) {
		t.Fatal("NUL byte not detected")
	}
	if !IsText(nil) {
		t.Fatal("empty data should count as text")
	}

	// NUL past the probe window is not seen.
	data := append(bytes.Repeat([]byte("a"), TextProbeLen), 0)
	if !IsText(data) {
		t.Fatal("NUL after probe window should not flip classification")
	}
	// NUL on the last probed byte is.
	data = append(bytes.Repeat([]byte("a"), TextProbeLen-1), 0)
	if IsText(data) {
		t.Fatal("NUL at probe boundary should flip classification")
	}
}

func TestSplit_SmallBlobInline(t *testing.T) {
	if got := Split(bytes.Repeat([]byte("x"), ChunkingThreshold-1)); got != nil {
		t.Fatalf("blob below threshold should stay inline, got %d chunks", len(got))
	}
}

func TestSplit_LargeTextChunks(t *testing.T) {
	data := largeText("split", 500)
	chunks := Split(data)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !bytes.Equal(join(chunks), data) {
		t.Fatal("chunks do not reassemble to input")
	}
}

func TestSplitText_Roundtrip(t *testing.T) {
	cases := [][]byte{
		largeText("round", 300),
		[]byte("single line no newline"),
		[]byte("trailing newline\n"),
		[]byte("\n\n\n\n"),
		largeText("notrail", 200)[:4097], // cut mid-line
	}
	for _, data := range cases {
		if got := join(SplitText(data)); !bytes.Equal(got, data) {
			t.Fatalf("text roundtrip mismatch for %d bytes", len(data))
		}
	}
}

func TestSplitText_MaxChunkBytes(t *testing.T) {
	// Lines chosen so the CRC cut rarely fires; the byte cap must.
	line := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\n")
	data := bytes.Repeat(line, 1000)
	for _, c := range SplitText(data) {
		if len(c.Data) > TextMaxChunkBytes+len(line) {
			t.Fatalf("chunk of %d bytes exceeds cap", len(c.Data))
		}
	}
}

func TestSplitText_ChunkSHA(t *testing.T) {
	chunks := SplitText(largeText("sha", 300))
	for _, c := range chunks {
		if c.SHA != codec.HashChunk(c.Data) {
			t.Fatal("chunk SHA not computed over raw bytes")
		}
	}
}

func TestSplitBinary_Roundtrip(t *testing.T) {
	data := randomBinary(42, 200_000)
	chunks := SplitBinary(data)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for 200k, got %d", len(chunks))
	}
	if !bytes.Equal(join(chunks), data) {
		t.Fatal("binary roundtrip mismatch")
	}
}

func TestSplitBinary_SizeBounds(t *testing.T) {
	chunks := SplitBinary(randomBinary(7, 500_000))
	for i, c := range chunks {
		if len(c.Data) > BinaryMaxSize {
			t.Fatalf("chunk %d is %d bytes, above max", i, len(c.Data))
		}
		if i < len(chunks)-1 && len(c.Data) < BinaryMinSize {
			t.Fatalf("chunk %d is %d bytes, below min", i, len(c.Data))
		}
	}
}

func TestSplitBinary_Deterministic(t *testing.T) {
	data := randomBinary(99, 300_000)
	a := SplitBinary(data)
	b := SplitBinary(data)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].SHA != b[i].SHA {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitBinary_LocalEditMovesFewBoundaries(t *testing.T) {
	data := randomBinary(3, 400_000)
	edited := append([]byte(nil), data...)
	copy(edited[200_000:], []byte("EDITEDEDITED"))

	orig := map[[32]byte]bool{}
	for _, c := range SplitBinary(data) {
		orig[c.SHA] = true
	}
	changed := 0
	total := 0
	for _, c := range SplitBinary(edited) {
		total++
		if !orig[c.SHA] {
			changed++
		}
	}
	if changed > total/2 {
		t.Fatalf("local edit changed %d of %d chunks", changed, total)
	}
}

func TestSplit_SingleChunkInline(t *testing.T) {
	// Above threshold but chunking yields one chunk: stays inline.
	data := bytes.Repeat([]byte{0xFF, 0x00}, ChunkingThreshold/2) // binary, 4096 bytes
	chunks := SplitBinary(data)
	if len(chunks) == 1 {
		if Split(data) != nil {
			t.Fatal("single-chunk blob should stay inline")
		}
	}
}

func TestSplitText_IdenticalLinesShareChunks(t *testing.T) {
	data := bytes.Repeat([]byte("line\n"), 2000)
	chunks := SplitText(data)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	shas := map[[32]byte]bool{}
	for _, c := range chunks {
		shas[c.SHA] = true
	}
	if len(shas) >= len(chunks) {
		t.Fatalf("identical content produced %d distinct chunk IDs from %d chunks", len(shas), len(chunks))
	}
}
