package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/object"
	"github.com/imgajeed76/sqlgit/internal/util"
)

// helpers shared by the db package tests

func testDB(t *testing.T, method codec.Method) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.InitSchema(context.Background(), method); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	return d
}

func testStore(t *testing.T, method codec.Method) *ObjectStore {
	t.Helper()
	d := testDB(t, method)
	c, err := codec.NewCodec(method, nil, nil)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return NewObjectStore(d, c, false)
}

func largeText(keyword string, n int) []byte {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "%s line %d of the file\n", keyword, i)
	}
	return buf.Bytes()
}

func mustAdd(t *testing.T, s *ObjectStore, obj *object.Object) object.ID {
	t.Helper()
	if err := s.AddObject(context.Background(), obj); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	return obj.ID()
}

func mustGetRaw(t *testing.T, s *ObjectStore, id object.ID) (object.Type, []byte) {
	t.Helper()
	typ, raw, err := s.GetRaw(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRaw(%s): %v", id.Hex(), err)
	}
	return typ, raw
}

func TestAddObject_SmallBlobInline(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	data := []byte("hello world")
	id := mustAdd(t, s, object.NewBlob(data))

	typ, raw := mustGetRaw(t, s, id)
	if typ != object.TypeBlob {
		t.Fatalf("type = %s, want blob", typ)
	}
	if !bytes.Equal(raw, data) {
		t.Fatalf("raw = %q, want %q", raw, data)
	}

	refs, err := s.ChunkRefs(context.Background(), id)
	if err != nil {
		t.Fatalf("ChunkRefs: %v", err)
	}
	if refs != nil {
		t.Fatal("small blob should not be chunked")
	}
}

func TestAddObject_LargeBlobChunked(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	data := bytes.Repeat([]byte("line\n"), 2000)
	id := mustAdd(t, s, object.NewBlob(data))

	refs, err := s.ChunkRefs(context.Background(), id)
	if err != nil {
		t.Fatalf("ChunkRefs: %v", err)
	}
	if len(refs) < 2 {
		t.Fatalf("expected >= 2 chunk refs, got %d", len(refs))
	}

	_, raw := mustGetRaw(t, s, id)
	if !bytes.Equal(raw, data) {
		t.Fatal("chunked roundtrip mismatch")
	}
}

func TestAddObject_Idempotent(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	blob := object.NewBlob(largeText("idem", 500))
	mustAdd(t, s, blob)
	id := mustAdd(t, s, blob)

	n, err := s.CountObjects(context.Background())
	if err != nil {
		t.Fatalf("CountObjects: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 object row, got %d", n)
	}
	_, raw := mustGetRaw(t, s, id)
	if !bytes.Equal(raw, blob.Data) {
		t.Fatal("roundtrip after re-add mismatch")
	}
}

func TestAddObject_SharedChunksDeduplicated(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	shared := largeText("shared", 300)
	blob1 := object.NewBlob(append(slices.Clone(shared), largeText("unique1", 100)...))
	blob2 := object.NewBlob(append(slices.Clone(shared), largeText("unique2", 100)...))

	mustAdd(t, s, blob1)
	chunksAfterFirst, err := s.CountChunks(context.Background())
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}
	mustAdd(t, s, blob2)
	chunksAfterSecond, err := s.CountChunks(context.Background())
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}

	// The second blob shares the leading chunks: far fewer new rows
	// than a full chunk set.
	added := chunksAfterSecond - chunksAfterFirst
	if added >= chunksAfterFirst {
		t.Fatalf("no dedup: first blob %d chunks, second added %d", chunksAfterFirst, added)
	}

	_, raw1 := mustGetRaw(t, s, blob1.ID())
	_, raw2 := mustGetRaw(t, s, blob2.ID())
	if !bytes.Equal(raw1, blob1.Data) || !bytes.Equal(raw2, blob2.Data) {
		t.Fatal("roundtrip mismatch after dedup")
	}
}

func TestAddObject_MiddleEditSharesChunks(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	data := largeText("stable", 400)
	blob1 := object.NewBlob(data)
	mustAdd(t, s, blob1)
	before, _ := s.CountChunks(context.Background())

	edited := slices.Clone(data)
	copy(edited[len(edited)/2:], []byte("CHANGED"))
	blob2 := object.NewBlob(edited)
	mustAdd(t, s, blob2)
	after, _ := s.CountChunks(context.Background())

	if after-before >= before {
		t.Fatalf("middle edit re-chunked everything: %d before, %d added", before, after-before)
	}
	_, raw := mustGetRaw(t, s, blob2.ID())
	if !bytes.Equal(raw, edited) {
		t.Fatal("edited blob roundtrip mismatch")
	}
}

func TestAddObject_NonBlobAlwaysInline(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	// A commit body well above the chunking threshold still goes
	// inline: only blobs chunk.
	big := &object.Object{Type: object.TypeCommit, Data: largeText("commitbody", 500)}
	id := mustAdd(t, s, big)

	refs, err := s.ChunkRefs(context.Background(), id)
	if err != nil {
		t.Fatalf("ChunkRefs: %v", err)
	}
	if refs != nil {
		t.Fatal("commit should never be chunked")
	}
	typ, raw := mustGetRaw(t, s, id)
	if typ != object.TypeCommit || !bytes.Equal(raw, big.Data) {
		t.Fatal("commit roundtrip mismatch")
	}
}

func TestContains(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	id := mustAdd(t, s, object.NewBlob([]byte("present")))

	ok, err := s.Contains(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("Contains(present) = %v, %v", ok, err)
	}
	ok, err = s.Contains(context.Background(), object.ID{1, 2, 3})
	if err != nil || ok {
		t.Fatalf("Contains(absent) = %v, %v", ok, err)
	}
}

func TestGetRaw_NotFound(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	_, _, err := s.GetRaw(context.Background(), object.ID{0xAB})
	if !errors.Is(err, util.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestGetSize(t *testing.T) {
	s := testStore(t, codec.MethodZlib)
	small := object.NewBlob([]byte("small"))
	large := object.NewBlob(largeText("sized", 500))
	mustAdd(t, s, small)
	mustAdd(t, s, large)

	for _, tc := range []struct {
		id   object.ID
		want int64
	}{
		{small.ID(), int64(len(small.Data))},
		{large.ID(), int64(len(large.Data))},
	} {
		got, err := s.GetSize(context.Background(), tc.id)
		if err != nil {
			t.Fatalf("GetSize: %v", err)
		}
		if got != tc.want {
			t.Fatalf("GetSize = %d, want %d", got, tc.want)
		}
	}
}

func TestAddObjects_Batch(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	objs := []*object.Object{
		object.NewBlob([]byte("batch one")),
		object.NewBlob(largeText("batchtwo", 500)),
		{Type: object.TypeTag, Data: []byte("tag payload")},
	}
	err := s.AddObjects(context.Background(), slices.Values(objs))
	if err != nil {
		t.Fatalf("AddObjects: %v", err)
	}
	for _, obj := range objs {
		typ, raw := mustGetRaw(t, s, obj.ID())
		if typ != obj.Type || !bytes.Equal(raw, obj.Data) {
			t.Fatalf("batch roundtrip mismatch for %s", obj.ID().Hex())
		}
	}
}

func TestAddObjects_RollbackOnFailure(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	objs := []*object.Object{
		object.NewBlob([]byte("will not survive")),
		{Type: object.Type(9), Data: []byte("bad type")},
	}
	err := s.AddObjects(context.Background(), slices.Values(objs))
	if err == nil {
		t.Fatal("expected error from invalid object")
	}
	n, _ := s.CountObjects(context.Background())
	if n != 0 {
		t.Fatalf("failed batch left %d rows", n)
	}
}

func TestIterIDs(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	want := map[object.ID]bool{}
	for i := 0; i < 5; i++ {
		id := mustAdd(t, s, object.NewBlob([]byte(fmt.Sprintf("iter %d", i))))
		want[id] = true
	}

	got := map[object.ID]bool{}
	for id, err := range s.IterIDs(context.Background()) {
		if err != nil {
			t.Fatalf("IterIDs: %v", err)
		}
		got[id] = true
	}
	if len(got) != len(want) {
		t.Fatalf("iterated %d IDs, want %d", len(got), len(want))
	}
	for id := range want {
		if !got[id] {
			t.Fatalf("missing ID %s", id.Hex())
		}
	}
}

func TestChunkIdentity_StableAcrossCompression(t *testing.T) {
	data := largeText("identity", 500)

	shasFor := func(method codec.Method) [][]byte {
		s := testStore(t, method)
		id := mustAdd(t, s, object.NewBlob(data))
		refs, err := s.ChunkRefs(context.Background(), id)
		if err != nil {
			t.Fatalf("ChunkRefs: %v", err)
		}
		if len(refs) < 2 {
			t.Fatalf("expected chunked storage under %s", method)
		}
		rows, err := s.db.Query(context.Background(), "SELECT chunk_sha FROM chunks ORDER BY chunk_sha")
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		defer rows.Close()
		var shas [][]byte
		for rows.Next() {
			var sha []byte
			if err := rows.Scan(&sha); err != nil {
				t.Fatalf("scan: %v", err)
			}
			shas = append(shas, sha)
		}
		return shas
	}

	plain := shasFor(codec.MethodNone)
	zstd := shasFor(codec.MethodZstd)
	if len(plain) != len(zstd) {
		t.Fatalf("chunk counts differ across compression: %d vs %d", len(plain), len(zstd))
	}
	for i := range plain {
		if !bytes.Equal(plain[i], zstd[i]) {
			t.Fatal("chunk IDs differ across compression methods")
		}
	}
}

func TestGetRaw_CorruptChunkRefs(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	id := mustAdd(t, s, object.NewBlob(largeText("corrupt", 500)))

	// Truncate the packed reference list mid-varint.
	if err := s.db.Exec(context.Background(),
		"UPDATE objects SET chunk_refs = ? WHERE sha = ?",
		[]byte{0x80}, id[:]); err != nil {
		t.Fatalf("corrupting refs: %v", err)
	}
	_, _, err := s.GetRaw(context.Background(), id)
	if !errors.Is(err, util.ErrCorruptReferenceList) {
		t.Fatalf("expected ErrCorruptReferenceList, got %v", err)
	}
}

func TestGetRaw_MissingChunkRow(t *testing.T) {
	s := testStore(t, codec.MethodNone)
	id := mustAdd(t, s, object.NewBlob(largeText("missing", 500)))

	if err := s.db.Exec(context.Background(), "DELETE FROM chunks"); err != nil {
		t.Fatalf("deleting chunks: %v", err)
	}
	_, _, err := s.GetRaw(context.Background(), id)
	if !errors.Is(err, util.ErrCorruptReferenceList) {
		t.Fatalf("expected ErrCorruptReferenceList, got %v", err)
	}
}
