package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/db"
	"github.com/imgajeed76/sqlgit/internal/object"
	"github.com/imgajeed76/sqlgit/internal/util"
)

func tmpDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "repo.db")
}

func initRepo(t *testing.T, method codec.Method) *Repository {
	t.Helper()
	r, err := InitBare(context.Background(), tmpDBPath(t), method)
	if err != nil {
		t.Fatalf("InitBare: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func largeText(keyword string, n int) []byte {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "%s line %d of the file\n", keyword, i)
	}
	return buf.Bytes()
}

func TestInitBareAndReopen(t *testing.T) {
	path := tmpDBPath(t)
	ctx := context.Background()

	r, err := InitBare(ctx, path, codec.MethodNone)
	if err != nil {
		t.Fatalf("InitBare: %v", err)
	}
	blob := object.NewBlob([]byte("persisted across reopen"))
	if err := r.Objects().AddObject(ctx, blob); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	typ, raw, err := r.Objects().GetRaw(ctx, blob.ID())
	if err != nil {
		t.Fatalf("GetRaw: %v", err)
	}
	if typ != object.TypeBlob || !bytes.Equal(raw, blob.Data) {
		t.Fatal("object lost across reopen")
	}
}

func TestInitBare_Twice(t *testing.T) {
	path := tmpDBPath(t)
	ctx := context.Background()
	r, err := InitBare(ctx, path, codec.MethodNone)
	if err != nil {
		t.Fatalf("InitBare: %v", err)
	}
	r.Close()

	if _, err := InitBare(ctx, path, codec.MethodNone); !errors.Is(err, util.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestOpen_Nonexistent(t *testing.T) {
	_, err := Open(context.Background(), tmpDBPath(t))
	if !errors.Is(err, util.ErrNotARepository) {
		t.Fatalf("expected ErrNotARepository, got %v", err)
	}
}

func TestOpen_UninitializedFile(t *testing.T) {
	ctx := context.Background()

	// A valid SQLite file with no schema at all.
	path2 := filepath.Join(t.TempDir(), "empty.db")
	empty, err := db.Open(path2, true)
	if err != nil {
		t.Fatalf("creating empty db: %v", err)
	}
	empty.Close()
	if _, err := Open(ctx, path2); !errors.Is(err, util.ErrNotARepository) {
		t.Fatalf("expected ErrNotARepository, got %v", err)
	}
}

func TestOpenIndex_AlwaysFails(t *testing.T) {
	r := initRepo(t, codec.MethodNone)
	if err := r.OpenIndex(); !errors.Is(err, util.ErrNoIndex) {
		t.Fatalf("expected ErrNoIndex, got %v", err)
	}
}

func TestDescription(t *testing.T) {
	r := initRepo(t, codec.MethodNone)
	ctx := context.Background()

	desc, err := r.GetDescription(ctx)
	if err != nil {
		t.Fatalf("GetDescription: %v", err)
	}
	if desc != nil {
		t.Fatalf("fresh repo has description %q", desc)
	}

	if err := r.SetDescription(ctx, []byte("test repository")); err != nil {
		t.Fatalf("SetDescription: %v", err)
	}
	desc, err = r.GetDescription(ctx)
	if err != nil {
		t.Fatalf("GetDescription: %v", err)
	}
	if string(desc) != "test repository" {
		t.Fatalf("description = %q", desc)
	}
}

func TestConfig_OpaqueBytes(t *testing.T) {
	r := initRepo(t, codec.MethodNone)
	ctx := context.Background()

	contents := []byte("[core]\n\tbare = true\n")
	if err := r.SetConfig(ctx, contents); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	got, err := r.GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if !bytes.Equal(got, contents) {
		t.Fatal("config bytes not preserved verbatim")
	}
}

func TestNamedFiles(t *testing.T) {
	r := initRepo(t, codec.MethodNone)
	ctx := context.Background()

	if err := r.PutNamedFile(ctx, "info/exclude", []byte("*.tmp\n")); err != nil {
		t.Fatalf("PutNamedFile: %v", err)
	}
	got, err := r.GetNamedFile(ctx, "info/exclude")
	if err != nil {
		t.Fatalf("GetNamedFile: %v", err)
	}
	if string(got) != "*.tmp\n" {
		t.Fatalf("contents = %q", got)
	}

	if err := r.DeleteNamedFile(ctx, "info/exclude"); err != nil {
		t.Fatalf("DeleteNamedFile: %v", err)
	}
	got, err = r.GetNamedFile(ctx, "info/exclude")
	if err != nil {
		t.Fatalf("GetNamedFile: %v", err)
	}
	if got != nil {
		t.Fatal("file still present after delete")
	}
}

func TestSetCompression_MixedMethodsReadable(t *testing.T) {
	r := initRepo(t, codec.MethodNone)
	ctx := context.Background()

	plain := object.NewBlob(largeText("plain", 500))
	if err := r.Objects().AddObject(ctx, plain); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	if err := r.SetCompression(ctx, codec.MethodZlib); err != nil {
		t.Fatalf("SetCompression: %v", err)
	}
	zlibbed := object.NewBlob(largeText("zlibbed", 500))
	if err := r.Objects().AddObject(ctx, zlibbed); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	if err := r.SetCompression(ctx, codec.MethodZstd); err != nil {
		t.Fatalf("SetCompression: %v", err)
	}
	zstded := object.NewBlob(largeText("zstded", 500))
	if err := r.Objects().AddObject(ctx, zstded); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	for _, blob := range []*object.Object{plain, zlibbed, zstded} {
		_, raw, err := r.Objects().GetRaw(ctx, blob.ID())
		if err != nil {
			t.Fatalf("GetRaw: %v", err)
		}
		if !bytes.Equal(raw, blob.Data) {
			t.Fatal("mixed-method roundtrip mismatch")
		}
	}
}

func TestSetCompression_PersistsAcrossReopen(t *testing.T) {
	path := tmpDBPath(t)
	ctx := context.Background()
	r, err := InitBare(ctx, path, codec.MethodNone)
	if err != nil {
		t.Fatalf("InitBare: %v", err)
	}
	if err := r.SetCompression(ctx, codec.MethodZstd); err != nil {
		t.Fatalf("SetCompression: %v", err)
	}
	r.Close()

	r, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	if r.Compression() != codec.MethodZstd {
		t.Fatalf("compression = %s after reopen, want zstd", r.Compression())
	}
}

func TestInitBare_ZstdRoundtrip(t *testing.T) {
	r := initRepo(t, codec.MethodZstd)
	ctx := context.Background()

	blob := object.NewBlob(largeText("zstd_roundtrip", 500))
	if err := r.Objects().AddObject(ctx, blob); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	_, raw, err := r.Objects().GetRaw(ctx, blob.ID())
	if err != nil {
		t.Fatalf("GetRaw: %v", err)
	}
	if !bytes.Equal(raw, blob.Data) {
		t.Fatal("zstd roundtrip mismatch")
	}
}
