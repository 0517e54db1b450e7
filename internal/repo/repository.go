// Package repo provides the repository handle: lifecycle, wiring of
// the object and reference stores over a shared connection, and the
// passthrough surface for config, description and named files. The
// repository is always bare; there is no working tree and no index.
package repo

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/imgajeed76/sqlgit/internal/codec"
	"github.com/imgajeed76/sqlgit/internal/db"
	"github.com/imgajeed76/sqlgit/internal/util"
)

// Repository is an open handle to one repository database. It
// exclusively owns the connection for its lifetime; the object and
// reference stores it exposes are valid only while the handle is.
type Repository struct {
	database *db.DB
	objects  *db.ObjectStore
	refs     *db.RefStore
}

// Open opens an existing repository database. A missing file or a
// file without the engine schema fails with ErrNotARepository; an
// outdated schema is migrated forward before the handle is returned.
func Open(ctx context.Context, path string) (*Repository, error) {
	database, err := db.Open(path, false)
	if err != nil {
		return nil, err
	}

	exists, err := database.SchemaExists(ctx)
	if err != nil {
		database.Close()
		return nil, err
	}
	if !exists {
		database.Close()
		return nil, fmt.Errorf("%w: %s", util.ErrNotARepository, path)
	}

	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}

	return wire(ctx, database)
}

// InitBare creates a new bare repository database at path with the
// given compression method for new writes.
func InitBare(ctx context.Context, path string, compression codec.Method) (*Repository, error) {
	if _, err := os.Stat(path); err == nil {
		if existing, err := db.Open(path, false); err == nil {
			ok, _ := existing.SchemaExists(ctx)
			existing.Close()
			if ok {
				return nil, fmt.Errorf("%w: %s", util.ErrAlreadyInitialized, path)
			}
		}
	}

	database, err := db.Open(path, true)
	if err != nil {
		return nil, err
	}
	if err := database.InitSchema(ctx, compression); err != nil {
		database.Close()
		return nil, err
	}
	return wire(ctx, database)
}

// wire loads the codec state from the database and builds the stores.
func wire(ctx context.Context, database *db.DB) (*Repository, error) {
	methodRaw, err := database.GetMetadata(ctx, db.MetaKeyCompression)
	if err != nil {
		database.Close()
		return nil, err
	}
	method, err := codec.ParseMethod(methodRaw)
	if err != nil {
		database.Close()
		return nil, err
	}

	dicts, legacy, err := loadDictionaries(ctx, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	c, err := codec.NewCodec(method, dicts, legacy)
	if err != nil {
		database.Close()
		return nil, err
	}

	fts, err := database.HasFTS(ctx)
	if err != nil {
		database.Close()
		return nil, err
	}

	return &Repository{
		database: database,
		objects:  db.NewObjectStore(database, c, fts),
		refs:     db.NewRefStore(database),
	}, nil
}

func loadDictionaries(ctx context.Context, database *db.DB) (map[codec.DictKind][]byte, []byte, error) {
	paths := map[codec.DictKind]string{
		codec.DictCommit: db.FileDictCommit,
		codec.DictTree:   db.FileDictTree,
		codec.DictChunk:  db.FileDictChunk,
	}
	dicts := map[codec.DictKind][]byte{}
	for kind, path := range paths {
		contents, err := database.GetNamedFile(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		if len(contents) > 0 {
			dicts[kind] = contents
		}
	}
	legacy, err := database.GetNamedFile(ctx, db.FileDictLegacy)
	if err != nil {
		return nil, nil, err
	}
	return dicts, legacy, nil
}

// Close releases the database connection. The stores obtained from
// this handle must not be used afterwards.
func (r *Repository) Close() error {
	return r.database.Close()
}

// Objects returns the repository's object store.
func (r *Repository) Objects() *db.ObjectStore {
	return r.objects
}

// Refs returns the repository's reference store.
func (r *Repository) Refs() *db.RefStore {
	return r.refs
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.database.Path()
}

// OpenIndex always fails: the engine stores bare repositories only.
func (r *Repository) OpenIndex() error {
	return util.ErrNoIndex
}

// GetConfig returns the stored config file bytes, or nil when none
// has been written. The engine treats config as opaque.
func (r *Repository) GetConfig(ctx context.Context) ([]byte, error) {
	return r.database.GetNamedFile(ctx, db.FileConfig)
}

// SetConfig replaces the stored config file bytes.
func (r *Repository) SetConfig(ctx context.Context, contents []byte) error {
	return r.database.PutNamedFile(ctx, db.FileConfig, contents)
}

// GetDescription returns the repository description, or nil when
// unset.
func (r *Repository) GetDescription(ctx context.Context) ([]byte, error) {
	return r.database.GetNamedFile(ctx, db.FileDescription)
}

// SetDescription replaces the repository description.
func (r *Repository) SetDescription(ctx context.Context, description []byte) error {
	return r.database.PutNamedFile(ctx, db.FileDescription, description)
}

// GetNamedFile reads an arbitrary named file; nil means absent.
func (r *Repository) GetNamedFile(ctx context.Context, path string) ([]byte, error) {
	return r.database.GetNamedFile(ctx, path)
}

// PutNamedFile creates or replaces a named file.
func (r *Repository) PutNamedFile(ctx context.Context, path string, contents []byte) error {
	return r.database.PutNamedFile(ctx, path, contents)
}

// DeleteNamedFile removes a named file.
func (r *Repository) DeleteNamedFile(ctx context.Context, path string) error {
	return r.database.DeleteNamedFile(ctx, path)
}

// Compression returns the active compression method for new writes.
func (r *Repository) Compression() codec.Method {
	return r.objects.Codec().Method()
}

// SetCompression switches the compression method for new writes.
// Existing rows keep their recorded method and remain readable.
func (r *Repository) SetCompression(ctx context.Context, method codec.Method) error {
	if _, err := codec.ParseMethod(string(method)); err != nil {
		return err
	}
	if err := r.database.SetMetadata(ctx, db.MetaKeyCompression, string(method)); err != nil {
		return err
	}
	r.objects.Codec().SetMethod(method)
	return nil
}

// HasFTS reports whether the full-text chunk index exists.
func (r *Repository) HasFTS(ctx context.Context) (bool, error) {
	return r.database.HasFTS(ctx)
}

// EnableFTS builds the full-text chunk index.
func (r *Repository) EnableFTS(ctx context.Context) error {
	return r.objects.EnableFTS(ctx)
}

// DisableFTS drops the full-text chunk index.
func (r *Repository) DisableFTS(ctx context.Context) error {
	return r.objects.DisableFTS(ctx)
}

// SweepChunks removes chunks no object references. Never runs
// implicitly.
func (r *Repository) SweepChunks(ctx context.Context) (int64, error) {
	return r.objects.SweepChunks(ctx)
}

// IsNotExist reports whether err means the repository is absent or
// uninitialized.
func IsNotExist(err error) bool {
	return errors.Is(err, util.ErrNotARepository)
}
