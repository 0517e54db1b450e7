package db

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/imgajeed76/sqlgit/internal/object"
	"github.com/imgajeed76/sqlgit/internal/util"
)

// SymrefPrefix marks a symbolic ref value: "ref: refs/heads/main".
const SymrefPrefix = "ref: "

// ZeroHex is the hex form of the all-zero object ID. As a CAS expected
// value it means "the ref should not exist".
const ZeroHex = "0000000000000000000000000000000000000000"

// DefaultCommitter is logged when a mutation carries no committer
// identity.
const DefaultCommitter = "sqlgit <sqlgit@localhost>"

// maxSymrefDepth bounds symbolic ref chains during resolution.
const maxSymrefDepth = 5

// RefStore is the reference store: branches, tags, symbolic refs and
// the peeled-ref cache, with an append-only reflog. It holds a
// non-owning handle to the repository's connection.
type RefStore struct {
	db *DB
}

// NewRefStore wires a ref store over an open connection.
func NewRefStore(db *DB) *RefStore {
	return &RefStore{db: db}
}

// LogOptions carries the reflog identity for a ref mutation. A nil
// LogOptions logs the default committer at the current time with an
// empty message.
type LogOptions struct {
	Committer string
	Timestamp int64
	Timezone  int // offset from UTC in seconds
	Message   string
}

func (o *LogOptions) committer() string {
	if o == nil || o.Committer == "" {
		return DefaultCommitter
	}
	return o.Committer
}

func (o *LogOptions) timestamp() int64 {
	if o == nil || o.Timestamp == 0 {
		return time.Now().Unix()
	}
	return o.Timestamp
}

func (o *LogOptions) timezone() int {
	if o == nil {
		return 0
	}
	return o.Timezone
}

func (o *LogOptions) message() string {
	if o == nil {
		return ""
	}
	return o.Message
}

// Get returns the raw stored value of a ref: either a 40-char hex
// object ID or a symbolic target ("ref: <name>").
func (r *RefStore) Get(ctx context.Context, name string) ([]byte, error) {
	return r.get(ctx, r.db.QueryRow, name)
}

type rowQuerier func(ctx context.Context, query string, args ...any) *sql.Row

func (r *RefStore) get(ctx context.Context, queryRow rowQuerier, name string) ([]byte, error) {
	var value []byte
	err := queryRow(ctx, "SELECT value FROM refs WHERE name = ?", []byte(name)).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", util.ErrRefNotFound, name)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return value, nil
}

// Resolve follows symbolic refs to the terminal object ID.
func (r *RefStore) Resolve(ctx context.Context, name string) (object.ID, error) {
	current := name
	for depth := 0; depth < maxSymrefDepth; depth++ {
		value, err := r.Get(ctx, current)
		if err != nil {
			return object.ID{}, err
		}
		if target, ok := symrefTarget(value); ok {
			current = target
			continue
		}
		id, err := object.ParseID(string(value))
		if err != nil {
			return object.ID{}, fmt.Errorf("ref %s has malformed value: %w", current, err)
		}
		return id, nil
	}
	return object.ID{}, fmt.Errorf("%w: symbolic ref chain too deep at %s", util.ErrRefNotFound, name)
}

// symrefTarget returns the target name if value is symbolic.
func symrefTarget(value []byte) (string, bool) {
	if bytes.HasPrefix(value, []byte(SymrefPrefix)) {
		return string(value[len(SymrefPrefix):]), true
	}
	return "", false
}

// ListAll returns the names of all refs.
func (r *RefStore) ListAll(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, "SELECT name FROM refs ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name []byte
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, string(name))
	}
	return names, rows.Err()
}

// SetIfEquals atomically sets name to newValue iff its current value
// equals old. old == nil permits an unconditional set; old equal to
// the zero ID means the ref must not exist yet. Returns whether the
// swap happened; a failed compare appends nothing to the reflog.
func (r *RefStore) SetIfEquals(ctx context.Context, name string, old, newValue []byte, opts *LogOptions) (bool, error) {
	swapped := false
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		txQueryRow := func(ctx context.Context, query string, args ...any) *sql.Row {
			return tx.QueryRowContext(ctx, query, args...)
		}

		if old == nil {
			// Unconditional set: read the old value for the log,
			// then upsert. The immediate transaction makes the
			// read-modify-write atomic.
			prev, err := r.get(ctx, txQueryRow, name)
			if err != nil && !isNotFound(err) {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO refs (name, value) VALUES (?, ?)",
				[]byte(name), newValue); err != nil {
				return err
			}
			swapped = true
			return r.appendLogTx(ctx, tx, name, prev, newValue, opts)
		}

		if string(old) == ZeroHex {
			// "Should not exist": atomic insert, primary key
			// rejects the race.
			_, err := tx.ExecContext(ctx,
				"INSERT INTO refs (name, value) VALUES (?, ?)",
				[]byte(name), newValue)
			if isConstraint(err) {
				return nil
			}
			if err != nil {
				return err
			}
			swapped = true
			return r.appendLogTx(ctx, tx, name, nil, newValue, opts)
		}

		// Compare and write in one statement.
		res, err := tx.ExecContext(ctx,
			"UPDATE refs SET value = ? WHERE name = ? AND value = ?",
			newValue, []byte(name), old)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		swapped = true
		return r.appendLogTx(ctx, tx, name, old, newValue, opts)
	})
	return swapped, err
}

// AddIfNew creates the ref iff it does not exist.
func (r *RefStore) AddIfNew(ctx context.Context, name string, value []byte, opts *LogOptions) (bool, error) {
	added := false
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO refs (name, value) VALUES (?, ?)",
			[]byte(name), value)
		if isConstraint(err) {
			return nil
		}
		if err != nil {
			return err
		}
		added = true
		return r.appendLogTx(ctx, tx, name, nil, value, opts)
	})
	return added, err
}

// RemoveIfEquals atomically deletes name iff its current value equals
// old. old == nil permits an unconditional delete. Deleting an absent
// ref returns true without logging.
func (r *RefStore) RemoveIfEquals(ctx context.Context, name string, old []byte, opts *LogOptions) (bool, error) {
	removed := false
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		txQueryRow := func(ctx context.Context, query string, args ...any) *sql.Row {
			return tx.QueryRowContext(ctx, query, args...)
		}

		if old == nil {
			prev, err := r.get(ctx, txQueryRow, name)
			if err != nil && !isNotFound(err) {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM refs WHERE name = ?", []byte(name)); err != nil {
				return err
			}
			removed = true
			if prev == nil {
				return nil
			}
			return r.appendLogTx(ctx, tx, name, prev, nil, opts)
		}

		res, err := tx.ExecContext(ctx,
			"DELETE FROM refs WHERE name = ? AND value = ?",
			[]byte(name), old)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		removed = true
		return r.appendLogTx(ctx, tx, name, old, nil, opts)
	})
	return removed, err
}

// SetSymbolic points name at another ref, storing "ref: <target>".
func (r *RefStore) SetSymbolic(ctx context.Context, name, target string, opts *LogOptions) error {
	value := []byte(SymrefPrefix + target)
	_, err := r.SetIfEquals(ctx, name, nil, value, opts)
	return err
}

// GetPeeled returns the cached peeled value for an annotated tag ref,
// or ErrRefNotFound when no peeled entry exists.
func (r *RefStore) GetPeeled(ctx context.Context, name string) (object.ID, error) {
	var value []byte
	err := r.db.QueryRow(ctx,
		"SELECT value FROM peeled_refs WHERE name = ?", []byte(name),
	).Scan(&value)
	if err == sql.ErrNoRows {
		return object.ID{}, fmt.Errorf("%w: no peeled entry for %s", util.ErrRefNotFound, name)
	}
	if err != nil {
		return object.ID{}, mapErr(err)
	}
	id, err := object.ParseID(string(value))
	if err != nil {
		return object.ID{}, fmt.Errorf("peeled ref %s has malformed value: %w", name, err)
	}
	return id, nil
}

// SetPeeled caches the peeled object ID for a ref.
func (r *RefStore) SetPeeled(ctx context.Context, name string, id object.ID) error {
	return r.db.Exec(ctx,
		"INSERT OR REPLACE INTO peeled_refs (name, value) VALUES (?, ?)",
		[]byte(name), []byte(id.Hex()))
}

func isNotFound(err error) bool {
	return errors.Is(err, util.ErrRefNotFound)
}
