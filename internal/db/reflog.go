package db

import (
	"context"
	"database/sql"
)

// ReflogEntry is one row of the append-only ref mutation log.
type ReflogEntry struct {
	ID        int64
	RefName   string
	OldValue  []byte // zero-hex when the ref was created
	NewValue  []byte // zero-hex when the ref was deleted
	Committer string
	Timestamp int64
	Timezone  int
	Message   string
}

// appendLogTx records one ref mutation inside the transaction that
// performs it, so the log entry and the mutation become visible
// together. Absent old/new values are logged as the zero ID.
func (r *RefStore) appendLogTx(ctx context.Context, tx *sql.Tx, name string, old, newValue []byte, opts *LogOptions) error {
	if old == nil {
		old = []byte(ZeroHex)
	}
	if newValue == nil {
		newValue = []byte(ZeroHex)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reflog (ref_name, old_sha, new_sha, committer, timestamp, timezone, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		[]byte(name), old, newValue,
		[]byte(opts.committer()), opts.timestamp(), opts.timezone(), []byte(opts.message()))
	return err
}

// LogEntries returns a ref's reflog entries in append order.
func (r *RefStore) LogEntries(ctx context.Context, name string) ([]ReflogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, ref_name, old_sha, new_sha, committer, timestamp, timezone, message
		FROM reflog WHERE ref_name = ? ORDER BY id`, []byte(name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ReflogEntry
	for rows.Next() {
		var e ReflogEntry
		var refName, committer, message []byte
		if err := rows.Scan(&e.ID, &refName, &e.OldValue, &e.NewValue,
			&committer, &e.Timestamp, &e.Timezone, &message); err != nil {
			return nil, err
		}
		e.RefName = string(refName)
		e.Committer = string(committer)
		e.Message = string(message)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountReflog returns the total number of reflog entries.
func (r *RefStore) CountReflog(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM reflog").Scan(&n)
	return n, mapErr(err)
}
