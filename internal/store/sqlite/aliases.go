package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// setAlias upserts a durable named root when cid is non-nil, or removes the
// named root when cid is nil. Aliasing a cid that has no block yet (or no
// block at all) is allowed: an alias only needs to name an id, not a
// complete graph.
func setAlias(ctx context.Context, tx *sql.Tx, name []byte, cid CID) error {
	if cid == nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM aliases WHERE name = ?", name); err != nil {
			return fmt.Errorf("remove alias: %w", err)
		}
		return nil
	}
	id, err := getOrCreateID(ctx, tx, cid)
	if err != nil {
		return fmt.Errorf("set alias: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "REPLACE INTO aliases (name, block_id) VALUES (?, ?)", name, id); err != nil {
		return fmt.Errorf("set alias: %w", err)
	}
	return nil
}

// createTempAlias reserves a new temp-alias id with a NULL block_id row, so
// the id is visible to the GC mark phase immediately even before anything
// is pinned under it.
//
// The id formula replicates COALESCE(MAX(alias), 1) + 1 exactly, which
// means the very first temp alias on a fresh store is id 2, not 1. This is
// preserved as observed rather than normalized to start at 1.
func createTempAlias(ctx context.Context, tx *sql.Tx) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(alias), 1) + 1 FROM temp_aliases").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create temp alias: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO temp_aliases (alias, block_id) VALUES (?, NULL)", id); err != nil {
		return 0, fmt.Errorf("create temp alias: %w", err)
	}
	return id, nil
}

// dropTempAlias removes every row reserved under alias.
func dropTempAlias(ctx context.Context, db *sql.DB, alias int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM temp_aliases WHERE alias = ?", alias)
	if err != nil {
		return fmt.Errorf("drop temp alias: %w", err)
	}
	return nil
}

// TempAlias is a scoped, process-local GC root. Callers must call Release
// on every exit path — typically via defer immediately after creation — to
// guarantee the reservation doesn't outlive its purpose. Release never
// returns an error: failures are logged and swallowed, matching the
// best-effort release semantics a destructor would have had.
type TempAlias struct {
	id       int64
	store    *Store
	released bool
}

// ID returns the temp alias's numeric id, primarily useful for logging.
func (t *TempAlias) ID() int64 {
	return t.id
}

// Release drops the temp alias and everything pinned under it. Safe to call
// more than once; only the first call has any effect.
func (t *TempAlias) Release(ctx context.Context) {
	if t.released {
		return
	}
	t.released = true
	if err := dropTempAlias(ctx, t.store.db, t.id); err != nil {
		t.store.logger.ErrorContext(ctx, "failed to release temp alias",
			"alias_id", t.id, "error", &ReleaseError{AliasID: t.id, Err: err})
	}
}
