package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CID is an opaque content identifier. It is never parsed or interpreted by
// this package, only compared and stored as a BLOB.
type CID []byte

// getID looks up the surrogate integer id interned for cid, if any.
func getID(ctx context.Context, tx *sql.Tx, cid CID) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM cids WHERE cid = ?", []byte(cid)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get id: %w", err)
	}
	return id, true, nil
}

// getOrCreateID interns cid, returning its existing id or creating one.
func getOrCreateID(ctx context.Context, tx *sql.Tx, cid CID) (int64, error) {
	id, ok, err := getID(ctx, tx, cid)
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}
	res, err := tx.ExecContext(ctx, "INSERT INTO cids (cid) VALUES (?)", []byte(cid))
	if err != nil {
		return 0, fmt.Errorf("intern cid: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("intern cid: %w", err)
	}
	return newID, nil
}
