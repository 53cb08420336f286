package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Block bundles a cid with its payload and the cids of the blocks it links
// to. Links need not already be present in the store.
type Block struct {
	CID   CID
	Data  []byte
	Links []CID
}

// addBlock interns cid, inserts its payload and refs if not already
// present, and optionally pins it under pinAlias regardless of whether the
// block was newly inserted.
//
// Always returns true on success: the original this was ported from never
// distinguished "newly inserted" from "already present" in its return
// value, and that distinction is not reconstructed here.
func addBlock(ctx context.Context, tx *sql.Tx, cid CID, data []byte, links []CID, pinAlias int64, hasPinAlias bool) (bool, error) {
	id, err := getOrCreateID(ctx, tx, cid)
	if err != nil {
		return false, fmt.Errorf("add block: %w", err)
	}

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM blocks WHERE block_id = ?", id).Scan(&exists)
	blockExists := err == nil
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("add block: check existing payload: %w", err)
	}

	if hasPinAlias {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO temp_aliases (alias, block_id) VALUES (?, ?)",
			pinAlias, id,
		); err != nil {
			return false, fmt.Errorf("add block: pin under temp alias: %w", err)
		}
	}

	if !blockExists {
		if _, err := tx.ExecContext(ctx, "INSERT INTO blocks (block_id, block) VALUES (?, ?)", id, data); err != nil {
			return false, fmt.Errorf("add block: insert payload: %w", err)
		}
		for _, link := range links {
			childID, err := getOrCreateID(ctx, tx, link)
			if err != nil {
				return false, fmt.Errorf("add block: intern link: %w", err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO refs (parent_id, child_id) VALUES (?, ?)", id, childID); err != nil {
				return false, fmt.Errorf("add block: insert ref: %w", err)
			}
		}
	}

	return true, nil
}
