package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// getBlock returns the payload for cid, if both the cid and its payload
// exist.
func getBlock(ctx context.Context, tx *sql.Tx, cid CID) ([]byte, bool, error) {
	id, ok, err := getID(ctx, tx, cid)
	if err != nil {
		return nil, false, fmt.Errorf("get block: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var data []byte
	err = tx.QueryRowContext(ctx, "SELECT block FROM blocks WHERE block_id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get block: %w", err)
	}
	return data, true, nil
}

// hasBlock reports whether cid has both an interned id and a stored
// payload.
func hasBlock(ctx context.Context, tx *sql.Tx, cid CID) (bool, error) {
	var exists int
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM blocks, cids WHERE blocks.block_id = cids.id AND cids.cid = ?", []byte(cid),
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has block: %w", err)
	}
	return true, nil
}

// hasCID reports whether cid has been interned, independent of whether its
// payload has arrived.
func hasCID(ctx context.Context, tx *sql.Tx, cid CID) (bool, error) {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM cids WHERE cid = ?", []byte(cid)).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has cid: %w", err)
	}
	return true, nil
}

// getAncestors returns the ids of every block that transitively links to
// id, not including id itself.
func getAncestors(ctx context.Context, tx *sql.Tx, id int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
WITH RECURSIVE
    ancestor_of(id) AS (
        SELECT parent_id FROM refs WHERE child_id = ?
        UNION ALL
        SELECT DISTINCT parent_id FROM refs JOIN ancestor_of WHERE ancestor_of.id = refs.child_id
    )
SELECT DISTINCT id FROM ancestor_of;
`, id)
	if err != nil {
		return nil, fmt.Errorf("get ancestors: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var aid int64
		if err := rows.Scan(&aid); err != nil {
			return nil, fmt.Errorf("get ancestors: %w", err)
		}
		ids = append(ids, aid)
	}
	return ids, rows.Err()
}

// getDescendants returns the cid itself plus every cid transitively linked
// from it, via the refs table alone — it does not imply that payloads exist
// for any of them.
func getDescendants(ctx context.Context, tx *sql.Tx, cid CID) ([]CID, error) {
	rows, err := tx.QueryContext(ctx, `
WITH RECURSIVE
    descendant_of(id) AS (
        SELECT id FROM cids WHERE cid = ?
        UNION ALL
        SELECT DISTINCT child_id FROM refs JOIN descendant_of WHERE descendant_of.id = refs.parent_id
    ),
    descendant_ids AS (
        SELECT DISTINCT id FROM descendant_of
    )
SELECT cid FROM cids, descendant_ids WHERE cids.id = descendant_ids.id;
`, []byte(cid))
	if err != nil {
		return nil, fmt.Errorf("get descendants: %w", err)
	}
	defer rows.Close()
	return scanCIDs(rows)
}

// getMissingBlocks interns cid (so it is safe to call for a cid the store
// has never seen) and returns it, plus every descendant, for which no
// payload has been stored yet.
func getMissingBlocks(ctx context.Context, tx *sql.Tx, cid CID) ([]CID, error) {
	id, err := getOrCreateID(ctx, tx, cid)
	if err != nil {
		return nil, fmt.Errorf("get missing blocks: %w", err)
	}
	rows, err := tx.QueryContext(ctx, `
WITH RECURSIVE
    descendant_of(id) AS (
        SELECT ?
        UNION ALL
        SELECT DISTINCT child_id FROM refs JOIN descendant_of WHERE descendant_of.id = refs.parent_id
    ),
    orphaned_ids AS (
        SELECT DISTINCT id FROM descendant_of LEFT JOIN blocks ON descendant_of.id = blocks.block_id
        WHERE blocks.block_id IS NULL
    )
SELECT cid FROM cids, orphaned_ids WHERE cids.id = orphaned_ids.id;
`, id)
	if err != nil {
		return nil, fmt.Errorf("get missing blocks: %w", err)
	}
	defer rows.Close()
	return scanCIDs(rows)
}

// getCIDs returns every interned cid, whether or not a payload has arrived.
func getCIDs(ctx context.Context, tx *sql.Tx) ([]CID, error) {
	rows, err := tx.QueryContext(ctx, "SELECT cid FROM cids")
	if err != nil {
		return nil, fmt.Errorf("get cids: %w", err)
	}
	defer rows.Close()
	return scanCIDs(rows)
}

func getBlockCount(ctx context.Context, tx *sql.Tx) (uint64, error) {
	var n uint64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM blocks").Scan(&n); err != nil {
		return 0, fmt.Errorf("get block count: %w", err)
	}
	return n, nil
}

func getBlockSize(ctx context.Context, tx *sql.Tx) (uint64, error) {
	var n uint64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(SUM(LENGTH(block)), 0) FROM blocks").Scan(&n); err != nil {
		return 0, fmt.Errorf("get block size: %w", err)
	}
	return n, nil
}

// countOrphaned counts payloads whose cid has been deleted already. GC's
// deletion of a cid row normally removes its payload too, through the ON
// DELETE CASCADE on blocks.block_id, so this is normally zero.
func countOrphaned(ctx context.Context, tx *sql.Tx) (uint32, error) {
	var n uint32
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(block_id) FROM blocks WHERE block_id NOT IN (SELECT id FROM cids)",
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orphaned: %w", err)
	}
	return n, nil
}

func scanCIDs(rows *sql.Rows) ([]CID, error) {
	var out []CID
	for rows.Next() {
		var c []byte
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan cid: %w", err)
		}
		out = append(out, CID(c))
	}
	return out, rows.Err()
}
