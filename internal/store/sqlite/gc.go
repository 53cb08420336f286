package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// incrementalGC finds every interned id that is neither aliased (durably or
// temporarily) nor reachable from something that is, and deletes it. The
// cascading ON DELETE on refs/blocks/aliases takes care of everything that
// hung off a deleted id.
//
// The mark query itself is not interruptible: minBlocks guarantees forward
// progress even when it takes longer than maxDuration to compute, by
// letting at least minBlocks deletions happen before the duration check is
// consulted at all.
//
// Before deleting each marked id, its ancestors are walked with
// getAncestors to confirm none of them survived the mark phase. A live
// ancestor of a dead id would mean something still points at a block GC is
// about to remove — a mark-phase inconsistency the schema's own foreign
// keys can't catch, since refs rows are deleted by cascade, not checked
// ahead of time. That is surfaced as an InvariantViolationError rather than
// silently deleted through.
func incrementalGC(ctx context.Context, tx *sql.Tx, minBlocks int, maxDuration time.Duration) error {
	rows, err := tx.QueryContext(ctx, `
WITH RECURSIVE
    descendant_of(id) AS (
        SELECT block_id FROM aliases
        UNION SELECT block_id FROM temp_aliases WHERE block_id IS NOT NULL
        UNION ALL
        SELECT DISTINCT child_id FROM refs JOIN descendant_of WHERE descendant_of.id = refs.parent_id
    )
SELECT id FROM cids WHERE id NOT IN (SELECT id FROM descendant_of);
`)
	if err != nil {
		return fmt.Errorf("gc: mark phase: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("gc: mark phase: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("gc: mark phase: %w", err)
	}
	rows.Close()

	marked := make(map[int64]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}

	t0 := time.Now()
	for i, id := range ids {
		if i > minBlocks && time.Since(t0) > maxDuration {
			break
		}
		ancestors, err := getAncestors(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("gc: verify id %d: %w", id, err)
		}
		for _, a := range ancestors {
			if !marked[a] {
				return &InvariantViolationError{
					Invariant: "gc-mark-reachability",
					Err:       fmt.Errorf("id %d marked for deletion but reachable from live id %d", id, a),
				}
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM cids WHERE id = ?", id); err != nil {
			return fmt.Errorf("gc: delete id %d: %w", id, err)
		}
	}
	return nil
}

// deleteOrphaned removes up to 10000 payloads whose cid no longer exists,
// per pass. A bounded LIMIT keeps each call's write transaction short even
// when a very large backlog has accumulated; callers that need to clear it
// entirely call it repeatedly (StartJanitor does this on a timer).
func deleteOrphaned(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
DELETE FROM blocks
WHERE block_id IN (
    SELECT block_id FROM blocks WHERE block_id NOT IN (SELECT id FROM cids) LIMIT 10000
);
`)
	if err != nil {
		return fmt.Errorf("delete orphaned: %w", err)
	}
	return nil
}
