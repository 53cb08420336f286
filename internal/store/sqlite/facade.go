package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// timed runs f, then logs at debug level if it succeeded within expected,
// at info level if it succeeded but overran expected, or at warn level if
// it failed. This mirrors having one log call per operation rather than
// spamming every call site with its own success/failure logging.
func (s *Store) timed(ctx context.Context, op string, expected time.Duration, f func() error) error {
	t0 := time.Now()
	err := f()
	dt := time.Since(t0)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, op+" failed", "duration_us", dt.Microseconds(), "error", err)
	case dt > expected:
		s.logger.InfoContext(ctx, op+" took longer than expected", "duration_us", dt.Microseconds())
	default:
		s.logger.DebugContext(ctx, op, "duration_us", dt.Microseconds())
	}
	return err
}

// inTxn runs f inside a write transaction: commit on nil, rollback on error
// or panic. On-disk stores begin it as BEGIN IMMEDIATE (Open's DSN sets
// _txlock=immediate) to acquire the write lock up front; in-memory stores
// use the driver's default BEGIN. No nested transactions are ever opened
// from within f.
func (s *Store) inTxn(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStorageErr("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := f(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapStorageErr("commit transaction", err)
	}
	committed = true
	return nil
}

// inROTxn runs f inside a read-only transaction. The transaction is always
// explicitly closed on every path — committed on success, rolled back on
// failure — rather than left open for the connection to reuse, even though
// a read-only transaction has nothing to roll back.
func (s *Store) inROTxn(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return wrapStorageErr("begin read transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Alias sets or removes a durable named root. Passing a nil cid removes the
// alias.
func (s *Store) Alias(ctx context.Context, name []byte, cid CID) error {
	return s.timed(ctx, "alias", 10*time.Millisecond, func() error {
		return s.inTxn(ctx, func(tx *sql.Tx) error {
			return setAlias(ctx, tx, name, cid)
		})
	})
}

// CreateTempAlias reserves a new process-scoped GC root. Callers must defer
// the returned handle's Release to guarantee the reservation does not
// outlive its purpose.
func (s *Store) CreateTempAlias(ctx context.Context) (*TempAlias, error) {
	var id int64
	err := s.timed(ctx, "create_temp_alias", 10*time.Millisecond, func() error {
		return s.inTxn(ctx, func(tx *sql.Tx) error {
			var err error
			id, err = createTempAlias(ctx, tx)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return &TempAlias{id: id, store: s}, nil
}

// AddBlock interns cid, stores data and links if the block is not already
// present, and optionally pins it under pin for the duration of pin's
// lifetime. It always returns true on success — see the doc comment on
// addBlock for why the bool does not mean "newly inserted".
func (s *Store) AddBlock(ctx context.Context, cid CID, data []byte, links []CID, pin *TempAlias) (bool, error) {
	var ok bool
	err := s.timed(ctx, "add_block", 10*time.Millisecond, func() error {
		return s.inTxn(ctx, func(tx *sql.Tx) error {
			var pinID int64
			hasPin := pin != nil
			if hasPin {
				pinID = pin.id
			}
			var err error
			ok, err = addBlock(ctx, tx, cid, data, links, pinID, hasPin)
			return err
		})
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// AddBlocks adds every block in blocks within a single write transaction:
// either all of them are durable, or none are.
func (s *Store) AddBlocks(ctx context.Context, blocks []Block) error {
	return s.timed(ctx, "add_blocks", 100*time.Millisecond, func() error {
		return s.inTxn(ctx, func(tx *sql.Tx) error {
			for _, b := range blocks {
				if _, err := addBlock(ctx, tx, b.CID, b.Data, b.Links, 0, false); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// GetBlock returns the payload for cid. The second return value is false if
// either the cid or its payload is unknown.
func (s *Store) GetBlock(ctx context.Context, cid CID) ([]byte, bool, error) {
	var data []byte
	var found bool
	err := s.inROTxn(ctx, func(tx *sql.Tx) error {
		var err error
		data, found, err = getBlock(ctx, tx, cid)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return data, found, nil
}

// HasBlock reports whether cid has a stored payload.
func (s *Store) HasBlock(ctx context.Context, cid CID) (bool, error) {
	var ok bool
	err := s.inROTxn(ctx, func(tx *sql.Tx) error {
		var err error
		ok, err = hasBlock(ctx, tx, cid)
		return err
	})
	return ok, err
}

// HasCID reports whether cid has been interned, with or without a payload.
func (s *Store) HasCID(ctx context.Context, cid CID) (bool, error) {
	var ok bool
	err := s.inROTxn(ctx, func(tx *sql.Tx) error {
		var err error
		ok, err = hasCID(ctx, tx, cid)
		return err
	})
	return ok, err
}

// GetDescendants returns cid and every cid transitively linked from it,
// via the refs table alone.
func (s *Store) GetDescendants(ctx context.Context, cid CID) ([]CID, error) {
	var out []CID
	err := s.inROTxn(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = getDescendants(ctx, tx, cid)
		return err
	})
	return out, err
}

// GetMissingBlocks returns cid and every descendant of it for which no
// payload has been stored yet. Safe to call for a cid never seen before:
// cid is interned first, which is why this read runs in a write transaction.
func (s *Store) GetMissingBlocks(ctx context.Context, cid CID) ([]CID, error) {
	var out []CID
	err := s.timed(ctx, "get_missing_blocks", 10*time.Millisecond, func() error {
		return s.inTxn(ctx, func(tx *sql.Tx) error {
			var err error
			out, err = getMissingBlocks(ctx, tx, cid)
			return err
		})
	})
	return out, err
}

// GetCIDs returns every interned cid.
func (s *Store) GetCIDs(ctx context.Context) ([]CID, error) {
	var out []CID
	err := s.inROTxn(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = getCIDs(ctx, tx)
		return err
	})
	return out, err
}

// GetBlockCount returns the number of stored payloads.
func (s *Store) GetBlockCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.inROTxn(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = getBlockCount(ctx, tx)
		return err
	})
	return n, err
}

// GetBlockSize returns the total size in bytes of all stored payloads.
func (s *Store) GetBlockSize(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.inROTxn(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = getBlockSize(ctx, tx)
		return err
	})
	return n, err
}

// CountOrphaned returns the number of payloads whose cid has already been
// deleted but has not yet been swept by DeleteOrphaned.
func (s *Store) CountOrphaned(ctx context.Context) (uint32, error) {
	var n uint32
	err := s.inROTxn(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = countOrphaned(ctx, tx)
		return err
	})
	return n, err
}

// GC runs one mark-and-sweep pass over the id graph, deleting every id that
// is neither aliased nor reachable from an alias. minBlocks and maxDuration
// bound the deletion loop; the mark query itself always runs to completion.
// A minBlocks <= 0 or maxDuration <= 0 falls back to the Store's configured
// GC defaults (see WithGCDefaults and internal/config).
func (s *Store) GC(ctx context.Context, minBlocks int, maxDuration time.Duration) error {
	if minBlocks <= 0 {
		minBlocks = s.opts.MinBlocks
	}
	if maxDuration <= 0 {
		maxDuration = s.opts.MaxDuration
	}
	return s.timed(ctx, "gc", time.Second, func() error {
		return s.inTxn(ctx, func(tx *sql.Tx) error {
			return incrementalGC(ctx, tx, minBlocks, maxDuration)
		})
	})
}

// DeleteOrphaned sweeps up to 10000 orphaned payloads (payloads whose cid
// row no longer exists).
func (s *Store) DeleteOrphaned(ctx context.Context) error {
	return s.timed(ctx, "delete_orphaned", time.Second, func() error {
		return s.inTxn(ctx, func(tx *sql.Tx) error {
			return deleteOrphaned(ctx, tx)
		})
	})
}

// StartJanitor runs GC followed by DeleteOrphaned on every tick of
// interval, until the returned stop function is called or ctx is done.
// It is not started automatically; embedders opt in. minBlocks and
// maxDuration are passed straight through to GC, so the same <= 0 fallback
// to the Store's configured GC defaults applies here.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration, minBlocks int, maxDuration time.Duration) (stop func()) {
	jctx, cancel := context.WithCancel(ctx)
	s.janitorCancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-jctx.Done():
				return
			case <-ticker.C:
				if err := s.GC(jctx, minBlocks, maxDuration); err != nil {
					s.logger.ErrorContext(jctx, "janitor gc failed", "error", err)
					continue
				}
				if err := s.DeleteOrphaned(jctx); err != nil {
					s.logger.ErrorContext(jctx, "janitor delete_orphaned failed", "error", err)
				}
			}
		}
	}()

	return cancel
}
