// Package blockstore provides an embedded, content-addressed block store
// for DAGs of immutable blocks. Blocks are identified by opaque content ids
// (CIDs), protected from garbage collection by named aliases or
// process-scoped temp aliases, and reclaimed by an incremental
// mark-and-sweep collector.
package blockstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/blockkeep/blockstore/internal/store/sqlite"
)

// CID is an opaque content identifier, at most 64 bytes, never parsed or
// interpreted by the store.
type CID = sqlite.CID

// Block bundles a cid with its payload and the cids it links to.
type Block = sqlite.Block

// Store is an open block store.
type Store = sqlite.Store

// TempAlias is a process-scoped GC root returned by Store.CreateTempAlias.
// Callers must defer its Release to guarantee the reservation does not
// outlive its purpose.
type TempAlias = sqlite.TempAlias

// Option configures a Store at Open/Memory time.
type Option = sqlite.Option

// WithGCDefaults sets the minBlocks/maxDuration pair GC and StartJanitor
// fall back to when called with minBlocks <= 0 or maxDuration <= 0.
func WithGCDefaults(minBlocks int, maxDuration time.Duration) Option {
	return sqlite.WithGCDefaults(minBlocks, maxDuration)
}

// WithLogger overrides the logger a Store reports through.
func WithLogger(l *slog.Logger) Option {
	return sqlite.WithLogger(l)
}

// Open opens or creates a block store at path. Only one process may own a
// given path at a time.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	return sqlite.Open(ctx, path, opts...)
}

// Memory opens a private in-memory block store.
func Memory(ctx context.Context, opts ...Option) (*Store, error) {
	return sqlite.Memory(ctx, opts...)
}
