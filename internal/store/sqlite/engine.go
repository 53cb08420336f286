// Package sqlite implements the content-addressed block store engine on top
// of a pure-Go SQLite binding: id interning, block storage, alias
// management, reachability queries and garbage collection, all wrapped by a
// Store facade that owns transaction discipline and observability.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // embeds the WASM SQLite binary, no cgo required
	"github.com/tetratelabs/wazero"

	"github.com/blockkeep/blockstore/internal/config"
)

func init() {
	// Avoid paying wazero's JIT compilation cost on every process start.
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(wazero.NewCompilationCache())
}

// Options configure a Store at open time.
type Options struct {
	MinBlocks   int
	MaxDuration time.Duration
	Logger      *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithGCDefaults sets the minBlocks/maxDuration pair GC and StartJanitor
// fall back to when called with minBlocks <= 0 or maxDuration <= 0.
func WithGCDefaults(minBlocks int, maxDuration time.Duration) Option {
	return func(o *Options) {
		o.MinBlocks = minBlocks
		o.MaxDuration = maxDuration
	}
}

// WithLogger overrides the default slog.Logger used for the tri-level
// timed-operation log records.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func defaultOptions() Options {
	return Options{
		MinBlocks:   10_000,
		MaxDuration: time.Second,
		Logger:      slog.Default(),
	}
}

// Store is the block store facade: one SQLite database, one process-owned
// file lock (for on-disk stores), one logger, one instance id.
type Store struct {
	db         *sql.DB
	lock       *flock.Flock
	instanceID uuid.UUID
	logger     *slog.Logger
	opts       Options

	janitorCancel context.CancelFunc
}

// Open opens or creates a block store at path. Only one process may hold a
// given path open at a time; a second Open on the same path fails fast with
// an InitError rather than blocking or corrupting the database.
//
// Tunables (GC thresholds, the log sink, synchronous/page_size pragmas) are
// loaded from a blockstore.toml next to path, if one exists, layered under
// BLOCKSTORE_* environment variables, via internal/config. Options passed
// here take precedence over whatever that resolves to.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, wrapInitErr("open", fmt.Errorf("create database directory: %w", err))
		}
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, wrapInitErr("open", fmt.Errorf("load config: %w", err))
	}

	o := Options{
		MinBlocks:   cfg.GCMinBlocks,
		MaxDuration: cfg.GCMaxDuration,
		Logger:      NewLogger(cfg.LogPath, cfg.LogMaxSizeMB),
	}
	for _, opt := range opts {
		opt(&o)
	}

	lockPath := path + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, wrapInitErr("open", fmt.Errorf("acquire process lock: %w", err))
	}
	if !locked {
		return nil, wrapInitErr("open", fmt.Errorf("database %q is already owned by another process", path))
	}

	connStr := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(%s)&_pragma=page_size(%d)&_txlock=immediate",
		path, cfg.Synchronous, cfg.PageSize,
	)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		_ = lock.Unlock()
		return nil, wrapInitErr("open", fmt.Errorf("open database: %w", err))
	}
	db.SetMaxOpenConns(1)

	s, err := newStore(ctx, db, lock, o)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return s, nil
}

// Memory opens a private in-memory block store. No file lock is taken since
// nothing else can see the database.
func Memory(ctx context.Context, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	connStr := fmt.Sprintf(
		"file:%s?mode=memory&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=page_size(4096)",
		uuid.NewString(),
	)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, wrapInitErr("memory", fmt.Errorf("open database: %w", err))
	}
	db.SetMaxOpenConns(1)

	return newStore(ctx, db, nil, o)
}

func newStore(ctx context.Context, db *sql.DB, lock *flock.Flock, o Options) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrapInitErr("open", fmt.Errorf("ping database: %w", err))
	}

	// journal_mode can't be set via the _pragma DSN parameter reliably for
	// WAL across every backend, so it's set explicitly once per open.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, wrapInitErr("open", fmt.Errorf("enable WAL mode: %w", err))
	}

	var fkEnabled int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		_ = db.Close()
		return nil, wrapInitErr("open", fmt.Errorf("check foreign_keys pragma: %w", err))
	}
	if fkEnabled != 1 {
		_ = db.Close()
		return nil, wrapInitErr("open", fmt.Errorf("foreign keys could not be enabled"))
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, wrapInitErr("open", err)
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()

	return &Store{
		db:         db,
		lock:       lock,
		instanceID: id,
		logger:     logger.With("store_instance", id.String()),
		opts:       o,
	}, nil
}

// Close stops any running janitor, closes the database and releases the
// process-ownership lock, if one was taken.
func (s *Store) Close() error {
	if s.janitorCancel != nil {
		s.janitorCancel()
	}
	err := s.db.Close()
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	if err != nil {
		return wrapStorageErr("close", err)
	}
	return nil
}
