package sqlite

import (
	"context"
	"testing"
)

// testEnv wraps an in-memory Store with automatic cleanup, mirroring the
// shape of newTestEnv/newTestStore helpers.
type testEnv struct {
	t     *testing.T
	Store *Store
	Ctx   context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store, err := Memory(ctx)
	if err != nil {
		t.Fatalf("Memory() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close() failed: %v", err)
		}
	})
	return &testEnv{t: t, Store: store, Ctx: ctx}
}

func (e *testEnv) mustAddBlock(cid CID, data []byte, links []CID) {
	e.t.Helper()
	if _, err := e.Store.AddBlock(e.Ctx, cid, data, links, nil); err != nil {
		e.t.Fatalf("AddBlock(%q) failed: %v", cid, err)
	}
}

func (e *testEnv) mustAlias(name string, cid CID) {
	e.t.Helper()
	if err := e.Store.Alias(e.Ctx, []byte(name), cid); err != nil {
		e.t.Fatalf("Alias(%q) failed: %v", name, err)
	}
}

// S1: adding a single block with no links is reflected in count and size.
func TestAddBlockNoLinks(t *testing.T) {
	e := newTestEnv(t)
	e.mustAddBlock(CID("A"), []byte("hello"), nil)

	count, err := e.Store.GetBlockCount(e.Ctx)
	if err != nil {
		t.Fatalf("GetBlockCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("GetBlockCount = %d, want 1", count)
	}

	size, err := e.Store.GetBlockSize(e.Ctx)
	if err != nil {
		t.Fatalf("GetBlockSize failed: %v", err)
	}
	if size != 5 {
		t.Fatalf("GetBlockSize = %d, want 5", size)
	}
}

// S2: adding the same block twice is idempotent and still returns true.
func TestAddBlockIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ok1, err := e.Store.AddBlock(e.Ctx, CID("A"), []byte("hello"), nil, nil)
	if err != nil || !ok1 {
		t.Fatalf("first AddBlock: ok=%v err=%v", ok1, err)
	}
	ok2, err := e.Store.AddBlock(e.Ctx, CID("A"), []byte("hello"), nil, nil)
	if err != nil || !ok2 {
		t.Fatalf("second AddBlock: ok=%v err=%v", ok2, err)
	}

	count, err := e.Store.GetBlockCount(e.Ctx)
	if err != nil {
		t.Fatalf("GetBlockCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("GetBlockCount = %d, want 1 after duplicate add", count)
	}
}

// S3: a block's descendants include itself and everything it links to,
// transitively.
func TestGetDescendants(t *testing.T) {
	e := newTestEnv(t)
	e.mustAddBlock(CID("leaf"), []byte("leaf"), nil)
	e.mustAddBlock(CID("mid"), []byte("mid"), []CID{CID("leaf")})
	e.mustAddBlock(CID("root"), []byte("root"), []CID{CID("mid")})

	got, err := e.Store.GetDescendants(e.Ctx, CID("root"))
	if err != nil {
		t.Fatalf("GetDescendants failed: %v", err)
	}
	want := map[string]bool{"root": true, "mid": true, "leaf": true}
	if len(got) != len(want) {
		t.Fatalf("GetDescendants = %v, want 3 entries", got)
	}
	for _, c := range got {
		if !want[string(c)] {
			t.Fatalf("unexpected descendant %q", c)
		}
	}
}

// S4: missing blocks surfaces cids reachable from a root whose payload
// hasn't arrived, including a root never seen before.
func TestGetMissingBlocks(t *testing.T) {
	e := newTestEnv(t)
	e.mustAddBlock(CID("root"), []byte("root"), []CID{CID("missing")})

	got, err := e.Store.GetMissingBlocks(e.Ctx, CID("root"))
	if err != nil {
		t.Fatalf("GetMissingBlocks failed: %v", err)
	}
	if len(got) != 1 || string(got[0]) != "missing" {
		t.Fatalf("GetMissingBlocks = %v, want [missing]", got)
	}

	// Safe to call for a cid never seen before.
	got, err = e.Store.GetMissingBlocks(e.Ctx, CID("never-seen"))
	if err != nil {
		t.Fatalf("GetMissingBlocks(never-seen) failed: %v", err)
	}
	if len(got) != 1 || string(got[0]) != "never-seen" {
		t.Fatalf("GetMissingBlocks(never-seen) = %v, want [never-seen]", got)
	}
}

// S5: GC removes unreferenced blocks but keeps anything reachable from an
// alias.
func TestGCRemovesUnaliased(t *testing.T) {
	e := newTestEnv(t)
	e.mustAddBlock(CID("kept"), []byte("kept"), nil)
	e.mustAlias("root", CID("kept"))
	e.mustAddBlock(CID("garbage"), []byte("garbage"), nil)

	if err := e.Store.GC(e.Ctx, 0, 0); err != nil {
		t.Fatalf("GC failed: %v", err)
	}
	if err := e.Store.DeleteOrphaned(e.Ctx); err != nil {
		t.Fatalf("DeleteOrphaned failed: %v", err)
	}

	has, err := e.Store.HasBlock(e.Ctx, CID("kept"))
	if err != nil || !has {
		t.Fatalf("HasBlock(kept) = %v, %v, want true, nil", has, err)
	}
	has, err = e.Store.HasBlock(e.Ctx, CID("garbage"))
	if err != nil || has {
		t.Fatalf("HasBlock(garbage) = %v, %v, want false, nil", has, err)
	}
}

// S6: a temp alias protects a block from GC until it is released.
func TestTempAliasProtectsUntilReleased(t *testing.T) {
	e := newTestEnv(t)
	pin, err := e.Store.CreateTempAlias(e.Ctx)
	if err != nil {
		t.Fatalf("CreateTempAlias failed: %v", err)
	}
	if _, err := e.Store.AddBlock(e.Ctx, CID("scratch"), []byte("wip"), nil, pin); err != nil {
		t.Fatalf("AddBlock with pin failed: %v", err)
	}

	if err := e.Store.GC(e.Ctx, 0, 0); err != nil {
		t.Fatalf("GC failed: %v", err)
	}
	has, err := e.Store.HasBlock(e.Ctx, CID("scratch"))
	if err != nil || !has {
		t.Fatalf("HasBlock(scratch) while pinned = %v, %v, want true, nil", has, err)
	}

	pin.Release(e.Ctx)
	if err := e.Store.GC(e.Ctx, 0, 0); err != nil {
		t.Fatalf("GC after release failed: %v", err)
	}
	if err := e.Store.DeleteOrphaned(e.Ctx); err != nil {
		t.Fatalf("DeleteOrphaned after release failed: %v", err)
	}
	has, err = e.Store.HasBlock(e.Ctx, CID("scratch"))
	if err != nil || has {
		t.Fatalf("HasBlock(scratch) after release = %v, %v, want false, nil", has, err)
	}
}

// The first temp alias id on a fresh store is 2, a quirk preserved rather
// than normalized to 1.
func TestTempAliasIDStartsAtTwo(t *testing.T) {
	e := newTestEnv(t)
	pin, err := e.Store.CreateTempAlias(e.Ctx)
	if err != nil {
		t.Fatalf("CreateTempAlias failed: %v", err)
	}
	if pin.ID() != 2 {
		t.Fatalf("first temp alias id = %d, want 2", pin.ID())
	}
}

func TestAliasNilRemoves(t *testing.T) {
	e := newTestEnv(t)
	e.mustAddBlock(CID("root"), []byte("root"), nil)
	e.mustAlias("name", CID("root"))

	if err := e.Store.Alias(e.Ctx, []byte("name"), nil); err != nil {
		t.Fatalf("Alias(nil) failed: %v", err)
	}

	if err := e.Store.GC(e.Ctx, 0, 0); err != nil {
		t.Fatalf("GC failed: %v", err)
	}
	has, err := e.Store.HasBlock(e.Ctx, CID("root"))
	if err != nil || has {
		t.Fatalf("HasBlock(root) after unalias+GC = %v, %v, want false, nil", has, err)
	}
}

func TestCountOrphanedBeforeSweep(t *testing.T) {
	e := newTestEnv(t)
	e.mustAddBlock(CID("garbage"), []byte("garbage"), nil)

	if err := e.Store.GC(e.Ctx, 0, 0); err != nil {
		t.Fatalf("GC failed: %v", err)
	}
	// GC's cid deletion cascades to the payload, so nothing is orphaned.
	n, err := e.Store.CountOrphaned(e.Ctx)
	if err != nil {
		t.Fatalf("CountOrphaned failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("CountOrphaned = %d, want 0", n)
	}

	if err := e.Store.DeleteOrphaned(e.Ctx); err != nil {
		t.Fatalf("DeleteOrphaned failed: %v", err)
	}
	n, err = e.Store.CountOrphaned(e.Ctx)
	if err != nil {
		t.Fatalf("CountOrphaned after sweep failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("CountOrphaned after sweep = %d, want 0", n)
	}
}

func TestGetCIDsIncludesUnstoredLinks(t *testing.T) {
	e := newTestEnv(t)
	e.mustAddBlock(CID("root"), []byte("root"), []CID{CID("unfetched")})

	cids, err := e.Store.GetCIDs(e.Ctx)
	if err != nil {
		t.Fatalf("GetCIDs failed: %v", err)
	}
	if len(cids) != 2 {
		t.Fatalf("GetCIDs = %v, want 2 entries", cids)
	}

	has, err := e.Store.HasCID(e.Ctx, CID("unfetched"))
	if err != nil || !has {
		t.Fatalf("HasCID(unfetched) = %v, %v, want true, nil", has, err)
	}
	hasBlock, err := e.Store.HasBlock(e.Ctx, CID("unfetched"))
	if err != nil || hasBlock {
		t.Fatalf("HasBlock(unfetched) = %v, %v, want false, nil", hasBlock, err)
	}
}
