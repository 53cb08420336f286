package sqlite

// schema is applied by the initial_schema migration on every open (see
// migrations.go); IF NOT EXISTS makes reapplying it a no-op.
// Tables mirror the data model exactly: cids interns every content id ever
// seen, refs is a fixed-width parent/child edge table over those interned
// ids, blocks carries payloads keyed by the same id, and aliases /
// temp_aliases are the two flavors of GC root.
const schema = `
CREATE TABLE IF NOT EXISTS cids (
    id INTEGER PRIMARY KEY,
    cid BLOB UNIQUE
);

CREATE TABLE IF NOT EXISTS refs (
    parent_id INTEGER NOT NULL,
    child_id INTEGER NOT NULL,
    UNIQUE(parent_id, child_id),
    CONSTRAINT fk_parent_id
      FOREIGN KEY (parent_id)
      REFERENCES cids(id)
      ON DELETE CASCADE,
    CONSTRAINT fk_child_id
      FOREIGN KEY (child_id)
      REFERENCES cids(id)
      ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_refs_parent_id ON refs (parent_id);
CREATE INDEX IF NOT EXISTS idx_refs_child_id ON refs (child_id);

CREATE TABLE IF NOT EXISTS blocks (
    block_id INTEGER PRIMARY KEY REFERENCES cids(id) ON DELETE CASCADE,
    block BLOB NOT NULL
);

-- required to keep the ON DELETE CASCADE from refs -> cids -> blocks fast,
-- despite block_id already being the primary key.
CREATE INDEX IF NOT EXISTS idx_blocks_block_id ON blocks (block_id);

CREATE TABLE IF NOT EXISTS aliases (
    name BLOB UNIQUE NOT NULL,
    block_id INTEGER NOT NULL,
    CONSTRAINT fk_block_id
      FOREIGN KEY (block_id)
      REFERENCES cids(id)
      ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_aliases_block_id ON aliases (block_id);

CREATE TABLE IF NOT EXISTS temp_aliases (
    alias INTEGER NOT NULL,
    block_id INTEGER,
    UNIQUE(alias, block_id),
    CONSTRAINT fk_block_id
      FOREIGN KEY (block_id)
      REFERENCES cids(id)
      ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_temp_aliases_block_id ON temp_aliases (block_id);
CREATE INDEX IF NOT EXISTS idx_temp_aliases_alias ON temp_aliases (alias);
`
