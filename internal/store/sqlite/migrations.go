package sqlite

import (
	"database/sql"
	"fmt"
)

// migration is a single idempotent schema step.
type migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList is the ordered list of all migrations to run. Today there
// is exactly one: the on-disk contract has not needed to grow since. New
// migrations are appended, never edited in place, once any database exists
// that predates them.
var migrationsList = []migration{
	{"initial_schema", migrateInitialSchema},
}

func migrateInitialSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// runMigrations applies every migration inside an EXCLUSIVE transaction,
// serializing schema setup across processes that open the same new database
// file at the same time. Foreign keys are disabled for the duration since
// PRAGMA foreign_keys cannot be toggled inside a transaction and some future
// migration may need to touch referenced tables.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys for migrations: %w", err)
	}
	defer func() { _, _ = db.Exec("PRAGMA foreign_keys = ON") }()

	if _, err := db.Exec("BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("acquire exclusive lock for migrations: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = db.Exec("ROLLBACK")
		}
	}()

	for _, m := range migrationsList {
		if err := m.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}

	if _, err := db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	committed = true

	return nil
}
