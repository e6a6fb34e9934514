// Package migration applies versioned schema changes to the SQLite database.
//
// Migrations are SQL files named {version}_{description}.sql. The files
// shipped with the binary are embedded from the sql directory; tests may
// supply any fs.FS. Applied versions are tracked in the schema_migrations
// table so each file runs once, inside its own transaction.
//
// Example usage:
//
//	db, err := migration.Open(migration.DefaultSQLiteConfig("timeline.db"))
//	if err != nil {
//		return err
//	}
//	manager := migration.NewManager(migration.NewSQLiteExecutor(db), migration.Embedded(), logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
