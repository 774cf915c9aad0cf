// Package database provides the SQLite database that persists the bridge's
// state tree between restarts.
//
// This package manages:
//   - The connection, with WAL mode and a busy timeout
//   - Schema migrations registered from an embedded filesystem
//   - Transaction helpers used by the migrations and the store persister
//
// The schema itself lives in the top-level migrations package, which
// registers its files with RegisterMigrations from an init function. Binaries
// and tests that need the schema blank-import that package.
//
// Usage:
//
//	db, err := database.OpenAndMigrate(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
// All queries use parameterised statements. The database file is created
// with mode 0600.
package database
