// Package database provides SQLite connectivity for Gray Logic Occupancy.
//
// The database holds the automation history log only. Facility state is
// held in memory by the automation engine and is never restored from here.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Forward-only schema migrations read from an fs.FS
//   - A single-writer connection pool suited to SQLite
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.History.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named VERSION_description.up.sql, for example
// 20261019_090000_automation_events.up.sql, and are applied in version
// order, each in its own transaction.
package database
