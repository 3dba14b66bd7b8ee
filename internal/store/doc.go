// Package store provides SQLite-backed durable storage for the package index.
//
// The store owns the base schema:
//   - metadata: database id and creation time
//   - ids, versions, channels: interned value tables (one row per string)
//   - manifest: one row per (id, version, channel) referencing interned rows
//
// Relations added by later schema versions (the dependencies relation in
// 1.4) are created by their owning packages through the same connection.
//
// # Schema Versions
//
// The schema version is kept in PRAGMA user_version as major*100 + minor.
// A new file is stamped with the requested version; an existing file keeps
// its own. Callers select version-specific table implementations from
// Store.Version once, at open time.
//
// # Transactions
//
// All multi-statement writes run inside a named Savepoint. Savepoints nest,
// commit explicitly, and roll back when released without a commit:
//
//	sp, err := store.BeginSavepoint(ctx, db, "add_manifest")
//	if err != nil {
//		return err
//	}
//	defer sp.Rollback()
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - One pooled connection: savepoints are per-connection, so every
//     statement must drain its rows before the next one runs
package store
