// Package store executes compiled statements against SQLite or Postgres.
//
// A Store is the statement gateway of the query builder: it receives SQL
// with "?" placeholders plus positional parameters, rebinds placeholders
// for the driver, and returns rows as column-keyed maps or the number of
// rows affected.
//
// # Statement Cache
//
// Prepared statements are cached by their SQL text. A statement whose
// column set differs from a previous one has different text and therefore
// a different prepared handle; no handle is ever re-bound with a
// mismatched parameter count.
//
// # Database Configuration
//
// SQLite databases use:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection
//
// Schema scripts are applied with Migrate, which tracks the applied version
// in PRAGMA user_version on SQLite.
package store
