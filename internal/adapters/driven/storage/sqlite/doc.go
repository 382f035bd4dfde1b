// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentStore: Document and section persistence
//   - RulesetStore: Ruleset and rule conflict persistence
//   - JobStore: Rewrite job and section rewrite persistence
//   - ReviewStore: Review decision persistence
//   - FindingStore: Risk finding persistence
//   - AuditStore: Append-only audit chain persistence
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.fillwise/data/fillwise.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
