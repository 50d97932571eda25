// Package store provides SQLite-backed durable storage for the stockgate
// ledgers.
//
// Three tables live here:
//   - inventory: per-item stock counts, never negative
//   - reservations: append-style audit trail of reservation lines
//   - rate_limits: per-key token buckets
//
// # Correctness model
//
// No in-process locking protects these tables - multiple service instances
// may share one database. Every guarantee comes from the store itself:
//
//   - Conditional updates: stock decrements and status transitions carry
//     their precondition in the WHERE clause and report rows affected, so a
//     lost race affects zero rows instead of corrupting state.
//   - Transactions: multi-row units (a reservation's decrements plus its
//     line inserts) run inside BeginTx/Commit and roll back as a whole.
//   - Serialized writes: the pool is pinned to a single connection, so a
//     read-modify-write on one key never interleaves with another on the
//     same key.
//
// Ledger operations are package functions over the DBTX interface rather
// than Store methods, so the reservation coordinator can compose them
// inside one transaction while single-statement callers pass the *sql.DB
// directly.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
