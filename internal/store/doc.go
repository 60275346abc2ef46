// Package store provides SQL storage for serialized inventory units and
// loyalty customers.
//
// Three dialects share one Store: SQLite (the embedded default), MySQL and
// PostgreSQL. Unit status changes are conditional updates
//
//	UPDATE inventory_units SET status = ? WHERE id_key = ? AND status = ?
//
// so the database decides which of two concurrent reservations wins. A
// batch commit runs every update in one transaction and rolls back on the
// first conflict.
//
// Unit identifiers are matched case-insensitively through id_key, the
// trimmed lower-case form of the id; the original spelling is kept in id.
//
// # SQLite configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - one open connection, SQLite has a single writer
package store
