// Package store provides SQLite-backed durable storage for query runs.
//
// The store is an append-only log with:
//   - Programs: facts and rules, content-addressed by ir.ProgramHash
//   - Runs: one record per evaluated query, successful or not
//   - Answers: the sorted answer tuples of each successful run
//
// Runs are ordered by seq, an autoincrement column, then by id. Every read
// that returns more than one row uses ORDER BY seq ASC, id ASC COLLATE BINARY
// so listings are identical across processes. FindRuns narrows a listing by
// status, error code, program or query; filter values are always bound as
// parameters.
//
// Programs, queries and tuples are stored in the canonical encoding of
// package ir, so a recorded run can be re-evaluated and its answer hash
// compared byte for byte.
//
// The schema version is kept in PRAGMA user_version. Open applies the
// migrations a database is missing and refuses one written by a newer
// schema.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
