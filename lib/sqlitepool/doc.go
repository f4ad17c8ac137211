// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the project-standard SQLite connection
// pool for the telemetry store.
//
// It wraps zombiezen.com/go/sqlite with defaults tuned for a
// single-writer, many-reader telemetry log: WAL journal mode so the
// dashboards and report tools can read while the edge processor
// appends, NORMAL synchronous for process-crash durability without
// fsync-per-commit overhead, and a busy timeout so readers see a short
// bounded wait instead of SQLITE_BUSY when the writer holds the lock.
//
// Callers [Pool.Take] a connection, perform work, and [Pool.Put] it
// back. Connections are NOT safe for concurrent use — each goroutine
// must hold its own connection for the duration of its work.
//
// The package is intentionally thin: it applies standard pragmas and
// exposes the zombiezen types directly. Services write SQL with
// sqlitex.Execute; there is no query builder.
package sqlitepool
