// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is the durable, append-only telemetry log.
//
// One SQLite table holds every persisted reading:
//
//	ts TEXT, device_id TEXT, achp REAL, phr REAL, awwgv REAL,
//	pdmrg REAL, is_anomaly INTEGER
//
// The implicit rowid serves as the insertion sequence and breaks ties
// between rows sharing a timestamp. Rows are never updated or deleted;
// the edge processor is the only appender, and any number of read-side
// tools (dashboards, reports, plots) query concurrently through the
// same query surface.
//
// Write path: [Store.Append] inserts one row atomically. Storage
// failures surface as a [*PersistenceError] so the ingestion
// controller can apply its log-and-continue policy — one failed write
// must never halt ingestion of the next reading.
//
// Read path: the query methods cover everything the read-side tools
// need — row counts, per-metric min/avg/max, top devices by anomaly
// count, recent rows in (ts DESC, rowid DESC) order, first/last
// anomaly timestamps, rate windows, and duplicate-timestamp counts.
// Timestamps are compared lexically, which is correct because
// producers publish ISO-8601 text.
//
// Schema creation is idempotent and runs through the pool's OnConnect
// hook, so opening the same database twice (or from several read-side
// processes) is always safe.
package store
