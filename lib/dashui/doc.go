// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package dashui is the live terminal dashboard over the telemetry
// database.
//
// The model polls the store on a fixed refresh interval and renders
// four panes: live KPIs (row counts, anomaly share, ingest lag and
// rate, duplicate timestamps), the most recent rows, min/mean/max
// stats over a sliding window, and the latest anomalies. Queries run
// read-only against the same SQLite file the edge processor writes,
// so the dashboard can start before, during, or after ingestion.
//
// A poll that fails (for example while the database file does not
// exist yet) keeps the previous snapshot on screen and shows the
// error in the status line; the dashboard never exits on a transient
// read failure.
package dashui
