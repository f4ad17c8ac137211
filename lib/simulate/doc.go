// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package simulate replays a greenhouse CSV dataset as telemetry
// payloads.
//
// The CSV header is matched case-insensitively. The four metric
// columns (ACHP, PHR, AWWGV, PDMRG) are required; a timestamp column
// (ts, timestamp, time, datetime, or date) and a label column (class,
// label, y, or target) are optional. Rows whose metrics fail to parse
// are skipped rather than published, so the edge processor only ever
// sees well-formed payloads from the simulator.
package simulate
