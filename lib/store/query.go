// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/YusufAkyuz/IoT-Project/lib/telemetry"
)

// CountFilter narrows Count. Zero-valued fields are not applied.
type CountFilter struct {
	DeviceID    string // Exact match on device_id.
	AnomalyOnly bool   // Count anomaly rows only.
}

// Count returns the number of stored readings matching the filter.
func (s *Store) Count(ctx context.Context, filter CountFilter) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	defer s.pool.Put(conn)

	var conditions []string
	var args []any
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.AnomalyOnly {
		conditions = append(conditions, "is_anomaly = 1")
	}

	query := "SELECT COUNT(*) FROM telemetry"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int64
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return count, nil
}

// MetricStats holds min/avg/max aggregates for one metric.
type MetricStats struct {
	Min float64
	Avg float64
	Max float64
}

// Summary holds per-metric aggregates over a row set.
type Summary struct {
	ACHP  MetricStats
	PHR   MetricStats
	AWWGV MetricStats
	PDMRG MetricStats
}

// SummaryFilter narrows MetricSummary. Zero-valued fields are not
// applied.
type SummaryFilter struct {
	DeviceID    string // Exact match on device_id.
	AnomalyOnly bool   // Aggregate over anomaly rows only.
}

// MetricSummary returns min/avg/max for each metric over the matching
// rows, or nil when no rows match (SQL aggregates over an empty set
// are NULL, not zero — callers must not confuse the two).
func (s *Store) MetricSummary(ctx context.Context, filter SummaryFilter) (*Summary, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: metric summary: %w", err)
	}
	defer s.pool.Put(conn)

	var conditions []string
	var args []any
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.AnomalyOnly {
		conditions = append(conditions, "is_anomaly = 1")
	}

	query := `SELECT
		MIN(achp), AVG(achp), MAX(achp),
		MIN(phr), AVG(phr), MAX(phr),
		MIN(awwgv), AVG(awwgv), MAX(awwgv),
		MIN(pdmrg), AVG(pdmrg), MAX(pdmrg)
		FROM telemetry`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var summary *Summary
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if stmt.ColumnIsNull(0) {
				// No matching rows.
				return nil
			}
			summary = &Summary{
				ACHP:  scanStats(stmt, 0),
				PHR:   scanStats(stmt, 3),
				AWWGV: scanStats(stmt, 6),
				PDMRG: scanStats(stmt, 9),
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: metric summary: %w", err)
	}
	return summary, nil
}

// scanStats reads a (min, avg, max) column triplet starting at base.
func scanStats(stmt *sqlite.Stmt, base int) MetricStats {
	return MetricStats{
		Min: stmt.ColumnFloat(base),
		Avg: stmt.ColumnFloat(base + 1),
		Max: stmt.ColumnFloat(base + 2),
	}
}

// DeviceAnomalies is one row of the top-devices ranking.
type DeviceAnomalies struct {
	DeviceID  string
	Anomalies int64
	Total     int64
}

// TopDevices returns up to limit devices ranked by anomaly count
// descending, with total row count as the tie-break. Limit defaults
// to 10 if zero or negative.
func (s *Store) TopDevices(ctx context.Context, limit int) ([]DeviceAnomalies, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: top devices: %w", err)
	}
	defer s.pool.Put(conn)

	if limit <= 0 {
		limit = 10
	}

	var devices []DeviceAnomalies
	err = sqlitex.Execute(conn,
		`SELECT device_id,
			SUM(CASE WHEN is_anomaly = 1 THEN 1 ELSE 0 END) AS anomaly_cnt,
			COUNT(*) AS total_cnt
		 FROM telemetry
		 GROUP BY device_id
		 ORDER BY anomaly_cnt DESC, total_cnt DESC
		 LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				devices = append(devices, DeviceAnomalies{
					DeviceID:  stmt.ColumnText(0),
					Anomalies: stmt.ColumnInt64(1),
					Total:     stmt.ColumnInt64(2),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: top devices: %w", err)
	}
	return devices, nil
}

// RecentFilter narrows Recent. Zero-valued fields are not applied.
type RecentFilter struct {
	DeviceID    string // Exact match on device_id.
	AnomalyOnly bool   // Return anomaly rows only.
	Limit       int    // Maximum rows (default 25).
}

// Recent returns the most recent readings ordered newest first by
// (ts DESC, rowid DESC) — the rowid tie-break preserves append order
// among rows sharing a timestamp.
func (s *Store) Recent(ctx context.Context, filter RecentFilter) ([]telemetry.Reading, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer s.pool.Put(conn)

	limit := filter.Limit
	if limit <= 0 {
		limit = 25
	}

	var conditions []string
	var args []any
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.AnomalyOnly {
		conditions = append(conditions, "is_anomaly = 1")
	}

	query := "SELECT ts, device_id, achp, phr, awwgv, pdmrg, is_anomaly FROM telemetry"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY ts DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	var readings []telemetry.Reading
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			readings = append(readings, scanReading(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	return readings, nil
}

// scanReading maps a full telemetry row to a Reading.
// Columns: ts(0), device_id(1), achp(2), phr(3), awwgv(4), pdmrg(5),
// is_anomaly(6).
func scanReading(stmt *sqlite.Stmt) telemetry.Reading {
	return telemetry.Reading{
		TS:       stmt.ColumnText(0),
		DeviceID: stmt.ColumnText(1),
		Metrics: telemetry.MetricSet{
			ACHP:  stmt.ColumnFloat(2),
			PHR:   stmt.ColumnFloat(3),
			AWWGV: stmt.ColumnFloat(4),
			PDMRG: stmt.ColumnFloat(5),
		},
		IsAnomaly: stmt.ColumnInt64(6) == 1,
	}
}

// AnomalySpan returns the earliest and latest anomaly timestamps,
// optionally restricted to one device. ok is false when no anomalies
// match.
func (s *Store) AnomalySpan(ctx context.Context, deviceID string) (first, last string, ok bool, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", "", false, fmt.Errorf("store: anomaly span: %w", err)
	}
	defer s.pool.Put(conn)

	query := "SELECT MIN(ts), MAX(ts) FROM telemetry WHERE is_anomaly = 1"
	var args []any
	if deviceID != "" {
		query += " AND device_id = ?"
		args = append(args, deviceID)
	}

	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if stmt.ColumnIsNull(0) {
				return nil
			}
			first = stmt.ColumnText(0)
			last = stmt.ColumnText(1)
			ok = true
			return nil
		},
	})
	if err != nil {
		return "", "", false, fmt.Errorf("store: anomaly span: %w", err)
	}
	return first, last, ok, nil
}

// CountSince returns the number of readings with ts >= since,
// optionally restricted to one device. The comparison is lexical,
// which matches ISO-8601 timestamp text. Used by dashboards for
// ingest-rate windows.
func (s *Store) CountSince(ctx context.Context, deviceID, since string) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: count since: %w", err)
	}
	defer s.pool.Put(conn)

	query := "SELECT COUNT(*) FROM telemetry WHERE ts >= ?"
	args := []any{since}
	if deviceID != "" {
		query += " AND device_id = ?"
		args = append(args, deviceID)
	}

	var count int64
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("store: count since: %w", err)
	}
	return count, nil
}

// DuplicateTimestamps returns the number of surplus rows sharing a
// timestamp (a timestamp appearing n times contributes n-1),
// optionally restricted to one device. Duplicates are measured, never
// deduplicated — multiple sensors may legitimately report in the same
// second.
func (s *Store) DuplicateTimestamps(ctx context.Context, deviceID string) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: duplicate timestamps: %w", err)
	}
	defer s.pool.Put(conn)

	// Grouping includes device_id so two devices legitimately
	// reporting the same second never count as duplicates of each
	// other.
	inner := "SELECT device_id, ts, COUNT(*) AS c FROM telemetry"
	var args []any
	if deviceID != "" {
		inner += " WHERE device_id = ?"
		args = append(args, deviceID)
	}
	inner += " GROUP BY device_id, ts HAVING c > 1"

	query := "SELECT COALESCE(SUM(c - 1), 0) FROM (" + inner + ")"

	var count int64
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("store: duplicate timestamps: %w", err)
	}
	return count, nil
}
