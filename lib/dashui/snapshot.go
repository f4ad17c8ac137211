// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

package dashui

import (
	"context"
	"time"

	"github.com/YusufAkyuz/IoT-Project/lib/clock"
	"github.com/YusufAkyuz/IoT-Project/lib/store"
	"github.com/YusufAkyuz/IoT-Project/lib/telemetry"
)

// tsFormat matches the wire timestamp layout; lexical comparison
// against it is how the rate window query works.
const tsFormat = "2006-01-02T15:04:05Z"

// Querier is the slice of the store the dashboard reads through.
type Querier interface {
	Count(ctx context.Context, filter store.CountFilter) (int64, error)
	Recent(ctx context.Context, filter store.RecentFilter) ([]telemetry.Reading, error)
	CountSince(ctx context.Context, deviceID, since string) (int64, error)
	DuplicateTimestamps(ctx context.Context, deviceID string) (int64, error)
}

// Options configures what the dashboard shows.
type Options struct {
	// DeviceID scopes every pane to one device. Empty means all
	// devices.
	DeviceID string

	// LastN is the row count of the recent-rows pane. Default 25.
	LastN int

	// WindowN is the sliding window size for metric stats. Default 200.
	WindowN int

	// AnomaliesN is the row count of the anomaly pane. Default 15.
	AnomaliesN int

	// RateWindow is the lookback for the ingest-rate KPI. Default 10s.
	RateWindow time.Duration

	// Refresh is the poll interval. Default 1s.
	Refresh time.Duration
}

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	if o.LastN <= 0 {
		o.LastN = 25
	}
	if o.WindowN <= 0 {
		o.WindowN = 200
	}
	if o.AnomaliesN <= 0 {
		o.AnomaliesN = 15
	}
	if o.RateWindow <= 0 {
		o.RateWindow = 10 * time.Second
	}
	if o.Refresh <= 0 {
		o.Refresh = time.Second
	}
	return o
}

// Snapshot is one poll of the store, everything a render needs.
type Snapshot struct {
	Total     int64
	Anomalies int64

	// LastTS is the newest stored timestamp, empty when no rows match.
	LastTS string

	// Lag is now minus LastTS. HasLag is false when LastTS is absent
	// or unparseable.
	Lag    time.Duration
	HasLag bool

	// RateCount is the number of rows within the rate window.
	RateCount int64

	// DupTS is the surplus-row count over shared timestamps.
	DupTS int64

	LastRows        []telemetry.Reading
	RecentAnomalies []telemetry.Reading

	// Window holds min/mean/max per metric over the last WindowN rows,
	// in MetricKeys order. Empty when no rows match.
	Window []WindowStats
}

// WindowStats is the sliding-window aggregate for one metric.
type WindowStats struct {
	Metric string
	Last   float64
	Min    float64
	Mean   float64
	Max    float64
}

// AnomalyPercent returns the anomaly share of all rows, 0 when empty.
func (s Snapshot) AnomalyPercent() float64 {
	if s.Total == 0 {
		return 0
	}
	return 100 * float64(s.Anomalies) / float64(s.Total)
}

// fetchSnapshot polls the store once. Partial failures abort the whole
// snapshot; the caller keeps the previous one.
func fetchSnapshot(ctx context.Context, q Querier, clk clock.Clock, opts Options) (Snapshot, error) {
	var snap Snapshot
	var err error

	snap.Total, err = q.Count(ctx, store.CountFilter{DeviceID: opts.DeviceID})
	if err != nil {
		return Snapshot{}, err
	}
	snap.Anomalies, err = q.Count(ctx, store.CountFilter{DeviceID: opts.DeviceID, AnomalyOnly: true})
	if err != nil {
		return Snapshot{}, err
	}

	snap.LastRows, err = q.Recent(ctx, store.RecentFilter{DeviceID: opts.DeviceID, Limit: opts.LastN})
	if err != nil {
		return Snapshot{}, err
	}
	if len(snap.LastRows) > 0 {
		snap.LastTS = snap.LastRows[0].TS
		if last, parseErr := time.Parse(time.RFC3339, snap.LastTS); parseErr == nil {
			snap.Lag = clk.Now().Sub(last)
			snap.HasLag = true
		}
	}

	since := clk.Now().UTC().Add(-opts.RateWindow).Format(tsFormat)
	snap.RateCount, err = q.CountSince(ctx, opts.DeviceID, since)
	if err != nil {
		return Snapshot{}, err
	}

	snap.DupTS, err = q.DuplicateTimestamps(ctx, opts.DeviceID)
	if err != nil {
		return Snapshot{}, err
	}

	snap.RecentAnomalies, err = q.Recent(ctx, store.RecentFilter{
		DeviceID:    opts.DeviceID,
		AnomalyOnly: true,
		Limit:       opts.AnomaliesN,
	})
	if err != nil {
		return Snapshot{}, err
	}

	window, err := q.Recent(ctx, store.RecentFilter{DeviceID: opts.DeviceID, Limit: opts.WindowN})
	if err != nil {
		return Snapshot{}, err
	}
	snap.Window = windowStats(window)

	return snap, nil
}

// windowStats aggregates min/mean/max per metric over the window rows.
// The newest row supplies the "last" column.
func windowStats(rows []telemetry.Reading) []WindowStats {
	if len(rows) == 0 {
		return nil
	}

	stats := make([]WindowStats, len(telemetry.MetricKeys))
	for i, key := range telemetry.MetricKeys {
		stats[i] = WindowStats{Metric: key}
	}

	for rowIdx, row := range rows {
		values := row.Metrics.Values()
		for i, v := range values {
			if rowIdx == 0 {
				stats[i].Last = v
				stats[i].Min = v
				stats[i].Max = v
			} else {
				if v < stats[i].Min {
					stats[i].Min = v
				}
				if v > stats[i].Max {
					stats[i].Max = v
				}
			}
			stats[i].Mean += v
		}
	}

	n := float64(len(rows))
	for i := range stats {
		stats[i].Mean /= n
	}
	return stats
}
