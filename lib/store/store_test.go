// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/YusufAkyuz/IoT-Project/lib/telemetry"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStoreAt(t, filepath.Join(t.TempDir(), "telemetry_test.db"))
}

func openTestStoreAt(t *testing.T, path string) *Store {
	t.Helper()

	s, err := Open(Config{
		Path:     path,
		PoolSize: 2,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("store.Close: %v", err)
		}
	})
	return s
}

func testReading(ts, device string, achp float64, anomaly bool) telemetry.Reading {
	return telemetry.Reading{
		TS:       ts,
		DeviceID: device,
		Metrics: telemetry.MetricSet{
			ACHP:  achp,
			PHR:   3.0,
			AWWGV: 0.5,
			PDMRG: 10,
		},
		IsAnomaly: anomaly,
	}
}

func TestAppendAndRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	reading := telemetry.Reading{
		TS:       "2025-01-01T00:00:00Z",
		DeviceID: "gh_01",
		Metrics: telemetry.MetricSet{
			ACHP:  51.2,
			PHR:   3.0,
			AWWGV: 0.5,
			PDMRG: 10,
		},
		IsAnomaly: true,
	}
	if err := s.Append(ctx, reading); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rows, err := s.Recent(ctx, RecentFilter{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}

	got := rows[0]
	if got.TS != reading.TS {
		t.Errorf("TS = %q, want %q", got.TS, reading.TS)
	}
	if got.DeviceID != reading.DeviceID {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, reading.DeviceID)
	}
	if got.Metrics != reading.Metrics {
		t.Errorf("Metrics = %+v, want %+v", got.Metrics, reading.Metrics)
	}
	if !got.IsAnomaly {
		t.Error("IsAnomaly = false, want true")
	}
}

func TestAppendRejectsEmptyIdentity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var persistErr *PersistenceError

	err := s.Append(ctx, testReading("", "gh_01", 1, false))
	if !errors.As(err, &persistErr) {
		t.Errorf("Append with empty ts: error = %v, want *PersistenceError", err)
	}

	err = s.Append(ctx, testReading("2025-01-01T00:00:00Z", "", 1, false))
	if !errors.As(err, &persistErr) {
		t.Errorf("Append with empty device_id: error = %v, want *PersistenceError", err)
	}

	count, err := s.Count(ctx, CountFilter{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count after rejected appends = %d, want 0", count)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idempotent_test.db")
	ctx := context.Background()

	first := openTestStoreAt(t, path)
	if err := first.Append(ctx, testReading("2025-01-01T00:00:00Z", "gh_01", 1, false)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen the same file: no schema error, no data loss.
	second, err := Open(Config{Path: path, PoolSize: 2})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	count, err := second.Count(ctx, CountFilter{})
	if err != nil {
		t.Fatalf("Count after reopen: %v", err)
	}
	if count != 1 {
		t.Errorf("count after reopen = %d, want 1", count)
	}
}

func TestOpenCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "telemetry.db")
	s := openTestStoreAt(t, path)

	if err := s.Append(context.Background(), testReading("2025-01-01T00:00:00Z", "gh_01", 1, false)); err != nil {
		t.Errorf("Append into freshly created directory tree: %v", err)
	}
}

func TestInsertionOrderPreservedForDuplicateTimestamps(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Two readings share a timestamp; the rowid tie-break must keep
	// them retrievable in append order (newest-first means R2 first).
	r1 := testReading("2025-01-01T00:00:00Z", "gh_01", 1.0, false)
	r2 := testReading("2025-01-01T00:00:00Z", "gh_01", 2.0, false)

	if err := s.Append(ctx, r1); err != nil {
		t.Fatalf("Append r1: %v", err)
	}
	if err := s.Append(ctx, r2); err != nil {
		t.Fatalf("Append r2: %v", err)
	}

	rows, err := s.Recent(ctx, RecentFilter{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Metrics.ACHP != 2.0 {
		t.Errorf("newest row ACHP = %v, want 2.0 (last appended)", rows[0].Metrics.ACHP)
	}
	if rows[1].Metrics.ACHP != 1.0 {
		t.Errorf("older row ACHP = %v, want 1.0 (first appended)", rows[1].Metrics.ACHP)
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 50; i++ {
			if err := s.Append(ctx, testReading("2025-01-01T00:00:00Z", "gh_01", float64(i), false)); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	// Readers run concurrently with the writer; WAL mode must let
	// both proceed without errors.
	for i := 0; i < 20; i++ {
		if _, err := s.Count(ctx, CountFilter{}); err != nil {
			t.Fatalf("Count during writes: %v", err)
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("writer: %v", err)
	}

	count, err := s.Count(ctx, CountFilter{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 50 {
		t.Errorf("final count = %d, want 50", count)
	}
}
