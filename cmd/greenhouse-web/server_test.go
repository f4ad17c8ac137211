// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/YusufAkyuz/IoT-Project/lib/clock"
	"github.com/YusufAkyuz/IoT-Project/lib/store"
	"github.com/YusufAkyuz/IoT-Project/lib/telemetry"
)

func testServer(t *testing.T) *server {
	t.Helper()

	telemetryStore, err := store.Open(store.Config{
		Path: filepath.Join(t.TempDir(), "web_test.db"),
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { telemetryStore.Close() })

	ctx := context.Background()
	rows := []telemetry.Reading{
		{TS: "2025-01-01T00:00:00Z", DeviceID: "gh_01", Metrics: telemetry.MetricSet{ACHP: 40, PHR: 2, AWWGV: 0.1, PDMRG: 5}},
		{TS: "2025-01-01T00:00:10Z", DeviceID: "gh_01", Metrics: telemetry.MetricSet{ACHP: 55, PHR: 3, AWWGV: 0.2, PDMRG: 6}, IsAnomaly: true},
		{TS: "2025-01-01T00:00:20Z", DeviceID: "gh_02", Metrics: telemetry.MetricSet{ACHP: 45, PHR: 4, AWWGV: 0.3, PDMRG: 7}},
	}
	for _, r := range rows {
		if err := telemetryStore.Append(ctx, r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	clk := clock.Fake(time.Date(2025, 1, 1, 0, 0, 25, 0, time.UTC))
	return newServer(telemetryStore, clk, slog.New(slog.DiscardHandler))
}

func TestSummaryEndpoint(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	if resp.Anomalies != 1 {
		t.Errorf("anomalies = %d, want 1", resp.Anomalies)
	}
	if resp.LastTS != "2025-01-01T00:00:20Z" {
		t.Errorf("last_ts = %q, want 2025-01-01T00:00:20Z", resp.LastTS)
	}
	// Rate window is 10s ending at 00:00:25: rows at :20 and :10 (>=
	// 00:00:15 excludes :10) — only :20 qualifies.
	if resp.RateCount != 1 {
		t.Errorf("rate_count = %d, want 1", resp.RateCount)
	}
}

func TestSummaryEndpointDeviceFilter(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/summary?device=gh_01", nil))

	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
	if resp.Anomalies != 1 {
		t.Errorf("anomalies = %d, want 1", resp.Anomalies)
	}
}

func TestRecentEndpoint(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/recent?limit=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var rows []recentRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].TS != "2025-01-01T00:00:20Z" {
		t.Errorf("rows[0].TS = %q, want newest first", rows[0].TS)
	}
}

func TestRecentEndpointAnomaliesOnly(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/recent?anomalies=1", nil))

	var rows []recentRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if !rows[0].IsAnomaly {
		t.Error("returned row is not an anomaly")
	}
}

func TestRecentEndpointRejectsBadLimit(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/recent?limit=banana", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTopDevicesEndpoint(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/top-devices", nil))

	var devices []store.DeviceAnomalies
	if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	if devices[0].DeviceID != "gh_01" {
		t.Errorf("top device = %q, want gh_01 (1 anomaly)", devices[0].DeviceID)
	}
}

func TestIndexPage(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Greenhouse Telemetry",
		"2025-01-01T00:00:20Z",
		"gh_01",
		"gh_02",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index page missing %q", want)
		}
	}
}
