// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/YusufAkyuz/IoT-Project/lib/clock"
	"github.com/YusufAkyuz/IoT-Project/lib/store"
	"github.com/YusufAkyuz/IoT-Project/lib/telemetry"
)

// tsFormat matches the wire timestamp layout for rate-window queries.
const tsFormat = "2006-01-02T15:04:05Z"

// rateWindow is the lookback for the ingest-rate figure on the summary.
const rateWindow = 10 * time.Second

// server is the HTTP layer over the telemetry store.
type server struct {
	store  *store.Store
	clock  clock.Clock
	logger *slog.Logger
	mux    *http.ServeMux
}

func newServer(s *store.Store, clk clock.Clock, logger *slog.Logger) *server {
	srv := &server{
		store:  s,
		clock:  clk,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	srv.mux.HandleFunc("GET /{$}", srv.handleIndex)
	srv.mux.HandleFunc("GET /api/summary", srv.handleSummary)
	srv.mux.HandleFunc("GET /api/recent", srv.handleRecent)
	srv.mux.HandleFunc("GET /api/top-devices", srv.handleTopDevices)
	return srv
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// summaryResponse is the JSON shape of /api/summary.
type summaryResponse struct {
	Total          int64   `json:"total"`
	Anomalies      int64   `json:"anomalies"`
	AnomalyPercent float64 `json:"anomaly_percent"`
	LastTS         string  `json:"last_ts,omitempty"`
	RateCount      int64   `json:"rate_count"`
	RateWindowSecs float64 `json:"rate_window_seconds"`
	DupTimestamps  int64   `json:"duplicate_timestamps"`
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := r.URL.Query().Get("device")

	total, err := s.store.Count(ctx, store.CountFilter{DeviceID: deviceID})
	if err != nil {
		s.fail(w, err)
		return
	}
	anomalies, err := s.store.Count(ctx, store.CountFilter{DeviceID: deviceID, AnomalyOnly: true})
	if err != nil {
		s.fail(w, err)
		return
	}

	resp := summaryResponse{
		Total:          total,
		Anomalies:      anomalies,
		RateWindowSecs: rateWindow.Seconds(),
	}
	if total > 0 {
		resp.AnomalyPercent = 100 * float64(anomalies) / float64(total)
	}

	rows, err := s.store.Recent(ctx, store.RecentFilter{DeviceID: deviceID, Limit: 1})
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(rows) > 0 {
		resp.LastTS = rows[0].TS
	}

	since := s.clock.Now().UTC().Add(-rateWindow).Format(tsFormat)
	if resp.RateCount, err = s.store.CountSince(ctx, deviceID, since); err != nil {
		s.fail(w, err)
		return
	}
	if resp.DupTimestamps, err = s.store.DuplicateTimestamps(ctx, deviceID); err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, resp)
}

// recentRow is the JSON shape of one /api/recent element.
type recentRow struct {
	TS        string  `json:"ts"`
	DeviceID  string  `json:"device_id"`
	ACHP      float64 `json:"achp"`
	PHR       float64 `json:"phr"`
	AWWGV     float64 `json:"awwgv"`
	PDMRG     float64 `json:"pdmrg"`
	IsAnomaly bool    `json:"is_anomaly"`
}

func (s *server) handleRecent(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := store.RecentFilter{
		DeviceID:    query.Get("device"),
		AnomalyOnly: query.Get("anomalies") == "1",
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	rows, err := s.store.Recent(r.Context(), filter)
	if err != nil {
		s.fail(w, err)
		return
	}

	out := make([]recentRow, len(rows))
	for i, row := range rows {
		out[i] = toRecentRow(row)
	}
	s.writeJSON(w, out)
}

func toRecentRow(r telemetry.Reading) recentRow {
	return recentRow{
		TS:        r.TS,
		DeviceID:  r.DeviceID,
		ACHP:      r.Metrics.ACHP,
		PHR:       r.Metrics.PHR,
		AWWGV:     r.Metrics.AWWGV,
		PDMRG:     r.Metrics.PDMRG,
		IsAnomaly: r.IsAnomaly,
	}
}

func (s *server) handleTopDevices(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	devices, err := s.store.TopDevices(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if devices == nil {
		devices = []store.DeviceAnomalies{}
	}
	s.writeJSON(w, devices)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="2">
<title>Greenhouse Dashboard</title>
<style>
body { font-family: monospace; margin: 2em; }
table { border-collapse: collapse; margin-top: 1em; }
td, th { border: 1px solid #999; padding: 0.3em 0.8em; text-align: right; }
th { background: #eee; }
td.ts { text-align: left; }
tr.anomaly { color: #b00; font-weight: bold; }
</style>
</head>
<body>
<h1>Greenhouse Telemetry</h1>
<p>
rows: {{.Total}} &middot;
anomalies: {{.Anomalies}} ({{printf "%.1f" .AnomalyPercent}}%) &middot;
last ts: {{if .LastTS}}{{.LastTS}}{{else}}&mdash;{{end}}
</p>
<table>
<tr><th>ts (UTC)</th><th>device</th><th>ACHP</th><th>PHR</th><th>AWWGV</th><th>PDMRG</th><th>anom</th></tr>
{{range .Rows}}
<tr{{if .IsAnomaly}} class="anomaly"{{end}}>
<td class="ts">{{.TS}}</td><td>{{.DeviceID}}</td>
<td>{{printf "%.3f" .ACHP}}</td><td>{{printf "%.3f" .PHR}}</td>
<td>{{printf "%.3f" .AWWGV}}</td><td>{{printf "%.3f" .PDMRG}}</td>
<td>{{if .IsAnomaly}}1{{else}}0{{end}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

// indexData feeds the HTML template.
type indexData struct {
	Total          int64
	Anomalies      int64
	AnomalyPercent float64
	LastTS         string
	Rows           []recentRow
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := s.store.Count(ctx, store.CountFilter{})
	if err != nil {
		s.fail(w, err)
		return
	}
	anomalies, err := s.store.Count(ctx, store.CountFilter{AnomalyOnly: true})
	if err != nil {
		s.fail(w, err)
		return
	}
	rows, err := s.store.Recent(ctx, store.RecentFilter{Limit: 25})
	if err != nil {
		s.fail(w, err)
		return
	}

	data := indexData{
		Total:     total,
		Anomalies: anomalies,
		Rows:      make([]recentRow, len(rows)),
	}
	if total > 0 {
		data.AnomalyPercent = 100 * float64(anomalies) / float64(total)
	}
	for i, row := range rows {
		data.Rows[i] = toRecentRow(row)
	}
	if len(rows) > 0 {
		data.LastTS = rows[0].TS
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("rendering index", "error", err)
	}
}

func (s *server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("query failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
