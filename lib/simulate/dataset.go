// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

package simulate

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/YusufAkyuz/IoT-Project/lib/telemetry"
)

// tsColumns and classColumns are the recognized optional column names,
// in lookup order.
var (
	tsColumns    = []string{"ts", "timestamp", "time", "datetime", "date"}
	classColumns = []string{"class", "label", "y", "target"}
)

// tsFormat is the timestamp layout published on the wire.
const tsFormat = "2006-01-02T15:04:05Z"

// Row is one publishable dataset row. TS is empty when the CSV had no
// usable timestamp; [Row.Payload] substitutes the publish time.
type Row struct {
	TS      string
	Metrics telemetry.MetricSet
	Class   int
}

// Dataset is a loaded CSV file. Skipped counts data rows dropped for
// unparseable metric values.
type Dataset struct {
	Rows    []Row
	Skipped int
}

// LoadDataset reads and validates a greenhouse CSV file. It fails when
// the file is unreadable, has no header, or is missing any required
// metric column; bad data rows are skipped, not fatal.
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("simulate: reading header of %s: %w", path, err)
	}

	// Header name (lowercased, trimmed) to column index.
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeKey(name)] = i
	}

	var missing []string
	for _, key := range telemetry.MetricKeys {
		if _, ok := columns[normalizeKey(key)]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("simulate: %s is missing required metric columns %v (found %v)",
			path, missing, header)
	}

	dataset := &Dataset{}
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Field count mismatches are per-row problems.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				dataset.Skipped++
				continue
			}
			return nil, fmt.Errorf("simulate: reading %s: %w", path, err)
		}

		row, ok := parseRow(record, columns)
		if !ok {
			dataset.Skipped++
			continue
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	if len(dataset.Rows) == 0 {
		return nil, fmt.Errorf("simulate: %s has no usable data rows", path)
	}
	return dataset, nil
}

// parseRow extracts one Row from a CSV record. ok is false when any
// metric value is absent or non-numeric.
func parseRow(record []string, columns map[string]int) (Row, bool) {
	var values [4]float64
	for i, key := range telemetry.MetricKeys {
		raw, ok := field(record, columns, key)
		if !ok {
			return Row{}, false
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Row{}, false
		}
		values[i] = v
	}

	row := Row{
		Metrics: telemetry.MetricSet{
			ACHP:  values[0],
			PHR:   values[1],
			AWWGV: values[2],
			PDMRG: values[3],
		},
	}

	for _, cand := range tsColumns {
		if raw, ok := field(record, columns, cand); ok {
			row.TS = normalizeTS(raw)
			if row.TS != "" {
				break
			}
		}
	}

	for _, cand := range classColumns {
		if raw, ok := field(record, columns, cand); ok {
			// Labels sometimes arrive as floats ("1.0").
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				row.Class = int(v)
				break
			}
		}
	}

	return row, true
}

// field returns the trimmed value of the named column, or ok=false
// when the column is absent or the cell is empty.
func field(record []string, columns map[string]int, name string) (string, bool) {
	i, ok := columns[normalizeKey(name)]
	if !ok || i >= len(record) {
		return "", false
	}
	v := strings.TrimSpace(record[i])
	if v == "" {
		return "", false
	}
	return v, true
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// normalizeTS coerces a CSV timestamp into the wire format. Values
// already carrying a zone marker pass through verbatim; naive values
// are assumed UTC. Returns "" for anything unparseable, letting the
// caller fall back to the publish time.
func normalizeTS(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.HasSuffix(s, "Z") || strings.Contains(s, "+") {
		return s
	}

	layouts := []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(tsFormat)
		}
	}
	return ""
}

// wirePayload is the published JSON shape. Class rides along for
// offline comparison against the threshold classifier; the edge
// processor ignores it.
type wirePayload struct {
	TS       string             `json:"ts"`
	DeviceID string             `json:"device_id"`
	Metrics  map[string]float64 `json:"metrics"`
	Class    int                `json:"class"`
}

// Payload renders the row as a telemetry message for deviceID. Rows
// without a timestamp get now, formatted as UTC wire text.
func (r Row) Payload(deviceID string, now time.Time) ([]byte, error) {
	ts := r.TS
	if ts == "" {
		ts = now.UTC().Format(tsFormat)
	}

	values := r.Metrics.Values()
	metrics := make(map[string]float64, len(telemetry.MetricKeys))
	for i, key := range telemetry.MetricKeys {
		metrics[key] = values[i]
	}

	data, err := json.Marshal(wirePayload{
		TS:       ts,
		DeviceID: deviceID,
		Metrics:  metrics,
		Class:    r.Class,
	})
	if err != nil {
		return nil, fmt.Errorf("simulate: encoding payload: %w", err)
	}
	return data, nil
}
