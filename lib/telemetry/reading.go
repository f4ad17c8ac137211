// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
)

// MetricKeys lists the four required metric names in the order they
// appear on the wire and in the store schema.
var MetricKeys = [4]string{"ACHP", "PHR", "AWWGV", "PDMRG"}

// MetricSet holds the four metric values of a reading. Classifiers
// receive a MetricSet so that alternative anomaly policies can use any
// combination of metrics without changes to the data model.
type MetricSet struct {
	ACHP  float64
	PHR   float64
	AWWGV float64
	PDMRG float64
}

// Values returns the metrics in MetricKeys order.
func (m MetricSet) Values() [4]float64 {
	return [4]float64{m.ACHP, m.PHR, m.AWWGV, m.PDMRG}
}

// Reading is one validated sensor sample. TS is stored verbatim — the
// producer supplies ISO-8601-like text and the store relies on its
// lexical ordering, so no canonicalization happens here.
type Reading struct {
	TS        string
	DeviceID  string
	Metrics   MetricSet
	IsAnomaly bool
}

// RejectReason classifies why a payload was rejected.
type RejectReason uint8

const (
	// RejectMalformedPayload means the payload was not parseable JSON.
	RejectMalformedPayload RejectReason = iota + 1
	// RejectMissingField means ts, device_id, or the metrics mapping
	// was absent or empty.
	RejectMissingField
	// RejectInvalidMetricValue means a required metric was absent,
	// non-numeric, NaN, or infinite.
	RejectInvalidMetricValue
)

// String returns the reason name used in log lines.
func (r RejectReason) String() string {
	switch r {
	case RejectMalformedPayload:
		return "malformed_payload"
	case RejectMissingField:
		return "missing_field"
	case RejectInvalidMetricValue:
		return "invalid_metric_value"
	default:
		return fmt.Sprintf("reject_reason(%d)", uint8(r))
	}
}

// RejectError reports a rejected payload. Field names the offending
// field or metric where applicable.
type RejectError struct {
	Reason RejectReason
	Field  string
	cause  error
}

func (e *RejectError) Error() string {
	switch {
	case e.Field != "" && e.cause != nil:
		return fmt.Sprintf("telemetry: %s: %s: %v", e.Reason, e.Field, e.cause)
	case e.Field != "":
		return fmt.Sprintf("telemetry: %s: %s", e.Reason, e.Field)
	case e.cause != nil:
		return fmt.Sprintf("telemetry: %s: %v", e.Reason, e.cause)
	default:
		return fmt.Sprintf("telemetry: %s", e.Reason)
	}
}

// Unwrap returns the underlying decode error, if any.
func (e *RejectError) Unwrap() error { return e.cause }

// wireReading mirrors the inbound JSON payload. Metrics stays raw so
// that "metrics is not a mapping" and "metric value is not a number"
// produce distinct rejection reasons. Unknown fields (such as the
// simulator's "class" label) are ignored.
type wireReading struct {
	TS       string          `json:"ts"`
	DeviceID string          `json:"device_id"`
	Metrics  json.RawMessage `json:"metrics"`
}

// ParseReading validates a raw payload and returns the Reading it
// describes, with IsAnomaly left unset. On failure the returned error
// is always a *RejectError.
func ParseReading(payload []byte) (Reading, error) {
	var wire wireReading
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Reading{}, &RejectError{Reason: RejectMalformedPayload, cause: err}
	}

	if wire.TS == "" {
		return Reading{}, &RejectError{Reason: RejectMissingField, Field: "ts"}
	}
	if wire.DeviceID == "" {
		return Reading{}, &RejectError{Reason: RejectMissingField, Field: "device_id"}
	}
	if len(wire.Metrics) == 0 || string(wire.Metrics) == "null" {
		return Reading{}, &RejectError{Reason: RejectMissingField, Field: "metrics"}
	}

	var metrics map[string]json.RawMessage
	if err := json.Unmarshal(wire.Metrics, &metrics); err != nil {
		// Present but not a JSON object.
		return Reading{}, &RejectError{Reason: RejectMissingField, Field: "metrics", cause: err}
	}

	var values [4]float64
	for i, key := range MetricKeys {
		value, err := metricValue(metrics, key)
		if err != nil {
			return Reading{}, err
		}
		values[i] = value
	}

	return Reading{
		TS:       wire.TS,
		DeviceID: wire.DeviceID,
		Metrics: MetricSet{
			ACHP:  values[0],
			PHR:   values[1],
			AWWGV: values[2],
			PDMRG: values[3],
		},
	}, nil
}

// metricValue extracts one required metric as a finite float64.
func metricValue(metrics map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := metrics[key]
	if !ok || string(raw) == "null" {
		return 0, &RejectError{Reason: RejectInvalidMetricValue, Field: key}
	}

	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, &RejectError{Reason: RejectInvalidMetricValue, Field: key, cause: err}
	}

	// encoding/json never emits NaN or Inf from a literal, but a
	// reading can still arrive with an out-of-range exponent or come
	// from a constructor other than ParseReading. The finite check is
	// the store's hard invariant, so it lives here at the boundary.
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &RejectError{Reason: RejectInvalidMetricValue, Field: key}
	}

	return value, nil
}
