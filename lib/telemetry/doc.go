// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry defines the greenhouse telemetry data model and
// the validation boundary between the MQTT wire and the rest of the
// system.
//
// A [Reading] is one sensor sample: a verbatim timestamp string, a
// device identifier, and four metric values (ACHP, PHR, AWWGV, PDMRG).
// Readings enter the system as JSON payloads published by the
// simulator (or real edge devices):
//
//	{"ts": "2025-01-01T00:00:00Z", "device_id": "gh_01",
//	 "metrics": {"ACHP": 49.9, "PHR": 1, "AWWGV": 1, "PDMRG": 1}}
//
// [ParseReading] converts a raw payload into a Reading or rejects it
// with a [RejectError] describing exactly what was wrong: payload not
// parseable, a required field missing or empty, or a metric value
// absent or not a finite number. The whole reading is rejected if any
// single metric fails — there are no partial-metric records.
//
// Rejection is an ordinary per-message outcome, not an exceptional
// condition: callers inspect the error with [errors.As], log one line,
// and move on to the next message.
package telemetry
