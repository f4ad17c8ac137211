// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest subscribes to the telemetry topic and drives each
// published payload through the full pipeline: parse, validate,
// classify, persist.
//
// The [Controller] owns the MQTT session. [Controller.Run] connects,
// subscribes, and then blocks until the context is cancelled,
// reconnecting with bounded exponential backoff whenever the broker
// connection drops. Messages received while disconnected are simply
// missed; the pipeline has no replay.
//
// Per-message processing is indivisible: a reading is either rejected
// (with a logged reason) or classified and appended as one row.
// Failures never stop the subscription — a malformed payload or a
// storage error costs exactly one reading.
package ingest
