// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for
// testability.
//
// Production code accepts a Clock parameter instead of calling
// time.Now, time.After, time.NewTicker, or time.Sleep directly.
// [Real] provides the standard library behavior; [Fake] provides a
// deterministic clock that advances only when Advance is called.
//
// The ingestion controller uses its Clock for reconnect backoff, and
// the dashboards use theirs for lag and rate-window computation, so
// tests can pin "now" to a fixed instant and fire timers without
// sleeping.
package clock
