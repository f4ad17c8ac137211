// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/YusufAkyuz/IoT-Project/lib/classify"
	"github.com/YusufAkyuz/IoT-Project/lib/telemetry"
)

// memoryAppender collects appended readings; failNext makes the next
// Append return an error.
type memoryAppender struct {
	readings []telemetry.Reading
	failNext bool
}

func (m *memoryAppender) Append(_ context.Context, reading telemetry.Reading) error {
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("disk full")
	}
	m.readings = append(m.readings, reading)
	return nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.DiscardHandler)
}

func testController(t *testing.T, store Appender) *Controller {
	t.Helper()
	c, err := New(Config{
		BrokerURL:  "tcp://localhost:1883",
		ClientID:   "test-edge",
		Topic:      "greenhouse/telemetry",
		Store:      store,
		Classifier: classify.Threshold{ACHP: classify.DefaultACHPThreshold},
		Logger:     testLogger(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewValidatesConfig(t *testing.T) {
	store := &memoryAppender{}
	classifier := classify.Threshold{ACHP: 50}
	base := Config{
		BrokerURL:  "tcp://localhost:1883",
		ClientID:   "edge",
		Topic:      "greenhouse/telemetry",
		Store:      store,
		Classifier: classifier,
	}

	if _, err := New(base); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing broker", func(c *Config) { c.BrokerURL = "" }},
		{"missing client id", func(c *Config) { c.ClientID = "" }},
		{"missing topic", func(c *Config) { c.Topic = "" }},
		{"missing store", func(c *Config) { c.Store = nil }},
		{"missing classifier", func(c *Config) { c.Classifier = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestHandleMessageAcceptsValidReading(t *testing.T) {
	store := &memoryAppender{}
	c := testController(t, store)
	ctx := context.Background()

	payload := []byte(`{"ts":"2025-01-01T00:00:00Z","device_id":"gh_01",` +
		`"metrics":{"ACHP":49.9,"PHR":3.0,"AWWGV":0.5,"PDMRG":10}}`)
	c.handleMessage(ctx, payload)

	if len(store.readings) != 1 {
		t.Fatalf("got %d stored readings, want 1", len(store.readings))
	}
	got := store.readings[0]
	if got.DeviceID != "gh_01" {
		t.Errorf("DeviceID = %q, want gh_01", got.DeviceID)
	}
	if got.IsAnomaly {
		t.Error("ACHP=49.9 classified anomalous, want normal")
	}

	stats := c.Stats()
	if stats.Received != 1 || stats.Accepted != 1 {
		t.Errorf("stats = %+v, want received=1 accepted=1", stats)
	}
	if stats.Rejected != 0 || stats.Anomalies != 0 || stats.PersistFailures != 0 {
		t.Errorf("stats = %+v, want zero rejected/anomalies/failures", stats)
	}
}

func TestHandleMessageClassifiesAnomaly(t *testing.T) {
	store := &memoryAppender{}
	c := testController(t, store)

	payload := []byte(`{"ts":"2025-01-01T00:00:00Z","device_id":"gh_01",` +
		`"metrics":{"ACHP":51.2,"PHR":3.0,"AWWGV":0.5,"PDMRG":10}}`)
	c.handleMessage(context.Background(), payload)

	if len(store.readings) != 1 {
		t.Fatalf("got %d stored readings, want 1", len(store.readings))
	}
	if !store.readings[0].IsAnomaly {
		t.Error("ACHP=51.2 not classified anomalous")
	}
	if stats := c.Stats(); stats.Anomalies != 1 {
		t.Errorf("anomalies = %d, want 1", stats.Anomalies)
	}
}

func TestHandleMessageRejectsBadPayloads(t *testing.T) {
	store := &memoryAppender{}
	c := testController(t, store)
	ctx := context.Background()

	payloads := [][]byte{
		[]byte(`not json`),
		[]byte(`{"device_id":"gh_01","metrics":{"ACHP":1,"PHR":1,"AWWGV":1,"PDMRG":1}}`),
		[]byte(`{"ts":"2025-01-01T00:00:00Z","device_id":"gh_01",` +
			`"metrics":{"ACHP":"hot","PHR":1,"AWWGV":1,"PDMRG":1}}`),
	}
	for _, p := range payloads {
		c.handleMessage(ctx, p)
	}

	if len(store.readings) != 0 {
		t.Errorf("%d readings stored from invalid payloads, want 0", len(store.readings))
	}
	stats := c.Stats()
	if stats.Received != 3 || stats.Rejected != 3 {
		t.Errorf("stats = %+v, want received=3 rejected=3", stats)
	}
}

func TestHandleMessageSurvivesPersistFailure(t *testing.T) {
	store := &memoryAppender{failNext: true}
	c := testController(t, store)
	ctx := context.Background()

	payload := []byte(`{"ts":"2025-01-01T00:00:00Z","device_id":"gh_01",` +
		`"metrics":{"ACHP":1,"PHR":1,"AWWGV":1,"PDMRG":1}}`)

	// First message hits the storage failure, second goes through.
	c.handleMessage(ctx, payload)
	c.handleMessage(ctx, payload)

	if len(store.readings) != 1 {
		t.Fatalf("got %d stored readings, want 1", len(store.readings))
	}
	stats := c.Stats()
	if stats.PersistFailures != 1 {
		t.Errorf("persist failures = %d, want 1", stats.PersistFailures)
	}
	if stats.Accepted != 1 {
		t.Errorf("accepted = %d, want 1", stats.Accepted)
	}
	if stats.Received != 2 {
		t.Errorf("received = %d, want 2", stats.Received)
	}
}

func TestRunReturnsOnCancelledContext(t *testing.T) {
	c := testController(t, &memoryAppender{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No broker is listening; the cancelled context must win over the
	// reconnect loop.
	if err := c.Run(ctx); err != context.Canceled {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}
