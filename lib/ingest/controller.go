// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/YusufAkyuz/IoT-Project/lib/classify"
	"github.com/YusufAkyuz/IoT-Project/lib/clock"
	"github.com/YusufAkyuz/IoT-Project/lib/telemetry"
)

// Reconnect backoff bounds. The delay starts at reconnectBaseDelay,
// doubles per failed attempt, and never exceeds reconnectMaxDelay. A
// successful connect resets it.
const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// connectTimeout bounds a single broker connect attempt.
const connectTimeout = 10 * time.Second

// Appender is the slice of the store the controller writes through.
type Appender interface {
	Append(ctx context.Context, reading telemetry.Reading) error
}

// Config holds the parameters for a Controller.
type Config struct {
	// BrokerURL is the broker address, e.g. "tcp://localhost:1883".
	// Required.
	BrokerURL string

	// ClientID identifies this subscriber to the broker. Required.
	ClientID string

	// Topic is the telemetry topic to subscribe to. Required.
	Topic string

	// Store receives every accepted reading. Required.
	Store Appender

	// Classifier marks readings anomalous before they are persisted.
	// Required.
	Classifier classify.Classifier

	// Clock drives reconnect backoff. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives one line per processed message plus connection
	// lifecycle events. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Stats is a snapshot of the ingestion counters.
type Stats struct {
	Received        uint64 // Messages delivered by the broker.
	Accepted        uint64 // Readings parsed, classified, and persisted.
	Rejected        uint64 // Payloads dropped by validation.
	PersistFailures uint64 // Valid readings lost to storage errors.
	Anomalies       uint64 // Accepted readings classified anomalous.
}

// Controller runs the subscribe side of the pipeline.
type Controller struct {
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger

	// handleMu serializes message processing so each reading's
	// parse-classify-append sequence completes before the next begins.
	handleMu sync.Mutex

	received        atomic.Uint64
	accepted        atomic.Uint64
	rejected        atomic.Uint64
	persistFailures atomic.Uint64
	anomalies       atomic.Uint64
}

// New validates cfg and returns a Controller. The broker is not
// contacted until [Controller.Run].
func New(cfg Config) (*Controller, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("ingest: BrokerURL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("ingest: ClientID is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("ingest: Topic is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("ingest: Store is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("ingest: Classifier is required")
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Controller{
		cfg:    cfg,
		clock:  clk,
		logger: logger,
	}, nil
}

// Stats returns a snapshot of the ingestion counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Received:        c.received.Load(),
		Accepted:        c.accepted.Load(),
		Rejected:        c.rejected.Load(),
		PersistFailures: c.persistFailures.Load(),
		Anomalies:       c.anomalies.Load(),
	}
}

// Run connects to the broker, subscribes, and processes messages until
// ctx is cancelled. Lost connections are retried with bounded
// exponential backoff; Run only returns on cancellation.
func (c *Controller) Run(ctx context.Context) error {
	delay := reconnectBaseDelay

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lost := make(chan error, 1)

		client, err := c.connect(ctx, lost)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("broker connect failed",
				"broker", c.cfg.BrokerURL,
				"retry_in", delay,
				"error", err,
			)
			if !c.sleep(ctx, delay) {
				return ctx.Err()
			}
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}
		delay = reconnectBaseDelay

		c.logger.Info("subscribed",
			"broker", c.cfg.BrokerURL,
			"topic", c.cfg.Topic,
			"client_id", c.cfg.ClientID,
		)

		select {
		case <-ctx.Done():
			client.Disconnect(250)
			c.logger.Info("disconnected", "broker", c.cfg.BrokerURL)
			return ctx.Err()
		case err := <-lost:
			client.Disconnect(250)
			c.logger.Warn("broker connection lost",
				"broker", c.cfg.BrokerURL,
				"error", err,
			)
		}
	}
}

// connect dials the broker and subscribes to the telemetry topic. A
// connection-loss notification is delivered on lost at most once.
func (c *Controller) connect(ctx context.Context, lost chan<- error) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(ctx, msg.Payload())
	}
	if token := client.Subscribe(c.cfg.Topic, 0, handler); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("subscribing to %s: %w", c.cfg.Topic, token.Error())
	}

	return client, nil
}

// handleMessage runs one payload through parse, classify, and append.
// Every outcome is counted and logged; errors never propagate to the
// MQTT client.
func (c *Controller) handleMessage(ctx context.Context, payload []byte) {
	c.handleMu.Lock()
	defer c.handleMu.Unlock()

	c.received.Add(1)

	reading, err := telemetry.ParseReading(payload)
	if err != nil {
		c.rejected.Add(1)
		var reject *telemetry.RejectError
		if errors.As(err, &reject) {
			c.logger.Warn("reading rejected",
				"reason", reject.Reason,
				"field", reject.Field,
			)
		} else {
			c.logger.Warn("reading rejected", "error", err)
		}
		return
	}

	reading.IsAnomaly = c.cfg.Classifier.Classify(reading.Metrics)

	if err := c.cfg.Store.Append(ctx, reading); err != nil {
		c.persistFailures.Add(1)
		c.logger.Error("persist failed",
			"device_id", reading.DeviceID,
			"ts", reading.TS,
			"error", err,
		)
		return
	}

	c.accepted.Add(1)
	if reading.IsAnomaly {
		c.anomalies.Add(1)
	}

	c.logger.Info("reading stored",
		"device_id", reading.DeviceID,
		"ts", reading.TS,
		"achp", reading.Metrics.ACHP,
		"anomaly", reading.IsAnomaly,
	)
}

// sleep blocks for d using the injected clock. Returns false if ctx
// was cancelled first.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-c.clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
