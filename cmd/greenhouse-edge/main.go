// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// greenhouse-edge is the edge processor: it subscribes to the telemetry
// topic, validates and classifies each published reading, and appends
// the result to the SQLite telemetry log. It runs until interrupted and
// survives broker outages by reconnecting with backoff.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/YusufAkyuz/IoT-Project/lib/classify"
	"github.com/YusufAkyuz/IoT-Project/lib/config"
	"github.com/YusufAkyuz/IoT-Project/lib/ingest"
	"github.com/YusufAkyuz/IoT-Project/lib/process"
	"github.com/YusufAkyuz/IoT-Project/lib/store"
	"github.com/YusufAkyuz/IoT-Project/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// cliFlags holds the parsed command line. Numeric overrides go through
// set.Changed so that explicit zeroes (a zero ACHP threshold marks
// every positive reading anomalous) are distinguishable from "unset".
type cliFlags struct {
	set *pflag.FlagSet

	configPath  string
	brokerHost  string
	brokerPort  int
	topic       string
	clientID    string
	dbPath      string
	threshold   float64
	showVersion bool
}

func newFlags() *cliFlags {
	f := &cliFlags{
		set: pflag.NewFlagSet("greenhouse-edge", pflag.ContinueOnError),
	}
	f.set.StringVar(&f.configPath, "config", "", "path to YAML config (default: $GREENHOUSE_CONFIG or built-in defaults)")
	f.set.StringVar(&f.brokerHost, "broker-host", "", "override broker host")
	f.set.IntVar(&f.brokerPort, "broker-port", 0, "override broker port")
	f.set.StringVar(&f.topic, "topic", "", "override telemetry topic")
	f.set.StringVar(&f.clientID, "client-id", "", "override MQTT client id")
	f.set.StringVar(&f.dbPath, "db", "", "override database path")
	f.set.Float64Var(&f.threshold, "achp-threshold", 0, "override ACHP anomaly threshold")
	f.set.BoolVar(&f.showVersion, "version", false, "print version information and exit")
	return f
}

// apply lays the flags that were actually given over cfg.
func (f *cliFlags) apply(cfg *config.Config) {
	if f.brokerHost != "" {
		cfg.Broker.Host = f.brokerHost
	}
	if f.set.Changed("broker-port") {
		cfg.Broker.Port = f.brokerPort
	}
	if f.topic != "" {
		cfg.Broker.Topic = f.topic
	}
	if f.clientID != "" {
		cfg.Broker.ClientID = f.clientID
	}
	if f.dbPath != "" {
		cfg.Storage.Path = f.dbPath
	}
	if f.set.Changed("achp-threshold") {
		cfg.Anomaly.ACHPThreshold = f.threshold
	}
}

func run() error {
	flags := newFlags()
	if err := flags.set.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if flags.showVersion {
		version.Print("greenhouse-edge")
		return nil
	}

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryStore, err := store.Open(store.Config{
		Path:     cfg.Storage.Path,
		PoolSize: cfg.Storage.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer telemetryStore.Close()

	controller, err := ingest.New(ingest.Config{
		BrokerURL:  cfg.Broker.URL(),
		ClientID:   cfg.Broker.ClientID,
		Topic:      cfg.Broker.Topic,
		Store:      telemetryStore,
		Classifier: classify.Threshold{ACHP: cfg.Anomaly.ACHPThreshold},
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	logger.Info("edge processor starting",
		"broker", cfg.Broker.URL(),
		"topic", cfg.Broker.Topic,
		"db", cfg.Storage.Path,
		"achp_threshold", cfg.Anomaly.ACHPThreshold,
	)

	err = controller.Run(ctx)

	stats := controller.Stats()
	logger.Info("edge processor stopped",
		"received", stats.Received,
		"accepted", stats.Accepted,
		"rejected", stats.Rejected,
		"persist_failures", stats.PersistFailures,
		"anomalies", stats.Anomalies,
	)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadConfig resolves the config source: explicit flag, then the
// GREENHOUSE_CONFIG environment variable, then built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
