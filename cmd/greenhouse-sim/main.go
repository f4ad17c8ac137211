// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// greenhouse-sim replays a greenhouse CSV dataset over MQTT, one JSON
// payload per row, standing in for real sensors. Rows with unparseable
// metrics are skipped at load time so the edge processor only receives
// well-formed payloads.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/pflag"

	"github.com/YusufAkyuz/IoT-Project/lib/clock"
	"github.com/YusufAkyuz/IoT-Project/lib/config"
	"github.com/YusufAkyuz/IoT-Project/lib/process"
	"github.com/YusufAkyuz/IoT-Project/lib/simulate"
	"github.com/YusufAkyuz/IoT-Project/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		brokerHost  string
		brokerPort  int
		topic       string
		deviceID    string
		csvPath     string
		interval    time.Duration
		maxRows     int
		loop        bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("greenhouse-sim", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config (default: $GREENHOUSE_CONFIG or built-in defaults)")
	flagSet.StringVar(&brokerHost, "broker-host", "", "override broker host")
	flagSet.IntVar(&brokerPort, "broker-port", 0, "override broker port")
	flagSet.StringVar(&topic, "topic", "", "override telemetry topic")
	flagSet.StringVar(&deviceID, "device-id", "gh_01", "device id to publish in payloads")
	flagSet.StringVar(&csvPath, "csv", "data/greenhouse.csv", "CSV dataset path")
	flagSet.DurationVar(&interval, "interval", time.Second, "delay between publishes")
	flagSet.IntVar(&maxRows, "max-rows", 30000, "how many rows to publish")
	flagSet.BoolVar(&loop, "loop", false, "loop the CSV when max-rows exceeds its length")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("greenhouse-sim")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if brokerHost != "" {
		cfg.Broker.Host = brokerHost
	}
	if brokerPort != 0 {
		cfg.Broker.Port = brokerPort
	}
	if topic != "" {
		cfg.Broker.Topic = topic
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dataset, err := simulate.LoadDataset(csvPath)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded",
		"csv", csvPath,
		"rows", len(dataset.Rows),
		"skipped", dataset.Skipped,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker.URL()).
		SetClientID(deviceID + "-sim")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.Broker.URL(), token.Error())
	}
	defer client.Disconnect(250)

	logger.Info("publishing",
		"broker", cfg.Broker.URL(),
		"topic", cfg.Broker.Topic,
		"device_id", deviceID,
		"interval", interval,
		"max_rows", maxRows,
	)

	clk := clock.Real()
	sent := 0
	idx := 0
	for sent < maxRows {
		if idx >= len(dataset.Rows) {
			if !loop {
				break
			}
			idx = 0
		}
		row := dataset.Rows[idx]
		idx++

		payload, err := row.Payload(deviceID, clk.Now())
		if err != nil {
			return err
		}
		if token := client.Publish(cfg.Broker.Topic, 0, false, payload); token.Wait() && token.Error() != nil {
			return fmt.Errorf("publishing: %w", token.Error())
		}
		sent++

		if sent%1000 == 0 {
			logger.Info("progress", "sent", sent, "max_rows", maxRows)
		}

		select {
		case <-ctx.Done():
			logger.Info("interrupted", "sent", sent)
			return nil
		case <-clk.After(interval):
		}
	}

	logger.Info("done", "sent", sent)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
