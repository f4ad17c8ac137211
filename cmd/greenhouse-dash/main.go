// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// greenhouse-dash is the live terminal dashboard. It polls the
// telemetry database on a fixed interval and renders KPIs, recent
// rows, window stats, and recent anomalies. Read-only: it can run
// alongside the edge processor and any number of other readers.
package main

import (
	"errors"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/YusufAkyuz/IoT-Project/lib/clock"
	"github.com/YusufAkyuz/IoT-Project/lib/config"
	"github.com/YusufAkyuz/IoT-Project/lib/dashui"
	"github.com/YusufAkyuz/IoT-Project/lib/process"
	"github.com/YusufAkyuz/IoT-Project/lib/store"
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
		dbPath      string
		deviceID    string
		lastN       int
		windowN     int
		anomaliesN  int
		rateWindow  time.Duration
		refresh     time.Duration
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("greenhouse-dash", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config (default: $GREENHOUSE_CONFIG or built-in defaults)")
	flagSet.StringVar(&dbPath, "db", "", "override database path")
	flagSet.StringVar(&deviceID, "device-id", "", "scope panes to one device (default: all)")
	flagSet.IntVar(&lastN, "last", 25, "rows in the recent-rows pane")
	flagSet.IntVar(&windowN, "window", 200, "rows in the stats window")
	flagSet.IntVar(&anomaliesN, "anomalies", 15, "rows in the anomaly pane")
	flagSet.DurationVar(&rateWindow, "rate-window", 10*time.Second, "ingest-rate lookback")
	flagSet.DurationVar(&refresh, "refresh", time.Second, "poll interval")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("greenhouse-dash")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}

	// The dashboard owns the terminal; keep store logging out of it.
	telemetryStore, err := store.Open(store.Config{
		Path:   cfg.Storage.Path,
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		return err
	}
	defer telemetryStore.Close()

	model := dashui.New(telemetryStore, clock.Real(), dashui.Options{
		DeviceID:   deviceID,
		LastN:      lastN,
		WindowN:    windowN,
		AnomaliesN: anomaliesN,
		RateWindow: rateWindow,
		Refresh:    refresh,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
