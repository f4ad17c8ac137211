// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// greenhouse-report prints a one-shot anomaly summary of the telemetry
// database: row and anomaly counts, the anomaly time span, the top
// devices by anomaly count, and per-metric aggregates for all rows and
// for anomaly rows only.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/YusufAkyuz/IoT-Project/lib/config"
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
		top         int
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("greenhouse-report", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config (default: $GREENHOUSE_CONFIG or built-in defaults)")
	flagSet.StringVar(&dbPath, "db", "", "override database path")
	flagSet.StringVar(&deviceID, "device-id", "", "restrict the report to one device")
	flagSet.IntVar(&top, "top", 10, "devices in the top-anomalies ranking")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("greenhouse-report")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}

	if _, err := os.Stat(cfg.Storage.Path); err != nil {
		return fmt.Errorf("database not found: %s", cfg.Storage.Path)
	}

	telemetryStore, err := store.Open(store.Config{
		Path:   cfg.Storage.Path,
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		return err
	}
	defer telemetryStore.Close()

	ctx := context.Background()

	total, err := telemetryStore.Count(ctx, store.CountFilter{DeviceID: deviceID})
	if err != nil {
		return err
	}
	anomalies, err := telemetryStore.Count(ctx, store.CountFilter{DeviceID: deviceID, AnomalyOnly: true})
	if err != nil {
		return err
	}
	first, last, hasAnomalies, err := telemetryStore.AnomalySpan(ctx, deviceID)
	if err != nil {
		return err
	}
	allSummary, err := telemetryStore.MetricSummary(ctx, store.SummaryFilter{DeviceID: deviceID})
	if err != nil {
		return err
	}
	anomalySummary, err := telemetryStore.MetricSummary(ctx, store.SummaryFilter{DeviceID: deviceID, AnomalyOnly: true})
	if err != nil {
		return err
	}

	ratio := 0.0
	if total > 0 {
		ratio = 100 * float64(anomalies) / float64(total)
	}
	scope := "ALL devices"
	if deviceID != "" {
		scope = "device_id=" + deviceID
	}

	fmt.Println("\n==================== Anomaly Summary ====================")
	fmt.Printf("Scope            : %s\n", scope)
	fmt.Printf("DB               : %s\n", cfg.Storage.Path)
	fmt.Println("---------------------------------------------------------")
	fmt.Printf("Total rows       : %d\n", total)
	fmt.Printf("Anomalies        : %d\n", anomalies)
	fmt.Printf("Anomaly ratio    : %.2f%%\n", ratio)
	fmt.Printf("First anomaly ts : %s\n", displayTS(first, hasAnomalies))
	fmt.Printf("Last anomaly ts  : %s\n", displayTS(last, hasAnomalies))
	fmt.Println("---------------------------------------------------------")

	fmt.Println("\nTop devices by anomaly count:")
	if deviceID != "" {
		fmt.Printf("- %s: %d anomalies\n", deviceID, anomalies)
	} else {
		devices, err := telemetryStore.TopDevices(ctx, top)
		if err != nil {
			return err
		}
		for _, d := range devices {
			pct := 0.0
			if d.Total > 0 {
				pct = 100 * float64(d.Anomalies) / float64(d.Total)
			}
			fmt.Printf("- %s: anomalies=%d, total=%d, ratio=%.2f%%\n",
				d.DeviceID, d.Anomalies, d.Total, pct)
		}
	}

	fmt.Println("\nMetric summary (ALL rows):")
	printSummary(allSummary)

	fmt.Println("\nMetric summary (ANOMALY rows only):")
	printSummary(anomalySummary)

	fmt.Println("=========================================================")
	return nil
}

// printSummary prints one avg/min/max line per metric, or a placeholder
// when the row set was empty.
func printSummary(s *store.Summary) {
	if s == nil {
		fmt.Println("- No data")
		return
	}
	rows := []struct {
		name  string
		stats store.MetricStats
	}{
		{"ACHP ", s.ACHP},
		{"PHR  ", s.PHR},
		{"AWWGV", s.AWWGV},
		{"PDMRG", s.PDMRG},
	}
	for _, r := range rows {
		fmt.Printf("%s : avg=%.3f | min=%.3f | max=%.3f\n",
			r.name, r.stats.Avg, r.stats.Min, r.stats.Max)
	}
}

// displayTS reformats a stored timestamp for reading; unparseable
// values pass through verbatim.
func displayTS(ts string, ok bool) string {
	if !ok || ts == "" {
		return "-"
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	return ts
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
