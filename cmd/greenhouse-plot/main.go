// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// greenhouse-plot renders metrics from the telemetry database as ASCII
// line charts in the terminal, oldest to newest. --metric selects one
// metric or "all" for one chart per metric. Useful for a quick look at
// a trend without starting the live dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/pflag"

	"github.com/YusufAkyuz/IoT-Project/lib/config"
	"github.com/YusufAkyuz/IoT-Project/lib/process"
	"github.com/YusufAkyuz/IoT-Project/lib/store"
	"github.com/YusufAkyuz/IoT-Project/lib/telemetry"
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
		metric      string
		last        int
		height      int
		width       int
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("greenhouse-plot", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config (default: $GREENHOUSE_CONFIG or built-in defaults)")
	flagSet.StringVar(&dbPath, "db", "", "override database path")
	flagSet.StringVar(&deviceID, "device-id", "", "restrict to one device")
	flagSet.StringVar(&metric, "metric", "ACHP", "metric to plot: ACHP, PHR, AWWGV, PDMRG, or all")
	flagSet.IntVar(&last, "last", 120, "number of most recent rows to plot")
	flagSet.IntVar(&height, "height", 15, "chart height in rows")
	flagSet.IntVar(&width, "width", 100, "chart width in columns")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("greenhouse-plot")
		return nil
	}

	metrics, err := selectMetrics(metric)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}

	telemetryStore, err := store.Open(store.Config{
		Path:   cfg.Storage.Path,
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		return err
	}
	defer telemetryStore.Close()

	rows, err := telemetryStore.Recent(context.Background(), store.RecentFilter{
		DeviceID: deviceID,
		Limit:    last,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no rows to plot in %s", cfg.Storage.Path)
	}

	for i, m := range metrics {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(renderChart(rows, m, height, width))
	}
	return nil
}

// selectMetrics resolves the --metric flag to the metrics to chart:
// a single metric key, or all four in wire order.
func selectMetrics(metric string) ([]string, error) {
	metric = strings.ToUpper(metric)
	if metric == "ALL" {
		return telemetry.MetricKeys[:], nil
	}
	if !slices.Contains(telemetry.MetricKeys[:], metric) {
		return nil, fmt.Errorf("unknown metric %q: want one of %v, or all", metric, telemetry.MetricKeys)
	}
	return []string{metric}, nil
}

// renderChart charts one metric across rows, which arrive newest
// first. The caption reports the row span and how many of the charted
// rows were anomalies.
func renderChart(rows []telemetry.Reading, metric string, height, width int) string {
	metricIndex := slices.Index(telemetry.MetricKeys[:], metric)

	values := make([]float64, len(rows))
	anomalies := 0
	for i, row := range rows {
		values[len(rows)-1-i] = row.Metrics.Values()[metricIndex]
		if row.IsAnomaly {
			anomalies++
		}
	}

	caption := fmt.Sprintf("%s over last %d rows, %d anomalies (%s .. %s)",
		metric, len(rows), anomalies, rows[len(rows)-1].TS, rows[0].TS)

	return asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
