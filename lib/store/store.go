// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/YusufAkyuz/IoT-Project/lib/sqlitepool"
	"github.com/YusufAkyuz/IoT-Project/lib/telemetry"
)

// schema creates the telemetry table and its indexes. Idempotent —
// applied on every pooled connection via OnConnect.
const schema = `
	CREATE TABLE IF NOT EXISTS telemetry (
		ts         TEXT NOT NULL,
		device_id  TEXT NOT NULL,
		achp       REAL NOT NULL,
		phr        REAL NOT NULL,
		awwgv      REAL NOT NULL,
		pdmrg      REAL NOT NULL,
		is_anomaly INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_telemetry_device_ts ON telemetry(device_id, ts);
	CREATE INDEX IF NOT EXISTS idx_telemetry_anomaly ON telemetry(is_anomaly, ts);
`

// Config holds the parameters for opening a telemetry store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. Parent
	// directories are created if absent. Required.
	Path string

	// PoolSize is the number of pooled connections. Defaults to 4 if
	// zero or negative. The edge processor uses a small pool (it has
	// one writer); read-side tools size theirs for concurrent reads.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Store is the append-only telemetry log. Safe for concurrent use:
// the pool hands each goroutine its own connection.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// PersistenceError reports a storage-layer failure. The ingestion
// controller inspects for it with errors.As and applies its
// log-and-continue policy.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying storage error.
func (e *PersistenceError) Unwrap() error { return e.Err }

// Open creates (or reopens) the telemetry database at cfg.Path and
// ensures the schema exists. Safe to call on every process start: the
// schema statements are all IF NOT EXISTS, and an existing database
// keeps its rows.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: creating %s: %w", dir, err)
		}
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Append inserts one reading as a single row. The insert is atomic:
// concurrent readers either see the whole row or none of it. Failures
// return a *PersistenceError and leave the store usable for the next
// append.
func (s *Store) Append(ctx context.Context, reading telemetry.Reading) error {
	if reading.TS == "" {
		return &PersistenceError{Op: "append", Err: fmt.Errorf("empty ts")}
	}
	if reading.DeviceID == "" {
		return &PersistenceError{Op: "append", Err: fmt.Errorf("empty device_id")}
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return &PersistenceError{Op: "append", Err: err}
	}
	defer s.pool.Put(conn)

	anomaly := 0
	if reading.IsAnomaly {
		anomaly = 1
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO telemetry (ts, device_id, achp, phr, awwgv, pdmrg, is_anomaly)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				reading.TS,
				reading.DeviceID,
				reading.Metrics.ACHP,
				reading.Metrics.PHR,
				reading.Metrics.AWWGV,
				reading.Metrics.PDMRG,
				anomaly,
			},
		})
	if err != nil {
		return &PersistenceError{Op: "append", Err: err}
	}

	return nil
}
