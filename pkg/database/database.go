// Package database opens the ledger store selected by configuration.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/config"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
)

// LiteFile is the SQLite file name created under DataDir in lite mode.
const LiteFile = "landledger.db"

// LiteBusyTimeout is how long a lite-mode writer waits for the database write lock
// before SQLite gives up with SQLITE_BUSY.
const LiteBusyTimeout = 10 * time.Minute

// liteDSN opens every write transaction with BEGIN IMMEDIATE so appends serialize.
func liteDSN(dataDir string) string {
	return fmt.Sprintf("%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		filepath.Join(dataDir, LiteFile), LiteBusyTimeout.Milliseconds())
}

// Open connects to Postgres when DatabaseURL is set, otherwise to a SQLite file under DataDir.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, ledger.Dialect, error) {
	if !cfg.LiteMode() {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("database: open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, "", fmt.Errorf("database: ping postgres: %w", err)
		}
		return db, ledger.DialectPostgres, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, "", fmt.Errorf("database: create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", liteDSN(cfg.DataDir))
	if err != nil {
		return nil, "", fmt.Errorf("database: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("database: ping sqlite: %w", err)
	}
	return db, ledger.DialectSQLite, nil
}
