package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"deadbears-gallery/logger"
)

// DB holds the database connection. It stays nil when no database is configured.
var DB *sql.DB

const schema = `
CREATE TABLE IF NOT EXISTS issued_rewards (
	code        TEXT PRIMARY KEY,
	tier        TEXT NOT NULL,
	username    TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	issued_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	redeemed_at TIMESTAMPTZ
)`

// InitDB opens the connection for dsn, checks it and applies the schema.
// An empty dsn leaves DB nil: the reward ledger is then disabled.
func InitDB(ctx context.Context, dsn string) error {
	if dsn == "" {
		logger.Info("⚠️  No database configured, reward ledger disabled")
		return nil
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	DB = conn
	logger.Info("✓ Database connection established successfully")
	return nil
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
