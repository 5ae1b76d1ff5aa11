// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// tableNames lists every table the schema owns, in drop-safe order.
var tableNames = []string{
	"swap_receipts",
	"pool_snapshots",
	"reward_claims",
	"block_cursor",
}

// DropSchema removes every table EnsureSchema creates.
func DropSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	for _, table := range tableNames {
		if _, err := DB.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		log.Info().Str("table", table).Msg("Table dropped")
	}
	return nil
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS swap_receipts (
			receipt_id SERIAL PRIMARY KEY,
			swap_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			block_height BIGINT NOT NULL,
			pool_addr VARCHAR(128) NOT NULL,
			pair_type VARCHAR(64) NOT NULL,
			sender VARCHAR(128) NOT NULL,
			receiver VARCHAR(128) NOT NULL,
			offer_denom VARCHAR(128) NOT NULL,
			offer_amount NUMERIC(40, 0) NOT NULL,
			ask_denom VARCHAR(128) NOT NULL,
			return_amount NUMERIC(40, 0) NOT NULL,
			spread_amount NUMERIC(40, 0) NOT NULL,
			commission_amount NUMERIC(40, 0) NOT NULL,
			maker_fee_amount NUMERIC(40, 0) NOT NULL DEFAULT 0,
			fee_share_amount NUMERIC(40, 0) NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_swap_receipts_timestamp ON swap_receipts(swap_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_swap_receipts_pool ON swap_receipts(pool_addr);
		CREATE INDEX IF NOT EXISTS idx_swap_receipts_height ON swap_receipts(block_height DESC);

		CREATE TABLE IF NOT EXISTS pool_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			block_height BIGINT NOT NULL,
			pool_addr VARCHAR(128) NOT NULL,
			pair_type VARCHAR(64) NOT NULL,
			reserves JSONB NOT NULL,
			total_share NUMERIC(40, 0) NOT NULL,
			extras JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_pool_snapshots_pool_height ON pool_snapshots(pool_addr, block_height DESC);
		CREATE INDEX IF NOT EXISTS idx_pool_snapshots_timestamp ON pool_snapshots(snapshot_timestamp DESC);

		CREATE TABLE IF NOT EXISTS reward_claims (
			claim_id SERIAL PRIMARY KEY,
			claim_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			block_height BIGINT NOT NULL,
			lp_token VARCHAR(160) NOT NULL,
			user_addr VARCHAR(128) NOT NULL,
			rewards JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_reward_claims_user ON reward_claims(user_addr);
		CREATE INDEX IF NOT EXISTS idx_reward_claims_lp ON reward_claims(lp_token);

		-- Cursor table for persistent recording progress across restarts
		CREATE TABLE IF NOT EXISTS block_cursor (
			id INTEGER PRIMARY KEY DEFAULT 1,
			last_height BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO block_cursor (id, last_height)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
