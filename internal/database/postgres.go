package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/healsync/healsync/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres connects to Postgres through the pgx database/sql driver.
func OpenPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	return &DB{
		DB:      sqlDB,
		dialect: DialectPostgres,
		path:    redactDSN(cfg.DSN),
		config:  cfg,
	}, nil
}

// redactDSN strips credentials from a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "postgres"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
