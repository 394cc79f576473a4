package database

import (
	"database/sql"
	"fmt"

	"github.com/healsync/healsync/internal/config"
	_ "modernc.org/sqlite"
)

// NewInMemory creates an in-memory SQLite database for testing purposes.
// Migrations are not run and WAL mode is not enabled.
func NewInMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	// Every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return &DB{
		DB:      sqlDB,
		dialect: DialectSQLite,
		path:    ":memory:",
		config:  &config.DatabaseConfig{},
	}, nil
}
