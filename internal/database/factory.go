package database

import (
	"fmt"

	"fileshare/internal/config"
)

// NewDatabaseFromConfig opens the configured database, applies pending
// migrations and verifies the resulting schema version.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (*SQLiteDatabase, error) {
	db, err := NewSQLiteDatabase(cfg.URL, cfg.MaxConns)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("checking database schema: %w", err)
	}

	return db, nil
}
