package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"antigravity/internal/platform/config"
)

// New opens the shared application database. All entities carry a tenant_id
// column and every query is scoped by it; there is one store per deployment,
// not one per tenant.
func New(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?cache=shared&mode=rwc&_busy_timeout=5000", cfg.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
