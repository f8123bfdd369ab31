package database

import (
	"database/sql"
	"fmt"
	"time"

	"contrib.go.opencensus.io/integrations/ocsql"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/t3-nico/boxlog-app-sub014/config"
)

// GetConnectionPoolSettings returns connection pool settings based on environment
func GetConnectionPoolSettings(environment string) (maxOpen, maxIdle int, maxLifetime time.Duration) {
	// error reports are written from request paths only, a small pool is enough
	if environment == "test" || environment == "development" {
		return 5, 2, 2 * time.Minute
	}
	return 10, 5, 20 * time.Minute
}

// DriverName returns the postgres driver, wrapped with OpenCensus when traced
func DriverName(traced bool) (string, error) {
	if !traced {
		return "postgres", nil
	}
	name, err := ocsql.Register("postgres", ocsql.WithAllTraceOptions())
	if err != nil {
		return "", fmt.Errorf("failed to register opencensus sql driver: %w", err)
	}
	return name, nil
}

// Connect opens and pings the database and applies the pool settings
func Connect(cfg *config.Config) (*sql.DB, error) {
	driverName, err := DriverName(cfg.Tracing.Enabled)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	maxOpen, maxIdle, maxLifetime := GetConnectionPoolSettings(cfg.Environment)
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return db, nil
}
