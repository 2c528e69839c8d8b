// Package health provides readiness checks for the service's dependencies.
package health

import (
	"context"
	"database/sql"
)

// DBChecker pings the review database.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a DBChecker for db.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}
