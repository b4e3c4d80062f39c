package health

import (
	"context"
	"database/sql"
)

// DBChecker probes the Postgres connection pool.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

func (c *DBChecker) Name() string { return "database" }

// Check pings the database.
func (c *DBChecker) Check(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
