package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// probeTimeout caps a single dependency probe so a hung backend cannot
// stall the readiness endpoint.
const probeTimeout = 2 * time.Second

// DBChecker reports whether the Postgres store backing score snapshots
// and audit logs is reachable.
type DBChecker struct {
	db *sql.DB
}

func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

func (d *DBChecker) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}
