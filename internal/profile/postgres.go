package profile

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresConfigStore reads tenant scoring configuration from the
// tenants table, where the configuration column holds the tenant's
// settings document as JSON.
type PostgresConfigStore struct {
	db *sql.DB
}

// NewPostgresConfigStore creates a Postgres-backed config store.
func NewPostgresConfigStore(db *sql.DB) *PostgresConfigStore {
	return &PostgresConfigStore{db: db}
}

// TenantScoringConfig returns the tenant's raw configuration document,
// or nil when the tenant has none.
func (s *PostgresConfigStore) TenantScoringConfig(ctx context.Context, tenantID string) ([]byte, error) {
	const query = `SELECT configuration FROM tenants WHERE id = $1`

	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant configuration: %w", err)
	}
	if !raw.Valid {
		return nil, nil
	}
	return []byte(raw.String), nil
}
