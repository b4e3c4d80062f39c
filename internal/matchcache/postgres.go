package matchcache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/jasperfordesq-ai/nexus-relevance/internal/tracing"
)

// PostgresStore implements Store on PostgreSQL. It expects the
// match_cache table from the migrations, keyed on
// (tenant_id, user_id, listing_id).
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a Postgres-backed match cache.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Put upserts one cached match, refreshing its TTL and scores on
// conflict.
func (s *PostgresStore) Put(ctx context.Context, e Entry) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "match_cache", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	const query = `
		INSERT INTO match_cache
			(tenant_id, user_id, listing_id, category_id, match_score,
			 distance_km, match_type, match_reasons, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id, user_id, listing_id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			match_score = EXCLUDED.match_score,
			distance_km = EXCLUDED.distance_km,
			match_type = EXCLUDED.match_type,
			match_reasons = EXCLUDED.match_reasons,
			expires_at = EXCLUDED.expires_at`

	status := e.Status
	if status == "" {
		status = StatusNew
	}

	var distance sql.NullFloat64
	if e.DistanceKm >= 0 {
		distance = sql.NullFloat64{Float64: e.DistanceKm, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, query,
		e.TenantID, e.UserID, e.ListingID, e.CategoryID, e.Score,
		distance, e.MatchType, pq.Array(e.Reasons), status, e.CreatedAt, e.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert match cache entry: %w", err)
	}
	return nil
}

// Entry returns one live cached match, or nil when absent or expired.
func (s *PostgresStore) Entry(ctx context.Context, tenantID, userID, listingID string) (*Entry, error) {
	const query = `
		SELECT tenant_id, user_id, listing_id, category_id, match_score,
		       distance_km, match_type, match_reasons, status, created_at, expires_at
		FROM match_cache
		WHERE tenant_id = $1 AND user_id = $2 AND listing_id = $3
		  AND expires_at > NOW()`

	e, err := scanEntry(s.db.QueryRowContext(ctx, query, tenantID, userID, listingID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load match cache entry: %w", err)
	}
	return e, nil
}

// Entries returns a user's live cached matches, best score first.
func (s *PostgresStore) Entries(ctx context.Context, tenantID, userID string) (_ []Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "match_cache", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	const query = `
		SELECT tenant_id, user_id, listing_id, category_id, match_score,
		       distance_km, match_type, match_reasons, status, created_at, expires_at
		FROM match_cache
		WHERE tenant_id = $1 AND user_id = $2
		  AND expires_at > NOW()
		ORDER BY match_score DESC`

	rows, err := s.db.QueryContext(ctx, query, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("load match cache entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match cache entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match cache entries: %w", err)
	}
	return entries, nil
}

// SetStatus updates one cached match's status.
func (s *PostgresStore) SetStatus(ctx context.Context, tenantID, userID, listingID, status string) error {
	const query = `
		UPDATE match_cache SET status = $4
		WHERE tenant_id = $1 AND user_id = $2 AND listing_id = $3`

	if _, err := s.db.ExecContext(ctx, query, tenantID, userID, listingID, status); err != nil {
		return fmt.Errorf("update match cache status: %w", err)
	}
	return nil
}

// DeleteByUser drops all of a user's cached matches.
func (s *PostgresStore) DeleteByUser(ctx context.Context, tenantID, userID string) error {
	const query = `DELETE FROM match_cache WHERE tenant_id = $1 AND user_id = $2`

	if _, err := s.db.ExecContext(ctx, query, tenantID, userID); err != nil {
		return fmt.Errorf("delete match cache for user: %w", err)
	}
	return nil
}

// DeleteByCategory drops cached matches for every user with an active
// listing in the category, whose matches a new listing there may
// change, plus entries whose matched listing is in the category.
func (s *PostgresStore) DeleteByCategory(ctx context.Context, tenantID, categoryID string) error {
	const query = `
		DELETE FROM match_cache mc
		WHERE mc.tenant_id = $1
		  AND (mc.category_id = $2
		       OR mc.user_id IN (
		           SELECT l.user_id FROM listings l
		           WHERE l.tenant_id = $1 AND l.category_id = $2 AND l.status = 'active'))`

	if _, err := s.db.ExecContext(ctx, query, tenantID, categoryID); err != nil {
		return fmt.Errorf("delete match cache for category: %w", err)
	}
	return nil
}

// UsersWithListingsInCategory lists users holding active listings in
// the category. Satisfies CategoryUserSource for the Redis backend's
// invalidation.
func (s *PostgresStore) UsersWithListingsInCategory(ctx context.Context, tenantID, categoryID string) ([]string, error) {
	const query = `
		SELECT DISTINCT l.user_id
		FROM listings l
		WHERE l.tenant_id = $1 AND l.category_id::text = $2 AND l.status = 'active'`

	rows, err := s.db.QueryContext(ctx, query, tenantID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("select category listing owners: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan category listing owner: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category listing owners: %w", err)
	}
	return userIDs, nil
}

// UsersNeedingWarmup selects active users with active listings whose
// caches are missing or expired, most recently seen first. Satisfies
// the warm-up job's UserSource.
func (s *PostgresStore) UsersNeedingWarmup(ctx context.Context, tenantID string, limit int) ([]string, error) {
	const query = `
		SELECT DISTINCT u.id, u.last_login_at
		FROM users u
		INNER JOIN listings l ON u.id = l.user_id AND l.status = 'active'
		LEFT JOIN match_cache mc ON u.id = mc.user_id AND mc.tenant_id = $1
		WHERE u.tenant_id = $1
		  AND u.status = 'active'
		  AND (mc.user_id IS NULL OR mc.expires_at < NOW())
		ORDER BY u.last_login_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("select warm-up users: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		var lastLogin sql.NullTime
		if err := rows.Scan(&id, &lastLogin); err != nil {
			return nil, fmt.Errorf("scan warm-up user: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate warm-up users: %w", err)
	}
	return userIDs, nil
}

// DeleteExpired drops entries past their TTL.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM match_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired match cache entries: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count expired match cache deletions: %w", err)
	}
	return removed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var distance sql.NullFloat64
	var reasons pq.StringArray

	err := row.Scan(&e.TenantID, &e.UserID, &e.ListingID, &e.CategoryID,
		&e.Score, &distance, &e.MatchType, &reasons, &e.Status,
		&e.CreatedAt, &e.ExpiresAt)
	if err != nil {
		return nil, err
	}

	e.DistanceKm = -1
	if distance.Valid {
		e.DistanceKm = distance.Float64
	}
	e.Reasons = []string(reasons)
	return &e, nil
}
