package match

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/jasperfordesq-ai/nexus-relevance/internal/tracing"
)

// PostgresStore implements Store on PostgreSQL. Candidate queries push
// the distance filter into SQL with the haversine formula so the
// engine only scores listings already inside the search radius.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a Postgres-backed match store.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// User loads one user, or nil when they do not exist.
func (s *PostgresStore) User(ctx context.Context, tenantID, userID string) (*User, error) {
	const query = `
		SELECT id, COALESCE(skills, ''), latitude, longitude
		FROM users
		WHERE id = $1 AND tenant_id = $2`

	var u User
	var lat, lon sql.NullFloat64
	err := s.db.QueryRowContext(ctx, query, userID, tenantID).Scan(&u.ID, &u.Skills, &lat, &lon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if lat.Valid {
		u.Lat = &lat.Float64
	}
	if lon.Valid {
		u.Lon = &lon.Float64
	}
	return &u, nil
}

// UserListings returns a user's active listings, newest first.
func (s *PostgresStore) UserListings(ctx context.Context, tenantID, userID string) (_ []Listing, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	const query = `
		SELECT l.id, l.user_id, l.type, COALESCE(l.category_id::text, ''),
		       COALESCE(c.name, ''), l.title, COALESCE(l.description, ''),
		       COALESCE(l.image_url, ''), l.created_at, l.latitude, l.longitude
		FROM listings l
		LEFT JOIN categories c ON l.category_id = c.id
		WHERE l.user_id = $1 AND l.tenant_id = $2 AND l.status = 'active'
		ORDER BY l.created_at DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, userID, tenantID, ownListingsLimit)
	if err != nil {
		return nil, fmt.Errorf("load user listings: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		var lat, lon sql.NullFloat64
		err := rows.Scan(&l.ID, &l.UserID, &l.Type, &l.CategoryID, &l.CategoryName,
			&l.Title, &l.Description, &l.ImageURL, &l.CreatedAt, &lat, &lon)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		l.TenantID = tenantID
		if lat.Valid {
			l.Lat = &lat.Float64
		}
		if lon.Valid {
			l.Lon = &lon.Float64
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

// candidateBatchLimit bounds how many candidates one query returns.
const candidateBatchLimit = 50

// Candidates returns active listings matching the query. Listings from
// users the querying user has blocked, or who have blocked them, are
// excluded. When coordinates are known the listing falls back to its
// owner's location and the distance filter applies in SQL; otherwise
// candidates come back newest first with no distance bound.
func (s *PostgresStore) Candidates(ctx context.Context, q CandidateQuery) (_ []Listing, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	hasCoords := q.Lat != nil && q.Lon != nil

	query := `
		SELECT l.id, l.user_id, l.type, COALESCE(l.category_id::text, ''),
		       COALESCE(c.name, ''), l.title, COALESCE(l.description, ''),
		       COALESCE(l.image_url, ''), l.created_at,
		       COALESCE(l.latitude, u.latitude), COALESCE(l.longitude, u.longitude),
		       COALESCE(u.is_verified, FALSE),
		       COALESCE((SELECT AVG(rating) FROM reviews WHERE receiver_id = u.id), 0)`

	args := []any{q.TenantID, q.ExcludeUserID}
	if hasCoords {
		query += `,
		       (6371 * acos(LEAST(1.0,
		           cos(radians($3)) * cos(radians(COALESCE(l.latitude, u.latitude, 0))) *
		           cos(radians(COALESCE(l.longitude, u.longitude, 0)) - radians($4)) +
		           sin(radians($3)) * sin(radians(COALESCE(l.latitude, u.latitude, 0)))
		       ))) AS distance_km`
		args = append(args, *q.Lat, *q.Lon)
	}

	query += `
		FROM listings l
		JOIN users u ON l.user_id = u.id
		LEFT JOIN categories c ON l.category_id = c.id
		WHERE l.tenant_id = $1
		  AND l.status = 'active'
		  AND l.user_id != $2
		  AND l.user_id NOT IN (
		      SELECT blocked_user_id FROM user_blocks WHERE user_id = $2)
		  AND l.user_id NOT IN (
		      SELECT user_id FROM user_blocks WHERE blocked_user_id = $2)`

	if q.Type != "" {
		args = append(args, q.Type)
		query += fmt.Sprintf(" AND l.type = $%d", len(args))
	}
	if q.CategoryID != "" {
		args = append(args, q.CategoryID)
		query += fmt.Sprintf(" AND l.category_id::text = $%d", len(args))
	} else if len(q.Categories) > 0 {
		args = append(args, pq.Array(q.Categories))
		query += fmt.Sprintf(" AND l.category_id::text = ANY($%d)", len(args))
	}

	if hasCoords && q.MaxDistanceKm > 0 {
		args = append(args, q.MaxDistanceKm)
		query = `SELECT * FROM (` + query + fmt.Sprintf(`) sub WHERE distance_km <= $%d ORDER BY distance_km ASC`, len(args))
	} else {
		query += " ORDER BY l.created_at DESC"
	}

	limit := q.Limit
	if limit <= 0 || limit > candidateBatchLimit {
		limit = candidateBatchLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		var lat, lon, distance sql.NullFloat64
		dest := []any{&l.ID, &l.UserID, &l.Type, &l.CategoryID, &l.CategoryName,
			&l.Title, &l.Description, &l.ImageURL, &l.CreatedAt, &lat, &lon,
			&l.AuthorVerified, &l.AuthorRating}
		if hasCoords {
			dest = append(dest, &distance)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		l.TenantID = q.TenantID
		if lat.Valid {
			l.Lat = &lat.Float64
		}
		if lon.Valid {
			l.Lon = &lon.Float64
		}
		if distance.Valid {
			l.DistanceKm = &distance.Float64
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return listings, nil
}

// Preferences returns the user's saved match preferences, or nil when
// they have none.
func (s *PostgresStore) Preferences(ctx context.Context, tenantID, userID string) (*Preferences, error) {
	const query = `
		SELECT max_distance_km, min_match_score, categories
		FROM match_preferences
		WHERE user_id = $1 AND tenant_id = $2`

	var p Preferences
	var maxDistance, minScore sql.NullFloat64
	var categories pq.StringArray
	err := s.db.QueryRowContext(ctx, query, userID, tenantID).Scan(&maxDistance, &minScore, &categories)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load match preferences: %w", err)
	}

	if maxDistance.Valid {
		p.MaxDistanceKm = &maxDistance.Float64
	}
	if minScore.Valid {
		p.MinScore = &minScore.Float64
	}
	p.Categories = []string(categories)
	return &p, nil
}
