package match

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jasperfordesq-ai/nexus-relevance/internal/geo"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/profile"
)

// ownListingsLimit bounds how many of the user's own listings seed the
// candidate fan-out.
const ownListingsLimit = 10

// defaultLimit is the result cap when the caller does not set one.
const defaultLimit = 20

// mutualScanLimit is how many matches MutualMatches scans before
// filtering down to mutual ones.
const mutualScanLimit = 50

// Store retrieves the matching inputs. Implementations are expected to
// exclude blocked users from candidate sets and to cap candidate
// queries at a reasonable batch size.
type Store interface {
	// User returns the user, or nil when they do not exist.
	User(ctx context.Context, tenantID, userID string) (*User, error)

	// UserListings returns a user's active listings, newest first,
	// capped at ownListingsLimit.
	UserListings(ctx context.Context, tenantID, userID string) ([]Listing, error)

	// Candidates returns active listings matching the query, excluding
	// the querying user's own listings.
	Candidates(ctx context.Context, q CandidateQuery) ([]Listing, error)

	// Preferences returns the user's saved match preferences, or nil
	// when they have none.
	Preferences(ctx context.Context, tenantID, userID string) (*Preferences, error)
}

// CandidateQuery selects candidate listings for scoring.
type CandidateQuery struct {
	TenantID      string
	ExcludeUserID string
	Type          string // empty matches both offers and requests
	CategoryID    string
	Categories    []string // used only when CategoryID is empty
	Lat           *float64
	Lon           *float64
	MaxDistanceKm float64
	Limit         int
}

// Preferences are a user's saved matching preferences. Nil pointer
// fields fall back to the profile defaults.
type Preferences struct {
	MaxDistanceKm *float64
	MinScore      *float64
	Categories    []string
}

// FeedbackProvider adjusts a match score from the user's historical
// reactions to similar matches. The boost is additive on the 0-100
// scale and may be negative.
type FeedbackProvider interface {
	HistoricalBoost(ctx context.Context, userID string, candidate Listing, distanceKm float64) (float64, error)
}

// Options narrow a single FindMatches call. Nil fields fall back to the
// user's preferences, then to the profile.
type Options struct {
	MaxDistanceKm *float64
	MinScore      *float64
	Limit         int
	Categories    []string
}

// Match is one scored candidate listing.
type Match struct {
	Listing        Listing
	Score          float64
	Reasons        []string
	Breakdown      map[string]float64
	Type           string
	DistanceKm     float64 // -1 when unknown
	MatchedListing string  // title of the user's listing that matched
}

// Engine computes matches for users. It is safe for concurrent use.
type Engine struct {
	store    Store
	feedback FeedbackProvider
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates a match engine. feedback may be nil, in which case
// no historical boost is applied.
func NewEngine(store Store, feedback FeedbackProvider, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:    store,
		feedback: feedback,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the engine's clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// FindMatches scores candidate listings against the user's own active
// listings. For each of the user's listings it fans out to candidates
// of the opposite type, scores them, deduplicates across listings and
// returns matches at or above the minimum score, best first. A user
// with no listings gets cold-start matches instead.
func (e *Engine) FindMatches(ctx context.Context, tenantID, userID string, opts Options, p *profile.Profile) ([]Match, error) {
	mp := p.Match

	user, err := e.store.User(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if user == nil {
		return nil, nil
	}

	prefs := e.loadPreferences(ctx, tenantID, userID)
	maxDistance := resolveFloat(opts.MaxDistanceKm, prefs.MaxDistanceKm, mp.MaxDistanceKm)
	minScore := resolveFloat(opts.MinScore, prefs.MinScore, mp.MinMatchScore)
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	categoryFilter := opts.Categories
	if categoryFilter == nil {
		categoryFilter = prefs.Categories
	}

	userListings, err := e.store.UserListings(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("load listings for user %s: %w", userID, err)
	}
	if len(userListings) > ownListingsLimit {
		userListings = userListings[:ownListingsLimit]
	}
	if len(userListings) == 0 {
		return e.coldStartMatches(ctx, tenantID, *user, maxDistance, limit)
	}

	now := e.now()
	var matches []Match
	seen := make(map[string]struct{})
	ownerListings := make(map[string][]Listing)

	for _, mine := range userListings {
		targetType := TypeRequest
		if mine.Type == TypeRequest {
			targetType = TypeOffer
		}

		candidates, err := e.store.Candidates(ctx, CandidateQuery{
			TenantID:      tenantID,
			ExcludeUserID: userID,
			Type:          targetType,
			CategoryID:    mine.CategoryID,
			Categories:    categoryFilter,
			Lat:           user.Lat,
			Lon:           user.Lon,
			MaxDistanceKm: maxDistance,
		})
		if err != nil {
			return nil, fmt.Errorf("load candidates for listing %s: %w", mine.ID, err)
		}

		for _, candidate := range candidates {
			if _, dup := seen[candidate.ID]; dup {
				continue
			}

			counterpart, err := e.ownerListings(ctx, tenantID, candidate.UserID, ownerListings)
			if err != nil {
				e.logger.Debug("counterpart listings lookup failed, scoring without reciprocity",
					"owner_id", candidate.UserID,
					"error", err)
			}

			result := ScoreMatch(*user, userListings, mine, candidate, counterpart, mp, now)
			e.applyHistoricalBoost(ctx, userID, candidate, &result)

			if result.Score < minScore {
				continue
			}

			seen[candidate.ID] = struct{}{}
			matches = append(matches, Match{
				Listing:        candidate,
				Score:          result.Score,
				Reasons:        result.Reasons,
				Breakdown:      result.Breakdown,
				Type:           result.Type,
				DistanceKm:     result.DistanceKm,
				MatchedListing: mine.Title,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// HotMatches returns matches that are both close (within the local
// proximity band) and at or above the hot-match threshold.
func (e *Engine) HotMatches(ctx context.Context, tenantID, userID string, limit int, p *profile.Profile) ([]Match, error) {
	if limit <= 0 {
		limit = 5
	}
	threshold := p.Match.HotMatchThreshold
	localKm := p.Match.Proximity.LocalKm

	matches, err := e.FindMatches(ctx, tenantID, userID, Options{
		MaxDistanceKm: &localKm,
		MinScore:      &threshold,
		Limit:         limit,
	}, p)
	if err != nil {
		return nil, err
	}

	hot := matches[:0]
	for _, m := range matches {
		if m.Score >= threshold {
			hot = append(hot, m)
		}
	}
	return hot, nil
}

// MutualMatches returns only matches where both parties can benefit,
// best first.
func (e *Engine) MutualMatches(ctx context.Context, tenantID, userID string, limit int, p *profile.Profile) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}

	matches, err := e.FindMatches(ctx, tenantID, userID, Options{Limit: mutualScanLimit}, p)
	if err != nil {
		return nil, err
	}

	var mutual []Match
	for _, m := range matches {
		if m.Type == MatchMutual {
			mutual = append(mutual, m)
		}
	}
	if len(mutual) > limit {
		mutual = mutual[:limit]
	}
	return mutual, nil
}

func (e *Engine) coldStartMatches(ctx context.Context, tenantID string, user User, maxDistance float64, limit int) ([]Match, error) {
	candidates, err := e.store.Candidates(ctx, CandidateQuery{
		TenantID:      tenantID,
		ExcludeUserID: user.ID,
		Lat:           user.Lat,
		Lon:           user.Lon,
		MaxDistanceKm: maxDistance,
		Limit:         limit,
	})
	if err != nil {
		return nil, fmt.Errorf("load cold-start candidates: %w", err)
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	matches := make([]Match, 0, len(candidates))
	for _, candidate := range candidates {
		distance := candidateDistance(user, candidate)
		reported := -1.0
		if distance != geo.Infinite {
			reported = math.Round(distance*10) / 10
		}
		matches = append(matches, Match{
			Listing:    candidate,
			Score:      50,
			Reasons:    []string{"Nearby listing that might interest you"},
			Type:       MatchColdStart,
			DistanceKm: reported,
		})
	}
	return matches, nil
}

func (e *Engine) ownerListings(ctx context.Context, tenantID, ownerID string, cache map[string][]Listing) ([]Listing, error) {
	if listings, ok := cache[ownerID]; ok {
		return listings, nil
	}
	listings, err := e.store.UserListings(ctx, tenantID, ownerID)
	if err != nil {
		return nil, err
	}
	cache[ownerID] = listings
	return listings, nil
}

// applyHistoricalBoost shifts the score by the feedback provider's
// adjustment, clamped back into [0,100]. A provider failure leaves the
// score untouched.
func (e *Engine) applyHistoricalBoost(ctx context.Context, userID string, candidate Listing, result *Result) {
	if e.feedback == nil {
		return
	}
	boost, err := e.feedback.HistoricalBoost(ctx, userID, candidate, result.DistanceKm)
	if err != nil {
		e.logger.Debug("historical boost lookup failed, skipping",
			"user_id", userID,
			"listing_id", candidate.ID,
			"error", err)
		return
	}
	if boost == 0 {
		return
	}

	result.Score = clamp(result.Score+boost, 0, 100)
	result.Breakdown["ml_boost"] = boost
	if boost > 0 {
		result.Reasons = append(result.Reasons, "Matches your preferences")
	}
}

func (e *Engine) loadPreferences(ctx context.Context, tenantID, userID string) Preferences {
	prefs, err := e.store.Preferences(ctx, tenantID, userID)
	if err != nil {
		e.logger.Debug("preferences lookup failed, using defaults",
			"user_id", userID,
			"error", err)
		return Preferences{}
	}
	if prefs == nil {
		return Preferences{}
	}
	return *prefs
}

func resolveFloat(override, preference *float64, fallback float64) float64 {
	if override != nil {
		return *override
	}
	if preference != nil {
		return *preference
	}
	return fallback
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
