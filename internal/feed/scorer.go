// Package feed implements the feed ranking pipeline: a post's rank is
// the product of independent attenuation factors (engagement, creator
// vitality, geographic decay, freshness, social graph, negative
// signals, content quality). Missing data always degrades to a neutral
// factor; scoring never fails.
package feed

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jasperfordesq-ai/nexus-relevance/internal/decay"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/geo"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/profile"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/rerank"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/scored"
)

// Post is a feed post candidate with author attributes denormalized at
// the retrieval boundary, so scoring needs no further lookups.
type Post struct {
	ID          string
	TenantID    string
	AuthorID    string
	ContentType string // "post", "event", "listing"; empty means "post"
	Content     string
	ImageURL    string
	CreatedAt   time.Time

	// Pre-aggregated engagement counts.
	Likes    int
	Comments int
	Shares   int

	// Author attributes.
	AuthorLat      *float64
	AuthorLon      *float64
	AuthorJoinedAt time.Time
}

// Viewer identifies who the feed is ranked for. A zero-value viewer
// (unknown user) disables the personalized factors.
type Viewer struct {
	ID  string
	Lat *float64
	Lon *float64
}

// Scorer computes feed ranks. It is stateless apart from its immutable
// collaborators and safe for concurrent use.
type Scorer struct {
	sources Sources
	logger  *slog.Logger
	now     func() time.Time
}

// NewScorer creates a feed scorer. Nil fields in sources disable the
// corresponding factor (it scores neutral). The clock is injectable for
// tests via WithClock.
func NewScorer(sources Sources, logger *slog.Logger, opts ...Option) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scorer{
		sources: sources,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock overrides the scorer's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// Score computes the rank for one post. Every sub-score lands in the
// item breakdown so callers can explain the final rank.
func (s *Scorer) Score(ctx context.Context, post Post, viewer Viewer, p *profile.Profile) *scored.Item {
	fp := p.Feed
	now := s.now()

	engagement := EngagementScore(post.Likes, post.Comments, post.Shares, fp)
	vitality := s.vitalityScore(ctx, post, fp, now)
	geoScore, distance := s.geoScore(post, viewer, fp)
	freshness := freshnessScore(post.CreatedAt, fp, now)
	social := s.socialGraphScore(ctx, viewer, post.AuthorID, fp, now)
	negative := s.negativeSignalsScore(ctx, viewer, post, fp)
	quality := QualityScore(post.Content, post.ImageURL, fp)

	final := engagement * vitality * geoScore * freshness * social * negative * quality

	contentType := post.ContentType
	if contentType == "" {
		contentType = "post"
	}

	item := &scored.Item{
		ID:          post.ID,
		AuthorID:    post.AuthorID,
		ContentType: contentType,
		Score:       final,
		Breakdown: map[string]float64{
			"engagement":       engagement,
			"vitality":         vitality,
			"geo":              geoScore,
			"freshness":        freshness,
			"social_graph":     social,
			"negative_signals": negative,
			"quality":          quality,
		},
		DistanceKm: distance,
	}
	item.Reasons = reasons(post, vitality, now)

	return item
}

// Rank scores a batch of posts for one viewer, sorts by rank (ties
// broken by recency) and applies the diversity reordering passes.
func (s *Scorer) Rank(ctx context.Context, posts []Post, viewer Viewer, p *profile.Profile) []*scored.Item {
	items := make([]*scored.Item, 0, len(posts))
	createdAt := make(map[string]time.Time, len(posts))
	for _, post := range posts {
		items = append(items, s.Score(ctx, post, viewer, p))
		createdAt[post.ID] = post.CreatedAt
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return createdAt[items[i].ID].After(createdAt[items[j].ID])
	})

	if p.Diversity.AuthorEnabled {
		items = rerank.ByAuthor(items, p.Diversity.AuthorMaxConsecutive, p.Diversity.AuthorPenalty)
	}
	if p.Diversity.TypeEnabled {
		items = rerank.ByType(items, p.Diversity.TypeMaxConsecutive)
	}

	return items
}

// EngagementScore computes the weighted engagement factor with a floor
// of 1.0, so a post with zero engagement is not silenced by this factor
// alone.
func EngagementScore(likes, comments, shares int, p profile.FeedParams) float64 {
	score := float64(likes)*p.LikeWeight +
		float64(comments)*p.CommentWeight +
		float64(shares)*p.ShareWeight
	return math.Max(1.0, score)
}

// vitalityScore applies linear decay over days since the author's last
// qualifying activity. Fallback order: activity source, account
// creation date, profile minimum.
func (s *Scorer) vitalityScore(ctx context.Context, post Post, p profile.FeedParams, now time.Time) float64 {
	last, ok := s.lastActivity(ctx, post)
	if !ok {
		return p.VitalityMinimum
	}
	days := now.Sub(last).Hours() / 24
	return decay.Linear(days, p.VitalityFullDays, p.VitalityDecayDays, p.VitalityMinimum)
}

func (s *Scorer) lastActivity(ctx context.Context, post Post) (time.Time, bool) {
	if s.sources.Activity != nil {
		t, ok, err := s.sources.Activity.LastActivity(ctx, post.AuthorID)
		if err != nil {
			s.logger.Debug("activity lookup failed, falling back",
				"author_id", post.AuthorID,
				"error", err)
		} else if ok {
			return t, true
		}
	}
	if !post.AuthorJoinedAt.IsZero() {
		return post.AuthorJoinedAt, true
	}
	return time.Time{}, false
}

// geoScore applies the step decay over viewer-to-author distance. A
// missing coordinate on either side means no penalty, not a floor.
func (s *Scorer) geoScore(post Post, viewer Viewer, p profile.FeedParams) (score, distance float64) {
	d := geo.HaversinePtr(viewer.Lat, viewer.Lon, post.AuthorLat, post.AuthorLon)
	if d == geo.Infinite {
		return 1.0, -1
	}
	return decay.StepGeo(d, p.GeoFullRadiusKm, p.GeoDecayIntervalKm, p.GeoDecayRate, p.GeoMinimum), d
}

func freshnessScore(createdAt time.Time, p profile.FeedParams, now time.Time) float64 {
	if !p.FreshnessEnabled || createdAt.IsZero() {
		return 1.0
	}
	ageHours := now.Sub(createdAt).Hours()
	return decay.Exponential(ageHours, p.FreshnessFullHours, p.FreshnessHalfLife, p.FreshnessMinimum)
}

// socialGraphScore boosts content from authors the viewer interacts
// with, on a logarithmic scale with diminishing returns, capped at the
// profile maximum.
func (s *Scorer) socialGraphScore(ctx context.Context, viewer Viewer, authorID string, p profile.FeedParams, now time.Time) float64 {
	if !p.SocialGraphEnabled || viewer.ID == "" || s.sources.Interactions == nil {
		return 1.0
	}

	since := now.AddDate(0, 0, -p.SocialGraphLookbackDays)
	count, err := s.sources.Interactions.InteractionCount(ctx, viewer.ID, authorID, since)
	if err != nil {
		s.logger.Debug("interaction lookup failed, skipping social boost",
			"viewer_id", viewer.ID,
			"author_id", authorID,
			"error", err)
		return 1.0
	}
	if count <= 0 {
		return 1.0
	}

	// Spread the boost over roughly four doublings: one interaction
	// yields about a third of the cap, fifteen or more reach it.
	boostFactor := (p.SocialGraphMaxBoost - 1) / 4
	score := 1.0 + math.Log2(float64(count)+1)*boostFactor

	return math.Min(p.SocialGraphMaxBoost, score)
}

// negativeSignalsScore applies the viewer's moderation signals with
// fixed precedence: hide beats mute beats reports. Each lookup failure
// degrades to "no signal" so ranking never aborts.
func (s *Scorer) negativeSignalsScore(ctx context.Context, viewer Viewer, post Post, p profile.FeedParams) float64 {
	if !p.NegativeSignalsEnabled || viewer.ID == "" || s.sources.Negative == nil {
		return 1.0
	}

	hidden, err := s.sources.Negative.HasHidden(ctx, viewer.ID, post.ID)
	if err == nil && hidden {
		return p.HidePenalty
	}

	muted, err := s.sources.Negative.HasMuted(ctx, viewer.ID, post.AuthorID)
	if err == nil && muted {
		return p.MutePenalty
	}

	reports, err := s.sources.Negative.ReportCount(ctx, post.ID)
	if err == nil && reports > 0 {
		penalty := 1.0 - float64(reports)*p.ReportPenaltyPer
		return math.Max(0.1, penalty)
	}

	return 1.0
}

// newMemberDays is the account age under which an author counts as a
// new member for recommendation context.
const newMemberDays = 14

// inactiveVitalityThreshold marks a creator as inactive when their
// vitality has decayed to 60% or below.
const inactiveVitalityThreshold = 0.6

func reasons(post Post, vitality float64, now time.Time) []string {
	var out []string
	if !post.AuthorJoinedAt.IsZero() && now.Sub(post.AuthorJoinedAt).Hours() <= newMemberDays*24 {
		out = append(out, "New member")
	}
	if vitality <= inactiveVitalityThreshold {
		out = append(out, "Creator needs support")
	}
	if !post.CreatedAt.IsZero() && now.Sub(post.CreatedAt).Hours() <= 24 {
		out = append(out, "Posted within the last 24 hours")
	}
	return out
}
