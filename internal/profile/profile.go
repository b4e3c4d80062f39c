// Package profile defines the tenant-scoped scoring profile that governs
// both the feed ranking and match scoring pipelines, along with its
// built-in defaults, override merging and per-tenant resolution.
package profile

import (
	"fmt"
	"time"
)

// FeedParams holds every weight and threshold used by the feed ranking
// pipeline. All boosts are multiplicative factors; all minimums are
// decay floors.
type FeedParams struct {
	Enabled bool

	// Engagement weights
	LikeWeight    float64
	CommentWeight float64
	ShareWeight   float64

	// Creator vitality (days since last qualifying activity)
	VitalityFullDays  float64
	VitalityDecayDays float64
	VitalityMinimum   float64

	// Geospatial step decay (kilometers)
	GeoFullRadiusKm    float64
	GeoDecayIntervalKm float64
	GeoDecayRate       float64
	GeoMinimum         float64

	// Content freshness (hours, exponential half-life)
	FreshnessEnabled   bool
	FreshnessFullHours float64
	FreshnessHalfLife  float64
	FreshnessMinimum   float64

	// Social graph boost
	SocialGraphEnabled      bool
	SocialGraphMaxBoost     float64
	SocialGraphLookbackDays int

	// Negative signals
	NegativeSignalsEnabled bool
	HidePenalty            float64
	MutePenalty            float64
	BlockPenalty           float64
	ReportPenaltyPer       float64

	// Content quality boosts
	QualityEnabled      bool
	QualityImageBoost   float64
	QualityLinkBoost    float64
	QualityVideoBoost   float64
	QualityHashtagBoost float64
	QualityMentionBoost float64
	QualityLengthMin    int
	QualityLengthBonus  float64
}

// MatchWeights are the additive composition weights for the match
// pipeline. They conceptually sum to 1.0; this is documented rather
// than enforced so tenants can deliberately over- or under-weight, but
// negative values are rejected at load time.
type MatchWeights struct {
	Category    float64
	Skill       float64
	Proximity   float64
	Freshness   float64
	Reciprocity float64
	Quality     float64
}

// ProximityBands are the piecewise-linear distance bands for the match
// proximity factor, in kilometers.
type ProximityBands struct {
	WalkingKm  float64
	LocalKm    float64
	CityKm     float64
	RegionalKm float64
	MaxKm      float64
}

// MatchParams holds every weight and threshold used by the match
// scoring pipeline and the match cache.
type MatchParams struct {
	Enabled bool

	Weights   MatchWeights
	Proximity ProximityBands

	// Listing freshness (exponential, half-life in days)
	FreshnessFullHours    float64
	FreshnessHalfLifeDays float64
	FreshnessMinimum      float64

	// Quality signal thresholds
	QualityMinDescription  int
	QualityRatingThreshold float64

	// Retrieval and classification bounds
	MaxDistanceKm     float64
	MinMatchScore     float64
	HotMatchThreshold float64

	// CacheTTL is how long precomputed match rows stay valid.
	CacheTTL time.Duration
}

// DiversityParams configure the post-ranking diversity reordering pass.
type DiversityParams struct {
	AuthorEnabled        bool
	AuthorMaxConsecutive int
	AuthorPenalty        float64
	TypeEnabled          bool
	TypeMaxConsecutive   int
}

// Profile is an immutable snapshot of all scoring configuration for one
// tenant. Construct via Default plus override merging; never mutate a
// Profile that has been handed to a pipeline.
type Profile struct {
	Feed      FeedParams
	Match     MatchParams
	Diversity DiversityParams
}

// Default returns the built-in scoring profile. These values are the
// documented platform defaults and double as the fallback whenever a
// tenant's configuration is missing or malformed.
func Default() *Profile {
	return &Profile{
		Feed: FeedParams{
			Enabled:       true,
			LikeWeight:    1,
			CommentWeight: 5,
			ShareWeight:   8,

			VitalityFullDays:  7,
			VitalityDecayDays: 30,
			VitalityMinimum:   0.5,

			GeoFullRadiusKm:    10,
			GeoDecayIntervalKm: 10,
			GeoDecayRate:       0.10,
			GeoMinimum:         0.1,

			FreshnessEnabled:   true,
			FreshnessFullHours: 24,
			FreshnessHalfLife:  72,
			FreshnessMinimum:   0.3,

			SocialGraphEnabled:      true,
			SocialGraphMaxBoost:     2.0,
			SocialGraphLookbackDays: 90,

			NegativeSignalsEnabled: true,
			HidePenalty:            0.0,
			MutePenalty:            0.1,
			BlockPenalty:           0.0,
			ReportPenaltyPer:       0.15,

			QualityEnabled:      true,
			QualityImageBoost:   1.3,
			QualityLinkBoost:    1.1,
			QualityVideoBoost:   1.4,
			QualityHashtagBoost: 1.1,
			QualityMentionBoost: 1.15,
			QualityLengthMin:    50,
			QualityLengthBonus:  1.2,
		},
		Match: MatchParams{
			Enabled: true,
			Weights: MatchWeights{
				Category:    0.25,
				Skill:       0.20,
				Proximity:   0.25,
				Freshness:   0.10,
				Reciprocity: 0.15,
				Quality:     0.05,
			},
			Proximity: ProximityBands{
				WalkingKm:  5,
				LocalKm:    15,
				CityKm:     30,
				RegionalKm: 50,
				MaxKm:      100,
			},
			FreshnessFullHours:    24,
			FreshnessHalfLifeDays: 14,
			FreshnessMinimum:      0.3,

			QualityMinDescription:  50,
			QualityRatingThreshold: 4.0,

			MaxDistanceKm:     50,
			MinMatchScore:     40,
			HotMatchThreshold: 80,

			CacheTTL: 7 * 24 * time.Hour,
		},
		Diversity: DiversityParams{
			AuthorEnabled:        true,
			AuthorMaxConsecutive: 2,
			AuthorPenalty:        0.5,
			TypeEnabled:          true,
			TypeMaxConsecutive:   3,
		},
	}
}

// Validate checks a profile for values that would corrupt scoring.
// Unlike missing-data degradations, a validation failure here means the
// tenant override document is wrong and the resolver falls back to
// defaults.
func (p *Profile) Validate() error {
	if p.Feed.LikeWeight < 0 || p.Feed.CommentWeight < 0 || p.Feed.ShareWeight < 0 {
		return fmt.Errorf("engagement weights must be non-negative")
	}
	if p.Feed.VitalityDecayDays <= p.Feed.VitalityFullDays {
		return fmt.Errorf("vitality decay threshold %v must exceed full threshold %v",
			p.Feed.VitalityDecayDays, p.Feed.VitalityFullDays)
	}
	if p.Feed.GeoDecayIntervalKm <= 0 {
		return fmt.Errorf("geo decay interval must be positive, got %v", p.Feed.GeoDecayIntervalKm)
	}
	if p.Feed.GeoDecayRate < 0 || p.Feed.GeoMinimum < 0 {
		return fmt.Errorf("geo decay parameters must be non-negative")
	}
	if p.Feed.FreshnessHalfLife <= 0 {
		return fmt.Errorf("feed freshness half-life must be positive, got %v", p.Feed.FreshnessHalfLife)
	}
	if p.Feed.SocialGraphMaxBoost < 1 {
		return fmt.Errorf("social graph max boost must be at least 1.0, got %v", p.Feed.SocialGraphMaxBoost)
	}
	for name, v := range map[string]float64{
		"hide":       p.Feed.HidePenalty,
		"mute":       p.Feed.MutePenalty,
		"block":      p.Feed.BlockPenalty,
		"report_per": p.Feed.ReportPenaltyPer,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("negative-signal penalty %q must be within [0,1], got %v", name, v)
		}
	}

	w := p.Match.Weights
	for name, v := range map[string]float64{
		"category":    w.Category,
		"skill":       w.Skill,
		"proximity":   w.Proximity,
		"freshness":   w.Freshness,
		"reciprocity": w.Reciprocity,
		"quality":     w.Quality,
	} {
		if v < 0 {
			return fmt.Errorf("match weight %q must be non-negative, got %v", name, v)
		}
	}
	b := p.Match.Proximity
	if !(b.WalkingKm < b.LocalKm && b.LocalKm < b.CityKm && b.CityKm < b.RegionalKm && b.RegionalKm < b.MaxKm) {
		return fmt.Errorf("proximity bands must be strictly increasing")
	}
	if p.Match.FreshnessHalfLifeDays <= 0 {
		return fmt.Errorf("match freshness half-life must be positive, got %v", p.Match.FreshnessHalfLifeDays)
	}
	if p.Match.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %v", p.Match.CacheTTL)
	}

	if p.Diversity.AuthorMaxConsecutive < 1 || p.Diversity.TypeMaxConsecutive < 1 {
		return fmt.Errorf("diversity max consecutive limits must be at least 1")
	}
	if p.Diversity.AuthorPenalty < 0 || p.Diversity.AuthorPenalty > 1 {
		return fmt.Errorf("diversity author penalty must be within [0,1], got %v", p.Diversity.AuthorPenalty)
	}

	return nil
}
