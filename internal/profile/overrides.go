package profile

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is the raw tenant configuration shape. Tenants store a
// single JSON document; scoring-related overrides live under the
// "feed_algorithm" and "algorithms.smart_matching" keys. Unknown keys
// are ignored.
type Document struct {
	FeedAlgorithm *FeedOverrides `json:"feed_algorithm,omitempty"`
	Algorithms    *struct {
		SmartMatching *MatchOverrides `json:"smart_matching,omitempty"`
	} `json:"algorithms,omitempty"`
}

// FeedOverrides are optional tenant overrides for the feed pipeline.
// Pointer fields distinguish "not set" from an explicit zero, so a
// tenant can legitimately set a penalty to 0.
type FeedOverrides struct {
	Enabled       *bool    `json:"enabled,omitempty"`
	LikeWeight    *float64 `json:"like_weight,omitempty"`
	CommentWeight *float64 `json:"comment_weight,omitempty"`
	ShareWeight   *float64 `json:"share_weight,omitempty"`

	VitalityFullDays  *float64 `json:"vitality_full_days,omitempty"`
	VitalityDecayDays *float64 `json:"vitality_decay_days,omitempty"`
	VitalityMinimum   *float64 `json:"vitality_minimum,omitempty"`

	GeoFullRadius    *float64 `json:"geo_full_radius,omitempty"`
	GeoDecayInterval *float64 `json:"geo_decay_interval,omitempty"`
	GeoDecayRate     *float64 `json:"geo_decay_rate,omitempty"`
	GeoMinimum       *float64 `json:"geo_minimum,omitempty"`

	FreshnessEnabled   *bool    `json:"freshness_enabled,omitempty"`
	FreshnessFullHours *float64 `json:"freshness_full_hours,omitempty"`
	FreshnessHalfLife  *float64 `json:"freshness_half_life,omitempty"`
	FreshnessMinimum   *float64 `json:"freshness_minimum,omitempty"`

	SocialGraphEnabled      *bool    `json:"social_graph_enabled,omitempty"`
	SocialGraphMaxBoost     *float64 `json:"social_graph_max_boost,omitempty"`
	SocialGraphLookbackDays *int     `json:"social_graph_lookback_days,omitempty"`

	NegativeSignalsEnabled *bool    `json:"negative_signals_enabled,omitempty"`
	HidePenalty            *float64 `json:"hide_penalty,omitempty"`
	MutePenalty            *float64 `json:"mute_penalty,omitempty"`
	BlockPenalty           *float64 `json:"block_penalty,omitempty"`
	ReportPenaltyPer       *float64 `json:"report_penalty_per,omitempty"`

	QualityEnabled      *bool    `json:"quality_enabled,omitempty"`
	QualityImageBoost   *float64 `json:"quality_image_boost,omitempty"`
	QualityLinkBoost    *float64 `json:"quality_link_boost,omitempty"`
	QualityVideoBoost   *float64 `json:"quality_video_boost,omitempty"`
	QualityHashtagBoost *float64 `json:"quality_hashtag_boost,omitempty"`
	QualityMentionBoost *float64 `json:"quality_mention_boost,omitempty"`
	QualityLengthMin    *int     `json:"quality_length_min,omitempty"`
	QualityLengthBonus  *float64 `json:"quality_length_bonus,omitempty"`

	DiversityEnabled            *bool    `json:"diversity_enabled,omitempty"`
	DiversityMaxConsecutive     *int     `json:"diversity_max_consecutive,omitempty"`
	DiversityPenalty            *float64 `json:"diversity_penalty,omitempty"`
	DiversityTypeEnabled        *bool    `json:"diversity_type_enabled,omitempty"`
	DiversityTypeMaxConsecutive *int     `json:"diversity_type_max_consecutive,omitempty"`
}

// MatchOverrides are optional tenant overrides for the match pipeline.
type MatchOverrides struct {
	Enabled           *bool    `json:"enabled,omitempty"`
	MaxDistanceKm     *float64 `json:"max_distance_km,omitempty"`
	MinMatchScore     *float64 `json:"min_match_score,omitempty"`
	HotMatchThreshold *float64 `json:"hot_match_threshold,omitempty"`
	CacheTTLHours     *float64 `json:"cache_ttl_hours,omitempty"`

	Weights *struct {
		Category    *float64 `json:"category,omitempty"`
		Skill       *float64 `json:"skill,omitempty"`
		Proximity   *float64 `json:"proximity,omitempty"`
		Freshness   *float64 `json:"freshness,omitempty"`
		Reciprocity *float64 `json:"reciprocity,omitempty"`
		Quality     *float64 `json:"quality,omitempty"`
	} `json:"weights,omitempty"`

	Proximity *struct {
		WalkingKm  *float64 `json:"walking_km,omitempty"`
		LocalKm    *float64 `json:"local_km,omitempty"`
		CityKm     *float64 `json:"city_km,omitempty"`
		RegionalKm *float64 `json:"regional_km,omitempty"`
		MaxKm      *float64 `json:"max_km,omitempty"`
	} `json:"proximity,omitempty"`
}

// Merge applies a parsed tenant document over a copy of base and
// returns the result. Tenant keys win; missing keys keep the base
// value. The base is never modified.
func Merge(base *Profile, doc *Document) *Profile {
	if base == nil {
		base = Default()
	}
	merged := *base
	if doc == nil {
		return &merged
	}

	if f := doc.FeedAlgorithm; f != nil {
		applyFeed(&merged.Feed, &merged.Diversity, f)
	}
	if doc.Algorithms != nil && doc.Algorithms.SmartMatching != nil {
		applyMatch(&merged.Match, doc.Algorithms.SmartMatching)
	}

	return &merged
}

// Parse unmarshals a raw tenant configuration document. An empty
// payload yields a nil document (caller keeps defaults).
func Parse(raw []byte) (*Document, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse tenant scoring config: %w", err)
	}
	return &doc, nil
}

func applyFeed(p *FeedParams, d *DiversityParams, o *FeedOverrides) {
	setBool(&p.Enabled, o.Enabled)
	setFloat(&p.LikeWeight, o.LikeWeight)
	setFloat(&p.CommentWeight, o.CommentWeight)
	setFloat(&p.ShareWeight, o.ShareWeight)

	setFloat(&p.VitalityFullDays, o.VitalityFullDays)
	setFloat(&p.VitalityDecayDays, o.VitalityDecayDays)
	setFloat(&p.VitalityMinimum, o.VitalityMinimum)

	setFloat(&p.GeoFullRadiusKm, o.GeoFullRadius)
	setFloat(&p.GeoDecayIntervalKm, o.GeoDecayInterval)
	setFloat(&p.GeoDecayRate, o.GeoDecayRate)
	setFloat(&p.GeoMinimum, o.GeoMinimum)

	setBool(&p.FreshnessEnabled, o.FreshnessEnabled)
	setFloat(&p.FreshnessFullHours, o.FreshnessFullHours)
	setFloat(&p.FreshnessHalfLife, o.FreshnessHalfLife)
	setFloat(&p.FreshnessMinimum, o.FreshnessMinimum)

	setBool(&p.SocialGraphEnabled, o.SocialGraphEnabled)
	setFloat(&p.SocialGraphMaxBoost, o.SocialGraphMaxBoost)
	setInt(&p.SocialGraphLookbackDays, o.SocialGraphLookbackDays)

	setBool(&p.NegativeSignalsEnabled, o.NegativeSignalsEnabled)
	setFloat(&p.HidePenalty, o.HidePenalty)
	setFloat(&p.MutePenalty, o.MutePenalty)
	setFloat(&p.BlockPenalty, o.BlockPenalty)
	setFloat(&p.ReportPenaltyPer, o.ReportPenaltyPer)

	setBool(&p.QualityEnabled, o.QualityEnabled)
	setFloat(&p.QualityImageBoost, o.QualityImageBoost)
	setFloat(&p.QualityLinkBoost, o.QualityLinkBoost)
	setFloat(&p.QualityVideoBoost, o.QualityVideoBoost)
	setFloat(&p.QualityHashtagBoost, o.QualityHashtagBoost)
	setFloat(&p.QualityMentionBoost, o.QualityMentionBoost)
	setInt(&p.QualityLengthMin, o.QualityLengthMin)
	setFloat(&p.QualityLengthBonus, o.QualityLengthBonus)

	setBool(&d.AuthorEnabled, o.DiversityEnabled)
	setInt(&d.AuthorMaxConsecutive, o.DiversityMaxConsecutive)
	setFloat(&d.AuthorPenalty, o.DiversityPenalty)
	setBool(&d.TypeEnabled, o.DiversityTypeEnabled)
	setInt(&d.TypeMaxConsecutive, o.DiversityTypeMaxConsecutive)
}

func applyMatch(p *MatchParams, o *MatchOverrides) {
	setBool(&p.Enabled, o.Enabled)
	setFloat(&p.MaxDistanceKm, o.MaxDistanceKm)
	setFloat(&p.MinMatchScore, o.MinMatchScore)
	setFloat(&p.HotMatchThreshold, o.HotMatchThreshold)
	if o.CacheTTLHours != nil {
		p.CacheTTL = time.Duration(*o.CacheTTLHours * float64(time.Hour))
	}

	if w := o.Weights; w != nil {
		setFloat(&p.Weights.Category, w.Category)
		setFloat(&p.Weights.Skill, w.Skill)
		setFloat(&p.Weights.Proximity, w.Proximity)
		setFloat(&p.Weights.Freshness, w.Freshness)
		setFloat(&p.Weights.Reciprocity, w.Reciprocity)
		setFloat(&p.Weights.Quality, w.Quality)
	}
	if b := o.Proximity; b != nil {
		setFloat(&p.Proximity.WalkingKm, b.WalkingKm)
		setFloat(&p.Proximity.LocalKm, b.LocalKm)
		setFloat(&p.Proximity.CityKm, b.CityKm)
		setFloat(&p.Proximity.RegionalKm, b.RegionalKm)
		setFloat(&p.Proximity.MaxKm, b.MaxKm)
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
