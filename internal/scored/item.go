// Package scored defines the scored item produced by the feed and match
// pipelines and consumed by the diversity reordering pass.
package scored

// Item is a feed post or listing plus its computed ranking. Pipelines
// create one Item per candidate; the diversity pass may adjust Score
// and reorder, but the breakdown and reasons are fixed at scoring time.
type Item struct {
	// ID identifies the underlying post or listing.
	ID string

	// AuthorID is the creator of the content, used by author diversity.
	AuthorID string

	// ContentType distinguishes posts, events, offers and requests,
	// used by type diversity.
	ContentType string

	// Score is the final composed score. Feed scores are open-ended
	// multiplicative products; match scores are on a 0-100 scale.
	Score float64

	// Breakdown holds the named sub-scores that composed Score.
	Breakdown map[string]float64

	// Reasons are short human-readable explanations for the rank
	// ("Same category: Gardening", "Posted recently").
	Reasons []string

	// MatchType classifies match pipeline results (mutual, potential,
	// one_way, cold_start). Empty for feed items.
	MatchType string

	// DistanceKm is the computed distance to the viewer, negative when
	// unknown.
	DistanceKm float64
}

// Clone returns a deep copy so reordering passes can adjust scores
// without mutating the caller's slice elements.
func (it *Item) Clone() *Item {
	cp := *it
	if it.Breakdown != nil {
		cp.Breakdown = make(map[string]float64, len(it.Breakdown))
		for k, v := range it.Breakdown {
			cp.Breakdown[k] = v
		}
	}
	if it.Reasons != nil {
		cp.Reasons = append([]string(nil), it.Reasons...)
	}
	return &cp
}
