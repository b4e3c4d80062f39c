// Package match implements marketplace match scoring: offers are paired
// with requests (and vice versa) via a weighted sum of six bounded
// factors, scaled to a 0-100 score with human-readable reasons.
package match

import (
	"fmt"
	"math"
	"time"

	"github.com/jasperfordesq-ai/nexus-relevance/internal/decay"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/geo"
	"github.com/jasperfordesq-ai/nexus-relevance/internal/profile"
)

// Listing types.
const (
	TypeOffer   = "offer"
	TypeRequest = "request"
)

// Match classifications ordered by reciprocity strength.
const (
	MatchMutual    = "mutual"
	MatchPotential = "potential"
	MatchOneWay    = "one_way"
	MatchColdStart = "cold_start"
)

// Listing is a marketplace listing candidate with owner attributes
// denormalized at the retrieval boundary.
type Listing struct {
	ID           string
	TenantID     string
	UserID       string
	Type         string // TypeOffer or TypeRequest
	CategoryID   string
	CategoryName string
	Title        string
	Description  string
	ImageURL     string
	CreatedAt    time.Time

	Lat *float64
	Lon *float64

	// DistanceKm is the distance to the querying user when the store
	// computed it during retrieval; nil otherwise.
	DistanceKm *float64

	AuthorVerified bool
	AuthorRating   float64
}

// User is the person matches are computed for.
type User struct {
	ID     string
	Skills string
	Lat    *float64
	Lon    *float64
}

// Result is the outcome of scoring one candidate listing.
type Result struct {
	Score      float64
	Reasons    []string
	Breakdown  map[string]float64
	DistanceKm float64 // -1 when unknown
	Type       string  // reciprocity classification
}

// ScoreMatch computes the weighted match score between a user's listing
// and a candidate. candidateListings are the candidate owner's own
// active listings, used for the reciprocity factor. The returned score
// is on the 0-100 scale before any historical boost.
func ScoreMatch(user User, userListings []Listing, myListing, candidate Listing, candidateListings []Listing, p profile.MatchParams, now time.Time) Result {
	var reasons []string

	category := CategoryScore(myListing, candidate)
	if category >= 0.8 {
		name := candidate.CategoryName
		if name == "" {
			name = "General"
		}
		reasons = append(reasons, "Same category: "+name)
	}

	skill := SkillScore(user, myListing, candidate)
	if skill >= 0.5 {
		reasons = append(reasons, "Skills match your expertise")
	}

	distance := candidateDistance(user, candidate)
	proximity := ProximityScore(distance, p.Proximity)
	switch {
	case distance <= p.Proximity.WalkingKm:
		reasons = append(reasons, fmt.Sprintf("Very close: %.1f km away", distance))
	case distance <= p.Proximity.LocalKm:
		reasons = append(reasons, fmt.Sprintf("Nearby: %.1f km away", distance))
	}

	freshness := FreshnessScore(candidate.CreatedAt, p, now)
	if freshness >= 0.9 {
		reasons = append(reasons, "Posted recently")
	}

	reciprocity, matchType := ReciprocityScore(userListings, candidateListings)
	if matchType == MatchMutual {
		reasons = append(reasons, "Mutual exchange possible!")
	}

	quality := QualitySignalScore(candidate, p)
	if quality >= 0.8 {
		reasons = append(reasons, "Highly rated member")
	}

	w := p.Weights
	final := category*w.Category +
		skill*w.Skill +
		proximity*w.Proximity +
		freshness*w.Freshness +
		reciprocity*w.Reciprocity +
		quality*w.Quality

	// One decimal on the 0-100 scale.
	final = math.Round(final*1000) / 10

	reportedDistance := -1.0
	if distance != geo.Infinite {
		reportedDistance = math.Round(distance*10) / 10
	}

	return Result{
		Score:   final,
		Reasons: reasons,
		Breakdown: map[string]float64{
			"category":    category,
			"skill":       skill,
			"proximity":   proximity,
			"freshness":   freshness,
			"reciprocity": reciprocity,
			"quality":     quality,
		},
		DistanceKm: reportedDistance,
		Type:       matchType,
	}
}

// CategoryScore is 1.0 on an exact category match and a 0.3 base
// otherwise, so cross-category candidates are dampened but not
// eliminated.
func CategoryScore(myListing, candidate Listing) float64 {
	if myListing.CategoryID != "" && myListing.CategoryID == candidate.CategoryID {
		return 1.0
	}
	return 0.3
}

// SkillScore measures keyword overlap between the user side (declared
// skills plus their own listing text) and the candidate listing text.
// The overlap ratio is boosted by 1.5 and capped at 1.0; with no
// keywords on either side the factor is a neutral 0.5.
func SkillScore(user User, myListing, candidate Listing) float64 {
	userKeywords := ExtractKeywords(user.Skills + " " + myListing.Title + " " + myListing.Description)
	candidateKeywords := ExtractKeywords(candidate.Title + " " + candidate.Description)

	if len(userKeywords) == 0 || len(candidateKeywords) == 0 {
		return 0.5
	}

	userSet := make(map[string]struct{}, len(userKeywords))
	for _, k := range userKeywords {
		userSet[k] = struct{}{}
	}
	matches := 0
	for _, k := range candidateKeywords {
		if _, ok := userSet[k]; ok {
			matches++
		}
	}

	ratio := float64(matches) / float64(len(candidateKeywords))
	return math.Min(1.0, ratio*1.5)
}

// ProximityScore maps distance onto the piecewise-linear bands:
// 1.0 within walking range, then interpolating through 0.9 (local),
// 0.7 (city), 0.5 (regional) down to 0.1 at the maximum band. Beyond
// that the score tails off hyperbolically with a 0.05 floor.
func ProximityScore(distanceKm float64, b profile.ProximityBands) float64 {
	switch {
	case distanceKm <= b.WalkingKm:
		return 1.0
	case distanceKm <= b.LocalKm:
		ratio := (distanceKm - b.WalkingKm) / (b.LocalKm - b.WalkingKm)
		return 1.0 - ratio*0.1
	case distanceKm <= b.CityKm:
		ratio := (distanceKm - b.LocalKm) / (b.CityKm - b.LocalKm)
		return 0.9 - ratio*0.2
	case distanceKm <= b.RegionalKm:
		ratio := (distanceKm - b.CityKm) / (b.RegionalKm - b.CityKm)
		return 0.7 - ratio*0.2
	case distanceKm <= b.MaxKm:
		ratio := (distanceKm - b.RegionalKm) / (b.MaxKm - b.RegionalKm)
		return 0.5 - ratio*0.4
	}
	return math.Max(0.05, 0.1*(b.MaxKm/distanceKm))
}

// FreshnessScore applies exponential half-life decay to listing age. A
// listing with no creation date scores a neutral 0.5.
func FreshnessScore(createdAt time.Time, p profile.MatchParams, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0.5
	}
	ageHours := now.Sub(createdAt).Hours()
	return decay.Exponential(ageHours, p.FreshnessFullHours, p.FreshnessHalfLifeDays*24, p.FreshnessMinimum)
}

// ReciprocityScore classifies the exchange potential between the user
// and the candidate's owner by intersecting offer and request
// categories in both directions.
func ReciprocityScore(userListings, candidateListings []Listing) (float64, string) {
	if len(candidateListings) == 0 {
		return 0.3, MatchOneWay
	}

	userOffers := categorySet(userListings, TypeOffer)
	userRequests := categorySet(userListings, TypeRequest)
	candidateOffers := categorySet(candidateListings, TypeOffer)
	candidateRequests := categorySet(candidateListings, TypeRequest)

	candidateNeedsUserOffer := intersects(userOffers, candidateRequests)
	userNeedsCandidateOffer := intersects(candidateOffers, userRequests)

	switch {
	case candidateNeedsUserOffer && userNeedsCandidateOffer:
		return 1.0, MatchMutual
	case candidateNeedsUserOffer || userNeedsCandidateOffer:
		return 0.7, MatchPotential
	}
	return 0.4, MatchOneWay
}

// QualitySignalScore starts at a 0.5 base and adds 0.1 per quality
// signal (description length at one and two times the minimum, image,
// verified owner, owner rating at the threshold), capped at 1.0.
func QualitySignalScore(candidate Listing, p profile.MatchParams) float64 {
	score := 0.5

	descLen := len(candidate.Description)
	if descLen >= p.QualityMinDescription {
		score += 0.1
	}
	if descLen >= p.QualityMinDescription*2 {
		score += 0.1
	}
	if candidate.ImageURL != "" {
		score += 0.1
	}
	if candidate.AuthorVerified {
		score += 0.1
	}
	if candidate.AuthorRating >= p.QualityRatingThreshold {
		score += 0.1
	}

	return math.Min(1.0, score)
}

// candidateDistance prefers the store-computed retrieval distance and
// falls back to the haversine between the user and the candidate.
// Returns geo.Infinite when neither side has coordinates.
func candidateDistance(user User, candidate Listing) float64 {
	if candidate.DistanceKm != nil {
		return *candidate.DistanceKm
	}
	return geo.HaversinePtr(user.Lat, user.Lon, candidate.Lat, candidate.Lon)
}

func categorySet(listings []Listing, listingType string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, l := range listings {
		if l.Type == listingType && l.CategoryID != "" {
			set[l.CategoryID] = struct{}{}
		}
	}
	return set
}

func intersects(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}
