package match

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jasperfordesq-ai/nexus-relevance/internal/profile"
)

var scoreNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"stop words removed", "I need help with the garden", []string{"garden"}},
		{"short words removed", "go up to DIY", []string{"diy"}},
		{"duplicates removed", "piano piano lessons", []string{"piano", "lessons"}},
		{"lowercased", "Guitar Lessons", []string{"guitar", "lessons"}},
		{"empty text", "", nil},
		{"marketplace noise removed", "offer: looking to offer help", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractKeywords(tt.text)
			if len(got) != len(tt.expected) {
				t.Fatalf("ExtractKeywords(%q) = %v, expected %v", tt.text, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("keyword[%d] = %q, expected %q", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestCategoryScore(t *testing.T) {
	mine := Listing{CategoryID: "cat-1"}

	if got := CategoryScore(mine, Listing{CategoryID: "cat-1"}); got != 1.0 {
		t.Errorf("same category = %f, expected 1.0", got)
	}
	if got := CategoryScore(mine, Listing{CategoryID: "cat-2"}); got != 0.3 {
		t.Errorf("different category = %f, expected 0.3", got)
	}
	if got := CategoryScore(Listing{}, Listing{}); got != 0.3 {
		t.Errorf("no category = %f, expected 0.3 base", got)
	}
}

func TestSkillScore(t *testing.T) {
	user := User{Skills: "carpentry woodwork joinery"}
	mine := Listing{Title: "Furniture repair", Description: "fixing chairs and tables"}

	tests := []struct {
		name      string
		candidate Listing
		expected  float64
	}{
		{
			// All three candidate keywords overlap: ratio 1.0, capped.
			name:      "full overlap capped at 1.0",
			candidate: Listing{Title: "carpentry", Description: "woodwork joinery"},
			expected:  1.0,
		},
		{
			// 1 of 4 candidate keywords match: 0.25 * 1.5 = 0.375.
			name:      "partial overlap boosted",
			candidate: Listing{Title: "garden shed", Description: "needs carpentry work done"},
			expected:  0.375,
		},
		{
			name:      "no overlap",
			candidate: Listing{Title: "piano lessons"},
			expected:  0.0,
		},
		{
			name:      "empty candidate is neutral",
			candidate: Listing{},
			expected:  0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SkillScore(user, mine, tt.candidate)
			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("SkillScore = %f, expected %f", got, tt.expected)
			}
		})
	}

	t.Run("empty user side is neutral", func(t *testing.T) {
		got := SkillScore(User{}, Listing{}, Listing{Title: "piano lessons"})
		if got != 0.5 {
			t.Errorf("SkillScore = %f, expected neutral 0.5", got)
		}
	})
}

func TestProximityScore(t *testing.T) {
	bands := profile.Default().Match.Proximity

	tests := []struct {
		name     string
		distance float64
		expected float64
	}{
		{"walking distance", 3, 1.0},
		{"walking boundary", 5, 1.0},
		{"midway local band", 10, 0.95},
		{"local boundary", 15, 0.9},
		{"midway city band", 22.5, 0.8},
		{"city boundary", 30, 0.7},
		{"regional boundary", 50, 0.5},
		{"midway far band", 75, 0.3},
		{"max boundary", 100, 0.1},
		{"double the max band", 200, 0.05},
		{"past max with tail above floor", 110, 0.1 * (100.0 / 110.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProximityScore(tt.distance, bands)
			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("ProximityScore(%v) = %f, expected %f", tt.distance, got, tt.expected)
			}
		})
	}
}

func TestFreshnessScore(t *testing.T) {
	p := profile.Default().Match

	tests := []struct {
		name     string
		age      time.Duration
		expected float64
	}{
		{"brand new", time.Hour, 1.0},
		{"full window boundary", 24 * time.Hour, 1.0},
		// One half-life (14 days) past the full window.
		{"one half-life", 24*time.Hour + 14*24*time.Hour, 0.5},
		{"two half-lives floors", 24*time.Hour + 60*24*time.Hour, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FreshnessScore(scoreNow.Add(-tt.age), p, scoreNow)
			if math.Abs(got-tt.expected) > 0.001 {
				t.Errorf("FreshnessScore = %f, expected %f", got, tt.expected)
			}
		})
	}

	t.Run("missing date is neutral", func(t *testing.T) {
		if got := FreshnessScore(time.Time{}, p, scoreNow); got != 0.5 {
			t.Errorf("FreshnessScore = %f, expected 0.5", got)
		}
	})
}

func TestReciprocityScore(t *testing.T) {
	userListings := []Listing{
		{Type: TypeOffer, CategoryID: "gardening"},
		{Type: TypeRequest, CategoryID: "plumbing"},
	}

	tests := []struct {
		name         string
		candidate    []Listing
		expected     float64
		expectedType string
	}{
		{
			name: "mutual exchange",
			candidate: []Listing{
				{Type: TypeRequest, CategoryID: "gardening"},
				{Type: TypeOffer, CategoryID: "plumbing"},
			},
			expected:     1.0,
			expectedType: MatchMutual,
		},
		{
			name:         "candidate needs what user offers",
			candidate:    []Listing{{Type: TypeRequest, CategoryID: "gardening"}},
			expected:     0.7,
			expectedType: MatchPotential,
		},
		{
			name:         "user needs what candidate offers",
			candidate:    []Listing{{Type: TypeOffer, CategoryID: "plumbing"}},
			expected:     0.7,
			expectedType: MatchPotential,
		},
		{
			name:         "no category overlap",
			candidate:    []Listing{{Type: TypeOffer, CategoryID: "tutoring"}},
			expected:     0.4,
			expectedType: MatchOneWay,
		},
		{
			name:         "candidate has no listings",
			candidate:    nil,
			expected:     0.3,
			expectedType: MatchOneWay,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matchType := ReciprocityScore(userListings, tt.candidate)
			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("score = %f, expected %f", got, tt.expected)
			}
			if matchType != tt.expectedType {
				t.Errorf("type = %q, expected %q", matchType, tt.expectedType)
			}
		})
	}
}

func TestQualitySignalScore(t *testing.T) {
	p := profile.Default().Match

	tests := []struct {
		name      string
		candidate Listing
		expected  float64
	}{
		{"bare listing", Listing{}, 0.5},
		{"long description", Listing{Description: strings.Repeat("x", 60)}, 0.6},
		{"very long description", Listing{Description: strings.Repeat("x", 120)}, 0.7},
		{"image", Listing{ImageURL: "a.jpg"}, 0.6},
		{"verified owner", Listing{AuthorVerified: true}, 0.6},
		{"well rated owner", Listing{AuthorRating: 4.5}, 0.6},
		{"rating below threshold", Listing{AuthorRating: 3.9}, 0.5},
		{
			name: "everything capped at 1.0",
			candidate: Listing{
				Description:    strings.Repeat("x", 120),
				ImageURL:       "a.jpg",
				AuthorVerified: true,
				AuthorRating:   5,
			},
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QualitySignalScore(tt.candidate, p)
			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("QualitySignalScore = %f, expected %f", got, tt.expected)
			}
		})
	}
}

func TestScoreMatchWeightedComposition(t *testing.T) {
	p := profile.Default().Match
	userLat, userLon := 53.3498, -6.2603
	user := User{ID: "u1", Skills: "gardening pruning", Lat: &userLat, Lon: &userLon}

	mine := Listing{ID: "l1", UserID: "u1", Type: TypeOffer, CategoryID: "gardening", Title: "Garden maintenance"}
	userListings := []Listing{mine}

	// Candidate in the same category, same spot, brand new, owned by a
	// user requesting exactly what the user offers.
	candLat, candLon := 53.3498, -6.2603
	candidate := Listing{
		ID:         "l2",
		UserID:     "u2",
		Type:       TypeRequest,
		CategoryID: "gardening",
		Title:      "Need gardening and pruning",
		CreatedAt:  scoreNow.Add(-time.Hour),
		Lat:        &candLat,
		Lon:        &candLon,
	}
	counterpart := []Listing{{Type: TypeRequest, CategoryID: "gardening"}}

	result := ScoreMatch(user, userListings, mine, candidate, counterpart, p, scoreNow)

	// category 1.0, proximity 1.0, freshness 1.0, reciprocity 0.7
	// (potential), quality 0.5; skill: "need" is a stop word, so both
	// candidate keywords match: 1.0.
	expected := (1.0*0.25 + 1.0*0.20 + 1.0*0.25 + 1.0*0.10 + 0.7*0.15 + 0.5*0.05) * 100
	if math.Abs(result.Score-expected) > 0.11 {
		t.Errorf("Score = %f, expected %f", result.Score, expected)
	}
	if result.Type != MatchPotential {
		t.Errorf("Type = %q, expected %q", result.Type, MatchPotential)
	}
	if result.DistanceKm != 0 {
		t.Errorf("DistanceKm = %f, expected 0", result.DistanceKm)
	}

	wantReasons := []string{"Same category: General", "Skills match your expertise", "Very close: 0.0 km away", "Posted recently"}
	for _, want := range wantReasons {
		found := false
		for _, r := range result.Reasons {
			if r == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing reason %q in %v", want, result.Reasons)
		}
	}
}

func TestScoreMatchMissingCoordinates(t *testing.T) {
	p := profile.Default().Match
	user := User{ID: "u1"}
	mine := Listing{ID: "l1", Type: TypeOffer}

	result := ScoreMatch(user, []Listing{mine}, mine, Listing{ID: "l2"}, nil, p, scoreNow)

	if result.DistanceKm != -1 {
		t.Errorf("DistanceKm = %f, expected -1 for unknown", result.DistanceKm)
	}
	if math.Abs(result.Breakdown["proximity"]-0.05) > 0.0001 {
		t.Errorf("proximity = %f, expected 0.05 floor", result.Breakdown["proximity"])
	}
}
