package decay

import (
	"math"
	"testing"
)

const epsilon = 0.001

// TestStepGeo verifies the step-wise geographic decay, including the
// documented reference points: full score inside the radius and one
// rate-step off per complete interval beyond it.
func TestStepGeo(t *testing.T) {
	tests := []struct {
		name       string
		distanceKm float64
		expected   float64
	}{
		{"at origin", 0, 1.0},
		{"inside full radius", 7.5, 1.0},
		{"exactly at full radius", 10, 1.0},
		{"just past radius, same band", 10.5, 1.0},
		{"one interval past radius", 25, 0.9},
		{"two intervals past radius", 35, 0.8},
		{"five intervals past radius", 65, 0.5},
		{"clamped at floor", 500, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StepGeo(tt.distanceKm, 10, 10, 0.10, 0.1)
			if math.Abs(got-tt.expected) > epsilon {
				t.Errorf("StepGeo(%.1f) = %f, expected %f", tt.distanceKm, got, tt.expected)
			}
		})
	}
}

func TestStepGeoDegenerateInterval(t *testing.T) {
	if got := StepGeo(50, 10, 0, 0.10, 0.1); got != 0.1 {
		t.Errorf("non-positive interval should clamp to floor, got %f", got)
	}
}

// TestExponential covers the half-life freshness decay, including the
// reference case age=100h, full=24h, halfLife=72h which decays to ~0.481.
func TestExponential(t *testing.T) {
	tests := []struct {
		name     string
		age      float64
		full     float64
		halfLife float64
		floor    float64
		expected float64
	}{
		{"brand new", 0, 24, 72, 0.3, 1.0},
		{"inside full window", 23.9, 24, 72, 0.3, 1.0},
		{"at full window boundary", 24, 24, 72, 0.3, 1.0},
		{"reference: 100h old", 100, 24, 72, 0.3, 0.4812},
		{"one half-life past window", 96, 24, 72, 0.3, 0.5},
		{"two half-lives past window", 168, 24, 72, 0.3, 0.3}, // 0.25 clamped to floor
		{"very old clamps to floor", 10000, 24, 72, 0.3, 0.3},
		{"matching variant, 14 day half-life", 24 + 14*24, 24, 14 * 24, 0.3, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Exponential(tt.age, tt.full, tt.halfLife, tt.floor)
			if math.Abs(got-tt.expected) > epsilon {
				t.Errorf("Exponential(%.1f) = %f, expected %f", tt.age, got, tt.expected)
			}
		})
	}
}

func TestExponentialDegenerateHalfLife(t *testing.T) {
	if got := Exponential(100, 24, 0, 0.3); got != 0.3 {
		t.Errorf("non-positive half-life should clamp to floor, got %f", got)
	}
}

// TestLinear verifies the linear vitality decay between the two
// threshold days.
func TestLinear(t *testing.T) {
	tests := []struct {
		name     string
		days     float64
		expected float64
	}{
		{"active today", 0, 1.0},
		{"at full threshold", 7, 1.0},
		{"midway through decay", 18.5, 0.75},
		{"at decay threshold", 30, 0.5},
		{"long dormant", 365, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Linear(tt.days, 7, 30, 0.5)
			if math.Abs(got-tt.expected) > epsilon {
				t.Errorf("Linear(%.1f) = %f, expected %f", tt.days, got, tt.expected)
			}
		})
	}
}

// TestLinearMonotonic checks the interpolation never increases with age.
func TestLinearMonotonic(t *testing.T) {
	prev := 1.0
	for days := 0.0; days <= 40; days += 0.5 {
		got := Linear(days, 7, 30, 0.5)
		if got > prev+epsilon {
			t.Fatalf("vitality increased with age at day %.1f: %f > %f", days, got, prev)
		}
		prev = got
	}
}
