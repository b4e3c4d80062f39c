package geo

import (
	"math"
	"testing"
)

// TestHaversine verifies great-circle distances against known city pairs.
func TestHaversine(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lon1 float64
		lat2, lon2 float64
		expectedKm float64
		tolerance  float64
	}{
		{
			name: "same point",
			lat1: 51.5074, lon1: -0.1278,
			lat2: 51.5074, lon2: -0.1278,
			expectedKm: 0,
			tolerance:  0.001,
		},
		{
			name: "London to Paris",
			lat1: 51.5074, lon1: -0.1278,
			lat2: 48.8566, lon2: 2.3522,
			expectedKm: 343.5,
			tolerance:  2.0,
		},
		{
			name: "Dublin to Cork",
			lat1: 53.3498, lon1: -6.2603,
			lat2: 51.8985, lon2: -8.4756,
			expectedKm: 220.0,
			tolerance:  3.0,
		},
		{
			name: "antipodal-ish (New York to Perth)",
			lat1: 40.7128, lon1: -74.0060,
			lat2: -31.9523, lon2: 115.8613,
			expectedKm: 18700,
			tolerance:  100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.expectedKm) > tt.tolerance {
				t.Errorf("expected %.1f km (±%.1f), got %.1f km", tt.expectedKm, tt.tolerance, got)
			}
		})
	}
}

// TestHaversineSymmetry checks that distance is direction-independent.
func TestHaversineSymmetry(t *testing.T) {
	a := Haversine(51.5, -0.12, 48.85, 2.35)
	b := Haversine(48.85, 2.35, 51.5, -0.12)
	if math.Abs(a-b) > 0.0001 {
		t.Errorf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestHaversinePtr(t *testing.T) {
	lat1, lon1 := 51.5074, -0.1278
	lat2, lon2 := 48.8566, 2.3522

	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 *float64
		wantInfinite           bool
	}{
		{"all present", &lat1, &lon1, &lat2, &lon2, false},
		{"missing first latitude", nil, &lon1, &lat2, &lon2, true},
		{"missing first longitude", &lat1, nil, &lat2, &lon2, true},
		{"missing second latitude", &lat1, &lon1, nil, &lon2, true},
		{"missing second longitude", &lat1, &lon1, &lat2, nil, true},
		{"all missing", nil, nil, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversinePtr(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if tt.wantInfinite && got != Infinite {
				t.Errorf("expected Infinite, got %f", got)
			}
			if !tt.wantInfinite && got == Infinite {
				t.Error("expected finite distance, got Infinite")
			}
		})
	}
}

func TestKnown(t *testing.T) {
	v := 1.0
	if Known(nil, &v) || Known(&v, nil) || Known(nil, nil) {
		t.Error("partial coordinates should not be known")
	}
	if !Known(&v, &v) {
		t.Error("complete coordinates should be known")
	}
}
