package zipcatalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMiles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
		delta                  float64
	}{
		{"same point", 39.1031, -84.5120, 39.1031, -84.5120, 0, 1e-9},
		{"cincinnati to columbus", 39.1031, -84.5120, 39.9612, -82.9988, 100.0, 2.0},
		{"new york to los angeles", 40.7128, -74.0060, 34.0522, -118.2437, 2445, 15},
		{"one degree of latitude", 39.0, -84.5, 40.0, -84.5, 69.1, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMiles(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			assert.InDelta(t, tt.want, got, tt.delta)
		})
	}
}

func TestDistanceMiles_Symmetric(t *testing.T) {
	t.Parallel()
	a := DistanceMiles(39.1031, -84.5120, 41.8781, -87.6298)
	b := DistanceMiles(41.8781, -87.6298, 39.1031, -84.5120)
	assert.InDelta(t, a, b, 1e-9)
}
