package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistance(t *testing.T) {
	assert.Equal(t, 0.0, HaversineDistance(12.97, 77.59, 12.97, 77.59))

	// One degree of latitude is roughly 111.2 km
	d := HaversineDistance(0, 0, 1, 0)
	assert.InDelta(t, 111195, d, 50)

	// Symmetric
	assert.InDelta(t, HaversineDistance(12.9716, 77.5946, 13.0827, 80.2707),
		HaversineDistance(13.0827, 80.2707, 12.9716, 77.5946), 1e-6)
}
