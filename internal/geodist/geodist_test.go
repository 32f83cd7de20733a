package geodist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldsafe/hazard-engine/internal/model"
)

func TestHaversine_SamePoint(t *testing.T) {
	p := model.Coordinates{Latitude: -6.2088, Longitude: 106.8456}
	assert.Equal(t, 0.0, Haversine(p, p))
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Jakarta to Surabaya, roughly 663 km.
	jakarta := model.Coordinates{Latitude: -6.2088, Longitude: 106.8456}
	surabaya := model.Coordinates{Latitude: -7.2575, Longitude: 112.7521}
	d := Haversine(jakarta, surabaya)
	assert.InDelta(t, 663, d, 10)
}

func TestHaversine_Symmetric(t *testing.T) {
	a := model.Coordinates{Latitude: 1.35, Longitude: 103.82}
	b := model.Coordinates{Latitude: -8.65, Longitude: 115.22}
	assert.InDelta(t, Haversine(a, b), Haversine(b, a), 1e-9)
}

func TestBetween_MissingCoordinates(t *testing.T) {
	p := &model.Coordinates{Latitude: 0, Longitude: 0}

	_, ok := Between(nil, p)
	assert.False(t, ok)
	_, ok = Between(p, nil)
	assert.False(t, ok)
	_, ok = Between(nil, nil)
	assert.False(t, ok)

	d, ok := Between(p, p)
	assert.True(t, ok)
	assert.Equal(t, 0.0, d)
}
