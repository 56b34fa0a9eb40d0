package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
)

func vp(nwLat, nwLng, seLat, seLng float64) domain.Viewport {
	return domain.Viewport{
		NorthWest: domain.LatLng{Lat: nwLat, Lng: nwLng},
		SouthEast: domain.LatLng{Lat: seLat, Lng: seLng},
	}
}

func TestViewportBBox(t *testing.T) {
	tests := []struct {
		name    string
		vp      domain.Viewport
		want    domain.BBox
		crosses bool
	}{
		{
			name: "plain",
			vp:   vp(50, -130, 35, -110),
			want: domain.BBox{West: -130, South: 35, East: -110, North: 50},
		},
		{
			name:    "crosses antimeridian",
			vp:      vp(10, 170, -10, -170),
			want:    domain.BBox{West: 170, South: -10, East: -170, North: 10},
			crosses: true,
		},
		{
			name: "inverted vertical order",
			vp:   vp(-10, 20, 30, 40),
			want: domain.BBox{West: 20, South: -10, East: 40, North: 30},
		},
		{
			name: "drifted longitudes",
			vp:   vp(10, 190, -10, 200),
			want: domain.BBox{West: -170, South: -10, East: -160, North: 10},
		},
		{
			name:    "drifted past the antimeridian",
			vp:      vp(10, 170, -10, 190),
			want:    domain.BBox{West: 170, South: -10, East: -170, North: 10},
			crosses: true,
		},
		{
			name: "full turn",
			vp:   vp(80, -200, -80, 200),
			want: domain.BBox{West: -180, South: -80, East: 180, North: 80},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.vp.BBox()
			assert.InDelta(t, tt.want.West, got.West, 1e-9)
			assert.InDelta(t, tt.want.South, got.South, 1e-9)
			assert.InDelta(t, tt.want.East, got.East, 1e-9)
			assert.InDelta(t, tt.want.North, got.North, 1e-9)
			assert.Equal(t, tt.crosses, got.CrossesAntimeridian())
		})
	}
}

func TestViewportContains(t *testing.T) {
	tests := []struct {
		name     string
		vp       domain.Viewport
		lng, lat float64
		want     bool
	}{
		{"inside", vp(50, -130, 35, -110), -122.8, 42.3, true},
		{"edge inclusive", vp(50, -130, 35, -110), -130, 50, true},
		{"outside", vp(50, -130, 35, -110), -100, 42, false},
		{"east of antimeridian", vp(10, 170, -10, -170), 175, 0, true},
		{"west of antimeridian", vp(10, 170, -10, -170), -175, 0, true},
		{"between the wrapped edges", vp(10, 170, -10, -170), 0, 0, false},
		{"inverted vertical order", vp(-10, 20, 30, 40), 30, 0, true},
		{"drifted longitude", vp(10, 190, -10, 200), -165, 0, true},
		{"full turn", vp(80, -200, -80, 200), 140, -25, true},
		{"full turn keeps latitude", vp(10, -200, -10, 200), 140, -25, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.vp.Contains(tt.lng, tt.lat))
		})
	}
}

// Filtering by Contains and querying the index by BBox must agree.
func TestViewportContainsMatchesBBox(t *testing.T) {
	viewports := []domain.Viewport{
		vp(50, -130, 35, -110),
		vp(10, 170, -10, -170),
		vp(-10, 20, 30, 40),
		vp(10, 190, -10, 200),
		vp(80, -200, -80, 200),
	}
	coords := [][2]float64{{-122.8, 42.3}, {175, 0}, {-175, 0}, {0, 0}, {30, 0}, {-165, 0}, {140, -25}}

	for _, v := range viewports {
		b := v.BBox()
		for _, c := range coords {
			lng, lat := c[0], c[1]
			inLat := lat >= b.South && lat <= b.North
			var inLng bool
			if b.CrossesAntimeridian() {
				inLng = lng >= b.West || lng <= b.East
			} else {
				inLng = lng >= b.West && lng <= b.East
			}
			assert.Equal(t, inLat && inLng, v.Contains(lng, lat), "viewport %+v coord %v", v, c)
		}
	}
}
