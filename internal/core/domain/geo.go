package domain

import (
	"math"

	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/geospatial"
)

// LatLng represents a geographic coordinate (WGS 84) as reported by map widgets.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Viewport is the visible map region: two opposite corners plus the zoom level.
// Widgets may report the corners in either vertical order.
type Viewport struct {
	NorthWest LatLng `json:"nw"`
	SouthEast LatLng `json:"se"`
	Zoom      int    `json:"zoom"`
}

// BBox is a bounding box in [west, south, east, north] order.
// West > East means the box crosses the antimeridian.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// WorldBBox covers every longitude and the full Web-Mercator latitude range.
var WorldBBox = BBox{West: -180, South: -90, East: 180, North: 90}

// BBox converts the nw/se corners into the south-west/north-east box used by
// the cluster index. Longitudes are normalized so a viewport straddling ±180°
// keeps west > east instead of silently inverting.
func (v Viewport) BBox() BBox {
	south := math.Min(v.NorthWest.Lat, v.SouthEast.Lat)
	north := math.Max(v.NorthWest.Lat, v.SouthEast.Lat)

	if v.fullTurn() {
		return BBox{West: -180, South: south, East: 180, North: north}
	}

	return BBox{
		West:  geospatial.NormalizeLongitude(v.NorthWest.Lng),
		South: south,
		East:  geospatial.NormalizeLongitude(v.SouthEast.Lng),
		North: north,
	}
}

// Contains reports whether a coordinate falls inside the viewport. It agrees
// with BBox on every viewport, including full-turn spans.
func (v Viewport) Contains(lng, lat float64) bool {
	if !geospatial.LatitudeInRange(lat, v.NorthWest.Lat, v.SouthEast.Lat) {
		return false
	}
	if v.fullTurn() {
		return !math.IsNaN(geospatial.NormalizeLongitude(lng))
	}
	return geospatial.LongitudeInRange(lng, v.NorthWest.Lng, v.SouthEast.Lng)
}

// fullTurn reports a span of 360° or more, as widgets zoomed far out report.
func (v Viewport) fullTurn() bool {
	return v.SouthEast.Lng-v.NorthWest.Lng >= 360
}

// CrossesAntimeridian reports whether the box wraps through ±180°.
func (b BBox) CrossesAntimeridian() bool {
	return b.West > b.East
}

// Valid reports whether all four edges are finite numbers.
func (b BBox) Valid() bool {
	for _, f := range []float64{b.West, b.South, b.East, b.North} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
