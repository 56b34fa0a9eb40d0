package geospatial

import "math"

// NormalizeLongitude maps any longitude onto [-180, 180]. -180 is reported as
// +180 so the antimeridian has a single representation. Non-finite input
// yields NaN.
func NormalizeLongitude(lng float64) float64 {
	if math.IsNaN(lng) || math.IsInf(lng, 0) {
		return math.NaN()
	}
	n := math.Mod(math.Mod(lng+180, 360)+360, 360) - 180
	if n == -180 {
		return 180
	}
	return n
}

// LongitudeInRange reports whether lng lies within [lo, hi] after
// normalization. When lo > hi the range wraps through the antimeridian.
// Both edges are inclusive.
func LongitudeInRange(lng, lo, hi float64) bool {
	lng, lo, hi = NormalizeLongitude(lng), NormalizeLongitude(lo), NormalizeLongitude(hi)
	if math.IsNaN(lng) || math.IsNaN(lo) || math.IsNaN(hi) {
		return false
	}
	if lo <= hi {
		return lng >= lo && lng <= hi
	}
	return lng >= lo || lng <= hi
}

// LatitudeInRange reports whether lat lies between a and b, in either order.
func LatitudeInRange(lat, a, b float64) bool {
	if math.IsNaN(lat) || math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	return lat >= math.Min(a, b) && lat <= math.Max(a, b)
}
