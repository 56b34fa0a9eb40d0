package domain

import (
	"errors"
	"math"
	"time"
)

// CategoryWildfires is the EONET category id for wildfire events.
const CategoryWildfires = "wildfires"

// Malformed event reasons. Filtering skips such records instead of failing.
var (
	ErrMissingCategory   = errors.New("event has no category")
	ErrMissingGeometry   = errors.New("event has no geometry")
	ErrMissingCoordinate = errors.New("event geometry has no coordinate pair")
)

// Category classifies an event (e.g. wildfires, severeStorms).
type Category struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Source references an upstream report of an event.
type Source struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Geometry is a dated observation of where an event is.
// Point geometries carry a single [longitude, latitude] pair.
type Geometry struct {
	Date           time.Time `json:"date"`
	Type           string    `json:"type,omitempty"`
	Coordinates    []float64 `json:"coordinates"`
	MagnitudeValue *float64  `json:"magnitudeValue,omitempty"`
	MagnitudeUnit  string    `json:"magnitudeUnit,omitempty"`
}

// Event is a natural event as published by NASA EONET.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Link        string     `json:"link,omitempty"`
	Closed      *time.Time `json:"closed,omitempty"`
	Categories  []Category `json:"categories"`
	Sources     []Source   `json:"sources,omitempty"`
	Geometry    []Geometry `json:"geometry"`
}

// CategoryID returns the id of the event's first category.
func (e *Event) CategoryID() (string, bool) {
	if len(e.Categories) == 0 || e.Categories[0].ID == "" {
		return "", false
	}
	return e.Categories[0].ID, true
}

// Coordinates returns the first geometry's longitude and latitude.
func (e *Event) Coordinates() (lng, lat float64, ok bool) {
	if len(e.Geometry) == 0 || len(e.Geometry[0].Coordinates) < 2 {
		return 0, 0, false
	}
	lng, lat = e.Geometry[0].Coordinates[0], e.Geometry[0].Coordinates[1]
	if !finite(lng) || !finite(lat) {
		return 0, 0, false
	}
	return lng, lat, true
}

// ObservedAt returns the date of the first geometry, or the zero time.
func (e *Event) ObservedAt() time.Time {
	if len(e.Geometry) == 0 {
		return time.Time{}
	}
	return e.Geometry[0].Date
}

// Validate reports why an event cannot be placed on the map, or nil.
func (e *Event) Validate() error {
	if _, ok := e.CategoryID(); !ok {
		return ErrMissingCategory
	}
	if len(e.Geometry) == 0 {
		return ErrMissingGeometry
	}
	if _, _, ok := e.Coordinates(); !ok {
		return ErrMissingCoordinate
	}
	return nil
}

// Point is an event reduced to an indexable coordinate.
type Point struct {
	ID    string  `json:"id"`
	Lng   float64 `json:"lng"`
	Lat   float64 `json:"lat"`
	Event *Event  `json:"-"`
}

// ResultKind distinguishes raw points from aggregated clusters.
type ResultKind string

const (
	KindSingleton ResultKind = "singleton"
	KindCluster   ResultKind = "cluster"
)

// ClusterResult is one marker to render: a single point or a cluster of them.
type ClusterResult struct {
	Kind         ResultKind `json:"kind"`
	ID           int        `json:"id"`
	Lng          float64    `json:"lng"`
	Lat          float64    `json:"lat"`
	PointCount   int        `json:"point_count"`
	MemberIDs    []string   `json:"member_ids,omitempty"`
	RadiusMeters *float64   `json:"radius_meters,omitempty"` // computed field
	Point        *Point     `json:"point,omitempty"`
}

// IsCluster reports whether the result aggregates more than one point.
func (r ClusterResult) IsCluster() bool {
	return r.Kind == KindCluster
}

// DatasetInfo describes the event set currently held by the cluster index.
type DatasetInfo struct {
	Version     uint64    `json:"version"`
	Fingerprint string    `json:"fingerprint"`
	Category    string    `json:"category"`
	Events      int       `json:"events"`
	Points      int       `json:"points"`
	Skipped     int       `json:"skipped"`
	BuiltAt     time.Time `json:"built_at"`
	BuildMillis float64   `json:"build_ms"`
}

// DatasetUpdate is announced whenever stored events change.
type DatasetUpdate struct {
	Category  string    `json:"category"`
	Events    int       `json:"events"`
	FetchedAt time.Time `json:"fetched_at"`
}

// MapDefaults is the initial map position before any interaction.
type MapDefaults struct {
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
