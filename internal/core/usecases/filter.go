package usecases

import (
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
)

// Skipped records an event left out of the point set and why.
type Skipped struct {
	ID     string
	Reason error
}

// FilterByCategory keeps events whose first category is categoryID, in input
// order. Events with no category are dropped.
func FilterByCategory(events []domain.Event, categoryID string) []domain.Event {
	out := make([]domain.Event, 0, len(events))
	for i := range events {
		if id, ok := events[i].CategoryID(); ok && id == categoryID {
			out = append(out, events[i])
		}
	}
	return out
}

// FilterByCategoryAndViewport keeps events of categoryID whose coordinate lies
// within the viewport corners, in input order. Longitude containment wraps
// through the antimeridian; latitude ignores corner order. Events without a
// coordinate pair are dropped.
func FilterByCategoryAndViewport(events []domain.Event, categoryID string, vp domain.Viewport) []domain.Event {
	out := make([]domain.Event, 0, len(events))
	for i := range events {
		e := &events[i]
		if id, ok := e.CategoryID(); !ok || id != categoryID {
			continue
		}
		lng, lat, ok := e.Coordinates()
		if !ok {
			continue
		}
		if vp.Contains(lng, lat) {
			out = append(out, *e)
		}
	}
	return out
}

// BuildPoints turns events into indexable points. Malformed events are
// reported in skipped rather than failing the batch.
func BuildPoints(events []domain.Event) (points []domain.Point, skipped []Skipped) {
	points = make([]domain.Point, 0, len(events))
	for i := range events {
		e := &events[i]
		if err := e.Validate(); err != nil {
			skipped = append(skipped, Skipped{ID: e.ID, Reason: err})
			continue
		}
		lng, lat, _ := e.Coordinates()
		points = append(points, domain.Point{ID: e.ID, Lng: lng, Lat: lat, Event: e})
	}
	return points, skipped
}
