package usecases_test

import (
	"errors"
	"testing"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/usecases"
)

func event(id, category string, lng, lat float64) domain.Event {
	return domain.Event{
		ID:         id,
		Title:      "Event " + id,
		Categories: []domain.Category{{ID: category}},
		Geometry:   []domain.Geometry{{Type: "Point", Coordinates: []float64{lng, lat}}},
	}
}

func fire(id string, lng, lat float64) domain.Event {
	return event(id, domain.CategoryWildfires, lng, lat)
}

func ids(events []domain.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilterByCategory_KeepsOrder(t *testing.T) {
	events := []domain.Event{
		fire("a", -120, 40),
		event("b", "volcanoes", 10, 10),
		fire("c", 150, -30),
		event("d", "severeStorms", 0, 0),
		fire("e", -70, 45),
	}

	got := usecases.FilterByCategory(events, domain.CategoryWildfires)
	if want := []string{"a", "c", "e"}; !equalIDs(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestFilterByCategory_SkipsMissingCategory(t *testing.T) {
	events := []domain.Event{{ID: "x"}, fire("a", 0, 0)}

	got := usecases.FilterByCategory(events, domain.CategoryWildfires)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only a, got %v", ids(got))
	}
}

func TestFilterByCategoryAndViewport(t *testing.T) {
	events := []domain.Event{
		fire("in", -122, 42),
		fire("out", -100, 42),
		event("storm", "severeStorms", -122, 42),
		{ID: "nogeo", Categories: []domain.Category{{ID: domain.CategoryWildfires}}},
		fire("in2", -121, 41),
	}
	// corners given south-first to check latitude order independence
	vp := domain.Viewport{
		NorthWest: domain.LatLng{Lat: 40, Lng: -125},
		SouthEast: domain.LatLng{Lat: 44, Lng: -120},
	}

	got := usecases.FilterByCategoryAndViewport(events, domain.CategoryWildfires, vp)
	if want := []string{"in", "in2"}; !equalIDs(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestFilterByCategoryAndViewport_Antimeridian(t *testing.T) {
	events := []domain.Event{
		fire("fiji", 178, -17),
		fire("samoa", -172, -14),
		fire("perth", 115, -32),
	}
	vp := domain.Viewport{
		NorthWest: domain.LatLng{Lat: 0, Lng: 170},
		SouthEast: domain.LatLng{Lat: -30, Lng: -170},
	}

	got := usecases.FilterByCategoryAndViewport(events, domain.CategoryWildfires, vp)
	if want := []string{"fiji", "samoa"}; !equalIDs(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestBuildPoints_ReportsMalformed(t *testing.T) {
	events := []domain.Event{
		fire("ok", 1, 2),
		{ID: "nogeo", Categories: []domain.Category{{ID: domain.CategoryWildfires}}},
		{ID: "short", Categories: []domain.Category{{ID: domain.CategoryWildfires}}, Geometry: []domain.Geometry{{Coordinates: []float64{1}}}},
	}

	points, skipped := usecases.BuildPoints(events)
	if len(points) != 1 || points[0].ID != "ok" || points[0].Lng != 1 || points[0].Lat != 2 {
		t.Fatalf("unexpected points: %+v", points)
	}
	if points[0].Event == nil || points[0].Event.ID != "ok" {
		t.Error("expected point to reference its event")
	}
	if len(skipped) != 2 {
		t.Fatalf("expected 2 skipped, got %d", len(skipped))
	}
	if !errors.Is(skipped[0].Reason, domain.ErrMissingGeometry) {
		t.Errorf("expected missing geometry, got %v", skipped[0].Reason)
	}
	if !errors.Is(skipped[1].Reason, domain.ErrMissingCoordinate) {
		t.Errorf("expected missing coordinate, got %v", skipped[1].Reason)
	}
}
