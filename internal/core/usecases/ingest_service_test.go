package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/usecases"
)

// --- Mock EventSource ---

type mockSource struct {
	fetchFn func(ctx context.Context, category string) ([]domain.Event, error)
}

func (m *mockSource) FetchEvents(ctx context.Context, category string) ([]domain.Event, error) {
	return m.fetchFn(ctx, category)
}

// --- Mock DatasetPublisher ---

type mockPublisher struct {
	updates []domain.DatasetUpdate
	err     error
}

func (m *mockPublisher) PublishDatasetUpdated(ctx context.Context, u domain.DatasetUpdate) error {
	m.updates = append(m.updates, u)
	return m.err
}

func TestIngestService_Run(t *testing.T) {
	src := &mockSource{fetchFn: func(ctx context.Context, category string) ([]domain.Event, error) {
		if category != domain.CategoryWildfires {
			t.Errorf("expected wildfires, got %s", category)
		}
		return sampleEvents(), nil
	}}
	var stored []domain.Event
	repo := &mockEventRepo{upsertFn: func(ctx context.Context, events []domain.Event) error {
		stored = events
		return nil
	}}
	snaps := &mockSnapshots{}
	pub := &mockPublisher{}

	svc := usecases.NewIngestService(src, repo, snaps, pub, domain.CategoryWildfires)
	n, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// storm is another category; EONET_bad has no geometry
	if n != 21 || len(stored) != 21 {
		t.Fatalf("expected 21 stored events, got n=%d stored=%d", n, len(stored))
	}
	if len(snaps.saved) != 21 {
		t.Errorf("expected snapshot of 21 events, got %d", len(snaps.saved))
	}
	if len(pub.updates) != 1 || pub.updates[0].Events != 21 {
		t.Errorf("expected one announcement of 21 events, got %+v", pub.updates)
	}
}

func TestIngestService_FetchError(t *testing.T) {
	src := &mockSource{fetchFn: func(ctx context.Context, category string) ([]domain.Event, error) {
		return nil, errors.New("503 from upstream")
	}}
	svc := usecases.NewIngestService(src, &mockEventRepo{}, nil, nil, "")

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestIngestService_StoreErrorSkipsAnnounce(t *testing.T) {
	src := &mockSource{fetchFn: func(ctx context.Context, category string) ([]domain.Event, error) {
		return sampleEvents(), nil
	}}
	repo := &mockEventRepo{upsertFn: func(ctx context.Context, events []domain.Event) error {
		return errors.New("db down")
	}}
	pub := &mockPublisher{}

	svc := usecases.NewIngestService(src, repo, nil, pub, domain.CategoryWildfires)
	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(pub.updates) != 0 {
		t.Error("expected no announcement after store failure")
	}
}

func TestIngestService_AnnounceFailureIsNotFatal(t *testing.T) {
	src := &mockSource{fetchFn: func(ctx context.Context, category string) ([]domain.Event, error) {
		return sampleEvents(), nil
	}}
	pub := &mockPublisher{err: errors.New("nats down")}

	svc := usecases.NewIngestService(src, &mockEventRepo{}, nil, pub, domain.CategoryWildfires)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
