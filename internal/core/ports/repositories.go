package ports

import (
	"context"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
)

// EventRepository persists EONET events.
type EventRepository interface {
	UpsertBatch(ctx context.Context, events []domain.Event) error
	ListByCategory(ctx context.Context, categoryID string) ([]domain.Event, error)
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	Count(ctx context.Context, categoryID string) (int, error)
}

// SnapshotStore keeps the last good event list on local disk so the index
// can be rebuilt while the database is unavailable.
type SnapshotStore interface {
	Save(ctx context.Context, events []domain.Event) error
	Load(ctx context.Context) ([]domain.Event, error)
}

// EventSource fetches events from an upstream feed.
type EventSource interface {
	FetchEvents(ctx context.Context, categoryID string) ([]domain.Event, error)
}
