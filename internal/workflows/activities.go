package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/usecases"
)

// Activity names as registered on the worker.
const (
	ActivityFetchEvents     = "FetchEvents"
	ActivityStoreEvents     = "StoreEvents"
	ActivitySnapshotEvents  = "SnapshotEvents"
	ActivityAnnounceDataset = "AnnounceDataset"
)

// RefreshActivities holds the activity implementations for the refresh workflow.
type RefreshActivities struct {
	Ingest *usecases.IngestService
}

// FetchEvents pulls the well-formed events of the served category from the feed.
func (a *RefreshActivities) FetchEvents(ctx context.Context) ([]domain.Event, error) {
	events, err := a.Ingest.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	activity.GetLogger(ctx).Info("fetched events", "count", len(events))
	return events, nil
}

// StoreEvents upserts events into the repository.
func (a *RefreshActivities) StoreEvents(ctx context.Context, events []domain.Event) error {
	if err := a.Ingest.Store(ctx, events); err != nil {
		return fmt.Errorf("store %d events: %w", len(events), err)
	}
	return nil
}

// SnapshotEvents saves events as the fallback dataset.
func (a *RefreshActivities) SnapshotEvents(ctx context.Context, events []domain.Event) error {
	return a.Ingest.Snapshot(ctx, events)
}

// AnnounceDataset tells API instances that the stored events changed.
func (a *RefreshActivities) AnnounceDataset(ctx context.Context, n int) error {
	return a.Ingest.Announce(ctx, n)
}
