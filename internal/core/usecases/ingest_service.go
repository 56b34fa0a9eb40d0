package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/ports"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/logging"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/metrics"
)

// IngestService copies events from the upstream feed into storage and
// announces the change.
type IngestService struct {
	source    ports.EventSource
	events    ports.EventRepository
	snapshots ports.SnapshotStore
	publisher ports.DatasetPublisher
	category  string
	now       func() time.Time
}

// NewIngestService creates a new IngestService. snapshots and publisher may be nil.
func NewIngestService(source ports.EventSource, events ports.EventRepository, snapshots ports.SnapshotStore, publisher ports.DatasetPublisher, category string) *IngestService {
	if category == "" {
		category = domain.CategoryWildfires
	}
	return &IngestService{
		source:    source,
		events:    events,
		snapshots: snapshots,
		publisher: publisher,
		category:  category,
		now:       time.Now,
	}
}

// Run performs one full pass and returns the number of events stored.
// Snapshot and announcement failures are logged, not returned: the events
// are already durable at that point.
func (s *IngestService) Run(ctx context.Context) (int, error) {
	log := logging.FromContext(ctx)

	events, err := s.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.Store(ctx, events); err != nil {
		return 0, err
	}
	if err := s.Snapshot(ctx, events); err != nil {
		log.Warn("snapshot save failed", "error", err)
	}
	if err := s.Announce(ctx, len(events)); err != nil {
		log.Warn("dataset announcement failed", "error", err)
	}

	log.Info("ingest pass complete", "category", s.category, "events", len(events))
	return len(events), nil
}

// Fetch pulls events from the feed and keeps the well-formed ones of the
// configured category.
func (s *IngestService) Fetch(ctx context.Context) ([]domain.Event, error) {
	start := time.Now()
	raw, err := s.source.FetchEvents(ctx, s.category)
	metrics.FeedPollDuration.WithLabelValues(s.category).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FeedPollErrors.WithLabelValues(s.category).Inc()
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	log := logging.FromContext(ctx)
	kept := make([]domain.Event, 0, len(raw))
	for _, e := range FilterByCategory(raw, s.category) {
		if err := e.Validate(); err != nil {
			log.Warn("skipping malformed event", "event_id", e.ID, "reason", err)
			metrics.MalformedEvents.WithLabelValues(reasonLabel(err)).Inc()
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}

// Store upserts events into the repository.
func (s *IngestService) Store(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := s.events.UpsertBatch(ctx, events); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	metrics.EventsIngested.WithLabelValues(s.category).Add(float64(len(events)))
	return nil
}

// Snapshot saves events as the fallback dataset.
func (s *IngestService) Snapshot(ctx context.Context, events []domain.Event) error {
	if s.snapshots == nil {
		return nil
	}
	if len(events) == 0 {
		return errors.New("refusing to snapshot an empty event list")
	}
	return s.snapshots.Save(ctx, events)
}

// Announce publishes a dataset update for n stored events.
func (s *IngestService) Announce(ctx context.Context, n int) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishDatasetUpdated(ctx, domain.DatasetUpdate{
		Category:  s.category,
		Events:    n,
		FetchedAt: s.now().UTC(),
	})
}
