package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
)

// ErrNotFound is returned when no row matches.
var ErrNotFound = errors.New("not found")

// EventRepo implements ports.EventRepository with pgx. The full EONET
// document is kept in raw; the scalar columns serve filtering.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

const upsertEventSQL = `
	INSERT INTO events (id, title, category_id, lng, lat, observed_at, closed_at, link, raw, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	ON CONFLICT (id) DO UPDATE
	SET title = EXCLUDED.title, category_id = EXCLUDED.category_id,
	    lng = EXCLUDED.lng, lat = EXCLUDED.lat,
	    observed_at = EXCLUDED.observed_at, closed_at = EXCLUDED.closed_at,
	    link = EXCLUDED.link, raw = EXCLUDED.raw, updated_at = now()
`

// UpsertBatch inserts or updates events using pgx.Batch.
func (r *EventRepo) UpsertBatch(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range events {
		e := &events[i]
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		category, _ := e.CategoryID()
		var lng, lat *float64
		if x, y, ok := e.Coordinates(); ok {
			lng, lat = &x, &y
		}
		var observed *time.Time
		if t := e.ObservedAt(); !t.IsZero() {
			observed = &t
		}
		batch.Queue(upsertEventSQL, e.ID, e.Title, category, lng, lat, observed, e.Closed, e.Link, raw)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// ListByCategory returns open events of a category, oldest observation first.
func (r *EventRepo) ListByCategory(ctx context.Context, categoryID string) ([]domain.Event, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT raw FROM events
		WHERE category_id = $1 AND closed_at IS NULL
		ORDER BY observed_at NULLS LAST, id
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e domain.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode stored event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetByID returns one event.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx, `SELECT raw FROM events WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var e domain.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode stored event: %w", err)
	}
	return &e, nil
}

// Count returns the number of open events of a category.
func (r *EventRepo) Count(ctx context.Context, categoryID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM events WHERE category_id = $1 AND closed_at IS NULL`, categoryID,
	).Scan(&n)
	return n, err
}
