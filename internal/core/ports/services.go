package ports

import (
	"context"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
)

// DatasetPublisher announces that stored events changed.
type DatasetPublisher interface {
	PublishDatasetUpdated(ctx context.Context, update domain.DatasetUpdate) error
}

// DatasetSubscriber receives dataset change announcements.
type DatasetSubscriber interface {
	SubscribeDatasetUpdates(ctx context.Context, handler func(ctx context.Context, update domain.DatasetUpdate) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
