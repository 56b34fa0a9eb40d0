package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/ports"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/usecases"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/cluster"
)

// --- Mock EventRepository ---

type mockEventRepo struct {
	listFn   func(ctx context.Context, category string) ([]domain.Event, error)
	upsertFn func(ctx context.Context, events []domain.Event) error
}

func (m *mockEventRepo) UpsertBatch(ctx context.Context, events []domain.Event) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, events)
	}
	return nil
}

func (m *mockEventRepo) ListByCategory(ctx context.Context, category string) ([]domain.Event, error) {
	if m.listFn != nil {
		return m.listFn(ctx, category)
	}
	return nil, nil
}

func (m *mockEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	return nil, nil
}

func (m *mockEventRepo) Count(ctx context.Context, category string) (int, error) { return 0, nil }

// --- Mock SnapshotStore ---

type mockSnapshots struct {
	saved  []domain.Event
	loadFn func(ctx context.Context) ([]domain.Event, error)
}

func (m *mockSnapshots) Save(ctx context.Context, events []domain.Event) error {
	m.saved = events
	return nil
}

func (m *mockSnapshots) Load(ctx context.Context) ([]domain.Event, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return nil, errors.New("no snapshot")
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func newMapService(repo ports.EventRepository, snaps ports.SnapshotStore, cache ports.CacheService) *usecases.EventMapService {
	cfg := usecases.MapServiceConfig{Category: domain.CategoryWildfires, Cluster: cluster.DefaultOptions(), CacheTTL: 60}
	return usecases.NewEventMapService(repo, snaps, cache, cfg)
}

func sampleEvents() []domain.Event {
	events := []domain.Event{}
	for i := 0; i < 20; i++ {
		events = append(events, fire(fmt.Sprintf("EONET_%d", i), -122.8+float64(i)*0.001, 42.3))
	}
	events = append(events,
		fire("EONET_far", 140, -25),
		event("EONET_storm", "severeStorms", 0, 0),
		domain.Event{ID: "EONET_bad", Categories: []domain.Category{{ID: domain.CategoryWildfires}}},
	)
	return events
}

func TestEventMapService_NotLoaded(t *testing.T) {
	svc := newMapService(nil, nil, nil)

	if _, err := svc.Clusters(context.Background(), domain.WorldBBox, 3, false); !errors.Is(err, usecases.ErrDatasetNotLoaded) {
		t.Fatalf("expected ErrDatasetNotLoaded, got %v", err)
	}
	if _, err := svc.Events(nil); !errors.Is(err, usecases.ErrDatasetNotLoaded) {
		t.Fatalf("expected ErrDatasetNotLoaded, got %v", err)
	}
	if _, ok := svc.Dataset(); ok {
		t.Fatal("expected no dataset")
	}
}

func TestEventMapService_LoadAndQuery(t *testing.T) {
	svc := newMapService(nil, nil, nil)

	info, rebuilt, err := svc.Load(context.Background(), sampleEvents())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rebuilt || info.Version != 1 {
		t.Fatalf("expected first build at version 1, got %+v", info)
	}
	if info.Points != 21 {
		t.Errorf("expected 21 points, got %d", info.Points)
	}
	if info.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", info.Skipped)
	}

	res, err := svc.Clusters(context.Background(), domain.WorldBBox, 3, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(res))
	}
	for _, r := range res {
		if r.IsCluster() && len(r.MemberIDs) != 20 {
			t.Errorf("expected 20 members, got %d", len(r.MemberIDs))
		}
		if !r.IsCluster() && (r.Point == nil || r.Point.Event == nil) {
			t.Errorf("expected singleton with event")
		}
	}
}

func TestEventMapService_UnchangedDatasetKeepsVersion(t *testing.T) {
	svc := newMapService(nil, nil, nil)
	ctx := context.Background()

	if _, _, err := svc.Load(ctx, sampleEvents()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, rebuilt, err := svc.Load(ctx, sampleEvents())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rebuilt || info.Version != 1 {
		t.Fatalf("expected no rebuild, got rebuilt=%v version=%d", rebuilt, info.Version)
	}

	changed := append(sampleEvents(), fire("EONET_new", 10, 10))
	info, rebuilt, _ = svc.Load(ctx, changed)
	if !rebuilt || info.Version != 2 {
		t.Fatalf("expected version 2, got rebuilt=%v version=%d", rebuilt, info.Version)
	}
}

func TestEventMapService_SubscribeNotified(t *testing.T) {
	svc := newMapService(nil, nil, nil)
	ch, cancel := svc.Subscribe()
	defer cancel()

	if _, _, err := svc.Load(context.Background(), sampleEvents()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case v := <-ch:
		if v != 1 {
			t.Errorf("expected version 1, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("expected notification")
	}
}

func TestEventMapService_RefreshFallsBackToSnapshot(t *testing.T) {
	repo := &mockEventRepo{
		listFn: func(ctx context.Context, category string) ([]domain.Event, error) {
			return nil, errors.New("connection refused")
		},
	}
	snaps := &mockSnapshots{
		loadFn: func(ctx context.Context) ([]domain.Event, error) {
			return sampleEvents(), nil
		},
	}
	svc := newMapService(repo, snaps, nil)

	info, _, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Points != 21 {
		t.Errorf("expected 21 points from snapshot, got %d", info.Points)
	}
}

func TestEventMapService_RefreshBothFail(t *testing.T) {
	repo := &mockEventRepo{
		listFn: func(ctx context.Context, category string) ([]domain.Event, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newMapService(repo, &mockSnapshots{}, nil)

	if _, _, err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected error when repository and snapshot fail")
	}
}

func TestEventMapService_ClustersCached(t *testing.T) {
	cache := newMockCache()
	svc := newMapService(nil, nil, cache)
	ctx := context.Background()
	if _, _, err := svc.Load(ctx, sampleEvents()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := svc.Clusters(ctx, domain.WorldBBox, 17, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.data) != 1 {
		t.Fatalf("expected 1 cache entry, got %d", len(cache.data))
	}

	second, err := svc.Clusters(ctx, domain.WorldBBox, 17, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected %d cached results, got %d", len(first), len(second))
	}
	for i := range second {
		if second[i].Point == nil || second[i].Point.Event == nil {
			t.Fatalf("cached singleton %d lost its event", i)
		}
	}
}

func TestEventMapService_EventsByViewport(t *testing.T) {
	svc := newMapService(nil, nil, nil)
	if _, _, err := svc.Load(context.Background(), sampleEvents()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vp := domain.Viewport{NorthWest: domain.LatLng{Lat: -20, Lng: 130}, SouthEast: domain.LatLng{Lat: -30, Lng: 150}}
	got, err := svc.Events(&vp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "EONET_far" {
		t.Fatalf("expected EONET_far, got %v", ids(got))
	}
}

func TestEventMapService_LeavesUnknown(t *testing.T) {
	svc := newMapService(nil, nil, nil)
	if _, _, err := svc.Load(context.Background(), sampleEvents()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Leaves(context.Background(), 10_000, 0, 0); !errors.Is(err, cluster.ErrClusterNotFound) {
		t.Fatalf("expected ErrClusterNotFound, got %v", err)
	}
}

func TestEventMapService_EventsSkipMalformed(t *testing.T) {
	svc := newMapService(nil, nil, nil)
	info, _, err := svc.Load(context.Background(), sampleEvents())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Events != 21 {
		t.Errorf("expected 21 events, got %d", info.Events)
	}

	got, err := svc.Events(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 21 {
		t.Fatalf("expected 21 events, got %d", len(got))
	}
	for _, e := range got {
		if e.ID == "EONET_bad" || e.ID == "EONET_storm" {
			t.Errorf("unexpected event %s in served list", e.ID)
		}
	}
}

func TestEventMapService_SharedCacheAcrossDatasets(t *testing.T) {
	cache := newMockCache()
	ctx := context.Background()

	a := newMapService(nil, nil, cache)
	if _, _, err := a.Load(ctx, []domain.Event{fire("A", 10, 10)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := newMapService(nil, nil, cache)
	if _, _, err := b.Load(ctx, []domain.Event{fire("B1", -50, -20), fire("B2", 100, 30)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := a.Clusters(ctx, domain.WorldBBox, 3, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := b.Clusters(ctx, domain.WorldBBox, 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 markers from own dataset, got %d", len(got))
	}
	for _, r := range got {
		if r.Point == nil || (r.Point.ID != "B1" && r.Point.ID != "B2") {
			t.Errorf("unexpected marker %+v", r)
		}
	}
}

func TestEventMapService_CacheKeyKeepsFullPrecision(t *testing.T) {
	cache := newMockCache()
	svc := newMapService(nil, nil, cache)
	ctx := context.Background()
	if _, _, err := svc.Load(ctx, []domain.Event{fire("edge", 10.00004, 5)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inside := domain.BBox{West: 10.00003, South: 0, East: 20, North: 10}
	outside := domain.BBox{West: 10.00005, South: 0, East: 20, North: 10}

	got, err := svc.Clusters(ctx, inside, 16, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 marker, got %d", len(got))
	}
	got, err = svc.Clusters(ctx, outside, 16, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no markers, got %d", len(got))
	}
	if len(cache.data) != 2 {
		t.Errorf("expected 2 cache entries, got %d", len(cache.data))
	}
}
