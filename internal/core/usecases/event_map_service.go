package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/ports"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/cluster"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/logging"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/metrics"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/telemetry"
)

// ErrDatasetNotLoaded is returned by queries issued before the first Load.
var ErrDatasetNotLoaded = errors.New("dataset not loaded")

// MapServiceConfig configures an EventMapService.
type MapServiceConfig struct {
	Category string
	Cluster  cluster.Options
	CacheTTL int // seconds; 0 disables the query cache
}

// dataset is one immutable generation of the served events and their index.
type dataset struct {
	info   domain.DatasetInfo
	events []domain.Event
	index  *cluster.Index
}

// EventMapService owns the current dataset and answers map queries against it.
// Rebuilds build a fresh index and swap it in atomically, so queries never
// wait on a rebuild.
type EventMapService struct {
	events    ports.EventRepository
	snapshots ports.SnapshotStore
	cache     ports.CacheService
	cfg       MapServiceConfig
	tracer    trace.Tracer

	current atomic.Pointer[dataset]
	buildMu sync.Mutex

	subMu   sync.Mutex
	subs    map[int]chan uint64
	nextSub int
}

// NewEventMapService creates a new EventMapService. Any dependency may be nil.
func NewEventMapService(events ports.EventRepository, snapshots ports.SnapshotStore, cache ports.CacheService, cfg MapServiceConfig) *EventMapService {
	if cfg.Category == "" {
		cfg.Category = domain.CategoryWildfires
	}
	return &EventMapService{
		events:    events,
		snapshots: snapshots,
		cache:     cache,
		cfg:       cfg,
		tracer:    telemetry.Tracer("wildfire/usecases"),
		subs:      make(map[int]chan uint64),
	}
}

// Category returns the category the service serves.
func (s *EventMapService) Category() string { return s.cfg.Category }

// Load indexes the events of the configured category. The index is rebuilt
// only when the point set differs from the one being served; the returned
// bool reports whether a new version was published.
func (s *EventMapService) Load(ctx context.Context, events []domain.Event) (domain.DatasetInfo, bool, error) {
	ctx, span := s.tracer.Start(ctx, "EventMapService.Load")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return domain.DatasetInfo{}, false, err
	}

	log := logging.FromContext(ctx)

	var skipped []Skipped
	for i := range events {
		if _, ok := events[i].CategoryID(); !ok {
			skipped = append(skipped, Skipped{ID: events[i].ID, Reason: domain.ErrMissingCategory})
		}
	}
	points, bad := BuildPoints(FilterByCategory(events, s.cfg.Category))
	skipped = append(skipped, bad...)

	// Served events are exactly the ones behind the points.
	valid := make([]domain.Event, len(points))
	for i := range points {
		valid[i] = *points[i].Event
		points[i].Event = &valid[i]
	}

	for _, sk := range skipped {
		log.Warn("skipping malformed event", "event_id", sk.ID, "reason", sk.Reason)
		metrics.MalformedEvents.WithLabelValues(reasonLabel(sk.Reason)).Inc()
	}

	fp := fingerprint(points)

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	prev := s.current.Load()
	if prev != nil && prev.info.Fingerprint == fp {
		span.SetAttributes(attribute.Bool("rebuilt", false))
		return prev.info, false, nil
	}

	start := time.Now()
	ix := cluster.New(s.cfg.Cluster).Load(points)
	took := time.Since(start)

	var version uint64 = 1
	if prev != nil {
		version = prev.info.Version + 1
	}

	info := domain.DatasetInfo{
		Version:     version,
		Fingerprint: fp,
		Category:    s.cfg.Category,
		Events:      len(valid),
		Points:      ix.Len(),
		Skipped:     len(skipped),
		BuiltAt:     time.Now().UTC(),
		BuildMillis: float64(took.Microseconds()) / 1000,
	}
	s.current.Store(&dataset{info: info, events: valid, index: ix})

	metrics.IndexBuildDuration.Observe(took.Seconds())
	metrics.IndexedPoints.Set(float64(info.Points))
	metrics.DatasetVersion.Set(float64(info.Version))
	span.SetAttributes(
		attribute.Bool("rebuilt", true),
		attribute.Int64("dataset.version", int64(version)),
		attribute.Int("dataset.points", info.Points),
	)
	log.Info("cluster index rebuilt",
		"version", version, "points", info.Points, "skipped", info.Skipped, "took", took)

	s.notify(version)
	return info, true, nil
}

// Refresh reloads events from the repository, falling back to the last
// snapshot when the repository is unavailable.
func (s *EventMapService) Refresh(ctx context.Context) (domain.DatasetInfo, bool, error) {
	ctx, span := s.tracer.Start(ctx, "EventMapService.Refresh")
	defer span.End()

	if s.events == nil && s.snapshots == nil {
		return domain.DatasetInfo{}, false, errors.New("refresh dataset: no event source configured")
	}

	var repoErr error
	if s.events != nil {
		events, err := s.events.ListByCategory(ctx, s.cfg.Category)
		if err == nil {
			return s.Load(ctx, events)
		}
		repoErr = err
		logging.FromContext(ctx).Warn("event repository unavailable, trying snapshot", "error", err)
	}

	if s.snapshots == nil {
		span.SetStatus(codes.Error, repoErr.Error())
		return domain.DatasetInfo{}, false, fmt.Errorf("refresh dataset: %w", repoErr)
	}
	events, err := s.snapshots.Load(ctx)
	if err != nil {
		err = errors.Join(repoErr, err)
		span.SetStatus(codes.Error, err.Error())
		return domain.DatasetInfo{}, false, fmt.Errorf("refresh dataset: %w", err)
	}
	return s.Load(ctx, events)
}

// Dataset describes the dataset being served.
func (s *EventMapService) Dataset() (domain.DatasetInfo, bool) {
	ds := s.current.Load()
	if ds == nil {
		return domain.DatasetInfo{}, false
	}
	return ds.info, true
}

// Clusters returns the markers visible in bbox at zoom. With includeMembers,
// cluster results carry their member ids and radius.
func (s *EventMapService) Clusters(ctx context.Context, bbox domain.BBox, zoom int, includeMembers bool) ([]domain.ClusterResult, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrDatasetNotLoaded
	}

	ctx, span := s.tracer.Start(ctx, "EventMapService.Clusters", trace.WithAttributes(
		attribute.Int("zoom", zoom),
		attribute.Int64("dataset.version", int64(ds.info.Version)),
	))
	defer span.End()

	cacheKey := clustersCacheKey(ds.info.Fingerprint, ds.index.Options(), bbox, zoom, includeMembers)
	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var results []domain.ClusterResult
			if err := cbor.Unmarshal(data, &results); err == nil {
				metrics.CacheHits.WithLabelValues("clusters").Inc()
				span.SetAttributes(attribute.Bool("cache.hit", true))
				return hydrate(ds.index, results), nil
			}
		}
		metrics.CacheMisses.WithLabelValues("clusters").Inc()
	}

	start := time.Now()
	results := ds.index.GetClusters(bbox, zoom)
	if includeMembers {
		for i := range results {
			results[i] = ds.index.WithMembers(results[i])
		}
	}
	metrics.IndexQueryDuration.WithLabelValues("clusters").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("results", len(results)))

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if data, err := cbor.Marshal(results); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cfg.CacheTTL)
		}
	}

	return results, nil
}

// Events returns the served events, restricted to vp when it is non-nil.
func (s *EventMapService) Events(vp *domain.Viewport) ([]domain.Event, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrDatasetNotLoaded
	}
	if vp == nil {
		return FilterByCategory(ds.events, s.cfg.Category), nil
	}
	return FilterByCategoryAndViewport(ds.events, s.cfg.Category, *vp), nil
}

// Leaves returns the point ids under a cluster.
func (s *EventMapService) Leaves(ctx context.Context, clusterID, limit, offset int) ([]string, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrDatasetNotLoaded
	}
	_, span := s.tracer.Start(ctx, "EventMapService.Leaves")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.IndexQueryDuration.WithLabelValues("leaves").Observe(time.Since(start).Seconds())
	}()
	return ds.index.Leaves(clusterID, limit, offset)
}

// Cluster returns one marker by id, with members attached.
func (s *EventMapService) Cluster(ctx context.Context, clusterID int) (domain.ClusterResult, error) {
	ds := s.current.Load()
	if ds == nil {
		return domain.ClusterResult{}, ErrDatasetNotLoaded
	}
	_, span := s.tracer.Start(ctx, "EventMapService.Cluster")
	defer span.End()
	return ds.index.Cluster(clusterID)
}

// Subscribe returns a channel receiving the version of every newly published
// dataset. Only the latest version is kept when the reader falls behind.
func (s *EventMapService) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *EventMapService) notify(version uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- version:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- version
		}
	}
}

// hydrate re-attaches points to cached singleton results.
func hydrate(ix *cluster.Index, results []domain.ClusterResult) []domain.ClusterResult {
	for i := range results {
		if results[i].Kind == domain.KindSingleton {
			if p := ix.Point(results[i].ID); p != nil {
				results[i].Point = p
			}
		}
	}
	return results
}

// clustersCacheKey is shared by every process using the cache. Node ids are
// only meaningful for one point set under one set of options.
func clustersCacheKey(fp string, o cluster.Options, b domain.BBox, zoom int, members bool) string {
	return fmt.Sprintf("clusters:%s:%d-%d-%d-%s-%s:%s:%s:%s:%s:%d:%t",
		fp, o.MinZoom, o.MaxZoom, o.MinPoints, keyFloat(o.Radius), keyFloat(o.Extent),
		keyFloat(b.West), keyFloat(b.South), keyFloat(b.East), keyFloat(b.North), zoom, members)
}

func keyFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// fingerprint hashes the identity, position and title of every point.
func fingerprint(points []domain.Point) string {
	d := xxhash.New()
	var buf [8]byte
	for i := range points {
		p := &points[i]
		_, _ = d.WriteString(p.ID)
		putFloat(d, buf[:], p.Lng)
		putFloat(d, buf[:], p.Lat)
		if p.Event != nil {
			_, _ = d.WriteString(p.Event.Title)
		}
		_, _ = d.Write([]byte{0})
	}
	return strconv.FormatUint(d.Sum64(), 16) + "-" + strconv.Itoa(len(points))
}

func putFloat(d *xxhash.Digest, buf []byte, f float64) {
	bits := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
	_, _ = d.Write(buf)
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingCategory):
		return "missing_category"
	case errors.Is(err, domain.ErrMissingGeometry):
		return "missing_geometry"
	case errors.Is(err, domain.ErrMissingCoordinate):
		return "missing_coordinates"
	default:
		return "other"
	}
}
