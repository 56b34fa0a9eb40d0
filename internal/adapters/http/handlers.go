package http

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	geojson "github.com/paulmach/go.geojson"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
)

// EventsHandler lists the served events, optionally restricted to the
// viewport given by nw_lat, nw_lng, se_lat and se_lng.
func EventsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cat := c.Query("category"); cat != "" && cat != deps.Maps.Category() {
			return errBadRequest(c, "unsupported category: "+cat)
		}

		vp, err := parseViewport(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		events, err := deps.Maps.Events(vp)
		if err != nil {
			return errFromService(c, err)
		}

		pg, start, end := paginate(c, len(events), 100, 500)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: events[start:end], Pagination: pg})
	}
}

// ClustersHandler returns the markers visible in bbox at zoom.
func ClustersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bbox, zoom, err := parseClusterQuery(c, deps.Defaults.Zoom)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		results, err := deps.Maps.Clusters(c.UserContext(), bbox, zoom, c.QueryBool("members", false))
		if err != nil {
			return errFromService(c, err)
		}

		if info, ok := deps.Maps.Dataset(); ok {
			c.Set(headerDatasetVersion, formatVersion(info.Version))
		}
		return c.JSON(fiber.Map{
			"zoom":     zoom,
			"bbox":     bbox,
			"clusters": results,
		})
	}
}

// ClustersGeoJSONHandler returns the same markers as a GeoJSON FeatureCollection.
func ClustersGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bbox, zoom, err := parseClusterQuery(c, deps.Defaults.Zoom)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		results, err := deps.Maps.Clusters(c.UserContext(), bbox, zoom, false)
		if err != nil {
			return errFromService(c, err)
		}

		data, err := toFeatureCollection(results).MarshalJSON()
		if err != nil {
			return errInternal(c, "encode geojson")
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}

func toFeatureCollection(results []domain.ClusterResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range results {
		f := geojson.NewPointFeature([]float64{r.Lng, r.Lat})
		f.ID = r.ID
		f.SetProperty("cluster", r.IsCluster())
		f.SetProperty("point_count", r.PointCount)
		if r.IsCluster() {
			f.SetProperty("cluster_id", r.ID)
		} else if r.Point != nil {
			f.SetProperty("event_id", r.Point.ID)
			if r.Point.Event != nil {
				f.SetProperty("title", r.Point.Event.Title)
				f.SetProperty("link", r.Point.Event.Link)
			}
		}
		fc.AddFeature(f)
	}
	return fc
}

// ClusterHandler returns one marker with its members.
func ClusterHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id < 0 {
			return errBadRequest(c, "cluster id must be a non-negative integer")
		}

		res, err := deps.Maps.Cluster(c.UserContext(), id)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(res)
	}
}

// ClusterLeavesHandler pages through the event ids under a cluster.
func ClusterLeavesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id < 0 {
			return errBadRequest(c, "cluster id must be a non-negative integer")
		}
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			return errBadRequest(c, "offset must not be negative")
		}
		if limit <= 0 || limit > 1000 {
			limit = 100
		}

		leaves, err := deps.Maps.Leaves(c.UserContext(), id, limit, offset)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(fiber.Map{
			"cluster_id": id,
			"offset":     offset,
			"limit":      limit,
			"leaves":     leaves,
		})
	}
}

// MapDefaultsHandler returns the initial map center and zoom.
func MapDefaultsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Defaults)
	}
}

// DatasetHandler describes the dataset being served.
func DatasetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		info, ok := deps.Maps.Dataset()
		if !ok {
			return errUnavailable(c, "event dataset is not loaded yet")
		}
		return c.JSON(info)
	}
}

// parseViewport reads the four corner parameters. It returns nil when none
// are given and an error when only some are.
func parseViewport(c *fiber.Ctx) (*domain.Viewport, error) {
	keys := []string{"nw_lat", "nw_lng", "se_lat", "se_lng"}
	vals := make([]float64, len(keys))
	given := 0
	for i, k := range keys {
		raw := c.Query(k)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fiber.NewError(fiber.StatusBadRequest, k+" must be a number")
		}
		vals[i] = f
		given++
	}
	switch given {
	case 0:
		return nil, nil
	case len(keys):
	default:
		return nil, fiber.NewError(fiber.StatusBadRequest, "nw_lat, nw_lng, se_lat and se_lng must be given together")
	}
	return &domain.Viewport{
		NorthWest: domain.LatLng{Lat: vals[0], Lng: vals[1]},
		SouthEast: domain.LatLng{Lat: vals[2], Lng: vals[3]},
	}, nil
}

// parseClusterQuery reads bbox=west,south,east,north (default: whole world)
// and zoom.
func parseClusterQuery(c *fiber.Ctx, defZoom int) (domain.BBox, int, error) {
	bbox := domain.WorldBBox
	if raw := c.Query("bbox"); raw != "" {
		b, err := parseBBox(raw)
		if err != nil {
			return bbox, 0, err
		}
		bbox = b
	}

	zoom := defZoom
	if raw := c.Query("zoom"); raw != "" {
		z, err := strconv.Atoi(raw)
		if err != nil || z < 0 || z > 30 {
			return bbox, 0, fiber.NewError(fiber.StatusBadRequest, "zoom must be an integer between 0 and 30")
		}
		zoom = z
	}
	return bbox, zoom, nil
}

func parseBBox(raw string) (domain.BBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return domain.BBox{}, fiber.NewError(fiber.StatusBadRequest, "bbox must be west,south,east,north")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return domain.BBox{}, fiber.NewError(fiber.StatusBadRequest, "bbox values must be numbers")
		}
		v[i] = f
	}
	if v[1] < -90 || v[1] > 90 || v[3] < -90 || v[3] > 90 {
		return domain.BBox{}, fiber.NewError(fiber.StatusBadRequest, "bbox latitudes must be within [-90, 90]")
	}
	return domain.BBox{West: v[0], South: v[1], East: v[2], North: v[3]}, nil
}

func formatVersion(v uint64) string {
	return strconv.FormatUint(v, 10)
}
