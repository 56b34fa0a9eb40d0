package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/metrics"
)

const (
	apiVersion = "1.0.0"

	// headerDatasetVersion names the index generation a response was built from.
	headerDatasetVersion = "X-Dataset-Version"

	queryTimeout = 15 * time.Second
)

// SetupRoutes registers the map API, GraphQL, docs and the viewport socket.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Map widgets re-query on every pan, so the budget is per IP and generous.
	app.Use(limiter.New(limiter.Config{
		Max:          240,
		Expiration:   time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many map queries, slow down")
		},
	}))

	app.Use(securityHeaders)
	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/map/defaults", withTimeout(MapDefaultsHandler(deps)))
	v1.Get("/dataset", withTimeout(DatasetHandler(deps)))
	v1.Get("/events", withTimeout(EventsHandler(deps)))
	v1.Get("/clusters", withTimeout(ClustersHandler(deps)))
	// before :id so "geojson" is not parsed as a cluster id
	v1.Get("/clusters/geojson", withTimeout(ClustersGeoJSONHandler(deps)))
	v1.Get("/clusters/:id", withTimeout(ClusterHandler(deps)))
	v1.Get("/clusters/:id/leaves", withTimeout(ClusterLeavesHandler(deps)))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}

func withTimeout(h fiber.Handler) fiber.Handler {
	return timeout.NewWithContext(h, queryTimeout)
}

func securityHeaders(c *fiber.Ctx) error {
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderXFrameOptions, "DENY")
	c.Set(fiber.HeaderReferrerPolicy, "strict-origin-when-cross-origin")
	c.Set("X-API-Version", apiVersion)
	return c.Next()
}
