package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/http"
	natsadapter "github.com/KristerJLawlor/wildfire-tracker/internal/adapters/nats"
	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/postgres"
	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/snapshot"
	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/valkey"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/ports"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/usecases"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/cluster"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/config"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/logging"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("wildfire-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database. The API can still serve from the snapshot without it.
	var repo ports.EventRepository
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Warn("database unavailable, serving from snapshot", "error", err)
		db = nil
	} else {
		defer db.Close()
		repo = postgres.NewEventRepo(db)
		go db.ReportPoolStats(ctx, 15*time.Second)
	}

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	maps := usecases.NewEventMapService(repo, snapshot.NewStore(cfg.Snapshot.Path), cacheSvc, usecases.MapServiceConfig{
		Category: cfg.Source.Category,
		Cluster: cluster.Options{
			MinZoom:   cfg.Cluster.MinZoom,
			MaxZoom:   cfg.Cluster.MaxZoom,
			MinPoints: cfg.Cluster.MinPoints,
			Radius:    cfg.Cluster.Radius,
			Extent:    cfg.Cluster.Extent,
			NodeMin:   cfg.Cluster.NodeMin,
			NodeMax:   cfg.Cluster.NodeMax,
		},
		CacheTTL: cfg.Valkey.CacheTTL,
	})

	if info, _, err := maps.Refresh(ctx); err != nil {
		slog.Warn("initial dataset load failed, waiting for updates", "error", err)
	} else {
		slog.Info("dataset loaded", "version", info.Version, "points", info.Points)
	}

	// NATS: rebuild the index whenever the ingest side announces new events.
	host, _ := os.Hostname()
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "wildfire-api-"+durableName(host))
	if err != nil {
		slog.Warn("nats unavailable, dataset will not auto-refresh", "error", err)
	} else {
		defer sub.Close()
		reload := debounce(cfg.Index.RebuildDebounce, func() {
			if _, _, err := maps.Refresh(ctx); err != nil {
				slog.Error("dataset refresh failed", "error", err)
			}
		})
		err := sub.SubscribeDatasetUpdates(ctx, func(ctx context.Context, u domain.DatasetUpdate) error {
			if u.Category != maps.Category() {
				return nil
			}
			slog.Info("dataset update announced", "events", u.Events, "fetched_at", u.FetchedAt)
			reload()
			return nil
		})
		if err != nil {
			slog.Warn("subscribe dataset updates failed", "error", err)
		}
	}

	deps := &http.Dependencies{
		Maps: maps,
		Defaults: domain.MapDefaults{
			Center: domain.LatLng{Lat: cfg.Map.CenterLat, Lng: cfg.Map.CenterLng},
			Zoom:   cfg.Map.Zoom,
		},
		DB:    db,
		Cache: cache,
	}
	if sub != nil {
		deps.NATS = sub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Wildfire Map API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())
	cancel()

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// debounce coalesces calls arriving within d into one call of fn.
func debounce(d time.Duration, fn func()) func() {
	var mu sync.Mutex
	var timer *time.Timer
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, fn)
	}
}

// durableName keeps only the characters JetStream accepts in consumer names.
func durableName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "local"
	}
	return string(out)
}
