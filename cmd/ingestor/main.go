package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/eonet"
	natsadapter "github.com/KristerJLawlor/wildfire-tracker/internal/adapters/nats"
	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/postgres"
	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/snapshot"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/ports"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/usecases"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/config"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/logging"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/telemetry"
)

func main() {
	once := flag.Bool("once", false, "run a single ingest pass and exit")
	flag.Parse()

	cfg, err := config.Load("wildfire-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	var publisher ports.DatasetPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, updates will not be announced", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	source := eonet.NewClient(eonet.Config{
		BaseURL:        cfg.Source.EONETURL,
		Status:         cfg.Source.Status,
		Days:           cfg.Source.Days,
		RequestsPerSec: cfg.Source.RatePerSecond,
		Timeout:        cfg.Source.Timeout,
	})
	ingest := usecases.NewIngestService(source, postgres.NewEventRepo(db), snapshot.NewStore(cfg.Snapshot.Path), publisher, cfg.Source.Category)

	slog.Info("wildfire ingestor starting", "source", cfg.Source.EONETURL, "category", cfg.Source.Category, "once", *once)

	if *once {
		if _, err := ingest.Run(ctx); err != nil {
			log.Fatalf("ingest: %v", err)
		}
		return
	}

	ticker := time.NewTicker(cfg.Source.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := ingest.Run(ctx); err != nil {
			slog.Error("ingest pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("ingestor stopped")
			return
		case <-ticker.C:
		}
	}
}
