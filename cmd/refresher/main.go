package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/eonet"
	natsadapter "github.com/KristerJLawlor/wildfire-tracker/internal/adapters/nats"
	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/postgres"
	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/snapshot"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/ports"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/usecases"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/config"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/logging"
	"github.com/KristerJLawlor/wildfire-tracker/internal/workflows"
)

const cronWorkflowID = "wildfire-refresh-cron"

func main() {
	cfg, err := config.Load("wildfire-refresher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if len(os.Args) > 1 && os.Args[1] == "schedule" {
		schedule(c, cfg)
		return
	}

	ctx := context.Background()
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
	acts := &workflows.RefreshActivities{
		Ingest: usecases.NewIngestService(source, postgres.NewEventRepo(db), snapshot.NewStore(cfg.Snapshot.Path), publisher, cfg.Source.Category),
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflowWithOptions(workflows.RefreshEventsWorkflow, workflow.RegisterOptions{Name: workflows.RefreshWorkflowName})
	w.RegisterActivityWithOptions(acts.FetchEvents, activity.RegisterOptions{Name: workflows.ActivityFetchEvents})
	w.RegisterActivityWithOptions(acts.StoreEvents, activity.RegisterOptions{Name: workflows.ActivityStoreEvents})
	w.RegisterActivityWithOptions(acts.SnapshotEvents, activity.RegisterOptions{Name: workflows.ActivitySnapshotEvents})
	w.RegisterActivityWithOptions(acts.AnnounceDataset, activity.RegisterOptions{Name: workflows.ActivityAnnounceDataset})

	slog.Info("refresher worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// schedule starts the cron workflow. An already running schedule is left alone.
func schedule(c client.Client, cfg *config.Config) {
	run, err := c.ExecuteWorkflow(context.Background(), client.StartWorkflowOptions{
		ID:           cronWorkflowID,
		TaskQueue:    cfg.Temporal.TaskQueue,
		CronSchedule: cfg.Temporal.Cron,
	}, workflows.RefreshWorkflowName)
	if err != nil {
		log.Fatalf("start cron workflow: %v", err)
	}
	slog.Info("refresh cron scheduled", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "cron", cfg.Temporal.Cron)
}
