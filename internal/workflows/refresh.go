package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
)

// RefreshWorkflowName is the registered name of RefreshEventsWorkflow.
const RefreshWorkflowName = "RefreshEventsWorkflow"

// RefreshResult is returned by RefreshEventsWorkflow.
type RefreshResult struct {
	Events      int
	Snapshotted bool
	Announced   bool
}

// RefreshEventsWorkflow fetches the feed, stores the events, snapshots them
// and announces the change. Fetch and store failures fail the run; snapshot
// and announce failures are logged since the events are durable by then.
func RefreshEventsWorkflow(ctx workflow.Context) (RefreshResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting refresh workflow")

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var res RefreshResult

	// Step 1: Fetch
	var events []domain.Event
	if err := workflow.ExecuteActivity(ctx, ActivityFetchEvents).Get(ctx, &events); err != nil {
		return res, err
	}
	res.Events = len(events)
	if len(events) == 0 {
		logger.Warn("feed returned no usable events, keeping the stored dataset")
		return res, nil
	}

	// Step 2: Store
	if err := workflow.ExecuteActivity(ctx, ActivityStoreEvents, events).Get(ctx, nil); err != nil {
		return res, err
	}

	best := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	})

	// Step 3: Snapshot
	if err := workflow.ExecuteActivity(best, ActivitySnapshotEvents, events).Get(best, nil); err != nil {
		logger.Warn("snapshot failed", "error", err)
	} else {
		res.Snapshotted = true
	}

	// Step 4: Announce
	if err := workflow.ExecuteActivity(best, ActivityAnnounceDataset, len(events)).Get(best, nil); err != nil {
		logger.Warn("announce failed", "error", err)
	} else {
		res.Announced = true
	}

	logger.Info("Refresh complete", "events", res.Events)
	return res, nil
}
