package workflows_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/workflows"
)

func newEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.RefreshEventsWorkflow)

	acts := &workflows.RefreshActivities{}
	env.RegisterActivityWithOptions(acts.FetchEvents, activity.RegisterOptions{Name: workflows.ActivityFetchEvents})
	env.RegisterActivityWithOptions(acts.StoreEvents, activity.RegisterOptions{Name: workflows.ActivityStoreEvents})
	env.RegisterActivityWithOptions(acts.SnapshotEvents, activity.RegisterOptions{Name: workflows.ActivitySnapshotEvents})
	env.RegisterActivityWithOptions(acts.AnnounceDataset, activity.RegisterOptions{Name: workflows.ActivityAnnounceDataset})
	return env
}

func sampleEvents() []domain.Event {
	return []domain.Event{
		{
			ID:         "EONET_1",
			Title:      "Fire 1",
			Categories: []domain.Category{{ID: domain.CategoryWildfires}},
			Geometry: []domain.Geometry{{
				Date:        time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
				Coordinates: []float64{-120, 38},
			}},
		},
	}
}

func TestRefreshEventsWorkflow_AllSteps(t *testing.T) {
	env := newEnv(t)
	events := sampleEvents()

	env.OnActivity(workflows.ActivityFetchEvents, mock.Anything).Return(events, nil).Once()
	env.OnActivity(workflows.ActivityStoreEvents, mock.Anything, mock.Anything).Return(nil).Once()
	env.OnActivity(workflows.ActivitySnapshotEvents, mock.Anything, mock.Anything).Return(nil).Once()
	env.OnActivity(workflows.ActivityAnnounceDataset, mock.Anything, 1).Return(nil).Once()

	env.ExecuteWorkflow(workflows.RefreshEventsWorkflow)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res workflows.RefreshResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, workflows.RefreshResult{Events: 1, Snapshotted: true, Announced: true}, res)
	env.AssertExpectations(t)
}

func TestRefreshEventsWorkflow_StoreFailureFails(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(workflows.ActivityFetchEvents, mock.Anything).Return(sampleEvents(), nil)
	env.OnActivity(workflows.ActivityStoreEvents, mock.Anything, mock.Anything).Return(errors.New("db down"))

	env.ExecuteWorkflow(workflows.RefreshEventsWorkflow)

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}

func TestRefreshEventsWorkflow_SnapshotFailureIsTolerated(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(workflows.ActivityFetchEvents, mock.Anything).Return(sampleEvents(), nil)
	env.OnActivity(workflows.ActivityStoreEvents, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(workflows.ActivitySnapshotEvents, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	env.OnActivity(workflows.ActivityAnnounceDataset, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(workflows.RefreshEventsWorkflow)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res workflows.RefreshResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.False(t, res.Snapshotted)
	assert.True(t, res.Announced)
}

func TestRefreshEventsWorkflow_EmptyFeedStopsEarly(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(workflows.ActivityFetchEvents, mock.Anything).Return([]domain.Event{}, nil)

	env.ExecuteWorkflow(workflows.RefreshEventsWorkflow)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res workflows.RefreshResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, 0, res.Events)
}
