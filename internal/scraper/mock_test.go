package scraper

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/govern"
	"github.com/sells-group/leadgen-cli/pkg/apify"
)

type mockApify struct {
	mock.Mock
}

func (m *mockApify) StartRun(ctx context.Context, actorID string, input any) (*apify.Run, error) {
	args := m.Called(ctx, actorID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apify.Run), args.Error(1)
}

func (m *mockApify) GetRun(ctx context.Context, actorID, runID string) (*apify.Run, error) {
	args := m.Called(ctx, actorID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apify.Run), args.Error(1)
}

func (m *mockApify) DatasetItems(ctx context.Context, datasetID string, out any) error {
	args := m.Called(ctx, datasetID, out)
	return args.Error(0)
}

func (m *mockApify) Me(ctx context.Context) (*apify.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apify.User), args.Error(1)
}

// fillItems decodes canned dataset JSON into the out parameter captured
// from a DatasetItems call.
func fillItems(t *testing.T, out any, data string) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(data), out))
}

// succeededRun returns a terminal SUCCEEDED run for actorID.
func succeededRun(actorID string) *apify.Run {
	return &apify.Run{
		ID:               "run-" + actorID,
		ActorID:          actorID,
		Status:           apify.StatusSucceeded,
		DefaultDatasetID: "ds-" + actorID,
	}
}

// expectRun wires one successful run of actorID whose dataset decodes to
// the given JSON array.
func expectRun(t *testing.T, ma *mockApify, actorID, data string) {
	t.Helper()
	run := succeededRun(actorID)
	ma.On("StartRun", mock.Anything, actorID, mock.Anything).Return(run, nil).Once()
	ma.On("GetRun", mock.Anything, actorID, run.ID).Return(run, nil).Once()
	ma.On("DatasetItems", mock.Anything, run.DefaultDatasetID, mock.Anything).
		Run(func(args mock.Arguments) { fillItems(t, args.Get(2), data) }).
		Return(nil).Once()
}

// expectFailedRun wires a run of actorID that ends in FAILED.
func expectFailedRun(ma *mockApify, actorID string) {
	run := &apify.Run{
		ID:      "run-" + actorID,
		ActorID: actorID,
		Status:  apify.StatusFailed,
	}
	started := &apify.Run{
		ID:      run.ID,
		ActorID: actorID,
		Status:  apify.StatusRunning,
	}
	ma.On("StartRun", mock.Anything, actorID, mock.Anything).Return(started, nil).Once()
	ma.On("GetRun", mock.Anything, actorID, run.ID).Return(run, nil).Once()
}

// testGovernor returns a governor whose buckets never block tests.
func testGovernor() *govern.Governor {
	return govern.New(govern.Options{
		DomainDelay:      time.Millisecond,
		FailureThreshold: 3,
		Services: map[string]govern.ServiceLimit{
			govern.ServiceApify:   {Rate: 1000, Burst: 1000},
			govern.ServiceWebsite: {Rate: 1000, Burst: 1000},
		},
	})
}
