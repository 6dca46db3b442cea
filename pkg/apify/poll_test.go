package apify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements Client for testing poll functions.
type mockClient struct {
	startRunFunc     func(ctx context.Context, actorID string, input any) (*Run, error)
	getRunFunc       func(ctx context.Context, actorID, runID string) (*Run, error)
	datasetItemsFunc func(ctx context.Context, datasetID string, out any) error
}

func (m *mockClient) StartRun(ctx context.Context, actorID string, input any) (*Run, error) {
	if m.startRunFunc == nil {
		return &Run{ID: "run-1", Status: StatusReady, DefaultDatasetID: "ds-1"}, nil
	}
	return m.startRunFunc(ctx, actorID, input)
}

func (m *mockClient) GetRun(ctx context.Context, actorID, runID string) (*Run, error) {
	return m.getRunFunc(ctx, actorID, runID)
}

func (m *mockClient) DatasetItems(ctx context.Context, datasetID string, out any) error {
	if m.datasetItemsFunc == nil {
		return nil
	}
	return m.datasetItemsFunc(ctx, datasetID, out)
}

func (m *mockClient) Me(context.Context) (*User, error) {
	return &User{ID: "u-1", Username: "test"}, nil
}

func TestWaitForRun_SucceedsImmediately(t *testing.T) {
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, actorID, runID string) (*Run, error) {
			return &Run{ID: runID, Status: StatusSucceeded, DefaultDatasetID: "ds-1"}, nil
		},
	}

	run, err := WaitForRun(context.Background(), mock, "actor", "run-1",
		WithPollInterval(10*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, "ds-1", run.DefaultDatasetID)
}

func TestWaitForRun_SucceedsAfterPolls(t *testing.T) {
	var calls atomic.Int32
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, actorID, runID string) (*Run, error) {
			n := calls.Add(1)
			switch {
			case n == 1:
				return &Run{ID: runID, Status: StatusReady}, nil
			case n < 4:
				return &Run{ID: runID, Status: StatusRunning}, nil
			default:
				return &Run{ID: runID, Status: StatusSucceeded, DefaultDatasetID: "ds-1"}, nil
			}
		},
	}

	run, err := WaitForRun(context.Background(), mock, "actor", "run-2",
		WithPollInterval(10*time.Millisecond),
		WithPollCap(20*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, int32(4), calls.Load())
}

func TestWaitForRun_Failed(t *testing.T) {
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, actorID, runID string) (*Run, error) {
			return &Run{ID: runID, Status: StatusFailed}, nil
		},
	}

	run, err := WaitForRun(context.Background(), mock, "actor", "run-fail",
		WithPollInterval(10*time.Millisecond),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILED")
	assert.Equal(t, StatusFailed, run.Status)
}

func TestWaitForRun_Aborted(t *testing.T) {
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, actorID, runID string) (*Run, error) {
			return &Run{ID: runID, Status: StatusAborted}, nil
		},
	}

	_, err := WaitForRun(context.Background(), mock, "actor", "run-abort",
		WithPollInterval(10*time.Millisecond),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ABORTED")
}

func TestWaitForRun_TimedOut(t *testing.T) {
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, actorID, runID string) (*Run, error) {
			return &Run{ID: runID, Status: StatusTimedOut}, nil
		},
	}

	_, err := WaitForRun(context.Background(), mock, "actor", "run-to",
		WithPollInterval(10*time.Millisecond),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIMED-OUT")
}

func TestWaitForRun_StuckRunning(t *testing.T) {
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, actorID, runID string) (*Run, error) {
			return &Run{ID: runID, Status: StatusRunning}, nil
		},
	}

	_, err := WaitForRun(context.Background(), mock, "actor", "run-stuck",
		WithPollInterval(5*time.Millisecond),
		WithPollCap(10*time.Millisecond),
		WithStuckAfter(30*time.Millisecond),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunStuck)
}

func TestWaitForRun_StatusChangeResetsStuckClock(t *testing.T) {
	// Alternate READY and RUNNING so the status keeps changing; the stuck
	// threshold must not fire even though total elapsed time exceeds it.
	var calls atomic.Int32
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, actorID, runID string) (*Run, error) {
			n := calls.Add(1)
			if n >= 8 {
				return &Run{ID: runID, Status: StatusSucceeded}, nil
			}
			if n%2 == 0 {
				return &Run{ID: runID, Status: StatusReady}, nil
			}
			return &Run{ID: runID, Status: StatusRunning}, nil
		},
	}

	run, err := WaitForRun(context.Background(), mock, "actor", "run-flap",
		WithPollInterval(10*time.Millisecond),
		WithPollCap(10*time.Millisecond),
		WithStuckAfter(25*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
}

func TestWaitForRun_Timeout(t *testing.T) {
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, actorID, runID string) (*Run, error) {
			return &Run{ID: runID, Status: StatusReady}, nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := WaitForRun(ctx, mock, "actor", "run-timeout",
		WithPollInterval(10*time.Millisecond),
		WithPollCap(20*time.Millisecond),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForRun_DefaultTimeout(t *testing.T) {
	// Verify the loop applies its own deadline when ctx has none. We
	// override the default to a short duration to avoid a long test.
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, actorID, runID string) (*Run, error) {
			return &Run{ID: runID, Status: StatusReady}, nil
		},
	}

	_, err := WaitForRun(context.Background(), mock, "actor", "run-default-timeout",
		WithPollInterval(5*time.Millisecond),
		WithPollCap(10*time.Millisecond),
		WithPollTimeout(50*time.Millisecond),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForRun_ErrorPropagation(t *testing.T) {
	mock := &mockClient{
		getRunFunc: func(ctx context.Context, actorID, runID string) (*Run, error) {
			return nil, &APIError{StatusCode: 500, Body: "server error"}
		},
	}

	_, err := WaitForRun(context.Background(), mock, "actor", "run-err",
		WithPollInterval(10*time.Millisecond),
	)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
}

func TestRunAndCollect(t *testing.T) {
	var polls atomic.Int32
	mock := &mockClient{
		startRunFunc: func(ctx context.Context, actorID string, input any) (*Run, error) {
			return &Run{ID: "run-9", Status: StatusReady, DefaultDatasetID: "ds-9"}, nil
		},
		getRunFunc: func(ctx context.Context, actorID, runID string) (*Run, error) {
			if polls.Add(1) < 2 {
				return &Run{ID: runID, Status: StatusRunning, DefaultDatasetID: "ds-9"}, nil
			}
			return &Run{ID: runID, Status: StatusSucceeded, DefaultDatasetID: "ds-9"}, nil
		},
		datasetItemsFunc: func(ctx context.Context, datasetID string, out any) error {
			assert.Equal(t, "ds-9", datasetID)
			items := out.(*[]map[string]any)
			*items = []map[string]any{{"placeId": "p1"}}
			return nil
		},
	}

	var items []map[string]any
	err := RunAndCollect(context.Background(), mock, "actor", map[string]any{}, &items,
		WithPollInterval(5*time.Millisecond),
	)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0]["placeId"])
}

func TestRunAndCollect_StartFails(t *testing.T) {
	mock := &mockClient{
		startRunFunc: func(ctx context.Context, actorID string, input any) (*Run, error) {
			return nil, &APIError{StatusCode: 402, Body: "insufficient credit"}
		},
	}

	var items []map[string]any
	err := RunAndCollect(context.Background(), mock, "actor", map[string]any{}, &items)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 402, apiErr.StatusCode)
}
