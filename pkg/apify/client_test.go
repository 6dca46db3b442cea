package apify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-api-key", WithBaseURL(srv.URL))
	return srv, c
}

func TestStartRun(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantID     string
		wantErr    bool
		wantAPIErr bool
		wantStatus int
	}{
		{
			name: "happy path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/acts/compass~crawler-google-places/runs", r.URL.Path)
				assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var input map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
				assert.Equal(t, "plumber 45202", input["searchStringsArray"].([]any)[0])

				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"data":{"id":"run-123","actId":"compass~crawler-google-places","status":"READY","defaultDatasetId":"ds-123"}}`))
			},
			wantID: "run-123",
		},
		{
			name: "auth error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"type":"token-not-found"}}`))
			},
			wantErr:    true,
			wantAPIErr: true,
			wantStatus: 401,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":{"type":"internal"}}`))
			},
			wantErr:    true,
			wantAPIErr: true,
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestServer(t, tt.handler)
			input := map[string]any{"searchStringsArray": []string{"plumber 45202"}}
			run, err := c.StartRun(context.Background(), "compass~crawler-google-places", input)

			if tt.wantErr {
				require.Error(t, err)
				if tt.wantAPIErr {
					var apiErr *APIError
					require.ErrorAs(t, err, &apiErr)
					assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, run.ID)
			assert.Equal(t, StatusReady, run.Status)
			assert.Equal(t, "ds-123", run.DefaultDatasetID)
		})
	}
}

func TestGetRun(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/acts/compass~crawler-google-places/runs/run-123", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		w.Write([]byte(`{"data":{"id":"run-123","status":"SUCCEEDED","defaultDatasetId":"ds-123"}}`))
	})

	run, err := c.GetRun(context.Background(), "compass~crawler-google-places", "run-123")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.True(t, run.Terminal())
}

func TestGetRun_Error(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"record-not-found"}}`))
	})

	_, err := c.GetRun(context.Background(), "compass~crawler-google-places", "nonexistent")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestDatasetItems(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/datasets/ds-123/items", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("clean"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		w.Write([]byte(`[{"placeId":"p1","title":"Ace Plumbing"},{"placeId":"p2","title":"Bolt Electric"}]`))
	})

	var items []map[string]any
	err := c.DatasetItems(context.Background(), "ds-123", &items)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Ace Plumbing", items[0]["title"])
}

func TestDatasetItems_Empty(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	var items []map[string]any
	err := c.DatasetItems(context.Background(), "ds-empty", &items)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDatasetItems_Error(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate-limit-exceeded"}}`))
	})

	var items []map[string]any
	err := c.DatasetItems(context.Background(), "ds-123", &items)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
}

func TestMe(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		w.Write([]byte(`{"data":{"id":"u-1","username":"sells-group"}}`))
	})

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sells-group", user.Username)
}

func TestContextCancellation(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Should never reach here
		t.Fatal("request should have been cancelled")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := c.StartRun(ctx, "compass~crawler-google-places", map[string]any{})
	require.Error(t, err)
}

func TestAPIError_Error(t *testing.T) {
	t.Parallel()
	e := &APIError{StatusCode: 429, Body: `{"error":{"type":"rate-limit-exceeded"}}`}
	assert.Equal(t, `apify: HTTP 429: {"error":{"type":"rate-limit-exceeded"}}`, e.Error())
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()
	customClient := &http.Client{}
	c := NewClient("key", WithHTTPClient(customClient))
	hc := c.(*httpClient)
	assert.Equal(t, customClient, hc.http)
}

func TestMalformedEnvelope(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{not json`))
	})

	_, err := c.GetRun(context.Background(), "actor", "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode envelope")
}

func TestMissingDataField(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"something":"else"}`))
	})

	_, err := c.GetRun(context.Background(), "actor", "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing data field")
}

func TestRunTerminal(t *testing.T) {
	t.Parallel()
	for _, status := range []string{StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut} {
		assert.True(t, (&Run{Status: status}).Terminal(), status)
	}
	for _, status := range []string{StatusReady, StatusRunning} {
		assert.False(t, (&Run{Status: status}).Terminal(), status)
	}
}
