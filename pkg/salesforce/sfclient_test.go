package salesforce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSFClient creates an sfClient backed by an httptest server.
func newTestSFClient(t *testing.T, handler http.Handler) (Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)

	sf, err := gosf.Init(gosf.Creds{
		AccessToken: "test-token",
		Domain:      ts.URL,
	},
		gosf.WithValidateAuthentication(false),
		gosf.WithRoundTripper(http.DefaultTransport),
	)
	require.NoError(t, err)
	require.NotNil(t, sf)

	return NewClient(sf), ts
}

func TestSFClient_Query(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/query")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalSize": 2,
			"done":      true,
			"records": []map[string]any{
				{
					"attributes": map[string]any{"type": "Lead"},
					"Email":      "info@acme.com",
				},
				{
					"attributes": map[string]any{"type": "Lead"},
					"Email":      "sam@oneroofing.com",
				},
			},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	var rows []leadEmailRow
	err := client.Query(context.Background(), "SELECT Email FROM Lead", &rows)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "info@acme.com", rows[0].Email)
	assert.Equal(t, "sam@oneroofing.com", rows[1].Email)
}

func TestSFClient_Query_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "invalid SOQL", "errorCode": "MALFORMED_QUERY"},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	var rows []leadEmailRow
	err := client.Query(context.Background(), "INVALID SOQL", &rows)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sf: query")
}

func TestSFClient_InsertCollection(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "00Qaa", "success": true, "errors": []any{}},
				{
					"id":      "",
					"success": false,
					"errors": []map[string]any{
						{"message": "required field missing", "statusCode": "REQUIRED_FIELD_MISSING"},
					},
				},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	records := []map[string]any{
		{"Company": "Acme Plumbing", "LastName": "Acme Plumbing", "Email": "info@acme.com"},
		{"Company": "No Email LLC", "LastName": "No Email LLC"},
	}
	results, err := client.InsertCollection(context.Background(), "Lead", records)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Success)
	assert.Equal(t, "00Qaa", results[0].ID)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Errors, "required field missing")
}

func TestSFClient_InsertCollection_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "batch error"},
		})
	})

	client, ts := newTestSFClient(t, handler)
	defer ts.Close()

	_, err := client.InsertCollection(context.Background(), "Lead", []map[string]any{
		{"Company": "A"},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sf: insert collection")
}
