package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates an sdkClient pointing at a local test server.
func newTestClient(baseURL string) *sdkClient {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
	}
}

func TestSDKClient_CreateMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "Why did you choose tankless over conventional?"},
			},
			"model":       "claude-sonnet-4-5-20250929",
			"stop_reason": "end_turn",
			"usage": map[string]any{
				"input_tokens":                10,
				"output_tokens":               5,
				"cache_creation_input_tokens": 0,
				"cache_read_input_tokens":     0,
			},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		Messages:  []Message{{Role: "user", Content: "Write the opener"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "claude-sonnet-4-5-20250929", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "Why did you choose tankless over conventional?", resp.Text())
	assert.Equal(t, int64(10), resp.Usage.InputTokens)
	assert.Equal(t, int64(5), resp.Usage.OutputTokens)
}

func TestSDKClient_CreateMessage_WithSystemAndTemp(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_sys",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "Acknowledged"},
			},
			"model":       "claude-sonnet-4-5-20250929",
			"stop_reason": "end_turn",
			"usage": map[string]any{
				"input_tokens":                50,
				"output_tokens":               3,
				"cache_creation_input_tokens": 5000,
				"cache_read_input_tokens":     0,
			},
		})
	}))
	defer ts.Close()

	temp := 0.5
	client := newTestClient(ts.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 128,
		System: []SystemBlock{
			{Text: "You write cold-email openers", CacheControl: &CacheControl{TTL: "1h"}},
		},
		Messages:    []Message{{Role: "user", Content: "Ack"}},
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_sys", resp.ID)
	assert.Equal(t, int64(5000), resp.Usage.CacheCreationInputTokens)
}

func TestSDKClient_CreateMessage_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"type": "error",
			"error": map[string]any{
				"type":    "api_error",
				"message": "Internal server error",
			},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		Messages:  []Message{{Role: "user", Content: "Hello"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}

func TestSDKClient_StatusCode(t *testing.T) {
	tests := []struct {
		name       string
		httpStatus int
	}{
		{"rate limited", http.StatusTooManyRequests},
		{"overloaded", http.StatusServiceUnavailable},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.httpStatus)
				json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
					"type":  "error",
					"error": map[string]any{"type": "api_error", "message": "boom"},
				})
			}))
			defer ts.Close()

			client := newTestClient(ts.URL)
			_, err := client.CreateMessage(context.Background(), MessageRequest{
				Model:     "claude-haiku-4-5-20251001",
				MaxTokens: 16,
				Messages:  []Message{{Role: "user", Content: "x"}},
			})
			require.Error(t, err)

			code, ok := StatusCode(err)
			require.True(t, ok)
			assert.Equal(t, tt.httpStatus, code)
		})
	}
}

func TestSDKClient_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should have been cancelled")
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(ts.URL)
	_, err := client.CreateMessage(ctx, MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 16,
		Messages:  []Message{{Role: "user", Content: "x"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
