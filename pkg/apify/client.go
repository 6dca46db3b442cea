// Package apify is a minimal client for the Apify actor platform: start a
// run, poll it, fetch the dataset items it produced.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the Apify v2 API.
const defaultBaseURL = "https://api.apify.com/v2"

// Run statuses reported by the platform.
const (
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusAborted   = "ABORTED"
	StatusTimedOut  = "TIMED-OUT"
)

// Client defines the actor platform operations used by the pipeline.
type Client interface {
	StartRun(ctx context.Context, actorID string, input any) (*Run, error)
	GetRun(ctx context.Context, actorID, runID string) (*Run, error)
	DatasetItems(ctx context.Context, datasetID string, out any) error
	Me(ctx context.Context) (*User, error)
}

// Run describes one actor run.
type Run struct {
	ID               string     `json:"id"`
	ActorID          string     `json:"actId"`
	Status           string     `json:"status"`
	DefaultDatasetID string     `json:"defaultDatasetId"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
}

// Terminal reports whether the run has reached a final status.
func (r *Run) Terminal() bool {
	switch r.Status {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut:
		return true
	}
	return false
}

// User identifies the authenticated account. Used by connectivity checks.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// envelope is the {"data": ...} wrapper Apify puts around most responses.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// APIError is returned when the platform responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apify: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Apify client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) StartRun(ctx context.Context, actorID string, input any) (*Run, error) {
	var run Run
	path := fmt.Sprintf("/acts/%s/runs", actorID)
	if err := c.post(ctx, path, input, &run); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: start run %s", actorID))
	}
	return &run, nil
}

func (c *httpClient) GetRun(ctx context.Context, actorID, runID string) (*Run, error) {
	var run Run
	path := fmt.Sprintf("/acts/%s/runs/%s", actorID, runID)
	if err := c.get(ctx, path, &run); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: get run %s", runID))
	}
	return &run, nil
}

// DatasetItems fetches all items of a dataset into out, which must be a
// pointer to a slice. Items endpoints return a bare JSON array, not the
// data envelope.
func (c *httpClient) DatasetItems(ctx context.Context, datasetID string, out any) error {
	path := fmt.Sprintf("/datasets/%s/items?clean=true&format=json", datasetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	data, err := c.doRaw(req)
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("apify: dataset items %s", datasetID))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "apify: decode dataset items")
	}
	return nil
}

func (c *httpClient) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "/users/me", &user); err != nil {
		return nil, eris.Wrap(err, "apify: get user")
	}
	return &user, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, out)
}

// do executes the request and decodes the data envelope into out.
func (c *httpClient) do(req *http.Request, out any) error {
	data, err := c.doRaw(req)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return eris.Wrap(err, "decode envelope")
	}
	if env.Data == nil {
		return eris.New("response missing data field")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

func (c *httpClient) doRaw(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	return data, nil
}
