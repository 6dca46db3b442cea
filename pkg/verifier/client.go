// Package verifier provides a client for the MillionVerifier email
// verification API.
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.millionverifier.com/api/v3"

// Verification results reported by the API.
const (
	ResultDeliverable   = "deliverable"
	ResultUndeliverable = "undeliverable"
	ResultRisky         = "risky"
	ResultUnknown       = "unknown"
	ResultError         = "error"
)

// Client defines the email verification operations.
type Client interface {
	// Verify checks a single address.
	Verify(ctx context.Context, email string) (*Result, error)
	// VerifyBatch checks addresses one at a time with a fixed gap between
	// calls. A per-address failure is recorded as an error result; the
	// batch keeps going.
	VerifyBatch(ctx context.Context, emails []string) ([]Result, error)
	// Credits returns the remaining verification credits on the account.
	Credits(ctx context.Context) (int, error)
}

// Result is the verdict for one address.
type Result struct {
	Email      string `json:"email"`
	Quality    string `json:"quality"`
	Verdict    string `json:"result"`
	Score      int    `json:"resultcode,omitempty"`
	Free       bool   `json:"free"`
	Role       bool   `json:"role"`
	DidYouMean string `json:"didyoumean"`
	Credits    int    `json:"credits"`
	Err        string `json:"error"`
}

// Safe reports whether the address is deliverable with a quality score at
// or above minScore.
func (r *Result) Safe(minScore int) bool {
	return r.Verdict == ResultDeliverable && r.QualityScore() >= minScore
}

// QualityScore maps the API quality band to a 0-100 score. Newer API
// versions return a numeric subresult code; older ones only the band.
func (r *Result) QualityScore() int {
	if r.Score > 0 {
		return r.Score
	}
	switch r.Quality {
	case "good":
		return 100
	case "risky":
		return 50
	case "bad":
		return 0
	}
	return 0
}

type creditsResponse struct {
	Credits int    `json:"credits"`
	Err     string `json:"error"`
}

// APIError is returned when the service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("verifier: HTTP %d: %s", e.StatusCode, e.Body)
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

// WithSpacing sets the gap VerifyBatch leaves between consecutive calls.
func WithSpacing(d time.Duration) Option {
	return func(c *httpClient) {
		if d >= 0 {
			c.spacing = d
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	spacing time.Duration
	http    *http.Client
}

// NewClient creates a new verification client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		spacing: 100 * time.Millisecond,
		http: &http.Client{
			Timeout: 30 * time.Second,
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

func (c *httpClient) Verify(ctx context.Context, email string) (*Result, error) {
	var result Result
	path := "/email/verify?email=" + url.QueryEscape(email)
	if err := c.get(ctx, path, &result); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("verifier: verify %s", email))
	}
	if result.Err != "" {
		return nil, eris.New(fmt.Sprintf("verifier: verify %s: %s", email, result.Err))
	}
	if result.Email == "" {
		result.Email = email
	}
	return &result, nil
}

func (c *httpClient) VerifyBatch(ctx context.Context, emails []string) ([]Result, error) {
	results := make([]Result, 0, len(emails))
	for i, email := range emails {
		if i > 0 && c.spacing > 0 {
			select {
			case <-ctx.Done():
				return results, eris.Wrap(ctx.Err(), "verifier: batch")
			case <-time.After(c.spacing):
			}
		}

		r, err := c.Verify(ctx, email)
		if err != nil {
			if ctx.Err() != nil {
				return results, eris.Wrap(ctx.Err(), "verifier: batch")
			}
			results = append(results, Result{Email: email, Verdict: ResultError, Err: err.Error()})
			continue
		}
		results = append(results, *r)
	}
	return results, nil
}

func (c *httpClient) Credits(ctx context.Context) (int, error) {
	var resp creditsResponse
	if err := c.get(ctx, "/credits", &resp); err != nil {
		return 0, eris.Wrap(err, "verifier: credits")
	}
	if resp.Err != "" {
		return 0, eris.New("verifier: credits: " + resp.Err)
	}
	return resp.Credits, nil
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
