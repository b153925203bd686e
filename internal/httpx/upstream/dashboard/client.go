package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "http://localhost:8000/api"
	defaultTimeout = 30 * time.Second
)

var (
	// ErrNetwork wraps transport failures (the request never produced a response)
	ErrNetwork = errors.New("dashboard API unreachable")

	// ErrMalformedPayload is returned when a response does not match the endpoint contract
	ErrMalformedPayload = errors.New("dashboard API returned a malformed payload")
)

// Client is a dashboard REST API client authenticated with the caller's bearer token
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a function that configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a new dashboard API client
func New(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-success response from the dashboard API
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dashboard API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("dashboard API error: %s (status %d)", e.Message, e.StatusCode)
}

// IsLimitExceeded reports whether the server refused because the refresh quota is spent
func (e *APIError) IsLimitExceeded() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "limit exceeded")
}

// Quota returns the counters carried in the error body, if any
func (e *APIError) Quota() (used, remaining int, ok bool) {
	u := gjson.GetBytes(e.Body, "api_calls_used")
	r := gjson.GetBytes(e.Body, "api_calls_remaining")
	if u.Type != gjson.Number || r.Type != gjson.Number {
		return 0, 0, false
	}
	return int(u.Int()), int(r.Int()), true
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: body}
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error", "message", "error.message"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
				e.Message = v.String()
				break
			}
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// get executes an authenticated GET and returns the body of a 2xx response
func (c *Client) get(ctx context.Context, token, path string, query string) ([]byte, error) {
	endpoint := c.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %w", ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp.StatusCode, body)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: response is not JSON", ErrMalformedPayload)
	}

	return body, nil
}
