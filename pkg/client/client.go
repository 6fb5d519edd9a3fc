// Package client calls a remote DCF server. Transport failures and 5xx
// responses are retried after a fixed delay, which covers servers that are
// still waking up; 4xx responses are returned immediately.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apivaluation "dcf_valuation/pkg/api/valuation"
	"dcf_valuation/pkg/core/assumption"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = 5 * time.Second
	DefaultTimeout    = 30 * time.Second
)

// Response is the decoded success body of POST /api/dcf.
type Response struct {
	apivaluation.DCFResponse
	RunID string `json:"-"`
}

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Kind    string
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("server returned %d (%s) on %s: %s", e.Status, e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Kind, e.Message)
}

// Temporary reports whether retrying the same request could succeed.
func (e *APIError) Temporary() bool {
	return e.Status >= 500
}

// Client talks to one DCF server.
type Client struct {
	BaseURL    string
	HTTP       *http.Client
	Retries    int           // extra attempts after the first; 0 disables retrying
	RetryDelay time.Duration // fixed wait between attempts
	Logger     *zap.Logger
}

// New creates a client with the default retry policy.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTP:       &http.Client{Timeout: DefaultTimeout},
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
		Logger:     zap.NewNop(),
	}
}

// Value posts the assumptions to /api/dcf.
func (c *Client) Value(ctx context.Context, a *assumption.Assumptions) (*Response, error) {
	if a == nil {
		return nil, errors.New("nil assumptions")
	}
	body, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assumptions: %w", err)
	}

	var out Response
	hdr, err := c.post(ctx, "/api/dcf", body, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out.DCFResponse)
	})
	if err != nil {
		return nil, err
	}
	out.RunID = hdr.Get("X-Run-ID")
	return &out, nil
}

// Report posts the assumptions to /api/dcf/report and returns the HTML page.
func (c *Client) Report(ctx context.Context, a *assumption.Assumptions) (string, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to encode assumptions: %w", err)
	}

	var page []byte
	_, err = c.post(ctx, "/api/dcf/report", body, func(r io.Reader) error {
		var readErr error
		page, readErr = io.ReadAll(r)
		return readErr
	})
	return string(page), err
}

func (c *Client) post(ctx context.Context, path string, body []byte, decode func(io.Reader) error) (http.Header, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	url := strings.TrimRight(c.BaseURL, "/") + path

	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			logger.Warn("retrying request",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", c.Retries+1),
				zap.Error(lastErr),
			)
			if err := sleep(ctx, c.RetryDelay); err != nil {
				return nil, err
			}
		}

		hdr, err := c.do(ctx, httpClient, url, body, decode)
		if err == nil {
			return hdr, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.Retries+1, lastErr)
}

func (c *Client) do(ctx context.Context, httpClient *http.Client, url string, body []byte, decode func(io.Reader) error) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	if err := decode(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.Header, nil
}

func decodeAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var body apivaluation.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Kind != "" {
		apiErr.Kind = body.Error.Kind
		apiErr.Message = body.Error.Message
		apiErr.Field = body.Error.Field
		return apiErr
	}
	apiErr.Kind = http.StatusText(resp.StatusCode)
	apiErr.Message = strings.TrimSpace(string(raw))
	return apiErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
