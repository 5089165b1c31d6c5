package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rolandhq/flowvault/internal/domain"
	"github.com/rolandhq/flowvault/internal/infrastructure/retry"
)

// Client talks to an n8n-style workflow API. Authentication uses a custom
// API-key header rather than a bearer scheme; the header name comes from
// configuration. The key is never logged.
type Client struct {
	baseURL    string
	headerName string
	apiKey     string
	httpClient *http.Client
	policy     retry.Policy
	logger     Logger
}

type Logger interface {
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Debugf(template string, args ...interface{})
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient swaps the underlying transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the given base URL. The URL is normalized to
// end with /api/v1, which is where n8n mounts its REST API.
func New(baseURL, headerName, apiKey string, policy retry.Policy, logger Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    normalizeBaseURL(baseURL),
		headerName: headerName,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     policy,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normalizeBaseURL(baseURL string) string {
	url := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(url, "/api/v1") {
		url += "/api/v1"
	}
	return url
}

// FetchWorkflow exports the workflow definition. Credential references in
// the returned payload are replaced with placeholders so they never reach
// the snapshot archive or the version-control backend.
func (c *Client) FetchWorkflow(ctx context.Context, id string) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("workflow id cannot be empty")
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/workflows/"+id, nil)
	if err != nil {
		return nil, wrapWorkflow(err, id)
	}

	sanitized, err := SanitizeCredentials(body)
	if err != nil {
		return nil, fmt.Errorf("sanitize workflow %s: %w", id, err)
	}
	return sanitized, nil
}

// PushWorkflow replaces the workflow definition on the remote.
func (c *Client) PushWorkflow(ctx context.Context, id string, payload []byte) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("workflow id cannot be empty")
	}

	_, err := c.doRequest(ctx, http.MethodPut, "/workflows/"+id, payload)
	if err != nil {
		return wrapWorkflow(err, id)
	}
	return nil
}

// ListWorkflows returns summaries of all workflows. The n8n API nests the
// result under a "data" key.
func (c *Client) ListWorkflows(ctx context.Context) ([]domain.WorkflowSummary, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/workflows?limit=100", nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []domain.WorkflowSummary `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse workflow list: %w", err)
	}
	return envelope.Data, nil
}

// doRequest performs one logical API call with the retry policy applied:
// exponential backoff on 5xx and transport errors, Retry-After on 429,
// immediate failure on other 4xx.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := c.baseURL + path

	var lastErr error
	var retryAfter time.Duration
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Warnf("Retrying %s %s (attempt %d/%d): %v",
				method, path, attempt, c.policy.MaxAttempts, lastErr)
			// A Retry-After hint from the previous response replaces the
			// backoff delay.
			var waitErr error
			if retryAfter > 0 {
				waitErr = c.policy.WaitFor(ctx, retryAfter)
			} else {
				waitErr = c.policy.Wait(ctx, attempt-1)
			}
			if waitErr != nil {
				return nil, domain.NewError(domain.KindCancelled, "cancelled while waiting to retry", waitErr)
			}
		}

		respBody, hint, err := c.attempt(ctx, method, url, body)
		if err == nil {
			return respBody, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr, retryAfter = err, hint
	}

	return nil, domain.NewError(domain.KindRemoteUnavailable,
		fmt.Sprintf("remote unavailable after %d attempts", c.policy.MaxAttempts), lastErr)
}

// attempt performs a single HTTP exchange and classifies the outcome.
func (c *Client) attempt(ctx context.Context, method, url string, body []byte) ([]byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(c.headerName, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "flowvault")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, domain.NewError(domain.KindCancelled, "request cancelled", ctx.Err())
		}
		return nil, 0, &transientError{fmt.Errorf("transport error: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &transientError{fmt.Errorf("failed to read response body: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, 0, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, domain.NewError(domain.KindRemoteAuthFailed,
			fmt.Sprintf("remote rejected credentials (HTTP %d)", resp.StatusCode), nil)

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")),
			&transientError{fmt.Errorf("rate limited (HTTP 429)")}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, 0, domain.NewError(domain.KindRemoteRejected,
			fmt.Sprintf("remote rejected request (HTTP %d): %s", resp.StatusCode, truncate(respBody, 200)), nil)

	default:
		return nil, 0, &transientError{fmt.Errorf("server error (HTTP %d)", resp.StatusCode)}
	}
}

// transientError marks failures eligible for retry.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func truncate(body []byte, max int) string {
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func wrapWorkflow(err error, id string) error {
	var e *domain.Error
	if errors.As(err, &e) && e.WorkflowID == "" {
		e.WorkflowID = id
	}
	return err
}
