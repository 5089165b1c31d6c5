package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rolandhq/flowvault/internal/domain"
)

// Client commits snapshot files through the GitHub contents API. Writes
// to the same path must be serialized by the caller; the client only
// guarantees the single optimistic-concurrency retry on Commit.
type Client struct {
	apiBase    string
	owner      string
	repo       string
	branch     string
	token      string
	httpClient *http.Client
	logger     Logger
}

type Logger interface {
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type Option func(*Client)

// WithHTTPClient swaps the underlying transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a client for the repository at repoURL, e.g.
// https://github.com/acme/workflow-backups. apiBase defaults to the
// public GitHub API when empty.
func New(repoURL, apiBase, branch, token string, logger Logger, opts ...Option) (*Client, error) {
	owner, repo, err := parseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}

	c := &Client{
		apiBase:    strings.TrimRight(apiBase, "/"),
		owner:      owner,
		repo:       repo,
		branch:     branch,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func parseRepoURL(repoURL string) (owner, repo string, err error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid repository URL %q: %w", repoURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository URL %q: expected <host>/<owner>/<repo>", repoURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

type contentResponse struct {
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

type commitResponse struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// ReadFile returns the current content of path on the configured branch.
func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	content, err := c.getContent(ctx, path)
	if err != nil {
		return nil, err
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", path, err)
	}
	return decoded, nil
}

// Commit writes content to path and returns the commit ref. A blob SHA
// that moved between read and write gets one automatic re-read and
// retry; a second conflict surfaces as ConcurrentModification.
func (c *Client) Commit(ctx context.Context, path string, content []byte, message string) (string, error) {
	sha, err := c.fileSHA(ctx, path)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < 2; attempt++ {
		ref, conflict, err := c.putContent(ctx, path, content, message, sha)
		if err != nil {
			return "", err
		}
		if !conflict {
			return ref, nil
		}

		c.logger.Warnf("Commit conflict on %s, re-reading blob SHA", path)
		sha, err = c.fileSHA(ctx, path)
		if err != nil {
			return "", err
		}
	}

	return "", domain.NewError(domain.KindConcurrentModification,
		fmt.Sprintf("ref moved twice while committing %s", path), nil)
}

// fileSHA returns the current blob SHA of path, or "" if it does not
// exist yet.
func (c *Client) fileSHA(ctx context.Context, path string) (string, error) {
	content, err := c.getContent(ctx, path)
	if domain.IsKind(err, domain.KindNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return content.SHA, nil
}

func (c *Client) getContent(ctx context.Context, path string) (*contentResponse, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.apiBase, c.owner, c.repo, path, url.QueryEscape(c.branch))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var content contentResponse
		if err := json.Unmarshal(body, &content); err != nil {
			return nil, fmt.Errorf("failed to parse contents response: %w", err)
		}
		return &content, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.NewError(domain.KindNotFound, fmt.Sprintf("%s not found on branch %s", path, c.branch), nil)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.NewError(domain.KindRemoteAuthFailed,
			fmt.Sprintf("version-control backend rejected token (HTTP %d)", resp.StatusCode), nil)

	default:
		return nil, fmt.Errorf("unexpected HTTP %d reading %s", resp.StatusCode, path)
	}
}

// putContent performs one contents PUT. The conflict return is true when
// the backend rejected the write because the blob SHA moved.
func (c *Client) putContent(ctx context.Context, path string, content []byte, message, sha string) (string, bool, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.apiBase, c.owner, c.repo, path)

	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  c.branch,
	}
	if sha != "" {
		payload["sha"] = sha
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode commit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("failed to commit %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var commit commitResponse
		if err := json.Unmarshal(respBody, &commit); err != nil {
			return "", false, fmt.Errorf("failed to parse commit response: %w", err)
		}
		return commit.Commit.SHA, false, nil

	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return "", true, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", false, domain.NewError(domain.KindRemoteAuthFailed,
			fmt.Sprintf("version-control backend rejected token (HTTP %d)", resp.StatusCode), nil)

	default:
		return "", false, fmt.Errorf("unexpected HTTP %d committing %s", resp.StatusCode, path)
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "flowvault")
}
