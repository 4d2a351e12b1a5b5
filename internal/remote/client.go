// Package remote imports create metadata from a remote Jira Server/DC
// instance into the local store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/issue-rest/internal/errcol"
)

// ErrUnauthorized is returned when the remote rejects the token.
var ErrUnauthorized = errors.New("remote rejected the access token")

// Client talks to the REST API v2 of a remote instance with Bearer token
// authentication and retries HTTP 429 responses.
type Client struct {
	baseURL    string
	token      string
	user       string
	httpClient *http.Client
	maxRetries int

	// wait is replaced in tests to skip real sleeps.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for the instance rooted at baseURL. token is a
// Personal Access Token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
		wait:       sleep,
	}
}

// As returns a copy of c that names user in the X-Remote-User header, as
// expected by a local issue-rest server.
func (c *Client) As(user string) *Client {
	cp := *c
	cp.user = user
	return &cp
}

// CreateMeta fetches create metadata with fields expanded, optionally
// narrowed to projectKeys.
func (c *Client) CreateMeta(ctx context.Context, projectKeys []string) (*CreateMetaResponse, error) {
	q := url.Values{}
	q.Set("expand", "projects.issuetypes.fields")
	if len(projectKeys) > 0 {
		q.Set("projectKeys", strings.Join(projectKeys, ","))
	}
	var out CreateMetaResponse
	if err := c.get(ctx, "/rest/api/2/issue/createmeta?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Priorities fetches the global priority list, most urgent first.
func (c *Client) Priorities(ctx context.Context) ([]Priority, error) {
	var out []Priority
	if err := c.get(ctx, "/rest/api/2/priority", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateIssue posts body to /rest/api/2/issue.
func (c *Client) CreateIssue(ctx context.Context, body any) (*CreatedIssue, error) {
	var out CreatedIssue
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if c.user != "" {
			req.Header.Set("X-Remote-User", c.user)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)
			if err := c.wait(ctx, retryAfter(resp, attempt)); err != nil {
				return err
			}
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, c.baseURL)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			var errBody errcol.Body
			if json.Unmarshal(respBody, &errBody) == nil && (len(errBody.ErrorMessages) > 0 || len(errBody.Errors) > 0) {
				return fmt.Errorf("%s %s: %w", method, path, errcol.FromBody(errBody, reasonFor(resp.StatusCode)))
			}
			return fmt.Errorf("unexpected status %d on %s %s: %s", resp.StatusCode, method, path, respBody)
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func reasonFor(status int) errcol.Reason {
	switch status {
	case http.StatusNotFound:
		return errcol.NotFound
	case http.StatusForbidden:
		return errcol.Forbidden
	case http.StatusConflict:
		return errcol.Conflict
	}
	if status >= 500 {
		return errcol.ServerError
	}
	return errcol.ValidationFailed
}

// retryAfter honours a Retry-After header in seconds and otherwise backs
// off exponentially, capped at 30s.
func retryAfter(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
