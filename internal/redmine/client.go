// Package redmine provides a Redmine REST API client for reading issues.
package redmine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/redmd/redmd/internal/logger"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxInFlight = 4
	defaultMaxRetries  = 3
	defaultPageSize    = 100

	// retryBaseDelay is doubled on every failed attempt.
	retryBaseDelay = 500 * time.Millisecond
)

// Client is a read-only Redmine API client. All requests, including the
// concurrent page fetches of ListIssues, share one in-flight semaphore so the
// remote server is never hit with more simultaneous requests than configured.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	inFlight   *semaphore.Weighted
	maxRetries int
}

// New creates a client for the given Redmine base URL and API key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		inFlight:   semaphore.NewWeighted(defaultMaxInFlight),
		maxRetries: defaultMaxRetries,
	}
}

// SetConcurrency bounds the number of simultaneously in-flight requests.
// Must be called before the client is used.
func (c *Client) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	c.inFlight = semaphore.NewWeighted(int64(n))
}

// SetMaxRetries caps the number of attempts per request.
// Must be called before the client is used.
func (c *Client) SetMaxRetries(n int) {
	if n < 1 {
		n = 1
	}
	c.maxRetries = n
}

// getJSON performs a GET under the in-flight semaphore, retrying transient
// failures with exponential backoff, and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	if err := c.inFlight.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("request not dispatched: %w", err)
	}
	defer c.inFlight.Release(1)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			logger.Debug("redmine: retrying %s in %s (attempt %d/%d)", rawURL, delay, attempt+1, c.maxRetries)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-Redmine-API-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			lastErr = &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if !retryable(resp.StatusCode) {
				return lastErr
			}
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return lastErr
}

// retryable reports whether a status code is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// GetIssue fetches a single issue with the requested sub-resources.
func (c *Client) GetIssue(ctx context.Context, id int, include Include) (*Issue, error) {
	u := fmt.Sprintf("%s/issues/%d.json", c.baseURL, id)
	if inc := includeParam(include); inc != "" {
		u += "?include=" + inc
	}

	var payload struct {
		Issue Issue `json:"issue"`
	}
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, err
	}
	return &payload.Issue, nil
}

// includeParam renders the include query value, e.g. "journals,relations".
func includeParam(inc Include) string {
	var parts []string
	if inc.Journals {
		parts = append(parts, "journals")
	}
	if inc.Relations {
		parts = append(parts, "relations")
	}
	if inc.Attachments {
		parts = append(parts, "attachments")
	}
	return strings.Join(parts, ",")
}

// issuesPage is one page of a project listing.
type issuesPage struct {
	Issues     []Issue `json:"issues"`
	TotalCount int     `json:"total_count"`
	Offset     int     `json:"offset"`
	Limit      int     `json:"limit"`
}

// getIssuesPage fetches one page of matching issues for a project.
func (c *Client) getIssuesPage(ctx context.Context, projectID string, filters ListFilters, offset, limit int) (*issuesPage, error) {
	q := url.Values{}
	q.Set("project_id", projectID)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	if filters.StatusID != "" {
		q.Set("status_id", filters.StatusID)
	}
	if !filters.UpdatedSince.IsZero() {
		q.Set("updated_on", ">="+filters.UpdatedSince.UTC().Format("2006-01-02T15:04:05Z"))
	}

	u := fmt.Sprintf("%s/issues.json?%s", c.baseURL, q.Encode())

	var page issuesPage
	if err := c.getJSON(ctx, u, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListIssues fetches every issue of a project matching the filters. The first
// page is read alone to learn the total count; remaining pages are fetched
// concurrently, each gated by the client's in-flight semaphore, and assembled
// back in offset order.
func (c *Client) ListIssues(ctx context.Context, projectID string, filters ListFilters, pageSize int) ([]Issue, error) {
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	first, err := c.getIssuesPage(ctx, projectID, filters, 0, pageSize)
	if err != nil {
		return nil, err
	}
	if first.TotalCount <= len(first.Issues) {
		return first.Issues, nil
	}

	numPages := (first.TotalCount + pageSize - 1) / pageSize
	pages := make([][]Issue, numPages)
	pages[0] = first.Issues

	logger.Debug("redmine: fetching %d issues across %d pages", first.TotalCount, numPages)

	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i < numPages; i++ {
		i := i
		g.Go(func() error {
			page, err := c.getIssuesPage(gctx, projectID, filters, i*pageSize, pageSize)
			if err != nil {
				return fmt.Errorf("page at offset %d: %w", i*pageSize, err)
			}
			pages[i] = page.Issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	issues := make([]Issue, 0, first.TotalCount)
	for _, p := range pages {
		issues = append(issues, p...)
	}
	return issues, nil
}
