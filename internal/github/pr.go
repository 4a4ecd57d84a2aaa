package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

var pullURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// ParsePullURL extracts owner, repo and PR number from a GitHub pull-request
// URL.
func ParsePullURL(url string) (owner, repo string, number int, err error) {
	m := pullURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", 0, fmt.Errorf("not a recognizable pull request URL: %q", url)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid pull request number in %q: %w", url, err)
	}
	return m[1], m[2], number, nil
}

// Client queries the GitHub REST API for pull-request state.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a GitHub API client.
func NewClient() *Client {
	return NewClientWithBaseURL("https://api.github.com")
}

// NewClientWithBaseURL creates a client against a custom API base URL
// (useful for testing).
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// PullRequestState returns "open" or "closed" for the given pull request.
// Merged pull requests report as closed.
func (c *Client) PullRequestState(ctx context.Context, owner, repo string, number int, token string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("GitHub API error for %s/%s#%d (status %d): %s", owner, repo, number, resp.StatusCode, body)
	}

	var pr struct {
		State string `json:"state"` // "open" or "closed"
	}
	if err := json.Unmarshal(body, &pr); err != nil {
		return "", fmt.Errorf("failed to parse pull request: %w", err)
	}
	return pr.State, nil
}
