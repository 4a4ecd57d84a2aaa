package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mattsolo1/grove-watch/internal/config"
	"github.com/mattsolo1/grove-watch/internal/state"
)

// maxSessionPages bounds how many pages a single session listing will drain.
// A runaway or misbehaving server must not stall a poll cycle forever.
const maxSessionPages = 20

// Client handles communication with the Grove Cloud API
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a new API client from the resolved configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.API.URL,
		token:   cfg.API.Token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// HasToken reports whether the client holds an API token. Callers use this
// to short-circuit a poll cycle before issuing unauthenticated requests.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body []byte
	var err error

	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	if _, err := respBody.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s (status %d): %s", path, resp.StatusCode, respBody.String())
	}

	return respBody.Bytes(), nil
}

type sessionsPage struct {
	Sessions []state.RemoteSession `json:"sessions"`
	HasMore  bool                  `json:"has_more"`
}

// ListSessions fetches the full session list for the authenticated account,
// draining pages up to a safety cap. The lifecycle state of each session is
// re-derived locally from its raw state rather than trusted from the server.
func (c *Client) ListSessions(ctx context.Context) ([]state.RemoteSession, error) {
	var sessions []state.RemoteSession

	for page := 1; page <= maxSessionPages; page++ {
		resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/sessions?page=%d", page), nil)
		if err != nil {
			return nil, err
		}

		var parsed sessionsPage
		if err := json.Unmarshal(resp, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse sessions page %d: %w", page, err)
		}

		for i := range parsed.Sessions {
			parsed.Sessions[i].State = state.DeriveLifecycle(parsed.Sessions[i].RawState)
		}
		sessions = append(sessions, parsed.Sessions...)

		if !parsed.HasMore {
			break
		}
	}

	return sessions, nil
}

type branchesResponse struct {
	Branches      []string `json:"branches"`
	DefaultBranch string   `json:"default_branch"`
}

// ListBranches fetches the remote branch list and default branch for a
// source repository.
func (c *Client) ListBranches(ctx context.Context, sourceID string) ([]string, string, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/sources/%s/branches", url.PathEscape(sourceID)), nil)
	if err != nil {
		return nil, "", err
	}

	var parsed branchesResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return nil, "", fmt.Errorf("failed to parse branches: %w", err)
	}

	return parsed.Branches, parsed.DefaultBranch, nil
}
