// Package client provides a Go client for the teamsync server's REST API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/coordinator"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/envelope"
)

// TeamSummary mirrors one row of the server's team listing.
type TeamSummary struct {
	ID   string `json:"id"`
	Live bool   `json:"live"`
}

type listTeamsResponse struct {
	Teams []TeamSummary `json:"teams"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client calls the teamsync server.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// New creates a client for the server at baseURL authenticating with apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   http.DefaultClient,
	}
}

// ListTeams returns every team the server knows about.
func (c *Client) ListTeams(ctx context.Context) ([]TeamSummary, error) {
	var resp listTeamsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/teams", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return resp.Teams, nil
}

// State fetches a team's current view. With ack the server clears the
// pending-update counter; with refresh it reloads the persisted snapshot
// before answering.
func (c *Client) State(ctx context.Context, teamID string, ack, refresh bool) (*coordinator.StateView, error) {
	q := url.Values{}
	if ack {
		q.Set("ack", "true")
	}
	if refresh {
		q.Set("refresh", "true")
	}
	path := fmt.Sprintf("/api/teams/%s/state", url.PathEscape(teamID))
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var view coordinator.StateView
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &view); err != nil {
		return nil, fmt.Errorf("failed to get state for team %s: %w", teamID, err)
	}
	return &view, nil
}

// EmitEvent publishes an envelope into a team's stream and returns it as
// accepted by the server, with ID and timestamp stamped.
func (c *Client) EmitEvent(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
	if env.TeamID == "" {
		return nil, fmt.Errorf("envelope team ID is required")
	}
	path := fmt.Sprintf("/api/teams/%s/events", url.PathEscape(env.TeamID))

	var echoed envelope.Envelope
	if err := c.doJSON(ctx, http.MethodPost, path, env, &echoed); err != nil {
		return nil, fmt.Errorf("failed to emit %s event: %w", env.Kind, err)
	}
	return &echoed, nil
}

// StreamEvents subscribes to a team's live event stream and invokes fn for
// each envelope until the context is cancelled, the server closes the
// stream, or fn returns an error. kinds narrows the stream when non-empty.
func (c *Client) StreamEvents(ctx context.Context, teamID string, kinds []string, fn func(*envelope.Envelope) error) error {
	path := fmt.Sprintf("/api/teams/%s/events/stream", url.PathEscape(teamID))
	if len(kinds) > 0 {
		path += "?kinds=" + url.QueryEscape(strings.Join(kinds, ","))
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to open event stream: %w", decodeAPIError(resp))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			// id:, event:, keep-alive comments, and frame separators.
			continue
		}
		var env envelope.Envelope
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env); err != nil {
			return fmt.Errorf("failed to decode streamed event: %w", err)
		}
		if err := fn(&env); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("event stream closed: %w", err)
	}
	return ctx.Err()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("server returned %s: %s", apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}
