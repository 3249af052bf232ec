package mediaserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const userAgent = "transcode-patrol/1.0"

// Client talks to one media server. All calls are bounded by the configured
// per-request timeout, so a wedged server can never stall a polling cycle
// past it.
type Client struct {
	serverName string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for one server with a bounded, retrying HTTP
// transport. Retries here are transport-level plumbing inside a single
// bounded call; failed units of work are never re-driven within a cycle.
func NewClient(server ServerConfig, timeout time.Duration) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 250 * time.Millisecond
	retryClient.RetryWaitMax = 1 * time.Second
	retryClient.Logger = nil // Silence default debug logger

	httpClient := retryClient.StandardClient()
	httpClient.Timeout = timeout

	return &Client{
		serverName: server.Name,
		baseURL:    strings.TrimRight(strings.TrimSpace(server.URL), "/"),
		apiKey:     strings.TrimSpace(server.APIKey),
		httpClient: httpClient,
	}
}

// ServerName identifies which configured server this client targets.
func (c *Client) ServerName() string {
	return c.serverName
}

// StatusError is a non-2xx response from the media server.
type StatusError struct {
	StatusCode int
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("media server returned status %d for %s", e.StatusCode, e.Path)
}

// doRequest is the core HTTP handler: marshals the payload, sets the
// credential header, and decodes the response when one is expected.
func (c *Client) doRequest(ctx context.Context, method, path string, payload, response interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode, Path: path}
	}

	if response != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}

	return nil
}

// Sessions fetches the list of active playback sessions.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.doRequest(ctx, http.MethodGet, "/Sessions", nil, &sessions); err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}
	return sessions, nil
}

// Item looks up a media item with its stream metadata, which carries the
// true source resolution and dynamic range.
func (c *Client) Item(ctx context.Context, itemID string) (*Item, error) {
	path := fmt.Sprintf("/Items/%s?Fields=MediaStreams", url.PathEscape(itemID))
	var item Item
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &item); err != nil {
		return nil, fmt.Errorf("fetch item %s: %w", itemID, err)
	}
	return &item, nil
}

// messagePayload is the body of POST /Sessions/{id}/Message.
type messagePayload struct {
	Header    string `json:"Header"`
	Text      string `json:"Text"`
	TimeoutMs int64  `json:"TimeoutMs"`
}

// SendMessage displays a popup message on the session's client.
func (c *Client) SendMessage(ctx context.Context, sessionID, header, text string, displayTimeout time.Duration) error {
	path := fmt.Sprintf("/Sessions/%s/Message", url.PathEscape(sessionID))
	payload := messagePayload{
		Header:    header,
		Text:      text,
		TimeoutMs: displayTimeout.Milliseconds(),
	}
	if err := c.doRequest(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("send message to session %s: %w", sessionID, err)
	}
	return nil
}

// StopPlayback issues the stop-playback command for a session.
func (c *Client) StopPlayback(ctx context.Context, sessionID string) error {
	path := fmt.Sprintf("/Sessions/%s/Playing/Stop", url.PathEscape(sessionID))
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("stop playback for session %s: %w", sessionID, err)
	}
	return nil
}
