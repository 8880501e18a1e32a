// Package tui implements the terminal chat client: a bubbletea app that
// streams a turn's progress events, renders the live auditor board, and runs
// the human approval gate before a corrected answer is committed to the
// transcript.
package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/constellahq/constellation/engine"
	"github.com/constellahq/constellation/stream"
)

// Client consumes the streaming chat endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given server base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		// No overall timeout: a turn holds the stream open for its full
		// duration. Cancellation comes from the request context.
		http: &http.Client{},
	}
}

// Stream runs one turn, invoking onEvent for every progress event, and
// returns the final turn snapshot.
func (c *Client) Stream(ctx context.Context, req engine.Request, onEvent func(engine.Event)) (*engine.TurnResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("chat request: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("chat request: status %d", resp.StatusCode)
	}

	return stream.NewDecoder(resp.Body).Decode(onEvent)
}

// Health checks the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
