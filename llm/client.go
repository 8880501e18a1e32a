// Package llm provides a provider-agnostic inference client with retry and
// fallback support. It resolves semantic capabilities ("drafting",
// "auditing", "correcting") to configured model endpoints via model.Registry.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/constellahq/constellation/model"
)

// maxResponseSize bounds the response body read to protect memory.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Message is one chat message sent to a provider.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request is one completion request.
type Request struct {
	// Capability names the semantic capability ("drafting", "auditing",
	// "correcting", "fast"); the registry resolves it to model endpoints.
	Capability string

	// Messages is the chat context to send.
	Messages []Message

	// Temperature controls randomness; nil uses the endpoint default.
	Temperature *float64

	// MaxTokens bounds the response length; 0 uses the endpoint default.
	MaxTokens int
}

// Response is the completion result.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the model that actually served the request.
	Model string

	// TokensUsed is the total token consumption, when reported.
	TokensUsed int

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// Completer is the single call-with-timeout operation the orchestration
// engine depends on. *Client implements it; tests substitute mocks.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client is a provider-agnostic LLM client with retry and fallback.
type Client struct {
	registry   *model.Registry
	httpClient *http.Client
	retry      RetryConfig
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client over the given model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry: registry,
		retry:    DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // allow slow model responses
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a completion request, walking the capability's fallback
// chain with per-endpoint retries. A fatal error (auth, bad request) stops
// the walk; transient errors move on to the next endpoint.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Capability == "" {
		return nil, fmt.Errorf("capability is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	capability := model.ParseCapability(req.Capability)
	if capability == "" {
		capability = model.CapabilityFast
	}
	chain := c.registry.AvailableChain(capability)
	if len(chain) == 0 {
		return nil, fmt.Errorf("no models configured for capability %s", req.Capability)
	}

	var lastErr error
	for _, name := range chain {
		endpoint := c.registry.Endpoint(name)
		if endpoint == nil {
			c.logger.Debug("no endpoint for model, skipping", "model", name)
			continue
		}

		resp, err := c.tryEndpoint(ctx, endpoint, name, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if IsFatal(err) {
			c.logger.Warn("fatal inference error, not trying fallbacks",
				"model", name, "error", err)
			return nil, err
		}
		c.logger.Warn("endpoint failed, trying fallback",
			"model", name, "provider", endpoint.Provider, "error", err)
	}

	return nil, fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
}

// tryEndpoint attempts one endpoint with retries and backoff.
func (c *Client) tryEndpoint(ctx context.Context, ep *model.EndpointConfig, name string, req Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, ep, req)
		if err == nil {
			c.registry.MarkSuccess(name)
			return resp, nil
		}
		lastErr = err

		if IsFatal(err) {
			// Auth and bad-request errors indicate config issues, not
			// endpoint health; leave the circuit alone.
			return nil, err
		}

		if attempt < c.retry.MaxAttempts {
			backoff := c.backoff(attempt)
			c.logger.Debug("inference request failed, retrying",
				"attempt", attempt, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	c.registry.MarkFailure(name)
	return nil, lastErr
}

// backoff computes exponential backoff with +/-25% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.retry.BackoffBase)
	for i := 1; i < attempt; i++ {
		d *= c.retry.BackoffMultiplier
	}
	if max := float64(c.retry.MaxBackoff); d > max {
		d = max
	}
	jitter := d * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(d + jitter)
}

// doRequest executes a single HTTP call against an endpoint.
func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, Fatal(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	url := provider.BuildURL(ep.URL)
	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, Fatal(fmt.Errorf("build request body: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, Fatal(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, Transient(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, Transient(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return provider.ParseResponse(respBody, ep.Model)
}

// classifyHTTPError maps status codes onto the transient/fatal taxonomy.
func classifyHTTPError(statusCode int, body []byte) error {
	detail := string(body)
	if len(detail) > 200 {
		detail = detail[:200] + "..."
	}
	err := fmt.Errorf("LLM API error (status %d): %s", statusCode, detail)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return Transient(err)
	case statusCode >= 500:
		return Transient(err)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return Fatal(err)
	case statusCode == http.StatusBadRequest:
		return Fatal(err)
	default:
		return Fatal(err)
	}
}
