package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/loreguard-ai/loreguard/internal/guardrail"
	"github.com/loreguard-ai/loreguard/internal/scanner"
)

// defaultClientTimeout bounds an evaluation round trip when the caller
// doesn't set one.
const defaultClientTimeout = 2 * time.Second

// Client calls the content-evaluation endpoint with a FAIL-OPEN contract:
// any transport error, timeout, or non-200 response yields an allow
// decision with empty matches. Availability of the monitored agent takes
// priority over this advisory check.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClientLogger sets the client's logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultClientTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// allowDecision is what every failure path returns.
func allowDecision() *EvaluateResponse {
	return &EvaluateResponse{
		Decision: guardrail.DecisionAllow,
		Matches:  []scanner.Match{},
	}
}

// Evaluate posts content for evaluation. It never returns an error: every
// failure is logged and mapped to allow with empty matches.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) *EvaluateResponse {
	body, err := json.Marshal(req)
	if err != nil {
		c.logger.WarnContext(ctx, "content evaluation failed open", "error", err)
		return allowDecision()
	}

	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/content/evaluate", bytes.NewReader(body))
	if err != nil {
		c.logger.WarnContext(ctx, "content evaluation failed open", "error", err)
		return allowDecision()
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Context.TenantID != "" {
		httpReq.Header.Set("X-Tenant-ID", req.Context.TenantID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.WarnContext(ctx, "content evaluation failed open", "error", err)
		return allowDecision()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "content evaluation failed open",
			"error", fmt.Sprintf("unexpected status %d", resp.StatusCode))
		return allowDecision()
	}

	var out EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.WarnContext(ctx, "content evaluation failed open", "error", err)
		return allowDecision()
	}
	if out.Matches == nil {
		out.Matches = []scanner.Match{}
	}
	return &out
}
