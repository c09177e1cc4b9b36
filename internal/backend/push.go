// Package backend implements the best-effort link to the decision backend:
// a fire-and-forget HTTP push channel, a low-latency help trigger, and a
// persistent duplex channel for agent responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ambientlearn/watcher/internal/domain"
)

// Result records the outcome of a best-effort delivery. Telemetry is
// explicitly lossy: failures are swallowed, but they are swallowed
// visibly, as an Ignored error logged at debug level, never as a bare
// discard.
type Result struct {
	Delivered bool
	Ignored   error
}

// Client is the HTTP push side of the backend link.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// NewClient creates a push client for the backend at baseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// PushContext delivers one envelope to POST /context. Failures are
// swallowed into the Result; the caller never blocks on them.
func (c *Client) PushContext(ctx context.Context, env *domain.ContextEnvelope) Result {
	return c.post(ctx, "/context", env)
}

// touchRequest is the minimal body for the manual help trigger.
type touchRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// Touch fires the out-of-band help request. It bypasses the fusion cadence
// entirely and is independent of session state.
func (c *Client) Touch(ctx context.Context, userID, message string) Result {
	return c.post(ctx, "/touch", touchRequest{Message: message, UserID: userID})
}

func (c *Client) post(ctx context.Context, path string, body any) Result {
	payload, err := json.Marshal(body)
	if err != nil {
		return c.ignore(path, fmt.Errorf("encode body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return c.ignore(path, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return c.ignore(path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.ignore(path, fmt.Errorf("status %d", resp.StatusCode))
	}
	return Result{Delivered: true}
}

// ignore records a swallowed failure.
func (c *Client) ignore(path string, err error) Result {
	c.logger.Debug("[BACKEND] Delivery ignored", "path", path, "error", err)
	return Result{Ignored: err}
}
