// Package httputil provides the HTTP client used to drive a running mode API.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/R3E-Network/mode_orchestrator/internal/facade"
	"github.com/R3E-Network/mode_orchestrator/internal/httpapi"
	"github.com/R3E-Network/mode_orchestrator/internal/middleware"
)

// maxResponseBytes caps decoded response bodies.
const maxResponseBytes = 1 << 20

// APIError is a non-2xx response from the mode API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request failed with status %d (%s): %s", e.Status, e.Code, e.Message)
}

// IsConflict reports whether err is a 409 from the API.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client calls the mode API. Rate-limited and unavailable responses are
// retried up to MaxRetries times.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a new client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = 250 * time.Millisecond
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL != "" && !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      cfg.Token,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// View returns the current facade view.
func (c *Client) View(ctx context.Context) (facade.View, error) {
	var v facade.View
	err := c.do(ctx, http.MethodGet, "/v1/mode", nil, &v)
	return v, err
}

// Transition returns the transition state.
func (c *Client) Transition(ctx context.Context) (httpapi.TransitionResponse, error) {
	var resp httpapi.TransitionResponse
	err := c.do(ctx, http.MethodGet, "/v1/transition", nil, &resp)
	return resp, err
}

// Switch requests a switch to req.Mode.
func (c *Client) Switch(ctx context.Context, req httpapi.SwitchRequest) (facade.View, error) {
	var v facade.View
	err := c.do(ctx, http.MethodPost, "/v1/mode", req, &v)
	return v, err
}

// Toggle requests a switch to the other mode.
func (c *Client) Toggle(ctx context.Context, req httpapi.SwitchRequest) (facade.View, error) {
	req.Mode = ""
	var v facade.View
	err := c.do(ctx, http.MethodPost, "/v1/mode/toggle", req, &v)
	return v, err
}

func (c *Client) do(ctx context.Context, method, path string, body, target interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, path, payload)
		if err != nil {
			return err
		}
		if retryable(resp.StatusCode) && attempt < c.maxRetries {
			resp.Body.Close()
			select {
			case <-time.After(c.retryDelay * time.Duration(attempt+1)):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return DecodeResponse(resp, target)
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// DecodeResponse decodes a JSON response into target, or returns an
// *APIError for non-2xx statuses.
func DecodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var payload middleware.ErrorResponse
		if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if target == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
