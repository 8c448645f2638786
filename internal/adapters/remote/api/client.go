// Package api provides the HTTP client for the viberater server API. It
// implements the typed remote contract the sync engine and state facade
// replay against, plus the chat passthrough used by the refine flow.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/infrastructure/logging"
	"github.com/viberater/viberater/internal/infrastructure/tracing"
)

// Config holds the client configuration.
type Config struct {
	BaseURL      string
	AccessToken  string
	RefreshToken string
	Timeout      time.Duration
}

// Client handles HTTP communication with the viberater server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	tracer     *tracing.Tracer

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

// NewClient creates a new API client.
func NewClient(cfg Config, logger *logging.Logger, tracer *tracing.Tracer) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		logger:       logger,
		tracer:       tracer,
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
	}
}

// SetHTTPClient replaces the underlying HTTP client; used in tests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// AccessToken returns the current bearer token.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// errorBody is the server's error envelope.
type errorBody struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// do issues one request and decodes the JSON response into out. A 401 on any
// endpoint except the refresh endpoint triggers one token refresh and one
// retry; a second 401 surfaces as the final error.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, span := c.tracer.StartRemoteSpan(ctx, method, path)
	defer span.End()

	err := c.doOnce(ctx, method, path, body, out)
	if err != nil && isUnauthorized(err) && path != "/auth/refresh" {
		if refreshErr := c.refresh(ctx); refreshErr == nil {
			err = c.doOnce(ctx, method, path, body, out)
		}
	}
	if err != nil {
		span.RecordError(err)
		c.logger.DebugContext(ctx, "request failed", "method", method, "path", path, "error", err)
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.NewError(errors.CodeMalformed, "encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.NewError(errors.CodeConnectivity, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewError(errors.CodeConnectivity, "request failed", err)
	}
	defer resp.Body.Close()

	// Read the whole body up front so both the content-type check and the
	// error envelope can quote it.
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewError(errors.CodeConnectivity, "read response", err)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return errors.NewError(errors.CodeMalformed,
			fmt.Sprintf("non-JSON response (%d): %s", resp.StatusCode, truncate(raw, 100)), nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.NewError(errors.CodeMalformed,
			fmt.Sprintf("invalid JSON: %s", truncate(raw, 100)), err)
	}
	return nil
}

// statusError maps a non-2xx status to a coded error. 4xx responses are
// terminal rejections the queue must not retry; 5xx and everything else is
// treated as a reachability problem.
func (c *Client) statusError(status int, raw []byte) error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}

	switch {
	case status == http.StatusUnauthorized:
		return errors.NewError(errors.CodeValidation, msg, errUnauthorized)
	case status == http.StatusNotFound:
		return errors.NewError(errors.CodeNotFound, msg, errors.ErrNotFound)
	case status >= 400 && status < 500:
		return errors.NewError(errors.CodeValidation, msg, nil)
	default:
		return errors.NewError(errors.CodeConnectivity, msg, nil)
	}
}

// errUnauthorized flags a 401 internally so do() knows to attempt a refresh.
var errUnauthorized = fmt.Errorf("unauthorized")

func isUnauthorized(err error) bool {
	return errors.Is(err, errUnauthorized)
}

// refresh exchanges the refresh token for a new access token.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.RLock()
	refreshToken := c.refreshToken
	c.mu.RUnlock()
	if refreshToken == "" {
		return errors.NewError(errors.CodeValidation, "no refresh token", nil)
	}

	var result struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.doOnce(ctx, http.MethodPost, "/auth/refresh",
		map[string]string{"refreshToken": refreshToken}, &result); err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken = result.AccessToken
	c.mu.Unlock()
	c.logger.DebugContext(ctx, "access token refreshed")
	return nil
}

func truncate(raw []byte, n int) string {
	s := string(raw)
	if len(s) > n {
		return s[:n]
	}
	return s
}
