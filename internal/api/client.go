// Package api is the single point of outbound HTTP communication with the
// ZippyPay backend. It injects the stored bearer token on every request and
// strips the token on 401 responses, except when the failing request is the
// current-user probe, so a startup check cannot invalidate a fresh login.
package api

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

	"github.com/zippy-pay/zippy_mobile/internal/securestore"
)

const (
	// TokenName is the secure store entry holding the session bearer token.
	// The session store writes it; this client reads and invalidates it.
	TokenName = "token"

	// UserProbePath is exempt from 401 token stripping.
	UserProbePath = "/user/me"
)

// Client talks JSON to the backend REST API. It performs no retries; retry
// policy belongs to callers.
type Client struct {
	baseURL string
	http    *http.Client
	store   securestore.Store
	logger  *slog.Logger
}

// New builds a client for the given base URL, e.g. "https://host/api".
func New(baseURL string, timeout time.Duration, store securestore.Store, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("api: base url is required")
	}
	if store == nil {
		return nil, fmt.Errorf("api: secure store is required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		store:   store,
		logger:  logger,
	}, nil
}

// Get issues an authenticated GET and decodes a 2xx body into out.
func (c *Client) Get(ctx context.Context, path string, out any, fallback string) error {
	return c.do(ctx, http.MethodGet, path, nil, out, fallback)
}

// Post issues an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any, fallback string) error {
	return c.do(ctx, http.MethodPost, path, body, out, fallback)
}

// Put issues an authenticated PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any, fallback string) error {
	return c.do(ctx, http.MethodPut, path, body, out, fallback)
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any, fallback string) error {
	return c.do(ctx, http.MethodDelete, path, nil, out, fallback)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, fallback string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if token, err := c.store.Get(TokenName); err == nil && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: "read " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized && path != UserProbePath {
			if err := c.store.Delete(TokenName); err != nil {
				c.logger.Warn("drop stored token", "error", err)
			}
		}
		return &Error{Status: resp.StatusCode, Message: serverMessage(raw, fallback)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("api: decode %s response: %w", path, err)
		}
	}
	return nil
}

func serverMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return fallback
}
