// Package backend is a thin REST client for the data backend the maintenance
// jobs inspect: health, retention cleanup, backup status, performance and
// usage/cost reports.
package backend

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
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 4 << 20
)

// ErrNotConfigured is returned by every call when no backend URL is set.
var ErrNotConfigured = errors.New("backend: url not configured")

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Config holds backend connection settings.
type Config struct {
	URL        string        `yaml:"url"`
	ServiceKey string        `yaml:"service_key"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Client calls the backend edge functions.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// New creates a client. An empty URL yields a client whose calls all fail
// with ErrNotConfigured, so jobs still run and report the problem.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		key:     cfg.ServiceKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// NewWithHTTPClient is like New but uses hc for transport.
func NewWithHTTPClient(cfg Config, hc *http.Client) *Client {
	c := New(cfg)
	if hc != nil {
		c.http = hc
	}
	return c
}

// Configured reports whether a backend URL is set.
func (c *Client) Configured() bool { return c.baseURL != "" }

// do sends a request to path and decodes a JSON response into T.
func do[T any](ctx context.Context, c *Client, method, path string, payload any) (*T, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("backend: marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("backend: create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("apikey", c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("backend: read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out T
	if len(respBody) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("backend: decode %s response: %w", path, err)
	}
	return &out, nil
}
