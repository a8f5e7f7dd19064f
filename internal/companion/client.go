// Package companion is a client for the local AI chat companion service.
package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNotRunning is returned when the companion is not configured or did not
// pass its last health check.
var ErrNotRunning = errors.New("AI service is not running")

const (
	healthTimeout = 2 * time.Second
	resetTimeout  = 10 * time.Second
)

// Status mirrors what the companion supervisor reports.
type Status struct {
	IsRunning  bool `json:"isRunning"`
	Port       int  `json:"port"`
	RetryCount int  `json:"retryCount"` // consecutive failed health checks
}

// Client talks to the companion over HTTP.
type Client struct {
	baseURL    string
	port       int
	httpClient *http.Client

	mu       sync.Mutex
	running  bool
	failures int
}

// NewClient creates a client for baseURL, e.g. "http://127.0.0.1:8000".
// An empty baseURL yields a client that always reports ErrNotRunning.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	if u, err := url.Parse(c.baseURL); err == nil {
		c.port, _ = strconv.Atoi(u.Port())
	}
	return c
}

// Enabled reports whether a companion URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// CheckHealth probes GET /docs with a short timeout.
func (c *Client) CheckHealth(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	healthy := false
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/docs", nil)
	if err == nil {
		if resp, err := c.httpClient.Do(req); err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			healthy = resp.StatusCode == http.StatusOK
		}
	}

	c.mu.Lock()
	c.running = healthy
	if healthy {
		c.failures = 0
	} else {
		c.failures++
	}
	c.mu.Unlock()
	return healthy
}

// Status probes the companion and returns its state.
func (c *Client) Status(ctx context.Context) Status {
	if !c.Enabled() {
		return Status{}
	}
	c.CheckHealth(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{IsRunning: c.running, Port: c.port, RetryCount: c.failures}
}

// Chat sends message to POST /chat and returns the raw JSON response.
func (c *Client) Chat(ctx context.Context, message string) (json.RawMessage, error) {
	if !c.Enabled() {
		return nil, ErrNotRunning
	}
	var out json.RawMessage
	if err := c.post(ctx, "/chat", map[string]string{"message": message}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reset clears the companion's conversation memory.
func (c *Client) Reset(ctx context.Context) error {
	if !c.Enabled() {
		return ErrNotRunning
	}
	ctx, cancel := context.WithTimeout(ctx, resetTimeout)
	defer cancel()
	return c.post(ctx, "/reset", nil, nil)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
