// Package serviceclient is the HTTP client for peer registry services.
// Relational integrity validators use it to check that referenced entities
// exist in the owning service's data set.
package serviceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client issues JSON POST calls against one peer service host.
type Client struct {
	host   string
	http   *http.Client
	logger *slog.Logger
}

// New creates a client for the given host. The timeout bounds every call so
// a slow peer fails a lookup instead of hanging a whole batch.
func New(host string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		host:   host,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// PostJSON sends body to host+path and decodes the response into out.
// Non-2xx statuses are returned as errors; callers treat any error from here
// as a network failure, never as "entity does not exist".
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("call %s: status %d: %s", path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}
