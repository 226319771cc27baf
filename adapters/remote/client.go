// Package remote provides the outbound HTTP client used by enrichment
// hooks. It satisfies ports.Getter so tests can substitute a canned
// lookup through the container.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/artpar/declarest/ports"
)

const defaultTimeout = 10 * time.Second

// Client fetches JSON documents over HTTP.
type Client struct {
	http *http.Client
}

// New creates a client with the default timeout.
func New() *Client {
	return &Client{http: &http.Client{Timeout: defaultTimeout}}
}

// WithHTTPClient creates a client over a caller-supplied http.Client.
func WithHTTPClient(hc *http.Client) *Client {
	return &Client{http: hc}
}

// GetJSON issues a GET with the given query parameters and decodes the
// JSON response body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params map[string]string, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("get %s: unexpected status %d", u.Host, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ ports.Getter = (*Client)(nil)
