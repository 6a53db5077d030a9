// Package httpc is a small client for the avatar web API with timeouts set.
package httpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-avatar/pkg/session"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultConnectTimeout  = 5 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// NewHTTPClient creates an http.Client with the package timeouts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Client talks to one avatar server.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the server at base, e.g. "http://localhost:8080".
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: NewHTTPClient(DefaultTimeout),
	}
}

// Params fetches the current avatar parameters.
func (c *Client) Params(ctx context.Context) (tracking.Params, error) {
	var p tracking.Params
	err := c.do(ctx, http.MethodGet, "/api/params", &p)
	return p, err
}

// Snapshot fetches the current snapshot.
func (c *Client) Snapshot(ctx context.Context) (tracking.Snapshot, error) {
	var s tracking.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/snapshot", &s)
	return s, err
}

// Config fetches the server's tracking config.
func (c *Client) Config(ctx context.Context) (tracking.Config, error) {
	var cfg tracking.Config
	err := c.do(ctx, http.MethodGet, "/api/config", &cfg)
	return cfg, err
}

// Stats fetches the raw stats document.
func (c *Client) Stats(ctx context.Context) (map[string]json.RawMessage, error) {
	var out map[string]json.RawMessage
	err := c.do(ctx, http.MethodGet, "/api/stats", &out)
	return out, err
}

// Sessions lists recorded sessions.
func (c *Client) Sessions(ctx context.Context) ([]session.Session, error) {
	var out []session.Session
	err := c.do(ctx, http.MethodGet, "/api/sessions", &out)
	return out, err
}

// DeleteSession removes a recorded session.
func (c *Client) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+id.String(), nil)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
