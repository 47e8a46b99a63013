// Package api is the HTTP client for the invoicing server.
//
// Endpoints consumed:
//   - GET  /invoices/today[?offset=&limit=]      bare array or paginated envelope
//   - GET  /invoices/{number}/items              line items of one invoice
//   - GET  /invoices/today/forecast[?branch=]    sales forecast for today
//   - GET  /invoices/daily-sales?days=&branch=   per-day sales history
//   - POST /invoices/rescan                      server-side re-scan trigger
//
// Outbound requests are paced by a token bucket so refresh bursts and long
// pagination runs do not hammer the server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"invoicewatch/internal/logger"
)

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 512

// Config holds configuration for the API client.
type Config struct {
	// BaseURL is the server root, e.g. "http://127.0.0.1:8000".
	BaseURL string

	// Timeout bounds every single request. Default: 15 seconds.
	Timeout time.Duration

	// RequestsPerSecond paces outbound requests. Zero disables pacing.
	RequestsPerSecond float64

	// Burst is the token bucket size. Default: 5.
	Burst int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://127.0.0.1:8000",
		Timeout:           15 * time.Second,
		RequestsPerSecond: 10,
		Burst:             5,
	}
}

// Client talks to the invoicing server.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a Client for cfg.
func NewClient(cfg Config) (*Client, error) {
	const op = "NewClient"

	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidBaseURL, cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}

	limiter := rate.NewLimiter(rate.Inf, cfg.Burst)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	return &Client{
		base:       base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		log:        logger.WithComponent("api"),
	}, nil
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// endpoint resolves an already escaped path against the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()
	return u.String()
}

// send performs one paced request and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, op, method, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	target := c.endpoint(path, query)
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %s %s: %w", op, method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response body: %w", op, err)
	}

	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{Op: op, Method: method, URL: target, StatusCode: resp.StatusCode, Body: snippet}
	}

	return body, nil
}

// getJSON issues a GET and decodes the response into a generic value, keeping
// numbers as json.Number. A nil result is returned for empty bodies.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values) (any, error) {
	body, err := c.send(ctx, op, http.MethodGet, path, query)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w: trailing data after JSON value", op, ErrUnexpectedPayload)
	}
	return value, nil
}

// Rescan asks the server to re-scan its invoice sources. The response body is ignored.
func (c *Client) Rescan(ctx context.Context) error {
	_, err := c.send(ctx, "Rescan", http.MethodPost, "/invoices/rescan", nil)
	return err
}
