// Package apiclient is the small JSON-over-HTTP client shared by every
// external tier. It rate limits per provider and turns non-2xx responses
// into typed fallback.TierError values.
package apiclient

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

	"golang.org/x/time/rate"

	"codeberg.org/snonux/sahachari/internal/fallback"
)

const (
	defaultTimeout = 30 * time.Second
	// maxErrorBody caps how much of an error response ends up in messages.
	maxErrorBody = 512
)

// Options configures a Client.
type Options struct {
	// RequestsPerMinute limits outbound calls. Zero disables limiting.
	RequestsPerMinute int
	HTTPClient        *http.Client
	// Header is sent with every request, e.g. subscription keys.
	Header http.Header
}

// Client talks to one provider.
type Client struct {
	provider string
	http     *http.Client
	limiter  *rate.Limiter
	header   http.Header
}

// New creates a client for provider.
func New(provider string, opts Options) *Client {
	c := &Client{
		provider: provider,
		http:     opts.HTTPClient,
		header:   opts.Header.Clone(),
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if opts.RequestsPerMinute > 0 {
		every := time.Minute / time.Duration(opts.RequestsPerMinute)
		c.limiter = rate.NewLimiter(rate.Every(every), 1)
	}
	return c
}

// Provider returns the provider name used in errors.
func (c *Client) Provider() string {
	return c.provider
}

// GetJSON issues a GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return c.fail(fallback.KindOther, 0, fmt.Errorf("failed to create request: %w", err))
	}
	return c.Do(req, out)
}

// PostJSON marshals in, POSTs it and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return c.fail(fallback.KindOther, 0, fmt.Errorf("failed to encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return c.fail(fallback.KindOther, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req, out)
}

// PostBytes POSTs a raw body with the given content type.
func (c *Client) PostBytes(ctx context.Context, endpoint, contentType string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return c.fail(fallback.KindOther, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req, out)
}

// Do sends req and decodes a JSON response into out when out is non-nil.
func (c *Client) Do(req *http.Request, out any) error {
	ctx := req.Context()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return c.fail(fallback.Classify(ctxErr), 0, ctxErr)
			}
			return c.fail(fallback.KindQuota, 0, fmt.Errorf("rate limit: %w", err))
		}
	}

	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		kind := fallback.Classify(err)
		if kind == fallback.KindOther {
			kind = fallback.KindNetwork
		}
		return c.fail(kind, 0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		return c.fail(StatusKind(resp.StatusCode, msg), resp.StatusCode, errors.New(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return c.fail(fallback.Classify(ctxErr), 0, ctxErr)
		}
		return c.fail(fallback.KindBadResponse, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// BadResponse reports a well-formed response that lacks the expected data.
func (c *Client) BadResponse(format string, args ...any) error {
	return c.fail(fallback.KindBadResponse, 0, fmt.Errorf(format, args...))
}

func (c *Client) fail(kind fallback.ErrorKind, status int, err error) error {
	return &fallback.TierError{Kind: kind, Provider: c.provider, StatusCode: status, Err: err}
}

// StatusKind maps an HTTP status to an error kind. Google reports exhausted
// quotas as 403 with a reason in the body, Spoonacular as 402.
func StatusKind(status int, body string) fallback.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		return fallback.KindQuota
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		lower := strings.ToLower(body)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "ratelimitexceeded") {
			return fallback.KindQuota
		}
		return fallback.KindAuth
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fallback.KindTimeout
	case status >= 500:
		return fallback.KindUnavailable
	case status >= 400:
		return fallback.KindRejected
	default:
		return fallback.KindUnavailable
	}
}
