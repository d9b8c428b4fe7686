package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/csafsync/csafsync/internal/core"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
)

// TokenSource hands out the current bearer token and accepts invalidation.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Limiter blocks until the next call is permitted under the API quotas.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Client dispatches rate-limited, authenticated requests against the
// advisory API. Two distinct failure policies apply: an authentication
// failure triggers exactly one token refresh and retry, while 5xx, network,
// and malformed-body failures are retried up to MaxAttempts with a short
// backoff. Every attempt, retries included, consumes its own quota slot.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	Limiter     Limiter
	Tokens      TokenSource
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// Get fetches a path below BaseURL and returns the raw response body.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

// GetJSON fetches a path and decodes the body into v. A body that fails to
// decode counts as a transient failure and is retried.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, v any) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, params, func(body []byte) error {
		return json.Unmarshal(body, v)
	})
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, decode func([]byte) error) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("client not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target, err := c.buildURL(path, params)
	if err != nil {
		return nil, err
	}

	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var (
		attempts  int
		refreshed bool
		lastErr   error
	)

	for attempts < maxAttempts {
		if c.Limiter != nil {
			if err := c.Limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}

		token, err := c.Tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		body, status, err := c.attempt(ctx, method, target, token)
		switch {
		case err != nil:
			attempts++
			lastErr = err

		case status >= http.StatusOK && status < http.StatusMultipleChoices:
			if decode != nil {
				if err := decode(body); err != nil {
					attempts++
					lastErr = fmt.Errorf("decode response: %w", err)
					break
				}
			}
			return body, nil

		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			if refreshed {
				return nil, &core.AuthError{Op: method + " " + path, StatusCode: status}
			}
			// One refresh per call: invalidate, re-acquire, retry once.
			// The retry consumes its own quota slot and skips backoff.
			c.Tokens.Invalidate()
			refreshed = true
			continue

		case status >= http.StatusInternalServerError:
			attempts++
			lastErr = fmt.Errorf("server error: status %d", status)

		default:
			return nil, &core.RequestError{StatusCode: status, Body: body}
		}

		if attempts >= maxAttempts {
			break
		}
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
	}

	return nil, &core.TransientError{Attempts: attempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, method, target, token string) ([]byte, int, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

func (c *Client) buildURL(path string, params url.Values) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return "", fmt.Errorf("base url is required")
	}

	target := base
	if trimmed := strings.Trim(path, "/"); trimmed != "" {
		target += "/" + trimmed
	}
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	if _, err := url.Parse(target); err != nil {
		return "", fmt.Errorf("invalid request url: %w", err)
	}
	return target, nil
}

func (c *Client) wait(ctx context.Context) error {
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	if c.sleep != nil {
		return c.sleep(ctx, backoff)
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
