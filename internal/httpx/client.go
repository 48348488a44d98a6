package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
)

type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		userAgent:  "sudostake-cli/1.0",
	}
}

// PostJSON sends a JSON body and decodes a JSON response, retrying transient
// failures with bounded backoff. Mutating chain calls must not pass retries
// through here; retry policy belongs to the caller that knows idempotency.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return clierr.Wrap(clierr.CodeUnavailable, "request cancelled", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, "build request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = mapNetError(err)
			if attempt < c.retries {
				continue
			}
			return lastErr
		}

		buf, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return clierr.Wrap(clierr.CodeUnavailable, "read endpoint response", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = clierr.New(clierr.CodeRateLimited, "endpoint rate limited request")
			if attempt < c.retries {
				continue
			}
			return lastErr
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return clierr.New(clierr.CodeAuth, "endpoint rejected credentials")
		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = clierr.New(clierr.CodeUnavailable, fmt.Sprintf("endpoint unavailable (status %d)", resp.StatusCode))
			if attempt < c.retries {
				continue
			}
			return lastErr
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("endpoint returned unexpected status %d", resp.StatusCode))
		}

		if out == nil {
			return nil
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			return clierr.New(clierr.CodeUnavailable, "endpoint returned empty response")
		}
		if err := json.Unmarshal(buf, out); err != nil {
			return clierr.Wrap(clierr.CodeUnavailable, "decode endpoint JSON", err)
		}
		return nil
	}

	if lastErr != nil {
		return lastErr
	}
	return clierr.New(clierr.CodeUnavailable, "request failed")
}

func mapNetError(err error) error {
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return clierr.Wrap(clierr.CodeUnavailable, "endpoint timeout", err)
	}
	return clierr.Wrap(clierr.CodeUnavailable, "endpoint request failed", err)
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
