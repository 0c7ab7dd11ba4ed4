// Package transport implements the HTTP client shared by the bucket,
// results, and pipelines-manager clients: a list of candidate base URLs
// per service, healthcheck-driven selection, and exponential backoff
// retry over transient failures.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ClientError is a non-retryable 4xx response, surfaced to the caller
// per spec.md section 4.2.
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error: status %d: %s", e.StatusCode, e.Body)
}

// NoContent is returned by Do when the server answers 204, the shape
// the bucket service uses for "nothing to withdraw".
var NoContent = fmt.Errorf("no content")

// Client selects the first healthy base URL from a candidate list and
// retries transient failures with exponential backoff.
type Client struct {
	httpClient  *http.Client
	baseURLs    []string
	healthy     string
	log         *zap.SugaredLogger
	MaxAttempts int
}

// New builds a Client bound to the given candidate base URLs. connect
// and read bound the underlying socket timeouts (defaults: connect 5s,
// read 30s per spec.md section 5).
func New(baseURLs []string, connect, read time.Duration, log *zap.SugaredLogger) *Client {
	dialer := &net.Dialer{Timeout: connect}
	return &Client{
		httpClient: &http.Client{
			Timeout:   read,
			Transport: &http.Transport{DialContext: dialer.DialContext},
		},
		baseURLs:    baseURLs,
		log:         log,
		MaxAttempts: 5,
	}
}

// healthyBase probes each candidate with a HEAD /version request until
// one answers, caching the result until Invalidate clears it.
func (c *Client) healthyBase(ctx context.Context) (string, error) {
	if c.healthy != "" {
		return c.healthy, nil
	}
	var lastErr error
	for _, base := range c.baseURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, base+"/version", nil)
		if err != nil {
			lastErr = err
			continue
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 500 {
			c.healthy = base
			return base, nil
		}
		lastErr = fmt.Errorf("%s: unhealthy, status %d", base, resp.StatusCode)
	}
	return "", fmt.Errorf("no healthy base URL among %v: %w", c.baseURLs, lastErr)
}

// Invalidate forgets the cached healthy base URL, forcing re-probing on
// the next call.
func (c *Client) Invalidate() {
	c.healthy = ""
}

// Do issues method on path against the healthy base URL, retrying
// transient failures (connection errors, 5xx, timeouts) with exponential
// backoff (initial 1s, factor 2, cap 32s, max 5 attempts). A 4xx
// response returns immediately as a *ClientError; a 204 returns
// transport.NoContent.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 1 * time.Second
	policy.Multiplier = 2
	policy.MaxInterval = 32 * time.Second
	bo := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.MaxAttempts-1)), ctx)

	operation := func() error {
		base, err := c.healthyBase(ctx)
		if err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.Invalidate()
			if c.log != nil {
				c.log.Warnw("transient transport error, retrying", "path", path, "error", err)
			}
			return err
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode == http.StatusNoContent:
			return backoff.Permanent(NoContent)
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return backoff.Permanent(fmt.Errorf("decode response: %w", err))
				}
			}
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(&ClientError{StatusCode: resp.StatusCode, Body: string(respBody)})
		default:
			c.Invalidate()
			return fmt.Errorf("server error: status %d: %s", resp.StatusCode, string(respBody))
		}
	}

	return backoff.Retry(operation, bo)
}
