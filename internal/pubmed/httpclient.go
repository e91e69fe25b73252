package pubmed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// httpClientConfig configures the rate-limited HTTP client.
type httpClientConfig struct {
	timeout    time.Duration
	rateLimit  float64
	burst      int
	maxRetries int
	retryDelay time.Duration
	userAgent  string
}

// httpClient wraps http.Client with token-bucket rate limiting and retries on
// 429 and 5xx responses. Safe for concurrent use.
type httpClient struct {
	client  *http.Client
	limiter *rate.Limiter
	config  httpClientConfig
}

func newHTTPClient(cfg httpClientConfig) *httpClient {
	if cfg.timeout == 0 {
		cfg.timeout = 30 * time.Second
	}
	if cfg.rateLimit == 0 {
		cfg.rateLimit = DefaultRateLimit
	}
	if cfg.burst == 0 {
		cfg.burst = DefaultBurstSize
	}
	if cfg.maxRetries == 0 {
		cfg.maxRetries = 3
	}
	if cfg.retryDelay == 0 {
		cfg.retryDelay = time.Second
	}
	if cfg.userAgent == "" {
		cfg.userAgent = defaultUserAgent
	}

	return &httpClient{
		client:  &http.Client{Timeout: cfg.timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.rateLimit), cfg.burst),
		config:  cfg,
	}
}

// Do executes a request, waiting on the rate limiter before each attempt.
// Requests here are GETs with no body, so retries can reuse the request as is.
func (c *httpClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.maxRetries; attempt++ {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < c.config.maxRetries {
				if err := sleepCtx(req.Context(), c.config.retryDelay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		delay := retryDelay(resp, c.config.retryDelay)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if attempt < c.config.maxRetries {
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			if err := sleepCtx(req.Context(), delay); err != nil {
				return nil, err
			}
			continue
		}
		return nil, fmt.Errorf("max retries exhausted after %d attempts, last status: %d",
			c.config.maxRetries+1, resp.StatusCode)
	}

	return nil, lastErr
}

func retryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= 500 && statusCode < 600)
}

// retryDelay honors the Retry-After header, as seconds or an HTTP date,
// falling back to the configured delay.
func retryDelay(resp *http.Response, fallback time.Duration) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return fallback
	}
	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return fallback
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return fallback
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
