// Package fetch holds the breaker- and limiter-gated HTTP clients for the
// external data APIs, plus the tiered resolver that falls back from live
// data through cache and stale cache to config baselines.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/howardwork830-creator/nomad-guide/internal/resilience"
)

// ErrUnavailable is returned when a data source cannot serve a request
// for a non-error reason: no API key configured, or no usable data in
// the response. Callers fall through to the next source tier.
var ErrUnavailable = eris.New("data source unavailable")

// caller wraps one external API with the full protection stack: circuit
// breaker, sliding-window limiter with 429 backoff, a steady per-host
// rate, and retry with exponential backoff.
type caller struct {
	name    string
	httpc   *http.Client
	breaker *resilience.CircuitBreaker
	limiter *resilience.RateLimiter
	host    *rate.Limiter
	retry   resilience.RetryConfig
}

func newCaller(name string, timeout time.Duration, breakers *resilience.Registry, limiters *resilience.LimiterRegistry) *caller {
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger(name, "get")
	return &caller{
		name:    name,
		httpc:   &http.Client{Timeout: timeout},
		breaker: breakers.Get(name),
		limiter: limiters.Get(name),
		host:    rate.NewLimiter(rate.Every(time.Second), 2),
		retry:   retryCfg,
	}
}

// getJSON fetches url and decodes the body into out. verify runs after
// decoding and lets the client reject API-level error payloads; a verify
// failure counts against the breaker like any other failure.
func (c *caller) getJSON(ctx context.Context, url string, out any, verify func() error) error {
	_, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.attempt(ctx, url, out, verify)
	})
	return err
}

func (c *caller) attempt(ctx context.Context, url string, out any, verify func() error) error {
	if err := c.breaker.Allow(); err != nil {
		return err
	}
	// Window exhaustion and 429 backoff are not breaker failures; the
	// two mechanisms track different problems.
	if err := c.limiter.Allow(); err != nil {
		return err
	}
	if err := c.host.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrapf(err, "%s: build request", c.name)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return eris.Wrapf(err, "%s: request", c.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.limiter.Handle429(retryAfter)
		c.breaker.RecordFailure()
		return &resilience.RateLimitError{Source: c.name, RetryAfter: retryAfter}
	}
	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		statusErr := eris.Errorf("%s: unexpected status %d", c.name, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return eris.Wrapf(err, "%s: read body", c.name)
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.breaker.RecordFailure()
		return eris.Wrapf(err, "%s: decode response", c.name)
	}
	if verify != nil {
		if err := verify(); err != nil {
			c.breaker.RecordFailure()
			zap.L().Error("api error response",
				zap.String("source", c.name),
				zap.Error(err),
			)
			return err
		}
	}

	c.breaker.RecordSuccess()
	c.limiter.RecordSuccess()
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
