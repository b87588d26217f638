// CLAUDE:SUMMARY Status-aware retry loop: backoff bases differ for rate-limit signals vs generic failures.
package wbclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Backoff bases. Explicit rate-limit/unavailable signals (429, 503) get a
// heavier backoff than generic server or transport failures.
const (
	unavailableBackoff = 2 * time.Second
	genericBackoff     = time.Second
)

// withRetry runs op up to MaxRetries times, acquiring the rate limiter before
// every attempt.
//
// Classification:
//   - 429/503: sleep 2^attempt * 2s and continue; the sleep happens even on
//     the final attempt, then the loop bound terminates and the error surfaces.
//   - 404: terminal ErrNotArchived, no retry.
//   - other 5xx and transport/parse failures: sleep 2^attempt * 1s and retry
//     while attempts remain.
//   - any other HTTP status: terminal, surfaced with its code.
func (c *Client) withRetry(ctx context.Context, endpoint string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx, endpoint); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var se *StatusError
		switch {
		case errors.As(err, &se) && (se.Code == http.StatusTooManyRequests || se.Code == http.StatusServiceUnavailable):
			c.logger.Warn("wayback unavailable, backing off",
				"endpoint", endpoint, "status", se.Code, "attempt", attempt+1)
			if serr := c.sleepBackoff(ctx, attempt, unavailableBackoff); serr != nil {
				return serr
			}

		case errors.As(err, &se) && se.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotArchived, endpoint)

		case errors.As(err, &se) && se.Code >= 500:
			if attempt < c.config.MaxRetries-1 {
				c.logger.Warn("wayback server error, retrying",
					"endpoint", endpoint, "status", se.Code, "attempt", attempt+1)
				if serr := c.sleepBackoff(ctx, attempt, genericBackoff); serr != nil {
					return serr
				}
			}

		case errors.As(err, &se):
			// Unexpected status: surfaced as-is, no retry.
			return err

		default:
			// Transport or parse failure.
			if attempt < c.config.MaxRetries-1 {
				c.logger.Warn("wayback call failed, retrying",
					"endpoint", endpoint, "attempt", attempt+1, "error", err)
				if serr := c.sleepBackoff(ctx, attempt, genericBackoff); serr != nil {
					return serr
				}
			}
		}
	}

	return lastErr
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int, base time.Duration) error {
	return c.config.Sleep(ctx, base*(1<<uint(attempt)))
}
