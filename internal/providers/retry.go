package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HTTPError wraps a non-2xx provider response, carrying the status code in
// its Error() text so isRetryableError/isRateLimitError's substring checks
// (on "429", "503", etc.) apply the same as they would to a transport error.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses an HTTP Retry-After header (seconds form only,
// the form every provider in this module actually sends) into a duration.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// RetryConfig parameterizes RetryDo's backoff math, grounded 1:1 on
// original_source/src/agent/rate_limiter.rs's RateLimiter: base delay is
// derived from requests-per-minute, exponential backoff multiplies by 4 for
// rate-limit/quota errors (capped at 600s) and by 2 for everything else
// (capped at 300s).
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration

	// StatusCallback, if set, is invoked before each retry sleep with a
	// human-readable progress message (mirrors the prototype's
	// context.status_callback).
	StatusCallback func(message string)
}

// DefaultRetryConfig derives the base delay from requestsPerMinute the same
// way RateLimiter::from_config does: base_delay = max(60/rpm, 1) seconds,
// defaulting to 60s (1 RPM) when rpm is unset or non-positive.
func DefaultRetryConfig(requestsPerMinute int) RetryConfig {
	base := 60
	if requestsPerMinute > 0 {
		base = 60 / requestsPerMinute
	}
	if base < 1 {
		base = 1
	}
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Duration(base) * time.Second,
	}
}

// isRetryableError mirrors RateLimiter::is_retryable_error's substring
// families, checked case-insensitively.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"network", "connection", "timeout", "timed out"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	for _, s := range []string{"429", "too many requests", "rate limit", "quota exceeded", "quota"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	for _, s := range []string{"503", "502", "500", "internal server error", "service unavailable"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// isRateLimitError mirrors RateLimiter::calculate_delay's is_rate_limit
// check, used to pick the more aggressive backoff multiplier/cap.
func isRateLimitError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota exceeded")
}

// calculateDelay reproduces RateLimiter::calculate_delay exactly: multiplier
// 4 / cap 600s for rate-limit errors, multiplier 2 / cap 300s otherwise.
func calculateDelay(base time.Duration, attempt int, err error) time.Duration {
	rateLimit := isRateLimitError(err)
	multiplier := 2
	capDelay := 300 * time.Second
	if rateLimit {
		multiplier = 4
		capDelay = 600 * time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(multiplier)
	}
	if delay > capDelay {
		delay = capDelay
	}
	return delay
}

// RetryDo runs op up to cfg.MaxRetries times, applying RateLimiter-style
// exponential backoff between retryable failures and returning immediately
// on a non-retryable error or success.
func RetryDo[T any](ctx context.Context, cfg RetryConfig, providerName string, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		value, err := op()
		if err == nil {
			return value, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return zero, err
		}

		if attempt == maxRetries {
			break
		}

		delay := calculateDelay(cfg.BaseDelay, attempt, err)
		if cfg.StatusCallback != nil {
			cfg.StatusCallback(fmt.Sprintf(
				"%s error (attempt %d/%d). Retrying in %s... (use .stop to cancel)",
				providerName, attempt, maxRetries, delay))
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}
