package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateDelay_FirstAttemptIsBaseDelay(t *testing.T) {
	// base_delay=10: the first attempt waits exactly the base delay. This
	// port has no linear mode (RetryDo always backs off exponentially; the
	// prototype's non-exponential mode has no caller in this module).
	d := calculateDelay(10*time.Second, 1, errors.New("some error"))
	if d != 10*time.Second {
		t.Fatalf("got %v", d)
	}
}

func TestCalculateDelay_ExponentialNormal(t *testing.T) {
	base := 10 * time.Second
	err := errors.New("some error")
	if got := calculateDelay(base, 1, err); got != 10*time.Second {
		t.Fatalf("attempt 1: got %v", got)
	}
	if got := calculateDelay(base, 2, err); got != 20*time.Second {
		t.Fatalf("attempt 2: got %v", got)
	}
	if got := calculateDelay(base, 3, err); got != 40*time.Second {
		t.Fatalf("attempt 3: got %v", got)
	}
}

func TestCalculateDelay_ExponentialRateLimit(t *testing.T) {
	base := 10 * time.Second
	err := errors.New("429 Too Many Requests")
	if got := calculateDelay(base, 1, err); got != 10*time.Second {
		t.Fatalf("attempt 1: got %v", got)
	}
	if got := calculateDelay(base, 2, err); got != 40*time.Second {
		t.Fatalf("attempt 2: got %v", got)
	}
	if got := calculateDelay(base, 3, err); got != 160*time.Second {
		t.Fatalf("attempt 3: got %v", got)
	}
}

func TestCalculateDelay_Caps(t *testing.T) {
	base := 100 * time.Second
	if got := calculateDelay(base, 10, errors.New("some error")); got != 300*time.Second {
		t.Fatalf("normal cap: got %v", got)
	}
	if got := calculateDelay(base, 10, errors.New("429 error")); got != 600*time.Second {
		t.Fatalf("rate-limit cap: got %v", got)
	}
}

func TestDefaultRetryConfig_MinimumDelay(t *testing.T) {
	cfg := DefaultRetryConfig(0)
	if cfg.BaseDelay != 60*time.Second {
		t.Fatalf("got %v want 60s default", cfg.BaseDelay)
	}
	cfg = DefaultRetryConfig(120)
	if cfg.BaseDelay != 0 && cfg.BaseDelay < time.Second {
		t.Fatalf("got %v", cfg.BaseDelay)
	}
}

func TestIsRetryableError(t *testing.T) {
	retryable := []string{
		"Network error", "Connection refused", "Request timed out",
		"429 Too Many Requests", "Rate limit exceeded", "Quota exceeded",
		"503 Service Unavailable", "500 Internal Server Error",
	}
	for _, msg := range retryable {
		if !isRetryableError(errors.New(msg)) {
			t.Fatalf("%q should be retryable", msg)
		}
	}
	nonRetryable := []string{"Invalid API key", "404 Not Found", "400 Bad Request"}
	for _, msg := range nonRetryable {
		if isRetryableError(errors.New(msg)) {
			t.Fatalf("%q should not be retryable", msg)
		}
	}
}

func TestRetryDo_SucceedsAfterRetry(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}
	attempts := 0
	result, err := RetryDo(context.Background(), cfg, "test", func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("503 Service Unavailable")
		}
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("got (%q, %v)", result, err)
	}
	if attempts != 2 {
		t.Fatalf("got %d attempts", attempts)
	}
}

func TestRetryDo_NonRetryableFailsImmediately(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}
	attempts := 0
	_, err := RetryDo(context.Background(), cfg, "test", func() (string, error) {
		attempts++
		return "", errors.New("Invalid API key")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("got %d attempts, want 1 (no retry)", attempts)
	}
}
