package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com/foo"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "http://ca.gov/rules.pdf"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitWithDelay(t *testing.T) {
	limiter := NewLimiter(100, 1)

	start := time.Now()
	if err := limiter.WaitWithDelay(context.Background(), "http://example.com", 50*time.Millisecond); err != nil {
		t.Fatalf("WaitWithDelay failed: %v", err)
	}
	if d := time.Since(start); d < 50*time.Millisecond {
		t.Errorf("expected delay >= 50ms, got %v", d)
	}
}

func TestLimiter_WaitWithDelayCancelled(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.WaitWithDelay(ctx, "http://example.com", time.Hour); err == nil {
		t.Error("expected context error")
	}
}

func TestLimiter_PerHost(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com/a"); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Same host, different path and case: bucket is exhausted
	if limiter.forHost("example.com").Allow() {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}
	if len(limiter.limiters) != 1 {
		t.Errorf("expected one bucket for EXAMPLE.com and example.com, got %d", len(limiter.limiters))
	}

	if err := limiter.Wait(ctx, "http://other.com"); err != nil {
		t.Errorf("other host wait failed: %v", err)
	}
	if len(limiter.limiters) != 2 {
		t.Errorf("expected a second bucket for other.com, got %d", len(limiter.limiters))
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 20; i++ {
		if err := limiter.Wait(ctx, "http://example.com"); err != nil {
			t.Fatalf("request %d throttled with limiting disabled: %v", i, err)
		}
	}
}

func TestHostOf(t *testing.T) {
	host, err := hostOf("http://Example.com:8080/foo")
	if err != nil {
		t.Fatalf("hostOf failed: %v", err)
	}
	if host != "example.com:8080" {
		t.Errorf("expected example.com:8080, got %s", host)
	}

	if _, err := hostOf("::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
