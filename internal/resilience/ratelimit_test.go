package resilience

import (
	"errors"
	"testing"
	"time"
)

func testLimiter(cfg RateLimiterConfig) (*RateLimiter, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter("test", cfg)
	rl.nowFunc = func() time.Time { return now }
	return rl, &now
}

func TestSlidingWindowBlocksOverThreshold(t *testing.T) {
	rl, _ := testLimiter(RateLimiterConfig{Threshold: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		if err := rl.Allow(); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := rl.Allow(); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("request 4 = %v, want ErrRateLimited", err)
	}
}

func TestSlidingWindowRecovers(t *testing.T) {
	rl, now := testLimiter(RateLimiterConfig{Threshold: 2, Window: time.Minute})

	_ = rl.Allow()
	_ = rl.Allow()
	if err := rl.Allow(); !errors.Is(err, ErrRateLimited) {
		t.Fatal("expected window to be full")
	}

	*now = now.Add(61 * time.Second)
	if err := rl.Allow(); err != nil {
		t.Fatalf("after window slid: %v", err)
	}
}

func TestBackoffDoublesPerConsecutive429(t *testing.T) {
	rl, now := testLimiter(DefaultRateLimiterConfig())

	cases := []time.Duration{
		60 * time.Second,
		120 * time.Second,
		240 * time.Second,
	}
	for i, want := range cases {
		rl.Handle429(0)
		if got := rl.BackoffRemaining(); got != want {
			t.Fatalf("429 #%d: backoff = %v, want %v", i+1, got, want)
		}
		// Clear the clock forward so the next measurement starts fresh.
		*now = now.Add(want)
	}
}

func TestBackoffCapsAt30Minutes(t *testing.T) {
	rl, _ := testLimiter(DefaultRateLimiterConfig())

	for i := 0; i < 10; i++ {
		rl.Handle429(0)
	}
	if got := rl.BackoffRemaining(); got != 30*time.Minute {
		t.Fatalf("backoff after 10 consecutive 429s = %v, want 30m cap", got)
	}
}

func TestBackoffStaysCappedUnderSustained429s(t *testing.T) {
	rl, _ := testLimiter(DefaultRateLimiterConfig())

	// Enough consecutive 429s that an unclamped shift would overflow and
	// produce a zero or negative backoff.
	for i := 0; i < 100; i++ {
		rl.Handle429(0)
	}
	if got := rl.BackoffRemaining(); got != 30*time.Minute {
		t.Fatalf("backoff after 100 consecutive 429s = %v, want 30m cap", got)
	}
}

func TestRetryAfterOverridesComputedBackoff(t *testing.T) {
	rl, _ := testLimiter(DefaultRateLimiterConfig())

	rl.Handle429(17 * time.Second)
	if got := rl.BackoffRemaining(); got != 17*time.Second {
		t.Fatalf("backoff = %v, want server-provided 17s", got)
	}
}

func TestBackoffBlocksAllow(t *testing.T) {
	rl, now := testLimiter(DefaultRateLimiterConfig())

	rl.Handle429(0)
	if err := rl.Allow(); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Allow during backoff = %v, want ErrRateLimited", err)
	}

	*now = now.Add(61 * time.Second)
	if err := rl.Allow(); err != nil {
		t.Fatalf("Allow after backoff expired: %v", err)
	}
}

func TestSuccessClearsBackoffState(t *testing.T) {
	rl, _ := testLimiter(DefaultRateLimiterConfig())

	rl.Handle429(0)
	rl.Handle429(0)
	rl.RecordSuccess()

	if got := rl.BackoffRemaining(); got != 0 {
		t.Fatalf("backoff after success = %v, want 0", got)
	}

	// The consecutive counter restarts from 1, not 3.
	rl.Handle429(0)
	if got := rl.BackoffRemaining(); got != 60*time.Second {
		t.Fatalf("backoff after reset = %v, want 60s", got)
	}
}

func TestLimiterRegistryPerSource(t *testing.T) {
	lr := NewLimiterRegistry(RateLimiterConfig{Threshold: 1, Window: time.Minute})

	a := lr.Get("flights")
	b := lr.Get("exchange")
	if a == b {
		t.Fatal("sources must get independent limiters")
	}
	if lr.Get("flights") != a {
		t.Fatal("registry must return the same limiter per source")
	}

	_ = a.Allow()
	if err := a.Allow(); !errors.Is(err, ErrRateLimited) {
		t.Fatal("flights limiter should be exhausted")
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("exchange limiter should be unaffected: %v", err)
	}
}
