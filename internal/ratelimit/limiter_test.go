package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(10.0, 5)
	if l == nil {
		t.Fatal("NewLimiter returned nil")
	}
	if l.rate != 10.0 {
		t.Errorf("rate = %f, want 10.0", l.rate)
	}
	if l.burst != 5 {
		t.Errorf("burst = %f, want 5", l.burst)
	}
}

func TestAllow_WithinBurst(t *testing.T) {
	l := NewLimiter(1.0, 3)

	// First 3 requests should all be allowed (burst)
	for i := 0; i < 3; i++ {
		if !l.Allow("key1") {
			t.Errorf("request %d should be allowed (within burst)", i+1)
		}
	}
}

func TestAllow_ExceedsBurst(t *testing.T) {
	l := NewLimiter(1.0, 2)

	// Consume entire burst
	l.Allow("key1")
	l.Allow("key1")

	// Next request should be rejected
	if l.Allow("key1") {
		t.Error("request after burst exhaustion should be rejected")
	}
}

func TestAllow_RefillAfterWait(t *testing.T) {
	now := time.Now()
	l := NewLimiter(10.0, 2) // 10 tokens/sec
	l.nowFunc = func() time.Time { return now }

	// Consume burst
	l.Allow("key1")
	l.Allow("key1")

	// Should be rejected
	if l.Allow("key1") {
		t.Error("expected rejection after burst")
	}

	// Advance time by 200ms => 10 * 0.2 = 2 tokens refilled
	now = now.Add(200 * time.Millisecond)

	// Should be allowed now
	if !l.Allow("key1") {
		t.Error("expected allow after token refill")
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	l := NewLimiter(1.0, 1)

	// Exhaust key1's burst
	l.Allow("key1")
	if l.Allow("key1") {
		t.Error("key1 should be exhausted")
	}

	// key2 should still work independently
	if !l.Allow("key2") {
		t.Error("key2 should be allowed (independent bucket)")
	}
}

func TestAllow_BurstDoesNotExceedMax(t *testing.T) {
	now := time.Now()
	l := NewLimiter(100.0, 3) // High rate, but burst capped at 3
	l.nowFunc = func() time.Time { return now }

	// Exhaust burst
	l.Allow("key1")
	l.Allow("key1")
	l.Allow("key1")

	// Even after waiting a long time, tokens should cap at burst
	now = now.Add(10 * time.Second) // Would refill 1000 tokens uncapped

	// Should only get burst=3 tokens back
	for i := 0; i < 3; i++ {
		if !l.Allow("key1") {
			t.Errorf("request %d should be allowed after refill capped at burst", i+1)
		}
	}
	if l.Allow("key1") {
		t.Error("4th request should be rejected (burst cap)")
	}
}

func TestAllow_PartialTokenRefill(t *testing.T) {
	now := time.Now()
	l := NewLimiter(2.0, 5) // 2 tokens/sec
	l.nowFunc = func() time.Time { return now }

	// Use 3 tokens
	l.Allow("key1")
	l.Allow("key1")
	l.Allow("key1")

	// Advance 250ms => 2*0.25 = 0.5 tokens refilled, total ~2.5
	// (started with 5, used 3 => 2.0 remaining; +0.5 = 2.5)
	now = now.Add(250 * time.Millisecond)

	// Should allow (2.5 tokens available, need 1)
	if !l.Allow("key1") {
		t.Error("expected allow with partial refill")
	}
}

func TestAllow_ZeroRate(t *testing.T) {
	l := NewLimiter(0.0, 2)

	// Initial burst should still work
	if !l.Allow("key1") {
		t.Error("first request should use initial burst")
	}
	if !l.Allow("key1") {
		t.Error("second request should use initial burst")
	}

	// No refill ever (rate=0)
	if l.Allow("key1") {
		t.Error("should be rejected with zero rate")
	}
}

func TestAllow_ConcurrentAccess(t *testing.T) {
	l := NewLimiter(1000.0, 100)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("concurrent-key")
		}()
	}

	wg.Wait()
	close(allowed)

	allowedCount := 0
	for a := range allowed {
		if a {
			allowedCount++
		}
	}

	// With burst=100 and 200 requests, should allow roughly 100
	// Allow some slack for timing
	if allowedCount < 90 || allowedCount > 110 {
		t.Errorf("allowed %d requests, expected ~100 (burst limit)", allowedCount)
	}
}

func TestAllowN_ChargesCost(t *testing.T) {
	now := time.Now()
	l := NewLimiter(1.0, 5)
	l.nowFunc = func() time.Time { return now }

	if !l.AllowN("sim", 3) {
		t.Fatal("cost 3 should fit in a full bucket of 5")
	}
	if l.AllowN("sim", 3) {
		t.Error("cost 3 should not fit in the remaining 2 tokens")
	}
	if !l.AllowN("sim", 2) {
		t.Error("cost 2 should use the remaining tokens")
	}

	now = now.Add(2 * time.Second)
	if !l.AllowN("sim", 2) {
		t.Error("expected refill of 2 tokens after 2s")
	}
}

func TestAllowN_CostAboveCapacityRejected(t *testing.T) {
	l := NewLimiter(0, 5)
	if l.AllowN("big", 50) {
		t.Error("a cost above capacity should never be admitted")
	}
	if !l.AllowN("big", 5) {
		t.Error("the rejected request should not have drained the bucket")
	}
}

func TestCheckCost_OverCapacity(t *testing.T) {
	limiters := NewToolLimiters()

	err := CheckCost(limiters, ToolSimulate, SimulationCost(1_000_000, 100_000_000))
	if !errors.Is(err, ErrOverCapacity) {
		t.Fatalf("expected ErrOverCapacity, got %v", err)
	}
	if err := CheckCost(limiters, ToolSimulate, 5); err != nil {
		t.Errorf("a cost equal to capacity should pass on a full bucket: %v", err)
	}
	if err := CheckCost(limiters, ToolSimulate, 1); err == nil || errors.Is(err, ErrOverCapacity) {
		t.Errorf("expected an ordinary rate limit error on an empty bucket, got %v", err)
	}
}

func TestSimulationCost(t *testing.T) {
	tests := []struct {
		neurons, steps int
		want           float64
	}{
		{100, 10000, 1},
		{10, 100, 1},
		{1000, 10000, 10},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := SimulationCost(tt.neurons, tt.steps); got != tt.want {
			t.Errorf("SimulationCost(%d, %d) = %v, want %v", tt.neurons, tt.steps, got, tt.want)
		}
	}
}

func TestToolRateLimits(t *testing.T) {
	limiters := NewToolLimiters()

	tests := []struct {
		tool  string
		burst float64
	}{
		{ToolSimulate, 5},
		{ToolRuns, 10},
		{ToolStats, 5},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			limiter, ok := limiters[tt.tool]
			if !ok {
				t.Fatalf("missing rate limiter for tool: %s", tt.tool)
			}
			if limiter.burst != tt.burst {
				t.Errorf("burst = %f, want %f", limiter.burst, tt.burst)
			}
		})
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := NewToolLimiters()

	if err := CheckLimit(limiters, ToolRuns); err != nil {
		t.Errorf("unexpected error for %s: %v", ToolRuns, err)
	}

	if err := CheckLimit(limiters, "unknown_tool"); err != nil {
		t.Errorf("unexpected error for unknown tool: %v", err)
	}

	// A 10x reference run drains the simulate burst of 5
	if err := CheckCost(limiters, ToolSimulate, SimulationCost(1000, 10000)); err != nil {
		t.Errorf("first oversized simulate should pass: %v", err)
	}
	if err := CheckCost(limiters, ToolSimulate, 1); err == nil {
		t.Error("expected rate limit error after burst exhaustion")
	}
}
