// Package ratelimit provides per-key token bucket rate limiting for MCP
// tools. Simulation requests are charged by workload rather than per call.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// Limiter is a per-key token bucket. Each key gets its own bucket with the
// configured refill rate and capacity. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64 // capacity, also the initial token count
	nowFunc func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a limiter refilling at rate tokens/sec up to burst.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   float64(burst),
		nowFunc: time.Now,
	}
}

// Allow takes one token for key.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN takes cost tokens for key if available. A cost above the bucket
// capacity is never admitted.
func (l *Limiter) AllowN(key string, cost float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastCheck: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.burst, b.tokens+l.rate*elapsed)
		b.lastCheck = now
	}

	cost = math.Max(cost, 0)
	if b.tokens < cost {
		return false
	}
	b.tokens -= cost
	return true
}

// Capacity returns the bucket size, the largest cost AllowN can admit.
func (l *Limiter) Capacity() float64 { return l.burst }

// ErrOverCapacity is returned for a request that costs more than a full
// bucket holds. Retrying cannot succeed.
var ErrOverCapacity = errors.New("request exceeds rate limit capacity")

// Tool names shared with the MCP server.
const (
	ToolSimulate = "lifnet_simulate"
	ToolRuns     = "lifnet_runs"
	ToolStats    = "lifnet_stats"
)

// WorkUnit is the number of neuron-steps charged as one token.
const WorkUnit = 1_000_000

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default per-tool limiters. A reference run
// (100 neurons, 10000 steps) costs one simulate token.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		ToolSimulate: NewLimiter(10.0/60.0, 5), // 10 reference runs/minute, burst 5
		ToolRuns:     NewLimiter(1.0, 10),      // 60/minute, burst 10
		ToolStats:    NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
	}
}

// CheckLimit charges one call to toolName. Tools without a configured
// limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	return CheckCost(limiters, toolName, 1)
}

// SimulationCost converts a workload to tokens, at least one.
func SimulationCost(neurons, steps int) float64 {
	return math.Max(1, float64(neurons)*float64(steps)/WorkUnit)
}

// CheckCost charges cost tokens to toolName.
func CheckCost(limiters ToolLimiters, toolName string, cost float64) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if cost > limiter.Capacity() {
		return fmt.Errorf("%w: %s costs %.1f tokens, at most %.0f allowed", ErrOverCapacity, toolName, cost, limiter.Capacity())
	}
	if !limiter.AllowN(toolName, cost) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}
	return nil
}
