// Package ratelimit implements a continuous-refill token-bucket limiter.
//
// Broker rate limits are published as "N requests per second" rather than
// fixed windows, so the bucket refills continuously between calls instead
// of resetting in bursts; this avoids thundering-herd behavior at window
// boundaries.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a single token-bucket limiter. Callers block in Wait until a
// token is available or the context is cancelled.
type Bucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	lastTime time.Time
}

// NewBucket creates a limiter with the given burst capacity and refill rate.
func NewBucket(capacity, ratePerSecond float64) *Bucket {
	return &Bucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled, on deadline
// expiry it returns ctx.Err() which the caller maps to apperrors.KindRateLimited.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(b.lastTime).Seconds()
		b.tokens += elapsed * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastTime = now

		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// TryTake attempts to take a single token without blocking. It reports
// whether a token was available.
func (b *Bucket) TryTake() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(b.lastTime).Seconds()
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastTime = now
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Config describes a broker's published rate limits for one category of
// call, in requests per second, plus the burst allowance.
type Config struct {
	BurstCapacity float64
	PerSecond     float64
}

// AdapterLimiter groups three token buckets for a single broker adapter:
// Orders, Quotes and General. In the bundled adapters PlaceOrder waits on
// Orders and GetQuote waits on Quotes; no other call waits on a bucket.
type AdapterLimiter struct {
	Orders *Bucket
	Quotes *Bucket
	General *Bucket
}

// NewAdapterLimiter builds an AdapterLimiter from per-category configs.
func NewAdapterLimiter(orders, quotes, general Config) *AdapterLimiter {
	return &AdapterLimiter{
		Orders:  NewBucket(orders.BurstCapacity, orders.PerSecond),
		Quotes:  NewBucket(quotes.BurstCapacity, quotes.PerSecond),
		General: NewBucket(general.BurstCapacity, general.PerSecond),
	}
}
