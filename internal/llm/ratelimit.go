package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/the-spice-must-talk/internal/common"
)

const defaultRequestsPerMinute = 60

// bucket is a token bucket refilled from elapsed time on each reservation.
type bucket struct {
	last     time.Time
	now      func() time.Time
	tokens   float64
	capacity float64
	interval time.Duration // time to earn one token
	mu       sync.Mutex
}

func newBucket(perMinute int) *bucket {
	if perMinute <= 0 {
		perMinute = defaultRequestsPerMinute
	}
	b := &bucket{
		now:      time.Now,
		tokens:   float64(perMinute),
		capacity: float64(perMinute),
		interval: time.Minute / time.Duration(perMinute),
	}
	b.last = b.now()
	return b
}

// reserve takes a token, or reports how long until one is earned.
func (b *bucket) reserve() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+float64(elapsed)/float64(b.interval))
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	return time.Duration((1 - b.tokens) * float64(b.interval)), false
}

// wait blocks until a token is taken or ctx ends.
func (b *bucket) wait(ctx context.Context) error {
	for {
		delay, ok := b.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

type rateLimitedProvider struct {
	Provider
	limiter *bucket
}

// WithRateLimit wraps p so at most requestsPerMinute calls start per minute,
// with bursts up to the same number. A call that cannot get a token before its
// context ends fails with common.ErrRateLimit.
func WithRateLimit(p Provider, requestsPerMinute int) Provider {
	return &rateLimitedProvider{Provider: p, limiter: newBucket(requestsPerMinute)}
}

func (p *rateLimitedProvider) Send(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	if err := p.limiter.wait(ctx); err != nil {
		return "", fmt.Errorf("%s: %w: %w", p.ID(), common.ErrRateLimit, err)
	}
	return p.Provider.Send(ctx, systemPrompt, messages)
}
