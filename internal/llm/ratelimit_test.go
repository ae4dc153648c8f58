package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-spice-must-talk/internal/common"
)

type manualClock struct {
	t  time.Time
	mu sync.Mutex
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newManualBucket(perMinute int) (*bucket, *manualClock) {
	clock := &manualClock{t: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	b := newBucket(perMinute)
	b.now = clock.now
	b.last = clock.now()
	return b, clock
}

func TestBucket(t *testing.T) {
	t.Run("burst then empty", func(t *testing.T) {
		b, _ := newManualBucket(5)
		for i := 0; i < 5; i++ {
			_, ok := b.reserve()
			assert.True(t, ok, "reservation %d", i+1)
		}
		delay, ok := b.reserve()
		assert.False(t, ok)
		assert.Equal(t, 12*time.Second, delay)
	})

	t.Run("refills from elapsed time", func(t *testing.T) {
		b, clock := newManualBucket(2)
		b.reserve()
		b.reserve()

		clock.advance(15 * time.Second)
		delay, ok := b.reserve()
		assert.False(t, ok)
		assert.Equal(t, 15*time.Second, delay)

		clock.advance(15 * time.Second)
		_, ok = b.reserve()
		assert.True(t, ok)
	})

	t.Run("capped at capacity", func(t *testing.T) {
		b, clock := newManualBucket(2)
		b.reserve()
		b.reserve()
		clock.advance(time.Hour)

		for i := 0; i < 2; i++ {
			_, ok := b.reserve()
			assert.True(t, ok)
		}
		_, ok := b.reserve()
		assert.False(t, ok)
	})

	t.Run("default rate", func(t *testing.T) {
		b, _ := newManualBucket(0)
		for i := 0; i < defaultRequestsPerMinute; i++ {
			_, ok := b.reserve()
			require.True(t, ok)
		}
		_, ok := b.reserve()
		assert.False(t, ok)
	})

	t.Run("context cancellation", func(t *testing.T) {
		b := newBucket(1)
		require.NoError(t, b.wait(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() {
			done <- b.wait(ctx)
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		err := <-done
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limiter canceled")
	})

	t.Run("concurrent access", func(t *testing.T) {
		b := newBucket(100)
		ctx := context.Background()

		var acquired atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					if err := b.wait(ctx); err == nil {
						acquired.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(100), acquired.Load())
	})
}

func TestWithRateLimit(t *testing.T) {
	inner := &fakeProvider{id: "fake", reply: "ok"}
	p := WithRateLimit(inner, 1)

	assert.Equal(t, "fake", p.ID())

	text, err := p.Send(context.Background(), "sys", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Send(ctx, "sys", nil)
	require.ErrorIs(t, err, common.ErrRateLimit)
	assert.Equal(t, 1, inner.callCount())
}
