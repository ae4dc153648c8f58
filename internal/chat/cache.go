package chat

import (
	"strings"
	"sync"
	"time"
)

// cacheEntry is a cached guest answer.
type cacheEntry struct {
	expiry time.Time
	reply  Reply
}

// replyCache holds guest answers for a short TTL. Guest answers never depend
// on history or stored records, so identical questions can share one.
type replyCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

func newReplyCache(ttl time.Duration) *replyCache {
	c := &replyCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go c.cleanup(cleanupInterval(ttl))

	return c
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < 5*time.Minute {
		return ttl
	}
	return 5 * time.Minute
}

func cacheKey(provider, text string) string {
	return provider + "\x00" + strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func (c *replyCache) get(key string) (Reply, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return Reply{}, false
	}
	return entry.reply, true
}

func (c *replyCache) set(key string, reply Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		reply:  reply,
		expiry: time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *replyCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *replyCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *replyCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
