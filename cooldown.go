package chronos

import (
	"sync"
	"time"
)

// CooldownCache suppresses repeat dispatches of the same transition edge
// within a window. Keys are only marked after a successful dispatch, so a
// failed dispatch leaves the edge eligible again.
type CooldownCache struct {
	mu     sync.Mutex
	window time.Duration
	clock  Clock
	marks  map[string]time.Time
}

func NewCooldownCache(window time.Duration, clock Clock) *CooldownCache {
	return &CooldownCache{
		window: window,
		clock:  clock,
		marks:  make(map[string]time.Time),
	}
}

// Allow reports whether key is outside its cooldown window.
func (c *CooldownCache) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.marks[key]
	if !ok {
		return true
	}
	if c.clock.Now().Sub(at) >= c.window {
		delete(c.marks, key)
		return true
	}
	return false
}

// Mark records a successful dispatch of key.
func (c *CooldownCache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	c.marks[key] = now
	for k, at := range c.marks {
		if now.Sub(at) >= c.window {
			delete(c.marks, k)
		}
	}
}
