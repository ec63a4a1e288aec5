package chronos

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func TestCooldownCache(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	c := NewCooldownCache(30*time.Minute, clock)

	if !c.Allow("service-start") {
		t.Fatal("fresh key should be allowed")
	}
	c.Mark("service-start")
	if c.Allow("service-start") {
		t.Error("marked key should be suppressed inside the window")
	}
	if !c.Allow("service-end") {
		t.Error("other keys are independent")
	}

	clock.Advance(29 * time.Minute)
	if c.Allow("service-start") {
		t.Error("key should still be suppressed just before the window ends")
	}
	clock.Advance(time.Minute)
	if !c.Allow("service-start") {
		t.Error("key should be allowed once the window has passed")
	}
}
