package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter() (*LoginLimiter, *clock) {
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewWithClock(3, time.Minute, c.Now), c
}

func TestBlocksAfterThreshold(t *testing.T) {
	limiter, _ := newTestLimiter()
	key := Key{Addr: "10.0.0.1", Username: "alice"}

	limiter.RecordFailure(key)
	limiter.RecordFailure(key)
	assert.False(t, limiter.IsBlocked(key), "two failures must not block")

	limiter.RecordFailure(key)
	assert.True(t, limiter.IsBlocked(key), "third failure must block")
}

func TestWindowExpiryUnblocksAndResetsCount(t *testing.T) {
	limiter, clk := newTestLimiter()
	key := Key{Addr: "10.0.0.1", Username: "alice"}

	for i := 0; i < 3; i++ {
		limiter.RecordFailure(key)
	}
	assert.True(t, limiter.IsBlocked(key))

	clk.Advance(61 * time.Second)
	assert.False(t, limiter.IsBlocked(key), "expired record must not block")

	// The stale record is gone, so the next failure starts a fresh count.
	limiter.RecordFailure(key)
	assert.False(t, limiter.IsBlocked(key))
	limiter.RecordFailure(key)
	limiter.RecordFailure(key)
	assert.True(t, limiter.IsBlocked(key))
}

func TestFailureAfterWindowStartsFresh(t *testing.T) {
	limiter, clk := newTestLimiter()
	key := Key{Addr: "10.0.0.1", Username: "alice"}

	limiter.RecordFailure(key)
	limiter.RecordFailure(key)
	clk.Advance(2 * time.Minute)
	limiter.RecordFailure(key)
	assert.False(t, limiter.IsBlocked(key), "old failures must not carry over")
}

func TestSuccessClearsRecord(t *testing.T) {
	limiter, _ := newTestLimiter()
	key := Key{Addr: "10.0.0.1", Username: "alice"}

	for i := 0; i < 3; i++ {
		limiter.RecordFailure(key)
	}
	limiter.RecordSuccess(key)
	assert.False(t, limiter.IsBlocked(key))

	limiter.RecordFailure(key)
	assert.False(t, limiter.IsBlocked(key), "count must restart after success")
}

func TestKeysTrackedIndependently(t *testing.T) {
	limiter, _ := newTestLimiter()
	blocked := Key{Addr: "10.0.0.1", Username: "alice"}

	for i := 0; i < 3; i++ {
		limiter.RecordFailure(blocked)
	}
	assert.True(t, limiter.IsBlocked(blocked))

	assert.False(t, limiter.IsBlocked(Key{Addr: "10.0.0.2", Username: "alice"}),
		"same user from another address is independent")
	assert.False(t, limiter.IsBlocked(Key{Addr: "10.0.0.1", Username: "bob"}),
		"another user from the same address is independent")
}
