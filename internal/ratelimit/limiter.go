// Package ratelimit tracks consecutive failed logins per (client address,
// username) pair and enforces a temporary lockout. The table is shared by all
// sessions; hold times are short and no I/O happens under its lock.
package ratelimit

import (
	"sync"
	"time"
)

// Key identifies one tracked login source. The same user from two addresses,
// or two users from one address, are tracked independently.
type Key struct {
	Addr     string
	Username string
}

type record struct {
	failures int
	last     time.Time
}

// LoginLimiter blocks a key once it accumulates maxFails consecutive failures
// within the lockout window. Records expire lazily: a lookup after the window
// has passed purges the entry, there is no background sweep.
type LoginLimiter struct {
	maxFails int
	window   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	records map[Key]*record
}

func New(maxFails int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		maxFails: maxFails,
		window:   window,
		now:      time.Now,
		records:  make(map[Key]*record),
	}
}

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(maxFails int, window time.Duration, now func() time.Time) *LoginLimiter {
	limiter := New(maxFails, window)
	limiter.now = now
	return limiter
}

// IsBlocked reports whether key is currently locked out. An entry older than
// the window never blocks, even if its count is at the threshold; it is
// dropped on the spot.
func (l *LoginLimiter) IsBlocked(key Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok {
		return false
	}
	if l.now().Sub(rec.last) > l.window {
		delete(l.records, key)
		return false
	}
	return rec.failures >= l.maxFails
}

// RecordFailure counts one failed login for key. A failure after the window
// has elapsed starts a fresh count at 1.
func (l *LoginLimiter) RecordFailure(key Key) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok || now.Sub(rec.last) > l.window {
		l.records[key] = &record{failures: 1, last: now}
		return
	}
	rec.failures++
	rec.last = now
}

// RecordSuccess clears any tracking for key.
func (l *LoginLimiter) RecordSuccess(key Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, key)
}
