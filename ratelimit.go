package main

import (
	"sync"
	"time"
)

// RateLimiter is a keyed fixed-window request counter. An entry is created
// on the first request for a key, replaced when its window expires, and
// incremented on each allowed request. It holds no global state so it can
// be swapped for a shared store in a multi-instance deployment.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*windowEntry
	now     func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter allows up to limit requests per key within each window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// Allow reports whether a request for key fits in the current window and
// counts it if so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.entries[key]
	if !ok || now.After(entry.resetAt) {
		rl.entries[key] = &windowEntry{count: 1, resetAt: now.Add(rl.window)}
		return true
	}

	if entry.count >= rl.limit {
		return false
	}

	entry.count++
	return true
}

// Wait returns how long until the key's window resets, or zero if the key
// is currently allowed more requests.
func (rl *RateLimiter) Wait(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[key]
	if !ok || entry.count < rl.limit {
		return 0
	}
	remaining := entry.resetAt.Sub(rl.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
