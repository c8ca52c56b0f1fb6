// Package backoff holds the one scheduling utility shared by every background
// loop: deposit polling, sweeping, pool settlement, loan default checks.
package backoff

import (
	"context"
	"sync"
	"time"
)

// Loop runs fn immediately and then on every interval tick until ctx is
// cancelled. fn is responsible for its own error handling; a failing cycle
// never stops the loop.
func Loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Exponential tracks per-key failure streaks and gates retries at
// base * 2^failures, capped. Keys with no recorded failure are always ready.
type Exponential struct {
	base time.Duration
	cap  time.Duration

	mu    sync.Mutex
	fails map[string]int
	next  map[string]time.Time
}

func NewExponential(base, cap time.Duration) *Exponential {
	return &Exponential{
		base:  base,
		cap:   cap,
		fails: make(map[string]int),
		next:  make(map[string]time.Time),
	}
}

// Ready reports whether key may be attempted at now.
func (e *Exponential) Ready(key string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !now.Before(e.next[key])
}

// Failure records a failed attempt and returns the delay before the next one.
func (e *Exponential) Failure(key string, now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	delay := e.base << e.fails[key]
	if delay > e.cap || delay <= 0 {
		delay = e.cap
	}
	e.fails[key]++
	e.next[key] = now.Add(delay)
	return delay
}

// Success clears the failure streak for key.
func (e *Exponential) Success(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.fails, key)
	delete(e.next, key)
}
