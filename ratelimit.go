package main

import (
	"context"
	"sync"
	"time"
)

// slidingWindowLimiter keeps one timestamp per request sent inside the
// window. A full window delays the caller until the oldest timestamp ages
// out; requests are never rejected. The timestamp list is shared between
// concurrent fetches and is guarded by the mutex.
type slidingWindowLimiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	timestamps []time.Time
	now        func() time.Time
}

func newSlidingWindowLimiter(limit int, window time.Duration) *slidingWindowLimiter {
	return &slidingWindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Wait blocks until a slot is free, then records the request timestamp.
// It returns early with the context error if the caller is cancelled.
func (l *slidingWindowLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.timestamps) < l.limit {
			l.timestamps = append(l.timestamps, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.timestamps[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// prune drops timestamps older than the window. Callers must hold the mutex.
func (l *slidingWindowLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}

// inFlight reports how many timestamps are currently inside the window.
func (l *slidingWindowLimiter) inFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.timestamps)
}
