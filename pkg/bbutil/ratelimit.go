package bbutil

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// slidingWindowLimiter bounds callers to rate acquisitions per "per" window,
// tracked with a monotonic event deque pruned on every Acquire.
type slidingWindowLimiter struct {
	rate int
	per  time.Duration

	mu     sync.Mutex
	events *list.List // of time.Time, oldest at Front
}

func newSlidingWindowLimiter(rate int, per time.Duration) *slidingWindowLimiter {
	if rate < 1 {
		rate = 1
	}
	return &slidingWindowLimiter{rate: rate, per: per, events: list.New()}
}

func (l *slidingWindowLimiter) acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		for l.events.Len() > 0 {
			front := l.events.Front()
			if now.Sub(front.Value.(time.Time)) <= l.per {
				break
			}
			l.events.Remove(front)
		}
		if l.events.Len() < l.rate {
			l.events.PushBack(now)
			l.mu.Unlock()
			return nil
		}
		sleepFor := l.per - now.Sub(l.events.Front().Value.(time.Time))
		l.mu.Unlock()

		if sleepFor < 0 {
			sleepFor = 0
		}
		t := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// RateLimiter composes a sliding-window QPS limiter with a concurrency
// semaphore. Acquire order is QPS first, then the concurrency slot;
// release is the reverse (concurrency only — the QPS window self-expires).
type RateLimiter struct {
	conc *semaphore.Weighted
	rate *slidingWindowLimiter
}

// NewRateLimiter builds a limiter bounding maxConcurrent simultaneous
// holders and qps acquires per burstWindow.
func NewRateLimiter(maxConcurrent, qps int, burstWindow time.Duration) *RateLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &RateLimiter{
		conc: semaphore.NewWeighted(int64(maxConcurrent)),
		rate: newSlidingWindowLimiter(qps, burstWindow),
	}
}

// Slot is a held rate-limiter reservation; Release must be called exactly
// once to free the concurrency slot.
type Slot struct {
	limiter *RateLimiter
}

// Acquire blocks until a QPS slot then a concurrency slot is available, or
// ctx is done.
func (r *RateLimiter) Acquire(ctx context.Context) (*Slot, error) {
	if err := r.rate.acquire(ctx); err != nil {
		return nil, err
	}
	if err := r.conc.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &Slot{limiter: r}, nil
}

// Release frees the concurrency slot held by this reservation.
func (s *Slot) Release() {
	s.limiter.conc.Release(1)
}
