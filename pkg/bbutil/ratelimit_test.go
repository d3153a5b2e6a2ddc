package bbutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBoundsConcurrency(t *testing.T) {
	rl := NewRateLimiter(2, 100, time.Second)
	ctx := context.Background()

	var inFlight int32
	var maxSeen int32
	done := make(chan struct{}, 5)

	for i := 0; i < 5; i++ {
		go func() {
			slot, err := rl.Acquire(ctx)
			assert.NoError(t, err)
			n := atomic.AddInt32(&inFlight, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			slot.Release()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
}

func TestRateLimiterRespectsQPS(t *testing.T) {
	rl := NewRateLimiter(10, 2, 200*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		slot, err := rl.Acquire(ctx)
		assert.NoError(t, err)
		slot.Release()
	}
	// 4 acquires at QPS=2/200ms means the 3rd/4th must wait roughly one window.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
