package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Burst(t *testing.T) {
	tests := []struct {
		name     string
		burst    int
		calls    int
		wantPass int
	}{
		{name: "within burst", burst: 3, calls: 3, wantPass: 3},
		{name: "over burst", burst: 2, calls: 5, wantPass: 2},
		{name: "zero burst allows one", burst: 0, calls: 3, wantPass: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(0.01, tt.burst)
			defer l.Stop()

			passed := 0
			for range tt.calls {
				if l.Allow("conn-1") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := New(0, 1)
	defer l.Stop()

	for range 1000 {
		require.True(t, l.Allow("conn-1"))
	}
}

func TestLimiter_CheckReportsDelay(t *testing.T) {
	l := New(1, 1)
	defer l.Stop()

	ok, delay := l.Check("10.0.0.1")
	assert.True(t, ok)
	assert.Zero(t, delay)

	ok, delay = l.Check("10.0.0.1")
	assert.False(t, ok)
	assert.Greater(t, delay, 900*time.Millisecond)
	assert.LessOrEqual(t, delay, time.Second)

	// A refused check gives its token back, so the wait does not grow.
	_, again := l.Check("10.0.0.1")
	assert.LessOrEqual(t, again, delay)
}

func TestLimiter_Refill(t *testing.T) {
	l := New(20, 1)
	defer l.Stop()

	require.True(t, l.Allow("conn-1"))
	require.False(t, l.Allow("conn-1"))

	assert.Eventually(t, func() bool { return l.Allow("conn-1") }, time.Second, 10*time.Millisecond)
}

func TestLimiter_IndependentKeys(t *testing.T) {
	l := New(0.01, 1)
	defer l.Stop()

	require.True(t, l.Allow("conn-1"))
	assert.False(t, l.Allow("conn-1"))
	assert.True(t, l.Allow("conn-2"))
	assert.Equal(t, 2, l.Len())
}

func TestLimiter_Forget(t *testing.T) {
	l := New(0.01, 1)
	defer l.Stop()

	l.Allow("conn-1")
	require.False(t, l.Allow("conn-1"))

	l.Forget("conn-1")
	assert.Zero(t, l.Len())
	assert.True(t, l.Allow("conn-1"), "a forgotten key starts with a full bucket")
}

func TestLimiter_EvictIdle(t *testing.T) {
	l := New(1, 1, WithIdleTimeout(time.Minute))
	defer l.Stop()

	l.Allow("stale")
	l.Allow("fresh")

	l.mu.Lock()
	l.buckets["stale"].lastSeen = time.Now().Add(-2 * time.Minute)
	l.mu.Unlock()

	l.evictIdle(time.Now())

	assert.Equal(t, 1, l.Len())
	l.mu.Lock()
	_, ok := l.buckets["fresh"]
	l.mu.Unlock()
	assert.True(t, ok, "fresh key survives eviction")
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(0.01, 5)
	defer l.Stop()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		passed = map[string]int{}
	)
	for i := range 40 {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			if l.Allow(key) {
				mu.Lock()
				passed[key]++
				mu.Unlock()
			}
		}(fmt.Sprintf("conn-%d", i%4))
	}
	wg.Wait()

	for key, n := range passed {
		assert.Equal(t, 5, n, key)
	}
	assert.Len(t, passed, 4)
	l.Stop()
}
