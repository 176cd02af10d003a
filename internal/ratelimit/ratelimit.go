// Package ratelimit provides token buckets keyed by caller. The real-time channel keys them
// by connection id to throttle inbound commands; the bootstrap API keys them by client IP.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultIdleTimeout = 10 * time.Minute
	sweepInterval      = time.Minute
)

// Option configures a Limiter.
type Option func(*Limiter)

// WithIdleTimeout sets how long a key may go unused before its bucket is dropped.
func WithIdleTimeout(d time.Duration) Option {
	return func(l *Limiter) { l.idle = d }
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one independent token bucket per key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idle    time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// KeyedRateLimiter is the name the rest of the server uses for Limiter.
type KeyedRateLimiter = Limiter

// New creates a limiter refilling rps tokens per second up to burst per key. A non-positive
// rps disables limiting. A background sweeper drops idle keys until Stop is called.
func New(rps float64, burst int, opts ...Option) *Limiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}

	l := &Limiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		idle:    defaultIdleTimeout,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.sweep(sweepInterval)
	return l
}

// Allow reports whether an event for key may happen now, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Check(key)
	return ok
}

// Check is Allow that also returns, when the event is refused, how long until a token is
// available. A refused check consumes nothing.
func (l *Limiter) Check(key string) (bool, time.Duration) {
	now := time.Now()
	r := l.bucketFor(key, now).ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Forget drops the bucket for key, e.g. when its connection closes.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop ends the sweeper. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) bucketFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (l *Limiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.evictIdle(now)
		}
	}
}

func (l *Limiter) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.buckets, key)
		}
	}
}
