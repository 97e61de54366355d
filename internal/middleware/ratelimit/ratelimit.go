// Package ratelimit limits requests per client key with a fixed one-minute
// window.
package ratelimit

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	window   = time.Minute
	staleAge = 10 * time.Minute
)

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns 60 requests per minute with a five minute sweep.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// counter is one client's current window.
type counter struct {
	start time.Time
	last  time.Time
	n     int
}

// Limiter counts requests per key. Keys idle for ten minutes are swept by a
// background goroutine until Stop.
type Limiter struct {
	limit    int
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
	rejected int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter and starts its sweeper.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	l := &Limiter{
		limit:    cfg.RequestsPerMinute,
		interval: cfg.CleanupInterval,
		now:      time.Now,
		counters: make(map[string]*counter),
		stop:     make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow records a request for key and reports whether it is within the
// limit. The window starts at the key's first request, not at the last one.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.start) >= window {
		l.counters[key] = &counter{start: now, last: now, n: 1}
		return true
	}

	c.n++
	c.last = now
	if c.n > l.limit {
		atomic.AddInt64(&l.rejected, 1)
		return false
	}
	return true
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep forgets keys without a request in the last ten minutes.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-staleAge)
	for key, c := range l.counters {
		if c.last.Before(cutoff) {
			delete(l.counters, key)
		}
	}
}

// ActiveClients returns the number of tracked keys.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}

// Stop ends the sweeper. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics returns the number of rejected requests and tracked keys.
func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   atomic.LoadInt64(&l.rejected),
		ClientCount: int64(l.ActiveClients()),
	}
}

// Middleware rejects requests over the limit for the key returned by keyOf.
// onLimit writes the rejection; nil writes a plain 429.
func (l *Limiter) Middleware(keyOf func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Allow(keyOf(r)) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "60")
			if onLimit == nil {
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			onLimit(w, r)
		})
	}
}
